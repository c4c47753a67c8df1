package neural

import (
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func testConfig() Config {
	return Config{
		InputSize:    8,
		HiddenSize:   16,
		OutputSize:   4,
		Dropout:      0.3,
		HiddenLayers: 2,
	}
}

func randomBatch(rows, cols int, seed int64) *mat.Dense {
	data := make([]float64, rows*cols)
	rng := rand.New(rand.NewSource(seed))
	for i := range data {
		data[i] = rng.Float64()*4 - 2
	}
	return mat.NewDense(rows, cols, data)
}

func TestNetworkForwardProbabilities(t *testing.T) {
	net := NewNetwork(testConfig(), 42)
	x := randomBatch(10, 8, 1)

	probs := net.PredictProba(x)
	rows, cols := probs.Dims()
	assert.Equal(t, 10, rows)
	assert.Equal(t, 4, cols)

	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := probs.At(i, j)
			assert.False(t, math.IsNaN(v))
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	}
}

func TestNetworkPredictBinary(t *testing.T) {
	net := NewNetwork(testConfig(), 42)
	x := randomBatch(6, 8, 2)

	labels := net.Predict(x, DefaultThreshold)
	probs := net.PredictProba(x)
	rows, cols := labels.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := labels.At(i, j)
			assert.True(t, v == 0 || v == 1)
			if probs.At(i, j) >= DefaultThreshold {
				assert.Equal(t, 1.0, v)
			} else {
				assert.Equal(t, 0.0, v)
			}
		}
	}
}

func TestNetworkInferenceDeterministic(t *testing.T) {
	net := NewNetwork(testConfig(), 42)
	x := randomBatch(5, 8, 3)

	first := net.PredictProba(x)
	second := net.PredictProba(x)
	assert.True(t, mat.EqualApprox(first, second, 1e-12))
}

func TestNetworkSameSeedSameWeights(t *testing.T) {
	a := NewNetwork(testConfig(), 7)
	b := NewNetwork(testConfig(), 7)

	pa, pb := a.Parameters(), b.Parameters()
	require.Equal(t, len(pa), len(pb))
	for i := range pa {
		assert.Equal(t, pa[i].Data, pb[i].Data, pa[i].Name)
	}
}

func TestNetworkBackwardAccumulatesGradients(t *testing.T) {
	cfg := testConfig()
	cfg.Dropout = 0
	net := NewNetwork(cfg, 42)
	x := randomBatch(8, 8, 4)

	probs := net.Forward(x, true)
	rows, cols := probs.Dims()
	dLogits := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			dLogits.Set(i, j, (probs.At(i, j)-0.5)/float64(rows*cols))
		}
	}
	net.Backward(dLogits)

	nonzero := 0
	for _, p := range net.Parameters() {
		for _, g := range p.Grad {
			require.False(t, math.IsNaN(g), p.Name)
			if g != 0 {
				nonzero++
			}
		}
	}
	assert.Greater(t, nonzero, 0)

	net.ZeroGrad()
	for _, p := range net.Parameters() {
		for _, g := range p.Grad {
			assert.Zero(t, g)
		}
	}
}

func TestNetworkStateDictRoundTrip(t *testing.T) {
	net := NewNetwork(testConfig(), 42)
	x := randomBatch(12, 8, 5)

	// A training pass perturbs the running statistics.
	net.Forward(x, true)
	snapshot := net.StateDict()
	before := net.PredictProba(x)

	// Another training pass changes the running statistics again.
	net.Forward(x, true)
	require.NoError(t, net.LoadStateDict(snapshot))

	after := net.PredictProba(x)
	assert.True(t, mat.EqualApprox(before, after, 1e-12))
}

func TestNetworkSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	net := NewNetwork(testConfig(), 42)
	x := randomBatch(9, 8, 6)
	net.Forward(x, true)

	require.NoError(t, net.Save(path))
	loaded, err := LoadNetwork(path)
	require.NoError(t, err)

	assert.Equal(t, net.Config(), loaded.Config())
	assert.Equal(t, net.ParameterCount(), loaded.ParameterCount())
	assert.True(t, mat.EqualApprox(net.PredictProba(x), loaded.PredictProba(x), 1e-9))
}

func TestLoadNetworkMissingFile(t *testing.T) {
	_, err := LoadNetwork(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestEnsembleAveragesMembers(t *testing.T) {
	a := NewNetwork(testConfig(), 1)
	b := NewNetwork(testConfig(), 2)
	ens, err := NewEnsemble(a, b)
	require.NoError(t, err)
	assert.Equal(t, 2, ens.Size())
	assert.Equal(t, 4, ens.OutputSize())

	x := randomBatch(5, 8, 7)
	pa, pb := a.PredictProba(x), b.PredictProba(x)
	got := ens.PredictProba(x)

	rows, cols := got.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			assert.InDelta(t, (pa.At(i, j)+pb.At(i, j))/2, got.At(i, j), 1e-12)
		}
	}
}

func TestEnsembleRejectsEmptyAndMismatched(t *testing.T) {
	_, err := NewEnsemble()
	assert.Error(t, err)

	small := testConfig()
	small.OutputSize = 2
	_, err = NewEnsemble(NewNetwork(testConfig(), 1), NewNetwork(small, 2))
	assert.Error(t, err)
}

var _ Predictor = (*Network)(nil)
var _ Predictor = (*Ensemble)(nil)
