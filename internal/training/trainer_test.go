package training

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/climatehealth/healthrisk/internal/neural"
)

func smallConfig(inputs int) neural.Config {
	return neural.Config{
		InputSize:    inputs,
		HiddenSize:   16,
		OutputSize:   2,
		Dropout:      0,
		HiddenLayers: 1,
	}
}

// easyDataset builds a linearly separable two-label problem.
func easyDataset(rows int, seed int64) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewSource(seed))
	X := mat.NewDense(rows, 4, nil)
	Y := mat.NewDense(rows, 2, nil)
	for i := 0; i < rows; i++ {
		a, b := rng.Float64()*2-1, rng.Float64()*2-1
		X.Set(i, 0, a)
		X.Set(i, 1, b)
		X.Set(i, 2, rng.Float64()*0.1)
		X.Set(i, 3, rng.Float64()*0.1)
		if a > 0 {
			Y.Set(i, 0, 1)
		}
		if b > 0 {
			Y.Set(i, 1, 1)
		}
	}
	return X, Y
}

func TestTrainReducesLoss(t *testing.T) {
	X, Y := easyDataset(200, 1)
	net := neural.NewNetwork(smallConfig(4), 42)

	opts := DefaultOptions()
	opts.Epochs = 30
	opts.Patience = 30

	result, err := Train(context.Background(), net, X, Y, opts)
	require.NoError(t, err)
	require.NotEmpty(t, result.History)

	first := result.History[0]
	last := result.History[len(result.History)-1]
	assert.Less(t, last.TrainLoss, first.TrainLoss)
	assert.Less(t, result.BestValLoss, first.ValLoss+1e-9)
	assert.Greater(t, result.FinalValAUC, 0.5)
}

func TestTrainDimensionMismatch(t *testing.T) {
	net := neural.NewNetwork(smallConfig(4), 42)

	X := mat.NewDense(10, 4, nil)
	Y := mat.NewDense(8, 2, nil)
	_, err := Train(context.Background(), net, X, Y, DefaultOptions())
	assert.Error(t, err)

	Y = mat.NewDense(10, 3, nil)
	_, err = Train(context.Background(), net, X, Y, DefaultOptions())
	assert.Error(t, err)
}

func TestTrainCancelledContext(t *testing.T) {
	X, Y := easyDataset(50, 2)
	net := neural.NewNetwork(smallConfig(4), 42)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Train(ctx, net, X, Y, DefaultOptions())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEarlyStoppingHaltsAndRestoresBest(t *testing.T) {
	net := neural.NewNetwork(smallConfig(4), 42)
	es := NewEarlyStopping(3, 0)

	require.False(t, es.Step(0.5, net))
	bestState := net.StateDict()

	// Perturb the weights after the best epoch was snapshotted.
	for _, p := range net.Parameters() {
		for i := range p.Data {
			p.Data[i] += 1
		}
	}

	require.False(t, es.Step(0.6, net))
	require.False(t, es.Step(0.7, net))
	assert.True(t, es.Step(0.8, net))
	assert.InDelta(t, 0.5, es.BestLoss(), 1e-12)

	require.NoError(t, es.Restore(net))
	for _, p := range net.Parameters() {
		assert.Equal(t, bestState[p.Name], p.Data, p.Name)
	}
}

func TestEarlyStoppingMinDelta(t *testing.T) {
	net := neural.NewNetwork(smallConfig(4), 42)
	es := NewEarlyStopping(2, 0.01)

	require.False(t, es.Step(0.5, net))
	// Improvement below minDelta does not reset the counter.
	require.False(t, es.Step(0.495, net))
	assert.True(t, es.Step(0.494, net))
}

func TestEarlyStoppingRestoreWithoutSnapshot(t *testing.T) {
	net := neural.NewNetwork(smallConfig(4), 42)
	es := NewEarlyStopping(3, 0)
	assert.NoError(t, es.Restore(net))
}

func TestPlateauSchedulerHalvesLearningRate(t *testing.T) {
	net := neural.NewNetwork(smallConfig(4), 42)
	opt := NewAdam(net.Parameters(), 1e-3)
	sched := newPlateauScheduler(2, 0.5)

	assert.False(t, sched.step(0.5, opt))
	assert.False(t, sched.step(0.6, opt))
	assert.True(t, sched.step(0.7, opt))
	assert.InDelta(t, 5e-4, opt.LearningRate(), 1e-12)

	// Improvement resets the plateau counter.
	assert.False(t, sched.step(0.4, opt))
	assert.False(t, sched.step(0.5, opt))
	assert.InDelta(t, 5e-4, opt.LearningRate(), 1e-12)
}

func TestPlateauSchedulerFloorsAtMinimum(t *testing.T) {
	net := neural.NewNetwork(smallConfig(4), 42)
	opt := NewAdam(net.Parameters(), 2e-6)
	sched := newPlateauScheduler(1, 0.5)

	// The first observed loss is always an improvement over the initial best.
	assert.False(t, sched.step(0.5, opt))
	assert.True(t, sched.step(0.6, opt))
	assert.InDelta(t, 1e-6, opt.LearningRate(), 1e-18)

	// Already at the floor, no further reduction is reported.
	assert.False(t, sched.step(0.7, opt))
	assert.InDelta(t, 1e-6, opt.LearningRate(), 1e-18)
}

func TestAdamStepMovesAgainstGradient(t *testing.T) {
	p := &neural.Param{Name: "w", Data: []float64{1, -1}, Grad: []float64{0.5, -0.5}}
	opt := NewAdam([]*neural.Param{p}, 0.1)
	opt.Step()

	assert.Less(t, p.Data[0], 1.0)
	assert.Greater(t, p.Data[1], -1.0)
}

func TestCrossValidate(t *testing.T) {
	X, Y := easyDataset(150, 3)

	opts := DefaultOptions()
	opts.Epochs = 10
	opts.Patience = 10

	result, err := CrossValidate(context.Background(), smallConfig(4), X, Y, 3, opts)
	require.NoError(t, err)
	require.Len(t, result.Folds, 3)
	for _, fold := range result.Folds {
		assert.False(t, math.IsNaN(fold.AUC))
		assert.GreaterOrEqual(t, fold.AUC, 0.0)
		assert.LessOrEqual(t, fold.AUC, 1.0)
	}
	assert.False(t, math.IsNaN(result.MeanAUC))
}

func TestCrossValidateRejectsBadFoldCounts(t *testing.T) {
	X, Y := easyDataset(10, 4)

	_, err := CrossValidate(context.Background(), smallConfig(4), X, Y, 1, DefaultOptions())
	assert.Error(t, err)

	_, err = CrossValidate(context.Background(), smallConfig(4), X, Y, 11, DefaultOptions())
	assert.Error(t, err)
}

func TestGenerateSyntheticData(t *testing.T) {
	X, Y := GenerateSyntheticData(100, 42)

	assert.Equal(t, 100, X.Rows())
	assert.Equal(t, 100, Y.Rows())
	assert.Len(t, X.Columns(), 29)
	assert.Equal(t, []string{"asthma_risk", "heatstroke_risk", "cardiovascular_risk", "respiratory_risk"}, Y.Columns())

	for _, name := range Y.Columns() {
		col, ok := Y.Column(name)
		require.True(t, ok)
		for _, v := range col {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	}

	// Same seed reproduces the dataset.
	X2, _ := GenerateSyntheticData(100, 42)
	pm25a, _ := X.Column("pm25")
	pm25b, _ := X2.Column("pm25")
	assert.Equal(t, pm25a, pm25b)
}
