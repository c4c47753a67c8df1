package processor

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func trainingFrame(t *testing.T) *Frame {
	t.Helper()
	return frameOf(t, map[string][]float64{
		"pm25":        {10, 20, 30, 40, 50},
		"aqi":         {50, 80, 110, 140, 170},
		"temperature": {15, 20, 25, 30, 35},
		"humidity":    {40, 50, 60, 70, 80},
		"age":         {25, 35, 45, 55, 65},
	}, 5)
}

func TestNewDataProcessorUnknownKinds(t *testing.T) {
	_, err := NewDataProcessor("minmax", ImputerSimple, true)
	assert.Error(t, err)

	_, err = NewDataProcessor(ScalerStandard, "mode", true)
	assert.Error(t, err)
}

func TestTransformBeforeFit(t *testing.T) {
	p, err := NewDataProcessor(ScalerStandard, ImputerSimple, true)
	require.NoError(t, err)

	_, err = p.Transform(trainingFrame(t))
	assert.ErrorIs(t, err, ErrNotFitted)

	_, err = p.InverseTransform(mat.NewDense(1, 1, nil))
	assert.ErrorIs(t, err, ErrNotFitted)

	_, err = p.FittedFeatureNames()
	assert.ErrorIs(t, err, ErrNotFitted)

	_, err = p.PrepareBatch(nil)
	assert.ErrorIs(t, err, ErrNotFitted)
}

func TestFitTransformShape(t *testing.T) {
	p, err := NewDataProcessor(ScalerStandard, ImputerSimple, true)
	require.NoError(t, err)

	X := trainingFrame(t)
	out, err := p.FitTransform(X, nil)
	require.NoError(t, err)

	fitted, err := p.FittedFeatureNames()
	require.NoError(t, err)

	rows, cols := out.Dims()
	assert.Equal(t, 5, rows)
	assert.Equal(t, len(fitted), cols)
	assert.Greater(t, cols, len(X.Columns()))
	assert.True(t, p.IsFitted())
}

func TestTransformWidthInvariance(t *testing.T) {
	p, err := NewDataProcessor(ScalerStandard, ImputerSimple, true)
	require.NoError(t, err)
	require.NoError(t, p.Fit(trainingFrame(t), nil))

	fitted, err := p.FittedFeatureNames()
	require.NoError(t, err)

	// A narrower input still yields the full fitted width.
	narrow := frameOf(t, map[string][]float64{"pm25": {25}}, 1)
	out, err := p.Transform(narrow)
	require.NoError(t, err)

	rows, cols := out.Dims()
	assert.Equal(t, 1, rows)
	assert.Equal(t, len(fitted), cols)

	// An input with an extra unseen column drops it.
	wide := trainingFrame(t)
	require.NoError(t, wide.SetColumn("unknown_sensor", []float64{1, 2, 3, 4, 5}))
	out, err = p.Transform(wide)
	require.NoError(t, err)
	_, cols = out.Dims()
	assert.Equal(t, len(fitted), cols)
}

func TestTransformRowOrderInvariance(t *testing.T) {
	p, err := NewDataProcessor(ScalerStandard, ImputerSimple, true)
	require.NoError(t, err)
	require.NoError(t, p.Fit(trainingFrame(t), nil))

	forward := frameOf(t, map[string][]float64{
		"pm25":        {10, 50},
		"aqi":         {50, 170},
		"temperature": {15, 35},
		"humidity":    {40, 80},
		"age":         {25, 65},
	}, 2)
	reversed := frameOf(t, map[string][]float64{
		"pm25":        {50, 10},
		"aqi":         {170, 50},
		"temperature": {35, 15},
		"humidity":    {80, 40},
		"age":         {65, 25},
	}, 2)

	a, err := p.Transform(forward)
	require.NoError(t, err)
	b, err := p.Transform(reversed)
	require.NoError(t, err)

	_, cols := a.Dims()
	for j := 0; j < cols; j++ {
		assert.InDelta(t, a.At(0, j), b.At(1, j), 1e-12)
		assert.InDelta(t, a.At(1, j), b.At(0, j), 1e-12)
	}
}

func TestTransformImputesMissingValues(t *testing.T) {
	p, err := NewDataProcessor(ScalerStandard, ImputerKNN, true)
	require.NoError(t, err)
	require.NoError(t, p.Fit(trainingFrame(t), nil))

	nan := math.NaN()
	input := frameOf(t, map[string][]float64{
		"pm25":        {nan},
		"aqi":         {80},
		"temperature": {20},
		"humidity":    {50},
		"age":         {35},
	}, 1)

	out, err := p.Transform(input)
	require.NoError(t, err)

	rows, cols := out.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			assert.False(t, math.IsNaN(out.At(i, j)), "cell %d,%d", i, j)
		}
	}
}

func TestInverseTransformRoundTrip(t *testing.T) {
	p, err := NewDataProcessor(ScalerRobust, ImputerSimple, false)
	require.NoError(t, err)

	X := trainingFrame(t)
	out, err := p.FitTransform(X, nil)
	require.NoError(t, err)

	back, err := p.InverseTransform(out)
	require.NoError(t, err)

	orig, err := X.Matrix(X.Columns())
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(orig, back, 1e-9))
}

func TestFitStoresTargetNames(t *testing.T) {
	p, err := NewDataProcessor(ScalerStandard, ImputerSimple, true)
	require.NoError(t, err)

	y := frameOf(t, map[string][]float64{
		"asthma_risk": {0.1, 0.2, 0.3, 0.4, 0.5},
	}, 5)
	require.NoError(t, p.Fit(trainingFrame(t), y))
	assert.Equal(t, []string{"asthma_risk"}, p.TargetNames())
}

func TestPrepareBatchMarksAbsentFields(t *testing.T) {
	p, err := NewDataProcessor(ScalerStandard, ImputerSimple, true)
	require.NoError(t, err)
	require.NoError(t, p.Fit(trainingFrame(t), nil))

	f, err := p.PrepareBatch([]map[string]float64{
		{"pm25": 35.5, "temperature": 28.5},
		{"age": 45},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, f.Rows())
	assert.Equal(t, p.FeatureNames(), f.Columns())

	pm25 := column(t, f, "pm25")
	assert.Equal(t, 35.5, pm25[0])
	assert.True(t, math.IsNaN(pm25[1]))

	age := column(t, f, "age")
	assert.True(t, math.IsNaN(age[0]))
	assert.Equal(t, 45.0, age[1])
}

func TestPrepareInputSingleRecord(t *testing.T) {
	p, err := NewDataProcessor(ScalerStandard, ImputerSimple, true)
	require.NoError(t, err)
	require.NoError(t, p.Fit(trainingFrame(t), nil))

	f, err := p.PrepareInput(map[string]float64{"pm25": 35.5})
	require.NoError(t, err)
	assert.Equal(t, 1, f.Rows())

	out, err := p.Transform(f)
	require.NoError(t, err)
	rows, _ := out.Dims()
	assert.Equal(t, 1, rows)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	for _, imputerKind := range []string{ImputerSimple, ImputerKNN} {
		path := filepath.Join(t.TempDir(), "processor.json")

		p, err := NewDataProcessor(ScalerStandard, imputerKind, true)
		require.NoError(t, err)
		require.NoError(t, p.Fit(trainingFrame(t), nil))

		input := frameOf(t, map[string][]float64{
			"pm25":        {25},
			"aqi":         {100},
			"temperature": {22},
			"humidity":    {55},
			"age":         {40},
		}, 1)
		want, err := p.Transform(input)
		require.NoError(t, err)

		require.NoError(t, p.Save(path))
		loaded, err := LoadDataProcessor(path)
		require.NoError(t, err)
		require.True(t, loaded.IsFitted())

		got, err := loaded.Transform(input)
		require.NoError(t, err)
		assert.True(t, mat.EqualApprox(want, got, 1e-9), imputerKind)
	}
}

func TestLoadDataProcessorMissingFile(t *testing.T) {
	_, err := LoadDataProcessor(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}
