package processor

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const (
	ScalerStandard = "standard"
	ScalerRobust   = "robust"
)

// scaler normalizes columns to a common range. The standard kind centers on
// the mean and divides by the population standard deviation; the robust kind
// centers on the median and divides by the interquartile range, which keeps
// outliers from dominating the scale.
type scaler struct {
	kind   string
	center []float64
	scale  []float64
}

func newScaler(kind string) (*scaler, error) {
	switch kind {
	case ScalerStandard, ScalerRobust:
		return &scaler{kind: kind}, nil
	default:
		return nil, fmt.Errorf("unknown scaler type: %s", kind)
	}
}

func (s *scaler) fit(X *mat.Dense) {
	rows, cols := X.Dims()
	s.center = make([]float64, cols)
	s.scale = make([]float64, cols)

	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, X)
		switch s.kind {
		case ScalerStandard:
			s.center[j] = stat.Mean(col, nil)
			s.scale[j] = stat.PopStdDev(col, nil)
		case ScalerRobust:
			sorted := append([]float64(nil), col...)
			sort.Float64s(sorted)
			s.center[j] = quantile(sorted, 0.5)
			s.scale[j] = quantile(sorted, 0.75) - quantile(sorted, 0.25)
		}
		// Constant columns scale by one so they pass through centered.
		if s.scale[j] == 0 {
			s.scale[j] = 1
		}
	}
}

// quantile interpolates linearly between order statistics, so the median of
// an odd-length sample is its middle element and of an even-length sample the
// midpoint of the two central elements. Input must be sorted and non-empty.
func quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	h := p * float64(n-1)
	lo := int(math.Floor(h))
	if lo >= n-1 {
		return sorted[n-1]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo])
}

func (s *scaler) transform(X *mat.Dense) *mat.Dense {
	rows, cols := X.Dims()
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out.Set(i, j, (X.At(i, j)-s.center[j])/s.scale[j])
		}
	}
	return out
}

func (s *scaler) inverseTransform(X *mat.Dense) *mat.Dense {
	rows, cols := X.Dims()
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out.Set(i, j, X.At(i, j)*s.scale[j]+s.center[j])
		}
	}
	return out
}
