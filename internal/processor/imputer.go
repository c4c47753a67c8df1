package processor

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

const (
	ImputerSimple = "simple"
	ImputerKNN    = "knn"

	knnNeighbors = 5
)

// imputer fills missing (NaN) values using a strategy fitted on training
// data. The simple strategy substitutes the per-column median; the knn
// strategy averages the value over the k nearest fitted samples, measured by
// NaN-aware euclidean distance, falling back to the median when no donor has
// the column observed.
type imputer struct {
	kind      string
	neighbors int
	medians   []float64
	samples   [][]float64 // fitted rows, knn only, may contain NaN
}

func newImputer(kind string) (*imputer, error) {
	switch kind {
	case ImputerSimple:
		return &imputer{kind: kind}, nil
	case ImputerKNN:
		return &imputer{kind: kind, neighbors: knnNeighbors}, nil
	default:
		return nil, fmt.Errorf("unknown imputer type: %s", kind)
	}
}

func (im *imputer) fit(X *mat.Dense) {
	rows, cols := X.Dims()
	im.medians = make([]float64, cols)
	for j := 0; j < cols; j++ {
		observed := make([]float64, 0, rows)
		for i := 0; i < rows; i++ {
			if v := X.At(i, j); !math.IsNaN(v) {
				observed = append(observed, v)
			}
		}
		if len(observed) == 0 {
			im.medians[j] = math.NaN()
			continue
		}
		sort.Float64s(observed)
		im.medians[j] = quantile(observed, 0.5)
	}

	if im.kind == ImputerKNN {
		im.samples = make([][]float64, rows)
		for i := 0; i < rows; i++ {
			im.samples[i] = mat.Row(nil, i, X)
		}
	}
}

func (im *imputer) transform(X *mat.Dense) *mat.Dense {
	rows, cols := X.Dims()
	out := mat.DenseCopyOf(X)
	for i := 0; i < rows; i++ {
		row := mat.Row(nil, i, X)
		for j := 0; j < cols; j++ {
			if !math.IsNaN(row[j]) {
				continue
			}
			out.Set(i, j, im.imputeValue(row, j))
		}
	}
	return out
}

func (im *imputer) imputeValue(row []float64, col int) float64 {
	if im.kind == ImputerKNN {
		if v, ok := im.knnValue(row, col); ok {
			return v
		}
	}
	if v := im.medians[col]; !math.IsNaN(v) {
		return v
	}
	return 0
}

type donor struct {
	dist  float64
	value float64
}

// knnValue averages the target column over the k nearest fitted samples that
// have it observed. Distances use the NaN-euclidean convention: squared
// differences over mutually observed coordinates, scaled up by the fraction
// of coordinates that were usable.
func (im *imputer) knnValue(row []float64, col int) (float64, bool) {
	donors := make([]donor, 0, len(im.samples))
	for _, sample := range im.samples {
		if math.IsNaN(sample[col]) {
			continue
		}
		dist, ok := nanEuclidean(row, sample)
		if !ok {
			continue
		}
		donors = append(donors, donor{dist: dist, value: sample[col]})
	}
	if len(donors) == 0 {
		return 0, false
	}

	sort.Slice(donors, func(i, j int) bool { return donors[i].dist < donors[j].dist })
	k := im.neighbors
	if k > len(donors) {
		k = len(donors)
	}
	sum := 0.0
	for _, d := range donors[:k] {
		sum += d.value
	}
	return sum / float64(k), true
}

func nanEuclidean(a, b []float64) (float64, bool) {
	var sum float64
	observed := 0
	for i := range a {
		if math.IsNaN(a[i]) || math.IsNaN(b[i]) {
			continue
		}
		diff := a[i] - b[i]
		sum += diff * diff
		observed++
	}
	if observed == 0 {
		return 0, false
	}
	return math.Sqrt(sum * float64(len(a)) / float64(observed)), true
}
