package neural

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Ensemble averages the predicted probabilities of several networks. All
// members must share the same output size.
type Ensemble struct {
	members []*Network
}

// NewEnsemble wraps the given networks. At least one member is required.
func NewEnsemble(members ...*Network) (*Ensemble, error) {
	if len(members) == 0 {
		return nil, fmt.Errorf("ensemble requires at least one member")
	}
	out := members[0].OutputSize()
	for i, m := range members[1:] {
		if m.OutputSize() != out {
			return nil, fmt.Errorf("ensemble member %d has output size %d, expected %d", i+1, m.OutputSize(), out)
		}
	}
	return &Ensemble{members: members}, nil
}

// LoadEnsemble builds an ensemble from saved model artifacts.
func LoadEnsemble(paths []string) (*Ensemble, error) {
	members := make([]*Network, 0, len(paths))
	for _, path := range paths {
		n, err := LoadNetwork(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load ensemble member %s: %w", path, err)
		}
		members = append(members, n)
	}
	return NewEnsemble(members...)
}

// Size returns the number of member networks.
func (e *Ensemble) Size() int { return len(e.members) }

// OutputSize returns the number of predicted labels.
func (e *Ensemble) OutputSize() int { return e.members[0].OutputSize() }

// PredictProba returns the arithmetic mean of the members' probabilities.
func (e *Ensemble) PredictProba(x *mat.Dense) *mat.Dense {
	rows, _ := x.Dims()
	sum := mat.NewDense(rows, e.OutputSize(), nil)
	for _, m := range e.members {
		sum.Add(sum, m.PredictProba(x))
	}
	sum.Scale(1/float64(len(e.members)), sum)
	return sum
}

// Predict thresholds the averaged probabilities to binary labels.
func (e *Ensemble) Predict(x *mat.Dense, threshold float64) *mat.Dense {
	return thresholdProbs(e.PredictProba(x), threshold)
}
