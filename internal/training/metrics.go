package training

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// probEps keeps predicted probabilities away from 0 and 1 so the
// cross-entropy stays finite.
const probEps = 1e-7

// BCELoss returns the mean binary cross-entropy over every element of the
// prediction matrix.
func BCELoss(probs, targets *mat.Dense) float64 {
	rows, cols := probs.Dims()
	total := 0.0
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			p := clampProb(probs.At(i, j))
			y := targets.At(i, j)
			total += -(y*math.Log(p) + (1-y)*math.Log(1-p))
		}
	}
	return total / float64(rows*cols)
}

// LossGradient returns the gradient of the mean BCE loss with respect to the
// pre-sigmoid logits: (p - y) / (batch * labels).
func LossGradient(probs, targets *mat.Dense) *mat.Dense {
	rows, cols := probs.Dims()
	grad := mat.NewDense(rows, cols, nil)
	scale := 1 / float64(rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			grad.Set(i, j, (probs.At(i, j)-targets.At(i, j))*scale)
		}
	}
	return grad
}

// MacroAUC averages the per-label ROC AUC, skipping labels where the
// validation fold contains only one class. It returns NaN when no label is
// scoreable.
func MacroAUC(probs, targets *mat.Dense) float64 {
	_, cols := probs.Dims()
	total, counted := 0.0, 0
	for j := 0; j < cols; j++ {
		auc, ok := columnAUC(probs, targets, j)
		if !ok {
			continue
		}
		total += auc
		counted++
	}
	if counted == 0 {
		return math.NaN()
	}
	return total / float64(counted)
}

// columnAUC computes the ROC AUC for one label via the rank-sum identity,
// with midranks for tied scores.
func columnAUC(probs, targets *mat.Dense, col int) (float64, bool) {
	rows, _ := probs.Dims()
	type scored struct {
		score    float64
		positive bool
	}
	items := make([]scored, rows)
	positives := 0
	for i := 0; i < rows; i++ {
		pos := targets.At(i, col) >= 0.5
		if pos {
			positives++
		}
		items[i] = scored{score: probs.At(i, col), positive: pos}
	}
	negatives := rows - positives
	if positives == 0 || negatives == 0 {
		return 0, false
	}

	sort.Slice(items, func(i, j int) bool { return items[i].score < items[j].score })

	posRankSum := 0.0
	for i := 0; i < rows; {
		j := i
		for j < rows && items[j].score == items[i].score {
			j++
		}
		midrank := float64(i+j+1) / 2 // ranks are 1-based
		for k := i; k < j; k++ {
			if items[k].positive {
				posRankSum += midrank
			}
		}
		i = j
	}

	nPos, nNeg := float64(positives), float64(negatives)
	return (posRankSum - nPos*(nPos+1)/2) / (nPos * nNeg), true
}

// Accuracy returns the fraction of label decisions matching the targets at
// the given threshold.
func Accuracy(probs, targets *mat.Dense, threshold float64) float64 {
	rows, cols := probs.Dims()
	correct := 0
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			predicted := probs.At(i, j) >= threshold
			actual := targets.At(i, j) >= 0.5
			if predicted == actual {
				correct++
			}
		}
	}
	return float64(correct) / float64(rows*cols)
}

func clampProb(p float64) float64 {
	if p < probEps {
		return probEps
	}
	if p > 1-probEps {
		return 1 - probEps
	}
	return p
}
