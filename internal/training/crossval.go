package training

import (
	"context"
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/climatehealth/healthrisk/internal/neural"
	"github.com/climatehealth/healthrisk/pkg/logger"
)

// FoldResult is the held-out score of one cross-validation fold.
type FoldResult struct {
	Fold    int     `json:"fold"`
	AUC     float64 `json:"auc"`
	ValLoss float64 `json:"val_loss"`
	Epochs  int     `json:"epochs"`
}

// CVResult aggregates the fold scores of a cross-validation run.
type CVResult struct {
	Folds   []FoldResult `json:"folds"`
	MeanAUC float64      `json:"mean_auc"`
	StdAUC  float64      `json:"std_auc"`
}

// CrossValidate runs k-fold cross-validation. Row assignment to folds is a
// seeded shuffle, each fold trains a fresh network from its own seed, and the
// score is the macro AUC on the held-out fold. The models are discarded; only
// the scores are returned.
func CrossValidate(ctx context.Context, cfg neural.Config, X, Y *mat.Dense, folds int, opts Options) (*CVResult, error) {
	rows, _ := X.Dims()
	if folds < 2 {
		return nil, fmt.Errorf("cross-validation requires at least 2 folds, got %d", folds)
	}
	if rows < folds {
		return nil, fmt.Errorf("cannot split %d samples into %d folds", rows, folds)
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	perm := rng.Perm(rows)

	log := logger.WithComponent("training")
	log.Info().Int("folds", folds).Int("samples", rows).Msg("Starting cross-validation")

	result := &CVResult{}
	aucs := make([]float64, 0, folds)
	for fold := 0; fold < folds; fold++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("cross-validation cancelled: %w", err)
		}

		holdStart := fold * rows / folds
		holdEnd := (fold + 1) * rows / folds
		holdout := perm[holdStart:holdEnd]
		train := make([]int, 0, rows-len(holdout))
		train = append(train, perm[:holdStart]...)
		train = append(train, perm[holdEnd:]...)

		net := neural.NewNetwork(cfg, opts.Seed+int64(fold))
		foldOpts := opts
		foldOpts.Seed = opts.Seed + int64(fold)
		trained, err := Train(ctx, net, subsetRows(X, train), subsetRows(Y, train), foldOpts)
		if err != nil {
			return nil, fmt.Errorf("fold %d training failed: %w", fold, err)
		}

		holdX, holdY := subsetRows(X, holdout), subsetRows(Y, holdout)
		probs := net.PredictProba(holdX)
		auc := MacroAUC(probs, holdY)
		fr := FoldResult{
			Fold:    fold,
			AUC:     auc,
			ValLoss: BCELoss(probs, holdY),
			Epochs:  trained.Epochs,
		}
		result.Folds = append(result.Folds, fr)
		aucs = append(aucs, auc)

		log.Info().
			Int("fold", fold).
			Float64("auc", fr.AUC).
			Float64("val_loss", fr.ValLoss).
			Msg("Fold complete")
	}

	result.MeanAUC = stat.Mean(aucs, nil)
	result.StdAUC = stat.StdDev(aucs, nil)

	log.Info().
		Float64("mean_auc", result.MeanAUC).
		Float64("std_auc", result.StdAUC).
		Msg("Cross-validation finished")

	return result, nil
}
