package training

import (
	"context"
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/climatehealth/healthrisk/internal/neural"
	"github.com/climatehealth/healthrisk/pkg/logger"
)

// Options are the training hyperparameters.
type Options struct {
	Epochs            int
	BatchSize         int
	LearningRate      float64
	Patience          int
	MinDelta          float64
	SchedulerPatience int
	SchedulerFactor   float64
	ValidationSplit   float64
	Seed              int64
}

// DefaultOptions returns the standard training configuration.
func DefaultOptions() Options {
	return Options{
		Epochs:            100,
		BatchSize:         32,
		LearningRate:      1e-3,
		Patience:          10,
		MinDelta:          1e-4,
		SchedulerPatience: 5,
		SchedulerFactor:   0.5,
		ValidationSplit:   0.2,
		Seed:              42,
	}
}

// EpochStats records one epoch of training progress.
type EpochStats struct {
	Epoch        int     `json:"epoch"`
	TrainLoss    float64 `json:"train_loss"`
	ValLoss      float64 `json:"val_loss"`
	ValAUC       float64 `json:"val_auc"`
	LearningRate float64 `json:"learning_rate"`
}

// Result summarizes a completed training run.
type Result struct {
	History     []EpochStats `json:"history"`
	BestValLoss float64      `json:"best_val_loss"`
	FinalValAUC float64      `json:"final_val_auc"`
	Epochs      int          `json:"epochs"`
	Stopped     bool         `json:"stopped_early"`
}

// Train fits the network on X/Y with minibatch Adam, a validation holdout,
// learning rate reduction on plateau and early stopping. On early stop the
// best weights seen are restored. The context is checked between epochs.
func Train(ctx context.Context, net *neural.Network, X, Y *mat.Dense, opts Options) (*Result, error) {
	rows, _ := X.Dims()
	yRows, yCols := Y.Dims()
	if rows != yRows {
		return nil, fmt.Errorf("feature rows %d do not match target rows %d", rows, yRows)
	}
	if yCols != net.OutputSize() {
		return nil, fmt.Errorf("target columns %d do not match network output %d", yCols, net.OutputSize())
	}
	if rows < 2 {
		return nil, fmt.Errorf("training requires at least 2 samples, got %d", rows)
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	trainIdx, valIdx := splitIndices(rows, opts.ValidationSplit, rng)

	trainX, trainY := subsetRows(X, trainIdx), subsetRows(Y, trainIdx)
	valX, valY := subsetRows(X, valIdx), subsetRows(Y, valIdx)

	opt := NewAdam(net.Parameters(), opts.LearningRate)
	stopper := NewEarlyStopping(opts.Patience, opts.MinDelta)
	scheduler := newPlateauScheduler(opts.SchedulerPatience, opts.SchedulerFactor)

	log := logger.WithComponent("training")
	log.Info().
		Int("train_samples", len(trainIdx)).
		Int("val_samples", len(valIdx)).
		Int("epochs", opts.Epochs).
		Float64("learning_rate", opts.LearningRate).
		Msg("Starting training")

	result := &Result{}
	order := make([]int, len(trainIdx))
	for i := range order {
		order[i] = i
	}

	for epoch := 1; epoch <= opts.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("training cancelled: %w", err)
		}

		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		trainLoss := runEpoch(net, opt, trainX, trainY, order, opts.BatchSize)

		valProbs := net.PredictProba(valX)
		valLoss := BCELoss(valProbs, valY)
		valAUC := MacroAUC(valProbs, valY)

		if scheduler.step(valLoss, opt) {
			log.Info().Float64("learning_rate", opt.LearningRate()).Msg("Reduced learning rate on plateau")
		}

		stats := EpochStats{
			Epoch:        epoch,
			TrainLoss:    trainLoss,
			ValLoss:      valLoss,
			ValAUC:       valAUC,
			LearningRate: opt.LearningRate(),
		}
		result.History = append(result.History, stats)
		result.Epochs = epoch
		result.FinalValAUC = valAUC

		log.Debug().
			Int("epoch", epoch).
			Float64("train_loss", trainLoss).
			Float64("val_loss", valLoss).
			Float64("val_auc", valAUC).
			Msg("Epoch complete")

		if stopper.Step(valLoss, net) {
			result.Stopped = true
			log.Info().Int("epoch", epoch).Float64("best_val_loss", stopper.BestLoss()).Msg("Early stopping triggered")
			break
		}
	}

	if err := stopper.Restore(net); err != nil {
		return nil, fmt.Errorf("failed to restore best weights: %w", err)
	}
	result.BestValLoss = stopper.BestLoss()

	log.Info().
		Int("epochs", result.Epochs).
		Float64("best_val_loss", result.BestValLoss).
		Bool("stopped_early", result.Stopped).
		Msg("Training finished")

	return result, nil
}

func runEpoch(net *neural.Network, opt *Adam, X, Y *mat.Dense, order []int, batchSize int) float64 {
	if batchSize <= 0 {
		batchSize = 32
	}
	total, batches := 0.0, 0
	for start := 0; start < len(order); start += batchSize {
		end := start + batchSize
		if end > len(order) {
			end = len(order)
		}
		batch := order[start:end]

		bx, by := subsetRows(X, batch), subsetRows(Y, batch)
		net.ZeroGrad()
		probs := net.Forward(bx, true)
		total += BCELoss(probs, by)
		batches++

		net.Backward(LossGradient(probs, by))
		opt.Step()
	}
	if batches == 0 {
		return 0
	}
	return total / float64(batches)
}

// splitIndices shuffles row indices and carves off the trailing fraction as
// the validation set. Both partitions are always non-empty.
func splitIndices(rows int, split float64, rng *rand.Rand) (train, val []int) {
	idx := rng.Perm(rows)
	valSize := int(float64(rows) * split)
	if valSize < 1 {
		valSize = 1
	}
	if valSize >= rows {
		valSize = rows - 1
	}
	cut := rows - valSize
	return idx[:cut], idx[cut:]
}

func subsetRows(m *mat.Dense, idx []int) *mat.Dense {
	_, cols := m.Dims()
	out := mat.NewDense(len(idx), cols, nil)
	for i, row := range idx {
		out.SetRow(i, mat.Row(nil, row, m))
	}
	return out
}
