package training

import (
	"math"

	"github.com/climatehealth/healthrisk/internal/neural"
)

// EarlyStopping halts training when the validation loss stops improving and
// keeps a snapshot of the best weights seen so far.
type EarlyStopping struct {
	patience int
	minDelta float64

	bestLoss  float64
	bestState map[string][]float64
	counter   int
}

// NewEarlyStopping monitors validation loss. An epoch counts as an
// improvement only when the loss drops by more than minDelta below the best.
func NewEarlyStopping(patience int, minDelta float64) *EarlyStopping {
	return &EarlyStopping{
		patience: patience,
		minDelta: minDelta,
		bestLoss: math.Inf(1),
	}
}

// Step records one epoch's validation loss. It snapshots the network on
// improvement and returns true once patience consecutive non-improving
// epochs have passed.
func (es *EarlyStopping) Step(valLoss float64, net *neural.Network) bool {
	if valLoss < es.bestLoss-es.minDelta {
		es.bestLoss = valLoss
		es.bestState = net.StateDict()
		es.counter = 0
		return false
	}
	es.counter++
	return es.counter >= es.patience
}

// Restore loads the best snapshot back into the network. It is a no-op when
// no improving epoch was ever recorded.
func (es *EarlyStopping) Restore(net *neural.Network) error {
	if es.bestState == nil {
		return nil
	}
	return net.LoadStateDict(es.bestState)
}

// BestLoss returns the lowest validation loss observed.
func (es *EarlyStopping) BestLoss() float64 { return es.bestLoss }

// plateauScheduler multiplies the optimizer's learning rate by factor after
// patience consecutive epochs without validation loss improvement.
type plateauScheduler struct {
	patience int
	factor   float64
	minLR    float64

	best    float64
	counter int
}

func newPlateauScheduler(patience int, factor float64) *plateauScheduler {
	return &plateauScheduler{
		patience: patience,
		factor:   factor,
		minLR:    1e-6,
		best:     math.Inf(1),
	}
}

func (s *plateauScheduler) step(valLoss float64, opt *Adam) bool {
	if valLoss < s.best {
		s.best = valLoss
		s.counter = 0
		return false
	}
	s.counter++
	if s.counter < s.patience {
		return false
	}
	s.counter = 0
	lr := opt.LearningRate() * s.factor
	if lr < s.minLR {
		lr = s.minLR
	}
	if lr == opt.LearningRate() {
		return false
	}
	opt.SetLearningRate(lr)
	return true
}
