package training

import (
	"math"

	"github.com/climatehealth/healthrisk/internal/neural"
)

// Adam implements the Adam optimizer with bias-corrected first and second
// moment estimates.
type Adam struct {
	lr          float64
	beta1       float64
	beta2       float64
	eps         float64
	weightDecay float64

	step int
	m    [][]float64
	v    [][]float64

	params []*neural.Param
}

// NewAdam creates an optimizer over the given parameters with standard
// moment decay rates.
func NewAdam(params []*neural.Param, lr float64) *Adam {
	a := &Adam{
		lr:     lr,
		beta1:  0.9,
		beta2:  0.999,
		eps:    1e-8,
		params: params,
		m:      make([][]float64, len(params)),
		v:      make([][]float64, len(params)),
	}
	for i, p := range params {
		a.m[i] = make([]float64, len(p.Data))
		a.v[i] = make([]float64, len(p.Data))
	}
	return a
}

// LearningRate returns the current learning rate.
func (a *Adam) LearningRate() float64 { return a.lr }

// SetLearningRate updates the learning rate, preserving moment state.
func (a *Adam) SetLearningRate(lr float64) { a.lr = lr }

// Step applies one update using the gradients accumulated on the parameters.
func (a *Adam) Step() {
	a.step++
	correction1 := 1 - math.Pow(a.beta1, float64(a.step))
	correction2 := 1 - math.Pow(a.beta2, float64(a.step))

	for i, p := range a.params {
		m, v := a.m[i], a.v[i]
		for k := range p.Data {
			g := p.Grad[k]
			if a.weightDecay > 0 {
				g += a.weightDecay * p.Data[k]
			}
			m[k] = a.beta1*m[k] + (1-a.beta1)*g
			v[k] = a.beta2*v[k] + (1-a.beta2)*g*g
			mHat := m[k] / correction1
			vHat := v[k] / correction2
			p.Data[k] -= a.lr * mHat / (math.Sqrt(vHat) + a.eps)
		}
	}
}
