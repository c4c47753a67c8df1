package neural

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Param is a flat trainable tensor with its accumulated gradient. Weight
// matrices are stored row-major.
type Param struct {
	Name string
	Data []float64
	Grad []float64
}

func newParam(name string, size int) *Param {
	return &Param{
		Name: name,
		Data: make([]float64, size),
		Grad: make([]float64, size),
	}
}

func (p *Param) zeroGrad() {
	for i := range p.Grad {
		p.Grad[i] = 0
	}
}

// linear is a fully connected layer. Weights use Xavier/Glorot uniform
// initialization; biases start at zero.
type linear struct {
	in, out int
	weight  *Param
	bias    *Param

	input *mat.Dense // cached activation for backward
}

func newLinear(name string, in, out int, rng *rand.Rand) *linear {
	l := &linear{
		in:     in,
		out:    out,
		weight: newParam(name+".weight", in*out),
		bias:   newParam(name+".bias", out),
	}
	limit := math.Sqrt(6.0 / float64(in+out))
	for i := range l.weight.Data {
		l.weight.Data[i] = (rng.Float64()*2 - 1) * limit
	}
	return l
}

func (l *linear) forward(x *mat.Dense, train bool) *mat.Dense {
	if train {
		l.input = x
	}
	w := mat.NewDense(l.in, l.out, l.weight.Data)
	var y mat.Dense
	y.Mul(x, w)

	rows, _ := y.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < l.out; j++ {
			y.Set(i, j, y.At(i, j)+l.bias.Data[j])
		}
	}
	return &y
}

func (l *linear) backward(dY *mat.Dense) *mat.Dense {
	rows, _ := dY.Dims()

	var dW mat.Dense
	dW.Mul(l.input.T(), dY)
	for i := 0; i < l.in; i++ {
		for j := 0; j < l.out; j++ {
			l.weight.Grad[i*l.out+j] += dW.At(i, j)
		}
	}

	for j := 0; j < l.out; j++ {
		for i := 0; i < rows; i++ {
			l.bias.Grad[j] += dY.At(i, j)
		}
	}

	w := mat.NewDense(l.in, l.out, l.weight.Data)
	var dX mat.Dense
	dX.Mul(dY, w.T())
	return &dX
}

// batchNorm normalizes each column to zero mean and unit variance over the
// batch in training mode, and against running statistics in inference mode.
type batchNorm struct {
	size        int
	gamma       *Param
	beta        *Param
	runningMean []float64
	runningVar  []float64
	momentum    float64
	eps         float64

	xhat   *mat.Dense // cached normalized input for backward
	invStd []float64
}

func newBatchNorm(name string, size int) *batchNorm {
	bn := &batchNorm{
		size:        size,
		gamma:       newParam(name+".gamma", size),
		beta:        newParam(name+".beta", size),
		runningMean: make([]float64, size),
		runningVar:  make([]float64, size),
		momentum:    0.1,
		eps:         1e-5,
	}
	for i := range bn.gamma.Data {
		bn.gamma.Data[i] = 1
		bn.runningVar[i] = 1
	}
	return bn
}

func (bn *batchNorm) forward(x *mat.Dense, train bool) *mat.Dense {
	rows, cols := x.Dims()
	y := mat.NewDense(rows, cols, nil)

	if !train {
		for j := 0; j < cols; j++ {
			invStd := 1 / math.Sqrt(bn.runningVar[j]+bn.eps)
			for i := 0; i < rows; i++ {
				xhat := (x.At(i, j) - bn.runningMean[j]) * invStd
				y.Set(i, j, bn.gamma.Data[j]*xhat+bn.beta.Data[j])
			}
		}
		return y
	}

	bn.xhat = mat.NewDense(rows, cols, nil)
	bn.invStd = make([]float64, cols)
	n := float64(rows)

	for j := 0; j < cols; j++ {
		mean, variance := 0.0, 0.0
		for i := 0; i < rows; i++ {
			mean += x.At(i, j)
		}
		mean /= n
		for i := 0; i < rows; i++ {
			diff := x.At(i, j) - mean
			variance += diff * diff
		}
		variance /= n

		bn.runningMean[j] = (1-bn.momentum)*bn.runningMean[j] + bn.momentum*mean
		bn.runningVar[j] = (1-bn.momentum)*bn.runningVar[j] + bn.momentum*variance

		invStd := 1 / math.Sqrt(variance+bn.eps)
		bn.invStd[j] = invStd
		for i := 0; i < rows; i++ {
			xhat := (x.At(i, j) - mean) * invStd
			bn.xhat.Set(i, j, xhat)
			y.Set(i, j, bn.gamma.Data[j]*xhat+bn.beta.Data[j])
		}
	}
	return y
}

func (bn *batchNorm) backward(dY *mat.Dense) *mat.Dense {
	rows, cols := dY.Dims()
	dX := mat.NewDense(rows, cols, nil)
	n := float64(rows)

	for j := 0; j < cols; j++ {
		sumDy, sumDyXhat := 0.0, 0.0
		for i := 0; i < rows; i++ {
			sumDy += dY.At(i, j)
			sumDyXhat += dY.At(i, j) * bn.xhat.At(i, j)
		}
		bn.beta.Grad[j] += sumDy
		bn.gamma.Grad[j] += sumDyXhat

		gamma := bn.gamma.Data[j]
		for i := 0; i < rows; i++ {
			dxhat := dY.At(i, j) * gamma
			dX.Set(i, j, bn.invStd[j]/n*(n*dxhat-gamma*sumDy-bn.xhat.At(i, j)*gamma*sumDyXhat))
		}
	}
	return dX
}

// relu applies max(0, x) elementwise.
type relu struct {
	mask *mat.Dense
}

func (r *relu) forward(x *mat.Dense, train bool) *mat.Dense {
	rows, cols := x.Dims()
	y := mat.NewDense(rows, cols, nil)
	var mask *mat.Dense
	if train {
		mask = mat.NewDense(rows, cols, nil)
	}
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if v := x.At(i, j); v > 0 {
				y.Set(i, j, v)
				if train {
					mask.Set(i, j, 1)
				}
			}
		}
	}
	r.mask = mask
	return y
}

func (r *relu) backward(dY *mat.Dense) *mat.Dense {
	rows, cols := dY.Dims()
	dX := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			dX.Set(i, j, dY.At(i, j)*r.mask.At(i, j))
		}
	}
	return dX
}

// dropout zeroes activations with probability p in training mode, scaling the
// survivors by 1/(1-p) so inference needs no adjustment.
type dropout struct {
	p    float64
	rng  *rand.Rand
	mask *mat.Dense
}

func (d *dropout) forward(x *mat.Dense, train bool) *mat.Dense {
	if !train {
		return x
	}
	if d.p <= 0 {
		d.mask = nil
		return x
	}
	rows, cols := x.Dims()
	keep := 1 - d.p
	y := mat.NewDense(rows, cols, nil)
	d.mask = mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if d.rng.Float64() < keep {
				scale := 1 / keep
				d.mask.Set(i, j, scale)
				y.Set(i, j, x.At(i, j)*scale)
			}
		}
	}
	return y
}

func (d *dropout) backward(dY *mat.Dense) *mat.Dense {
	if d.mask == nil {
		return dY
	}
	rows, cols := dY.Dims()
	dX := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			dX.Set(i, j, dY.At(i, j)*d.mask.At(i, j))
		}
	}
	return dX
}
