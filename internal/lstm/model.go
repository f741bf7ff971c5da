// Package lstm implements a small stacked LSTM regressor for univariate
// sequences: one or more LSTM layers followed by a single dense output unit.
package lstm

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
)

// Dense is the linear output head applied to the last hidden state.
type Dense struct {
	W []float64 `json:"w"`
	B []float64 `json:"b"`

	dW []float64
	dB []float64
}

type Model struct {
	Layers []*Layer `json:"layers"`
	Dense  *Dense   `json:"dense"`
}

// New builds a model with the given hidden layer sizes. Every layer but the
// last feeds its full output sequence into the next.
func New(hidden []int, seed uint64) (*Model, error) {
	if len(hidden) == 0 {
		return nil, errors.New("lstm: at least one hidden layer required")
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	m := &Model{}
	in := 1
	for i, units := range hidden {
		if units <= 0 {
			return nil, fmt.Errorf("lstm: layer %d has %d units", i, units)
		}
		m.Layers = append(m.Layers, newLayer(in, units, rng))
		in = units
	}

	limit := math.Sqrt(6 / float64(in+1))
	d := &Dense{W: make([]float64, in), B: make([]float64, 1)}
	for i := range d.W {
		d.W[i] = (rng.Float64()*2 - 1) * limit
	}
	m.Dense = d
	m.allocGrads()
	return m, nil
}

// Validate checks a decoded model for consistent shapes.
func (m *Model) Validate() error {
	if len(m.Layers) == 0 || m.Dense == nil {
		return errors.New("lstm: empty model")
	}
	in := 1
	for i, l := range m.Layers {
		cols := l.In + l.Units
		if l.In != in || len(l.W) != numGates*l.Units*cols || len(l.B) != numGates*l.Units {
			return fmt.Errorf("lstm: layer %d has inconsistent shape", i)
		}
		in = l.Units
	}
	if len(m.Dense.W) != in || len(m.Dense.B) != 1 {
		return errors.New("lstm: dense head has inconsistent shape")
	}
	m.allocGrads()
	return nil
}

func (m *Model) allocGrads() {
	for _, l := range m.Layers {
		l.allocGrads()
	}
	if len(m.Dense.dW) != len(m.Dense.W) {
		m.Dense.dW = make([]float64, len(m.Dense.W))
	}
	if len(m.Dense.dB) != len(m.Dense.B) {
		m.Dense.dB = make([]float64, len(m.Dense.B))
	}
}

func (m *Model) zeroGrads() {
	for _, l := range m.Layers {
		l.zeroGrads()
	}
	for i := range m.Dense.dW {
		m.Dense.dW[i] = 0
	}
	m.Dense.dB[0] = 0
}

// Predict returns the model output for one input sequence.
func (m *Model) Predict(seq []float64) float64 {
	y, _, _ := m.forward(seq)
	return y
}

func (m *Model) forward(seq []float64) (float64, [][]step, []float64) {
	xs := make([][]float64, len(seq))
	for t, v := range seq {
		xs[t] = []float64{v}
	}

	caches := make([][]step, len(m.Layers))
	for i, l := range m.Layers {
		hs, steps := l.forward(xs)
		caches[i] = steps
		xs = hs
	}

	last := xs[len(xs)-1]
	y := floats.Dot(m.Dense.W, last) + m.Dense.B[0]
	return y, caches, last
}

// accumulate runs forward and backward for one sample, adding gradients of
// scale*(y-target)^2 into the parameter gradients. It returns the squared error.
func (m *Model) accumulate(seq []float64, target, scale float64) float64 {
	y, caches, last := m.forward(seq)
	diff := y - target
	dy := 2 * diff * scale

	floats.AddScaled(m.Dense.dW, dy, last)
	m.Dense.dB[0] += dy

	T := len(seq)
	dhs := make([][]float64, T)
	top := make([]float64, len(m.Dense.W))
	floats.AddScaled(top, dy, m.Dense.W)
	dhs[T-1] = top

	for i := len(m.Layers) - 1; i >= 0; i-- {
		dhs = m.Layers[i].backward(caches[i], dhs)
	}
	return diff * diff
}

// batchGrad zeroes gradients and accumulates the mean squared error gradient
// over a batch. It returns the batch MSE.
func (m *Model) batchGrad(inputs [][]float64, targets []float64) float64 {
	m.zeroGrads()
	scale := 1 / float64(len(inputs))
	var loss float64
	for i := range inputs {
		loss += m.accumulate(inputs[i], targets[i], scale)
	}
	return loss * scale
}

// params pairs each parameter slice with its gradient.
func (m *Model) params() [][2][]float64 {
	var ps [][2][]float64
	for _, l := range m.Layers {
		ps = append(ps, [2][]float64{l.W, l.dW}, [2][]float64{l.B, l.dB})
	}
	ps = append(ps, [2][]float64{m.Dense.W, m.Dense.dW}, [2][]float64{m.Dense.B, m.Dense.dB})
	return ps
}

// Loss returns the mean squared error over a dataset.
func (m *Model) Loss(inputs [][]float64, targets []float64) float64 {
	if len(inputs) == 0 {
		return 0
	}
	var sum float64
	for i := range inputs {
		d := m.Predict(inputs[i]) - targets[i]
		sum += d * d
	}
	return sum / float64(len(inputs))
}
