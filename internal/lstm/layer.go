package lstm

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
)

// Gate blocks are stacked in the order input, forget, cell, output.
const (
	gateInput = iota
	gateForget
	gateCell
	gateOutput
	numGates
)

// Layer is a single LSTM layer. W holds 4*Units rows of In+Units columns,
// row-major, acting on the concatenation [x_t; h_{t-1}].
type Layer struct {
	In    int       `json:"in"`
	Units int       `json:"units"`
	W     []float64 `json:"w"`
	B     []float64 `json:"b"`

	dW []float64
	dB []float64
}

// step caches everything the backward pass needs for one timestep.
type step struct {
	xh    []float64 // [x_t; h_{t-1}]
	gates []float64 // activated i, f, g, o
	cPrev []float64
	c     []float64
	tanhC []float64
	h     []float64
}

func newLayer(in, units int, rng *rand.Rand) *Layer {
	cols := in + units
	l := &Layer{
		In:    in,
		Units: units,
		W:     make([]float64, numGates*units*cols),
		B:     make([]float64, numGates*units),
	}

	kernelLimit := math.Sqrt(6 / float64(in+numGates*units))
	recurrentLimit := math.Sqrt(6 / float64(units+numGates*units))
	for r := 0; r < numGates*units; r++ {
		row := l.W[r*cols : (r+1)*cols]
		for c := range row {
			limit := kernelLimit
			if c >= in {
				limit = recurrentLimit
			}
			row[c] = (rng.Float64()*2 - 1) * limit
		}
	}
	for u := 0; u < units; u++ {
		l.B[gateForget*units+u] = 1
	}
	l.allocGrads()
	return l
}

func (l *Layer) allocGrads() {
	if len(l.dW) != len(l.W) {
		l.dW = make([]float64, len(l.W))
	}
	if len(l.dB) != len(l.B) {
		l.dB = make([]float64, len(l.B))
	}
}

func (l *Layer) zeroGrads() {
	l.allocGrads()
	for i := range l.dW {
		l.dW[i] = 0
	}
	for i := range l.dB {
		l.dB[i] = 0
	}
}

// forward runs the layer over a sequence of input vectors and returns the
// hidden state at every timestep along with the per-step caches.
func (l *Layer) forward(xs [][]float64) ([][]float64, []step) {
	cols := l.In + l.Units
	h := make([]float64, l.Units)
	c := make([]float64, l.Units)
	hs := make([][]float64, len(xs))
	steps := make([]step, len(xs))

	for t, x := range xs {
		xh := make([]float64, cols)
		copy(xh, x)
		copy(xh[l.In:], h)

		z := make([]float64, numGates*l.Units)
		for r := range z {
			z[r] = floats.Dot(l.W[r*cols:(r+1)*cols], xh) + l.B[r]
		}

		gates := make([]float64, len(z))
		nc := make([]float64, l.Units)
		tc := make([]float64, l.Units)
		nh := make([]float64, l.Units)
		for u := 0; u < l.Units; u++ {
			i := sigmoid(z[gateInput*l.Units+u])
			f := sigmoid(z[gateForget*l.Units+u])
			g := math.Tanh(z[gateCell*l.Units+u])
			o := sigmoid(z[gateOutput*l.Units+u])
			gates[gateInput*l.Units+u] = i
			gates[gateForget*l.Units+u] = f
			gates[gateCell*l.Units+u] = g
			gates[gateOutput*l.Units+u] = o

			nc[u] = f*c[u] + i*g
			tc[u] = math.Tanh(nc[u])
			nh[u] = o * tc[u]
		}

		steps[t] = step{xh: xh, gates: gates, cPrev: c, c: nc, tanhC: tc, h: nh}
		hs[t] = nh
		h, c = nh, nc
	}
	return hs, steps
}

// backward accumulates parameter gradients given dL/dh for every timestep and
// returns dL/dx for every timestep.
func (l *Layer) backward(steps []step, dhs [][]float64) [][]float64 {
	cols := l.In + l.Units
	dxs := make([][]float64, len(steps))
	dhNext := make([]float64, l.Units)
	dcNext := make([]float64, l.Units)
	dz := make([]float64, numGates*l.Units)

	for t := len(steps) - 1; t >= 0; t-- {
		s := steps[t]
		for u := 0; u < l.Units; u++ {
			dh := dhNext[u]
			if dhs[t] != nil {
				dh += dhs[t][u]
			}
			i := s.gates[gateInput*l.Units+u]
			f := s.gates[gateForget*l.Units+u]
			g := s.gates[gateCell*l.Units+u]
			o := s.gates[gateOutput*l.Units+u]

			dc := dcNext[u] + dh*o*(1-s.tanhC[u]*s.tanhC[u])
			dz[gateInput*l.Units+u] = dc * g * i * (1 - i)
			dz[gateForget*l.Units+u] = dc * s.cPrev[u] * f * (1 - f)
			dz[gateCell*l.Units+u] = dc * i * (1 - g*g)
			dz[gateOutput*l.Units+u] = dh * s.tanhC[u] * o * (1 - o)
			dcNext[u] = dc * f
		}

		dxh := make([]float64, cols)
		for r, d := range dz {
			if d == 0 {
				continue
			}
			row := l.W[r*cols : (r+1)*cols]
			floats.AddScaled(l.dW[r*cols:(r+1)*cols], d, s.xh)
			floats.AddScaled(dxh, d, row)
			l.dB[r] += d
		}

		dxs[t] = dxh[:l.In]
		dhNext = append(dhNext[:0], dxh[l.In:]...)
	}
	return dxs
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
