package lstm

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
)

type FitConfig struct {
	Epochs       int
	BatchSize    int
	LearningRate float64
	Seed         uint64
	// OnEpoch, if set, is called after every epoch with the mean batch loss.
	OnEpoch func(epoch int, loss float64)
}

func DefaultFitConfig() FitConfig {
	return FitConfig{
		Epochs:       20,
		BatchSize:    32,
		LearningRate: 0.001,
		Seed:         42,
	}
}

// adam holds first and second moment estimates for every parameter slice.
type adam struct {
	lr, beta1, beta2, eps float64
	t                     int
	m, v                  [][]float64
}

func newAdam(lr float64, params [][2][]float64) *adam {
	a := &adam{lr: lr, beta1: 0.9, beta2: 0.999, eps: 1e-7}
	for _, p := range params {
		a.m = append(a.m, make([]float64, len(p[0])))
		a.v = append(a.v, make([]float64, len(p[0])))
	}
	return a
}

func (a *adam) step(params [][2][]float64) {
	a.t++
	lrT := a.lr * math.Sqrt(1-math.Pow(a.beta2, float64(a.t))) / (1 - math.Pow(a.beta1, float64(a.t)))
	for k, p := range params {
		w, g := p[0], p[1]
		m, v := a.m[k], a.v[k]
		for i := range w {
			m[i] = a.beta1*m[i] + (1-a.beta1)*g[i]
			v[i] = a.beta2*v[i] + (1-a.beta2)*g[i]*g[i]
			w[i] -= lrT * m[i] / (math.Sqrt(v[i]) + a.eps)
		}
	}
}

// Fit trains the model with mini-batch Adam on mean squared error, shuffling
// the samples every epoch. It returns the mean batch loss per epoch.
func (m *Model) Fit(inputs [][]float64, targets []float64, cfg FitConfig) ([]float64, error) {
	if len(inputs) == 0 {
		return nil, errors.New("lstm: no training samples")
	}
	if len(inputs) != len(targets) {
		return nil, fmt.Errorf("lstm: %d inputs but %d targets", len(inputs), len(targets))
	}
	if cfg.Epochs <= 0 || cfg.BatchSize <= 0 || cfg.LearningRate <= 0 {
		return nil, fmt.Errorf("lstm: invalid fit config %+v", cfg)
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed+1))
	params := m.params()
	opt := newAdam(cfg.LearningRate, params)

	order := make([]int, len(inputs))
	for i := range order {
		order[i] = i
	}

	history := make([]float64, 0, cfg.Epochs)
	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		var total float64
		var batches int
		for start := 0; start < len(order); start += cfg.BatchSize {
			end := min(start+cfg.BatchSize, len(order))
			bx := make([][]float64, 0, end-start)
			by := make([]float64, 0, end-start)
			for _, idx := range order[start:end] {
				bx = append(bx, inputs[idx])
				by = append(by, targets[idx])
			}
			total += m.batchGrad(bx, by)
			opt.step(params)
			batches++
		}

		loss := total / float64(batches)
		if math.IsNaN(loss) || math.IsInf(loss, 0) {
			return history, fmt.Errorf("lstm: loss diverged at epoch %d", epoch)
		}
		history = append(history, loss)
		if cfg.OnEpoch != nil {
			cfg.OnEpoch(epoch, loss)
		}
	}
	return history, nil
}
