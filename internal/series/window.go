package series

// Windows frames a series for supervised training: each input is the size
// values preceding index i, and the target is the value at i.
func Windows(values []float64, size int) (inputs [][]float64, targets []float64) {
	if size <= 0 || len(values) <= size {
		return nil, nil
	}
	n := len(values) - size
	inputs = make([][]float64, 0, n)
	targets = make([]float64, 0, n)
	for i := size; i < len(values); i++ {
		w := make([]float64, size)
		copy(w, values[i-size:i])
		inputs = append(inputs, w)
		targets = append(targets, values[i])
	}
	return inputs, targets
}

// Tail returns a copy of the last size values.
func Tail(values []float64, size int) []float64 {
	if size > len(values) {
		size = len(values)
	}
	out := make([]float64, size)
	copy(out, values[len(values)-size:])
	return out
}
