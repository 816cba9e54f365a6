package alerting

import "math"

// sampleWindow keeps the most recent metric samples for anomaly baselines.
type sampleWindow struct {
	samples []float64
	max     int
}

func newSampleWindow(max int) *sampleWindow {
	return &sampleWindow{max: max}
}

func (w *sampleWindow) add(v float64) {
	w.samples = append(w.samples, v)
	if len(w.samples) > w.max {
		w.samples = w.samples[len(w.samples)-w.max:]
	}
}

// baseline returns every sample except the most recent one, so the value
// under evaluation never feeds its own statistics.
func (w *sampleWindow) baseline() []float64 {
	if len(w.samples) == 0 {
		return nil
	}

	return w.samples[:len(w.samples)-1]
}

func mean(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, v := range samples {
		sum += v
	}

	return sum / float64(len(samples))
}

// popStdDev is the population standard deviation around m.
func popStdDev(samples []float64, m float64) float64 {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, v := range samples {
		d := v - m
		sum += d * d
	}

	return math.Sqrt(sum / float64(len(samples)))
}
