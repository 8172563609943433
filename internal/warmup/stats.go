package warmup

import (
	"math"
	"time"
)

const (
	// A stream is stable if the rate stddev stays under 15% of the mean rate
	// and the mean jitter under 20% of the expected interval.
	// Example: 30 Hz (33ms interval) → stddev < 4.5 Hz, jitter < 6.6ms
	rateStabilityThreshold   = 0.15
	jitterStabilityThreshold = 0.20
)

// Stats describes the delivery rate of a fused stream during warm-up
type Stats struct {
	Received   int           // composites received
	Duration   time.Duration // measurement window
	RateMean   float64       // composites per second
	RateStdDev float64
	RateMin    float64 // min instantaneous rate
	RateMax    float64
	IsStable   bool

	JitterMean   float64 // seconds
	JitterStdDev float64
	JitterMax    float64
}

// Calculate derives rate and jitter statistics from arrival times.
//
// Arrival times come from the composites themselves (device clock), so
// dropped ticks show up as long intervals and count against stability.
func Calculate(times []time.Time, window time.Duration) Stats {
	n := len(times)
	stats := Stats{Received: n, Duration: window}
	if n == 0 || window <= 0 {
		return stats
	}

	stats.RateMean = float64(n) / window.Seconds()

	rates := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		if interval := times[i].Sub(times[i-1]).Seconds(); interval > 0 {
			rates = append(rates, 1.0/interval)
		}
	}
	if len(rates) == 0 {
		return stats
	}

	stats.RateMin, stats.RateMax = rates[0], rates[0]
	var sumSquares float64
	for _, r := range rates {
		stats.RateMin = math.Min(stats.RateMin, r)
		stats.RateMax = math.Max(stats.RateMax, r)
		d := r - stats.RateMean
		sumSquares += d * d
	}
	stats.RateStdDev = math.Sqrt(sumSquares / float64(len(rates)))

	expected := 1.0 / stats.RateMean
	jitters := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		jitters = append(jitters, math.Abs(times[i].Sub(times[i-1]).Seconds()-expected))
	}

	var jitterSum float64
	for _, j := range jitters {
		jitterSum += j
		stats.JitterMax = math.Max(stats.JitterMax, j)
	}
	stats.JitterMean = jitterSum / float64(len(jitters))

	var jitterSquares float64
	for _, j := range jitters {
		d := j - stats.JitterMean
		jitterSquares += d * d
	}
	stats.JitterStdDev = math.Sqrt(jitterSquares / float64(len(jitters)))

	stats.IsStable = stats.RateStdDev < stats.RateMean*rateStabilityThreshold &&
		stats.JitterMean < expected*jitterStabilityThreshold
	return stats
}
