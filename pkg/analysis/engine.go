// Package analysis derives frame pacing metrics and ratings from frame
// durations. Every function is pure and safe for concurrent use.
package analysis

import (
	"math"
	"slices"

	"github.com/I3lackEye/linuxgamebench/pkg/frametime"
)

// ErrNoValidSamples is returned when no positive finite duration remains.
var ErrNoValidSamples = frametime.ErrNoValidSamples

const (
	lowOnePercent   = 0.01
	lowPointOne     = 0.001
	millisPerSecond = 1000.0
)

// Analyze computes a Record from frame durations in milliseconds. Invalid
// samples are dropped and counted in Discarded. With fewer than MinSamples
// valid samples the record is flagged with WarningInsufficientSamples and the
// percentile, stutter and consistency results are Unavailable.
func Analyze(samples []float64, opts Options) (Record, error) {
	opts = opts.Normalize()

	valid := make([]float64, 0, len(samples))
	discarded := 0
	for _, d := range samples {
		if d <= 0 || math.IsNaN(d) || math.IsInf(d, 0) {
			discarded++
			continue
		}
		valid = append(valid, d)
	}
	if len(valid) == 0 {
		return Record{Discarded: discarded}, ErrNoValidSamples
	}

	n := float64(len(valid))
	total := 0.0
	for _, d := range valid {
		total += d
	}
	meanMS := total / n

	fps := make([]float64, len(valid))
	for i, d := range valid {
		fps[i] = millisPerSecond / d
	}
	slices.Sort(fps)

	rec := Record{
		AverageFPS:  millisPerSecond / meanMS,
		SampleCount: len(valid),
		DurationMS:  total,
		MinFPS:      fps[0],
		MaxFPS:      fps[len(fps)-1],
		MedianFPS:   medianSorted(fps),
		StdDevFPS:   stdDev(fps),
		Discarded:   discarded,
	}
	if len(valid) < opts.MinSamples {
		rec.Warnings = []Warning{WarningInsufficientSamples}
		return rec, nil
	}

	low1 := percentileLow(fps, lowOnePercent, rec.AverageFPS)
	rec.Low1 = Value(low1)
	rec.Low01 = Value(percentileLow(fps, lowPointOne, rec.AverageFPS))

	events := DetectStutter(valid, opts.RollingWindow, opts.StutterMultiplier)
	sequences := CountSequences(events)
	rate := float64(len(events)) * 1000 / n
	rec.StutterEvents = len(events)
	rec.StutterSequences = sequences
	rec.StutterRate = Value(rate)
	rec.Stutter = RateStutter(rate, sequences)

	cv := stdDevAround(valid, meanMS) / meanMS * 100
	ratio := low1 / rec.AverageFPS
	rec.CVPercent = Value(cv)
	rec.Stability = Value(ratio * 100)
	rec.Consistency = RateConsistency(rec.AverageFPS, cv, ratio)
	return rec, nil
}

// AnalyzeCapture analyses an ingested capture and adds the frames dropped
// during ingestion to Discarded.
func AnalyzeCapture(capture frametime.Capture, opts Options) (Record, error) {
	rec, err := Analyze(capture.Samples, opts)
	rec.Discarded += capture.Discarded
	return rec, err
}

// percentileLow is the mean FPS of the worst fraction p of frames, taking at
// least one frame. sorted must be ascending. The result never exceeds avg.
func percentileLow(sorted []float64, p, avg float64) float64 {
	k := int(math.Floor(float64(len(sorted)) * p))
	if k < 1 {
		k = 1
	}
	sum := 0.0
	for _, v := range sorted[:k] {
		sum += v
	}
	return math.Min(sum/float64(k), avg)
}

func medianSorted(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stdDev is the population standard deviation.
func stdDev(values []float64) float64 {
	return stdDevAround(values, mean(values))
}

func stdDevAround(values []float64, m float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sq := 0.0
	for _, v := range values {
		sq += (v - m) * (v - m)
	}
	return math.Sqrt(sq / float64(len(values)))
}
