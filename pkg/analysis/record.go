package analysis

import (
	"slices"
	"time"
)

// Warning flags a degraded record.
type Warning string

const (
	// WarningInsufficientSamples means fewer samples than MinSamples were
	// available; percentile lows, stutter and consistency are Unavailable.
	WarningInsufficientSamples Warning = "insufficient_samples"
)

// Record holds the results of analysing one capture.
type Record struct {
	AverageFPS  float64 `json:"average_fps"`
	Low1        Metric  `json:"low_1_percent"`
	Low01       Metric  `json:"low_0_1_percent"`
	Stutter     Rating  `json:"stutter_rating"`
	Consistency Rating  `json:"consistency_rating"`
	SampleCount int     `json:"sample_count"`
	DurationMS  float64 `json:"duration_ms"`

	MinFPS    float64 `json:"min_fps"`
	MaxFPS    float64 `json:"max_fps"`
	MedianFPS float64 `json:"median_fps"`
	StdDevFPS float64 `json:"std_dev_fps"`

	StutterEvents    int    `json:"stutter_events"`
	StutterSequences int    `json:"stutter_sequences"`
	StutterRate      Metric `json:"stutter_rate"`
	CVPercent        Metric `json:"cv_percent"`
	Stability        Metric `json:"stability_percent"`

	Discarded int       `json:"discarded"`
	Warnings  []Warning `json:"warnings,omitempty"`
}

// Duration returns the summed frame time.
func (r Record) Duration() time.Duration {
	return time.Duration(r.DurationMS * float64(time.Millisecond))
}

// HasWarning reports whether w was raised.
func (r Record) HasWarning(w Warning) bool {
	return slices.Contains(r.Warnings, w)
}

// Clone returns a copy that shares no slices with r.
func (r Record) Clone() Record {
	r.Warnings = slices.Clone(r.Warnings)
	return r
}
