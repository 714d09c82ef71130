package analysis

import "math"

const (
	DefaultMinSamples        = 30
	DefaultStutterMultiplier = 2.0
	DefaultRollingWindow     = 15
)

// Options are the tunable parameters of an analysis.
type Options struct {
	MinSamples        int     `json:"min_samples" yaml:"min_samples"`
	StutterMultiplier float64 `json:"stutter_multiplier" yaml:"stutter_multiplier"`
	RollingWindow     int     `json:"rolling_window" yaml:"rolling_window"`
}

// DefaultOptions returns the standard configuration.
func DefaultOptions() Options {
	return Options{
		MinSamples:        DefaultMinSamples,
		StutterMultiplier: DefaultStutterMultiplier,
		RollingWindow:     DefaultRollingWindow,
	}
}

// Normalize replaces unset or invalid fields with defaults.
func (o Options) Normalize() Options {
	if o.MinSamples <= 0 {
		o.MinSamples = DefaultMinSamples
	}
	if o.StutterMultiplier <= 0 || math.IsNaN(o.StutterMultiplier) || math.IsInf(o.StutterMultiplier, 0) {
		o.StutterMultiplier = DefaultStutterMultiplier
	}
	if o.RollingWindow <= 0 {
		o.RollingWindow = DefaultRollingWindow
	}
	return o
}
