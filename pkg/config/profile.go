package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/I3lackEye/linuxgamebench/pkg/analysis"
)

// AnalysisProfile is the YAML form of the tunable analysis parameters.
//
//	min_samples: 30
//	stutter_multiplier: 2.0
//	rolling_window: 15
//	targets: [30, 60, 120, 144]
type AnalysisProfile struct {
	MinSamples        int     `yaml:"min_samples"`
	StutterMultiplier float64 `yaml:"stutter_multiplier"`
	RollingWindow     int     `yaml:"rolling_window"`
	Targets           []int   `yaml:"targets"`
}

// LoadAnalysisProfile reads a profile from path. An empty path yields the
// defaults.
func LoadAnalysisProfile(path string) (AnalysisProfile, error) {
	if path == "" {
		return DefaultAnalysisProfile(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return AnalysisProfile{}, fmt.Errorf("read analysis profile: %w", err)
	}
	return ParseAnalysisProfile(data)
}

// profileFile keeps pointers so explicit zeros can be told from absent keys.
type profileFile struct {
	MinSamples        *int     `yaml:"min_samples"`
	StutterMultiplier *float64 `yaml:"stutter_multiplier"`
	RollingWindow     *int     `yaml:"rolling_window"`
	Targets           []int    `yaml:"targets"`
}

// ParseAnalysisProfile decodes YAML, fills absent fields with defaults and
// rejects values outside their range.
func ParseAnalysisProfile(data []byte) (AnalysisProfile, error) {
	var file profileFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return AnalysisProfile{}, fmt.Errorf("parse analysis profile: %w", err)
	}
	profile := DefaultAnalysisProfile()
	if file.MinSamples != nil {
		if *file.MinSamples < 1 {
			return AnalysisProfile{}, fmt.Errorf("parse analysis profile: min_samples %d must be at least 1", *file.MinSamples)
		}
		profile.MinSamples = *file.MinSamples
	}
	if file.StutterMultiplier != nil {
		if *file.StutterMultiplier <= 0 {
			return AnalysisProfile{}, fmt.Errorf("parse analysis profile: stutter_multiplier %g must be positive", *file.StutterMultiplier)
		}
		profile.StutterMultiplier = *file.StutterMultiplier
	}
	if file.RollingWindow != nil {
		if *file.RollingWindow < 1 {
			return AnalysisProfile{}, fmt.Errorf("parse analysis profile: rolling_window %d must be at least 1", *file.RollingWindow)
		}
		profile.RollingWindow = *file.RollingWindow
	}
	if len(file.Targets) > 0 {
		profile.Targets = file.Targets
	}
	for _, target := range profile.Targets {
		if target <= 0 {
			return AnalysisProfile{}, fmt.Errorf("parse analysis profile: target %d must be positive", target)
		}
	}
	return profile, nil
}

// DefaultAnalysisProfile mirrors analysis.DefaultOptions.
func DefaultAnalysisProfile() AnalysisProfile {
	opts := analysis.DefaultOptions()
	return AnalysisProfile{
		MinSamples:        opts.MinSamples,
		StutterMultiplier: opts.StutterMultiplier,
		RollingWindow:     opts.RollingWindow,
		Targets:           append([]int(nil), analysis.DefaultTargets...),
	}
}

// Options converts the profile to normalized analysis options.
func (p AnalysisProfile) Options() analysis.Options {
	return analysis.Options{
		MinSamples:        p.MinSamples,
		StutterMultiplier: p.StutterMultiplier,
		RollingWindow:     p.RollingWindow,
	}.Normalize()
}
