package analysis

import "math"

type consistencyBand struct {
	maxCV    float64
	minRatio float64
}

// consistencyTier holds the bands that apply up to (excluding) belowFPS.
type consistencyTier struct {
	belowFPS  float64
	excellent consistencyBand
	good      consistencyBand
	moderate  consistencyBand
}

// Tiers are ordered by belowFPS; faster tiers are stricter.
var consistencyTiers = []consistencyTier{
	{
		belowFPS:  75,
		excellent: consistencyBand{maxCV: 10, minRatio: 0.75},
		good:      consistencyBand{maxCV: 15, minRatio: 0.60},
		moderate:  consistencyBand{maxCV: 25, minRatio: 0.45},
	},
	{
		belowFPS:  120,
		excellent: consistencyBand{maxCV: 8, minRatio: 0.80},
		good:      consistencyBand{maxCV: 12, minRatio: 0.65},
		moderate:  consistencyBand{maxCV: 20, minRatio: 0.50},
	},
	{
		belowFPS:  math.Inf(1),
		excellent: consistencyBand{maxCV: 6, minRatio: 0.85},
		good:      consistencyBand{maxCV: 10, minRatio: 0.70},
		moderate:  consistencyBand{maxCV: 16, minRatio: 0.55},
	},
}

func (b consistencyBand) admits(cv, ratio float64) bool {
	return cv < b.maxCV && ratio >= b.minRatio
}

// RateConsistency grades frame pacing from the coefficient of variation of
// frame times (percent) and the ratio of 1% low to average FPS.
func RateConsistency(averageFPS, cvPercent, lowRatio float64) Rating {
	if averageFPS <= 0 || math.IsNaN(cvPercent) || math.IsNaN(lowRatio) {
		return RatingUnavailable
	}
	tier := consistencyTiers[len(consistencyTiers)-1]
	for _, t := range consistencyTiers {
		if averageFPS < t.belowFPS {
			tier = t
			break
		}
	}
	switch {
	case tier.excellent.admits(cvPercent, lowRatio):
		return RatingExcellent
	case tier.good.admits(cvPercent, lowRatio):
		return RatingGood
	case tier.moderate.admits(cvPercent, lowRatio):
		return RatingModerate
	default:
		return RatingPoor
	}
}
