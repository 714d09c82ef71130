package analysis

// Variation grades how much average FPS differs between runs.
type Variation string

const (
	VariationExcellent   Variation = "excellent"
	VariationGood        Variation = "good"
	VariationVariable    Variation = "variable"
	VariationUnavailable Variation = "unavailable"
)

const (
	variationExcellentCV = 5.0
	variationGoodCV      = 10.0
)

// Summary combines several runs of the same game, system and resolution.
type Summary struct {
	Runs            int       `json:"runs"`
	AverageFPS      float64   `json:"average_fps"`
	Low1            Metric    `json:"low_1_percent"`
	Low01           Metric    `json:"low_0_1_percent"`
	MinFPS          float64   `json:"min_fps"`
	MaxFPS          float64   `json:"max_fps"`
	Stutter         Rating    `json:"stutter_rating"`
	Consistency     Rating    `json:"consistency_rating"`
	TotalFrames     int       `json:"total_frames"`
	TotalDurationMS float64   `json:"total_duration_ms"`
	RunCV           Metric    `json:"run_cv_percent"`
	Variation       Variation `json:"variation"`
}

// Aggregate averages FPS figures across records, keeps the worst ratings and
// grades run-to-run variation from the CV of per-run average FPS. Variation
// needs at least two runs.
func Aggregate(records []Record) Summary {
	summary := Summary{Runs: len(records), Variation: VariationUnavailable}
	if len(records) == 0 {
		return summary
	}

	averages := make([]float64, 0, len(records))
	var low1, low01 []float64
	for i, rec := range records {
		averages = append(averages, rec.AverageFPS)
		if v, ok := rec.Low1.Get(); ok {
			low1 = append(low1, v)
		}
		if v, ok := rec.Low01.Get(); ok {
			low01 = append(low01, v)
		}
		if i == 0 || rec.MinFPS < summary.MinFPS {
			summary.MinFPS = rec.MinFPS
		}
		if rec.MaxFPS > summary.MaxFPS {
			summary.MaxFPS = rec.MaxFPS
		}
		summary.Stutter = summary.Stutter.Worse(rec.Stutter)
		summary.Consistency = summary.Consistency.Worse(rec.Consistency)
		summary.TotalFrames += rec.SampleCount
		summary.TotalDurationMS += rec.DurationMS
	}
	summary.AverageFPS = mean(averages)
	if len(low1) > 0 {
		summary.Low1 = Value(mean(low1))
	}
	if len(low01) > 0 {
		summary.Low01 = Value(mean(low01))
	}

	if len(records) >= 2 && summary.AverageFPS > 0 {
		cv := stdDevAround(averages, summary.AverageFPS) / summary.AverageFPS * 100
		summary.RunCV = Value(cv)
		switch {
		case cv < variationExcellentCV:
			summary.Variation = VariationExcellent
		case cv < variationGoodCV:
			summary.Variation = VariationGood
		default:
			summary.Variation = VariationVariable
		}
	}
	return summary
}
