package analysis

// StutterEvent is a frame whose duration exceeded the rolling baseline by
// more than the configured multiplier.
type StutterEvent struct {
	Index int `json:"index"`
	// Magnitude is the frame duration divided by the baseline.
	Magnitude float64 `json:"magnitude"`
}

const (
	stutterExcellentRate = 0.2
	stutterGoodRate      = 0.5
	stutterPoorRate      = 2.0
	stutterPoorSequences = 3
)

// DetectStutter compares every frame against the median of the window
// frames that precede it. The first frame has no baseline and is never an
// event.
func DetectStutter(samples []float64, window int, multiplier float64) []StutterEvent {
	var events []StutterEvent
	w := newMedianWindow(window)
	for i, d := range samples {
		if base, ok := w.median(); ok && base > 0 && d > multiplier*base {
			events = append(events, StutterEvent{Index: i, Magnitude: d / base})
		}
		w.push(d)
	}
	return events
}

// CountSequences merges events on consecutive frame indices into one
// sequence.
func CountSequences(events []StutterEvent) int {
	sequences := 0
	for i, ev := range events {
		if i == 0 || ev.Index != events[i-1].Index+1 {
			sequences++
		}
	}
	return sequences
}

// RateStutter grades events per thousand frames. More than three distinct
// sequences is Poor regardless of rate.
func RateStutter(ratePerThousand float64, sequences int) Rating {
	switch {
	case sequences > stutterPoorSequences || ratePerThousand >= stutterPoorRate:
		return RatingPoor
	case ratePerThousand < stutterExcellentRate:
		return RatingExcellent
	case ratePerThousand < stutterGoodRate:
		return RatingGood
	default:
		return RatingModerate
	}
}
