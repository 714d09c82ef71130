package analysis

import "slices"

// DefaultTargets are common display refresh rates.
var DefaultTargets = []int{30, 60, 120, 144}

// TargetRating grades a result against a refresh target.
type TargetRating string

const (
	// TargetSmooth means even the 1% low stays at or above the target.
	TargetSmooth TargetRating = "smooth"
	// TargetPlayable means the average reaches the target.
	TargetPlayable TargetRating = "playable"
	TargetBelow    TargetRating = "below"
)

type TargetResult struct {
	FPS         int          `json:"fps"`
	Rating      TargetRating `json:"rating"`
	MeetsTarget bool         `json:"meets_target"`
}

type TargetEvaluation struct {
	Targets []TargetResult `json:"targets"`
	// Recommended is the highest smooth target, else the highest playable
	// one, else zero.
	Recommended       int          `json:"recommended"`
	RecommendedRating TargetRating `json:"recommended_rating,omitempty"`
}

// EvaluateTargets rates averageFPS and low1 against each target. Nil targets
// means DefaultTargets. Without a 1% low no target can be smooth.
func EvaluateTargets(averageFPS float64, low1 Metric, targets []int) TargetEvaluation {
	if targets == nil {
		targets = DefaultTargets
	}
	sorted := slices.Clone(targets)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	eval := TargetEvaluation{Targets: make([]TargetResult, 0, len(sorted))}
	var bestPlayable int
	for _, target := range sorted {
		if target <= 0 {
			continue
		}
		goal := float64(target)
		result := TargetResult{FPS: target, Rating: TargetBelow}
		switch {
		case low1.Available() && low1.Or(0) >= goal:
			result.Rating = TargetSmooth
			result.MeetsTarget = true
			eval.Recommended = target
			eval.RecommendedRating = TargetSmooth
		case averageFPS >= goal:
			result.Rating = TargetPlayable
			result.MeetsTarget = true
			bestPlayable = target
		}
		eval.Targets = append(eval.Targets, result)
	}
	if eval.Recommended == 0 && bestPlayable > 0 {
		eval.Recommended = bestPlayable
		eval.RecommendedRating = TargetPlayable
	}
	return eval
}

// EvaluateRecordTargets is EvaluateTargets applied to a record.
func EvaluateRecordTargets(rec Record, targets []int) TargetEvaluation {
	return EvaluateTargets(rec.AverageFPS, rec.Low1, targets)
}
