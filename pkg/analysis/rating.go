package analysis

import (
	"fmt"
	"strings"
)

// Rating is a qualitative grade. The zero value is RatingUnavailable.
type Rating int

const (
	RatingUnavailable Rating = iota
	RatingExcellent
	RatingGood
	RatingModerate
	RatingPoor
)

var ratingNames = map[Rating]string{
	RatingUnavailable: "Unavailable",
	RatingExcellent:   "Excellent",
	RatingGood:        "Good",
	RatingModerate:    "Moderate",
	RatingPoor:        "Poor",
}

func (r Rating) String() string {
	if name, ok := ratingNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Rating(%d)", int(r))
}

// Available reports whether r is an actual grade.
func (r Rating) Available() bool {
	return r >= RatingExcellent && r <= RatingPoor
}

// Worse returns the more severe of r and other. Unavailable never wins over
// an actual grade.
func (r Rating) Worse(other Rating) Rating {
	if !other.Available() {
		return r
	}
	if !r.Available() || other > r {
		return other
	}
	return r
}

// ParseRating accepts names in any case.
func ParseRating(raw string) (Rating, error) {
	needle := strings.TrimSpace(raw)
	for rating, name := range ratingNames {
		if strings.EqualFold(name, needle) {
			return rating, nil
		}
	}
	return RatingUnavailable, fmt.Errorf("analysis: unknown rating %q", raw)
}

func (r Rating) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(r.String())), nil
}

func (r *Rating) UnmarshalText(text []byte) error {
	parsed, err := ParseRating(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
