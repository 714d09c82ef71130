package domain

import (
	"strings"
	"time"

	"github.com/I3lackEye/linuxgamebench/pkg/analysis"
)

// Run is one analysed capture of a game on a system at a resolution.
type Run struct {
	ID         string
	GameID     string
	SystemID   string
	Resolution string
	Label      string
	RunNumber  int
	RecordedAt time.Time
	CreatedAt  time.Time
	Metrics    analysis.Record
	// Frametimes is only populated when explicitly requested.
	Frametimes []float64
}

// RunFilter narrows run listings. Empty fields match everything.
type RunFilter struct {
	GameID         string
	SystemID       string
	Resolution     string
	Limit          int
	WithFrametimes bool
}

var resolutionNames = map[string]string{
	"1280x720":  "HD",
	"1920x1080": "FHD",
	"2560x1440": "WQHD",
	"3440x1440": "UWQHD",
	"3840x2160": "UHD",
}

// NormalizeResolution maps common WxH strings to their short names and
// upper-cases everything else.
func NormalizeResolution(raw string) string {
	value := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(raw), " ", ""))
	value = strings.ReplaceAll(value, "×", "x")
	if name, ok := resolutionNames[value]; ok {
		return name
	}
	return strings.ToUpper(value)
}
