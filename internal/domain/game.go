package domain

import (
	"strings"
	"time"
)

// Game identifies a benchmarked title.
type Game struct {
	ID         string
	Name       string
	SteamAppID int
	CreatedAt  time.Time
}

// NormalizeGameName trims and collapses whitespace.
func NormalizeGameName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}
