package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// SystemInfo describes the hardware and software a capture was taken on.
type SystemInfo struct {
	OS        string
	Kernel    string
	GPU       string
	GPUDriver string
	CPU       string
	RAMGB     int
}

// System is a registered machine.
type System struct {
	ID          string
	Fingerprint string
	Info        SystemInfo
	CreatedAt   time.Time
}

// Normalize trims and collapses whitespace in every text field.
func (s SystemInfo) Normalize() SystemInfo {
	s.OS = collapse(s.OS)
	s.Kernel = collapse(s.Kernel)
	s.GPU = collapse(s.GPU)
	s.GPUDriver = collapse(s.GPUDriver)
	s.CPU = collapse(s.CPU)
	return s
}

// Validate requires GPU and CPU, the fields that identify a machine.
func (s SystemInfo) Validate() error {
	if collapse(s.GPU) == "" {
		return fmt.Errorf("%w: gpu required", ErrInvalidInput)
	}
	if collapse(s.CPU) == "" {
		return fmt.Errorf("%w: cpu required", ErrInvalidInput)
	}
	if s.RAMGB < 0 {
		return fmt.Errorf("%w: ram must not be negative", ErrInvalidInput)
	}
	return nil
}

// Fingerprint identifies a machine by OS, GPU and CPU. Kernel, driver and RAM
// changes keep the fingerprint.
func (s SystemInfo) Fingerprint() string {
	key := strings.ToLower(collapse(s.OS) + "|" + collapse(s.GPU) + "|" + collapse(s.CPU))
	return fmt.Sprintf("%016x", xxhash.Sum64String(key))
}

// Changed reports whether s no longer matches a previously issued fingerprint.
func (s SystemInfo) Changed(previous string) bool {
	return previous != "" && previous != s.Fingerprint()
}

func collapse(v string) string {
	return strings.Join(strings.Fields(v), " ")
}
