// Package frametime turns raw frame captures into ordered frame durations in
// milliseconds.
package frametime

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrNoValidSamples is returned when a capture yields zero usable frames.
	ErrNoValidSamples = errors.New("frametime: no valid samples")
	// ErrInvalidOptions is returned for read options that cannot describe a capture.
	ErrInvalidOptions = errors.New("frametime: invalid options")
)

// Encoding describes how capture values are expressed.
type Encoding int

const (
	// Deltas means every value is a frame duration in milliseconds.
	Deltas Encoding = iota
	// Timestamps means values are cumulative timestamps in milliseconds.
	Timestamps
)

func (e Encoding) String() string {
	switch e {
	case Timestamps:
		return "timestamps"
	default:
		return "deltas"
	}
}

// ParseEncoding accepts the encoding names used by config files, flags and
// request payloads.
func ParseEncoding(raw string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "deltas", "delta", "frametimes", "frametime":
		return Deltas, nil
	case "timestamps", "timestamp", "cumulative":
		return Timestamps, nil
	default:
		return Deltas, fmt.Errorf("%w: unknown encoding %q", ErrInvalidOptions, raw)
	}
}

// Options controls how a textual capture is read.
type Options struct {
	Encoding Encoding
	// Column selects the zero-based field holding the value.
	Column int
	// Delimiter separates fields. Zero means comma.
	Delimiter rune
}

// Capture is the result of ingestion.
type Capture struct {
	Samples   []float64
	Discarded int
}

// Len reports the number of usable samples.
func (c Capture) Len() int { return len(c.Samples) }

const (
	readBufferBytes = 64 * 1024
	maxLineBytes    = 1 << 20
)

// Parse reads one value per line. Blank lines are skipped silently; lines
// that cannot be parsed, lines longer than 1 MiB, non-finite values and
// non-positive durations are discarded and counted.
func Parse(r io.Reader, opts Options) (Capture, error) {
	if opts.Column < 0 {
		return Capture{}, fmt.Errorf("%w: negative column %d", ErrInvalidOptions, opts.Column)
	}
	delim := opts.Delimiter
	if delim == 0 {
		delim = ','
	}

	acc := newAccumulator(opts.Encoding)
	br := bufio.NewReaderSize(r, readBufferBytes)
	var buf []byte
	for {
		line, tooLong, err := nextLine(br, buf)
		buf = line
		if tooLong {
			acc.discard()
		} else if text := strings.TrimSpace(string(line)); text != "" {
			if value, ok := field(text, delim, opts.Column); ok {
				acc.add(value)
			} else {
				acc.discard()
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Capture{}, fmt.Errorf("frametime: read capture: %w", err)
		}
	}
	return acc.result()
}

// nextLine reads up to and including the next newline into buf. A line over
// maxLineBytes is drained to its end and reported as tooLong.
func nextLine(br *bufio.Reader, buf []byte) (line []byte, tooLong bool, err error) {
	buf = buf[:0]
	for {
		chunk, readErr := br.ReadSlice('\n')
		if !tooLong {
			if len(buf)+len(chunk) > maxLineBytes {
				tooLong = true
				buf = buf[:0]
			} else {
				buf = append(buf, chunk...)
			}
		}
		if errors.Is(readErr, bufio.ErrBufferFull) {
			continue
		}
		return buf, tooLong, readErr
	}
}

// FromDurations builds a capture from frame durations already in memory.
func FromDurations(values []float64) (Capture, error) {
	return build(values, Deltas)
}

// FromTimestamps builds a capture from cumulative timestamps.
func FromTimestamps(values []float64) (Capture, error) {
	return build(values, Timestamps)
}

// FromValues builds a capture from values in the given encoding.
func FromValues(values []float64, enc Encoding) (Capture, error) {
	return build(values, enc)
}

func build(values []float64, enc Encoding) (Capture, error) {
	acc := newAccumulator(enc)
	for _, v := range values {
		acc.add(v)
	}
	return acc.result()
}

func field(line string, delim rune, column int) (float64, bool) {
	raw := line
	if column > 0 || strings.ContainsRune(line, delim) {
		parts := strings.Split(line, string(delim))
		if column >= len(parts) {
			return 0, false
		}
		raw = parts[column]
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

type accumulator struct {
	encoding  Encoding
	samples   []float64
	discarded int
	prev      float64
	hasPrev   bool
}

func newAccumulator(enc Encoding) *accumulator {
	return &accumulator{encoding: enc}
}

func (a *accumulator) discard() {
	a.discarded++
}

func (a *accumulator) add(value float64) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		a.discard()
		return
	}
	if a.encoding != Timestamps {
		if value <= 0 {
			a.discard()
			return
		}
		a.samples = append(a.samples, value)
		return
	}

	// The first timestamp only anchors the sequence.
	if !a.hasPrev {
		a.prev, a.hasPrev = value, true
		return
	}
	delta := value - a.prev
	if delta <= 0 {
		// A timestamp that does not advance is dropped and the anchor kept.
		a.discard()
		return
	}
	a.prev = value
	a.samples = append(a.samples, delta)
}

func (a *accumulator) result() (Capture, error) {
	capture := Capture{Samples: a.samples, Discarded: a.discarded}
	if len(capture.Samples) == 0 {
		return capture, ErrNoValidSamples
	}
	return capture, nil
}
