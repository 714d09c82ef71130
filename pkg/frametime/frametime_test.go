package frametime

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestParseDeltasSkipsBlankAndCountsMalformed(t *testing.T) {
	input := "16.6\n\n16.7\nabc\n-3\n0\n   \n17.1\n"
	capture, err := Parse(strings.NewReader(input), Options{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []float64{16.6, 16.7, 17.1}
	if len(capture.Samples) != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), len(capture.Samples))
	}
	for i := range want {
		if capture.Samples[i] != want[i] {
			t.Fatalf("sample %d: expected %v, got %v", i, want[i], capture.Samples[i])
		}
	}
	if capture.Discarded != 3 {
		t.Fatalf("expected 3 discarded, got %d", capture.Discarded)
	}
}

func TestParseSelectsColumn(t *testing.T) {
	input := "fps,frametime\n60,16.6\n59,16.9\n61\n"
	capture, err := Parse(strings.NewReader(input), Options{Column: 1})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if capture.Len() != 2 {
		t.Fatalf("expected 2 samples, got %d", capture.Len())
	}
	// header line and the short row
	if capture.Discarded != 2 {
		t.Fatalf("expected 2 discarded, got %d", capture.Discarded)
	}
}

func TestParseCustomDelimiter(t *testing.T) {
	capture, err := Parse(strings.NewReader("1;16.6\n2;16.8\n"), Options{Column: 1, Delimiter: ';'})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if capture.Len() != 2 || capture.Samples[1] != 16.8 {
		t.Fatalf("unexpected samples %v", capture.Samples)
	}
}

func TestParseTimestamps(t *testing.T) {
	input := "1000\n1016.5\n1033\n1033\n1049.5\n"
	capture, err := Parse(strings.NewReader(input), Options{Encoding: Timestamps})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []float64{16.5, 16.5, 16.5}
	if capture.Len() != len(want) {
		t.Fatalf("expected %d samples, got %v", len(want), capture.Samples)
	}
	for i := range want {
		if math.Abs(capture.Samples[i]-want[i]) > 1e-9 {
			t.Fatalf("sample %d: expected %v, got %v", i, want[i], capture.Samples[i])
		}
	}
	if capture.Discarded != 1 {
		t.Fatalf("expected duplicate timestamp to be discarded, got %d", capture.Discarded)
	}
}

func TestFromTimestampsKeepsAnchorOnBackwardsStep(t *testing.T) {
	capture, err := FromTimestamps([]float64{0, 16, 5, 32})
	if err != nil {
		t.Fatalf("from timestamps: %v", err)
	}
	if capture.Len() != 2 || capture.Samples[0] != 16 || capture.Samples[1] != 16 {
		t.Fatalf("unexpected samples %v", capture.Samples)
	}
	if capture.Discarded != 1 {
		t.Fatalf("expected 1 discarded, got %d", capture.Discarded)
	}
}

func TestFromDurationsRejectsNonFinite(t *testing.T) {
	capture, err := FromDurations([]float64{16.6, math.NaN(), math.Inf(1), 16.7})
	if err != nil {
		t.Fatalf("from durations: %v", err)
	}
	if capture.Len() != 2 || capture.Discarded != 2 {
		t.Fatalf("unexpected capture %+v", capture)
	}
}

func TestNoValidSamples(t *testing.T) {
	_, err := Parse(strings.NewReader("\n\nheader\n-1\n"), Options{})
	if !errors.Is(err, ErrNoValidSamples) {
		t.Fatalf("expected ErrNoValidSamples, got %v", err)
	}
	_, err = FromTimestamps([]float64{1000})
	if !errors.Is(err, ErrNoValidSamples) {
		t.Fatalf("expected single timestamp to yield ErrNoValidSamples, got %v", err)
	}
	_, err = FromDurations(nil)
	if !errors.Is(err, ErrNoValidSamples) {
		t.Fatalf("expected empty input to yield ErrNoValidSamples, got %v", err)
	}
}

func TestParseEncoding(t *testing.T) {
	cases := map[string]Encoding{
		"":           Deltas,
		"deltas":     Deltas,
		"Frametimes": Deltas,
		"timestamps": Timestamps,
		"cumulative": Timestamps,
	}
	for raw, want := range cases {
		got, err := ParseEncoding(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if got != want {
			t.Fatalf("parse %q: expected %v, got %v", raw, want, got)
		}
	}
	if _, err := ParseEncoding("fps"); err == nil {
		t.Fatalf("expected error for unknown encoding")
	}
}

func TestParseRejectsNegativeColumn(t *testing.T) {
	_, err := Parse(strings.NewReader("16.6\n"), Options{Column: -1})
	if !errors.Is(err, ErrInvalidOptions) {
		t.Fatalf("expected ErrInvalidOptions, got %v", err)
	}
}

func TestParseDiscardsOverlongLine(t *testing.T) {
	input := "16.6\n" + strings.Repeat("x", 2<<20) + "\n16.7\n"
	capture, err := Parse(strings.NewReader(input), Options{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if capture.Len() != 2 || capture.Samples[0] != 16.6 || capture.Samples[1] != 16.7 {
		t.Fatalf("unexpected samples %v", capture.Samples)
	}
	if capture.Discarded != 1 {
		t.Fatalf("expected 1 discarded, got %d", capture.Discarded)
	}
}

func TestParseLastLineWithoutNewline(t *testing.T) {
	capture, err := Parse(strings.NewReader("16.6\r\n16.7"), Options{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if capture.Len() != 2 || capture.Discarded != 0 {
		t.Fatalf("unexpected capture %+v", capture)
	}
}
