package benchmark

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"github.com/I3lackEye/linuxgamebench/internal/domain"
	"github.com/I3lackEye/linuxgamebench/pkg/analysis"
	"github.com/I3lackEye/linuxgamebench/pkg/frametime"
)

// CaptureInput is a capture either as text (Reader) or as in-memory values.
type CaptureInput struct {
	// Name labels batch results, usually a file path.
	Name      string
	Reader    io.Reader
	Values    []float64
	Encoding  frametime.Encoding
	Column    int
	Delimiter rune
}

// BatchResult is the outcome of one capture in AnalyzeBatch.
type BatchResult struct {
	Name   string
	Record analysis.Record
	Err    error
}

// Ingest converts the input to frame durations.
func (s *Service) Ingest(in CaptureInput) (frametime.Capture, error) {
	switch {
	case in.Reader != nil:
		return frametime.Parse(in.Reader, frametime.Options{Encoding: in.Encoding, Column: in.Column, Delimiter: in.Delimiter})
	case len(in.Values) > 0:
		return frametime.FromValues(in.Values, in.Encoding)
	default:
		return frametime.Capture{}, fmt.Errorf("%w: capture or frametimes required", domain.ErrInvalidInput)
	}
}

// Analyze ingests and analyses a capture. Results are cached by content.
func (s *Service) Analyze(ctx context.Context, in CaptureInput) (analysis.Record, error) {
	if err := ctx.Err(); err != nil {
		return analysis.Record{}, err
	}
	capture, err := s.Ingest(in)
	if err != nil {
		return analysis.Record{Discarded: capture.Discarded}, err
	}
	return s.analyzeCapture(capture)
}

func (s *Service) analyzeCapture(capture frametime.Capture) (analysis.Record, error) {
	key := s.cacheKey(capture)
	if rec, ok := s.cache.Get(key); ok {
		return rec.Clone(), nil
	}
	rec, err := analysis.AnalyzeCapture(capture, s.options)
	if err != nil {
		return rec, err
	}
	s.cache.Add(key, rec.Clone())
	return rec, nil
}

// AnalyzeBatch analyses inputs concurrently with at most workers goroutines.
// Per-capture failures are reported in the results; the returned error is
// only set when ctx ends before all captures were scheduled or finished.
func (s *Service) AnalyzeBatch(ctx context.Context, inputs []CaptureInput, workers int) ([]BatchResult, error) {
	if workers <= 0 {
		workers = s.workers
	}
	results := make([]BatchResult, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, in := range inputs {
		if gctx.Err() != nil {
			break
		}
		i, in := i, in
		g.Go(func() error {
			rec, err := s.Analyze(gctx, in)
			results[i] = BatchResult{Name: in.Name, Record: rec, Err: err}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}

func (s *Service) cacheKey(capture frametime.Capture) uint64 {
	d := xxhash.New()
	var buf [8]byte
	for _, v := range capture.Samples {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		_, _ = d.Write(buf[:])
	}
	fmt.Fprintf(d, "|%d|%d|%g|%d", capture.Discarded, s.options.MinSamples, s.options.StutterMultiplier, s.options.RollingWindow)
	return d.Sum64()
}
