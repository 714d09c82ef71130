package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"golang.org/x/term"

	"github.com/I3lackEye/linuxgamebench/internal/service/benchmark"
	"github.com/I3lackEye/linuxgamebench/pkg/analysis"
	"github.com/I3lackEye/linuxgamebench/pkg/config"
	"github.com/I3lackEye/linuxgamebench/pkg/frametime"
	"github.com/I3lackEye/linuxgamebench/pkg/logger"
)

type analyzeResult struct {
	File    string                     `json:"file"`
	Metrics *analysis.Record           `json:"metrics,omitempty"`
	Targets *analysis.TargetEvaluation `json:"targets,omitempty"`
	Error   string                     `json:"error,omitempty"`
}

type analyzeReport struct {
	Results   []analyzeResult   `json:"results"`
	Aggregate *analysis.Summary `json:"aggregate,omitempty"`
}

func commandAnalyze(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	encoding := fs.String("encoding", "deltas", "Capture encoding (deltas|timestamps)")
	column := fs.Int("column", 0, "Zero-based column holding frame times")
	delimiter := fs.String("delimiter", ",", "Column delimiter")
	profilePath := fs.String("config", "", "YAML analysis profile")
	format := fs.String("format", "auto", "Output format (auto|table|json)")
	aggregate := fs.Bool("aggregate", false, "Also summarise all files as repeated runs")
	workers := fs.Int("workers", 0, "Files analysed in parallel")
	verbose := fs.Bool("verbose", false, "Log debug output to stderr")
	fs.Parse(args)

	files := fs.Args()
	if len(files) == 0 {
		return errors.New("at least one capture file is required (use - for stdin)")
	}
	enc, err := frametime.ParseEncoding(*encoding)
	if err != nil {
		return err
	}
	delim := []rune(*delimiter)
	if len(delim) != 1 {
		return errors.New("--delimiter must be a single character")
	}
	profile, err := config.LoadAnalysisProfile(*profilePath)
	if err != nil {
		return err
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	log := logger.NewWithWriter(os.Stderr, "lgb", level)
	svc := benchmark.New(nil, nil, nil, nil, log, benchmark.Config{
		Options: profile.Options(),
		Targets: profile.Targets,
		Workers: *workers,
	})

	inputs, closeAll, err := openCaptures(files, enc, *column, delim[0])
	if err != nil {
		return err
	}
	defer closeAll()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	batch, err := svc.AnalyzeBatch(ctx, inputs, *workers)
	if err != nil {
		return err
	}

	report := buildAnalyzeReport(svc, batch, *aggregate)
	if resolveFormat(*format, stdout) == "json" {
		encoder := json.NewEncoder(stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(report); err != nil {
			return err
		}
	} else {
		renderAnalyzeReport(stdout, report)
	}
	for _, res := range report.Results {
		if res.Error != "" {
			return fmt.Errorf("%d of %d captures failed", countFailures(report.Results), len(report.Results))
		}
	}
	return nil
}

func openCaptures(files []string, enc frametime.Encoding, column int, delimiter rune) ([]benchmark.CaptureInput, func(), error) {
	var closers []io.Closer
	closeAll := func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}
	inputs := make([]benchmark.CaptureInput, 0, len(files))
	for _, name := range files {
		in := benchmark.CaptureInput{Name: name, Encoding: enc, Column: column, Delimiter: delimiter}
		if name == "-" {
			in.Name = "stdin"
			in.Reader = os.Stdin
		} else {
			f, err := os.Open(name)
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			closers = append(closers, f)
			in.Reader = f
		}
		inputs = append(inputs, in)
	}
	return inputs, closeAll, nil
}

func buildAnalyzeReport(svc *benchmark.Service, batch []benchmark.BatchResult, aggregate bool) analyzeReport {
	report := analyzeReport{Results: make([]analyzeResult, 0, len(batch))}
	var records []analysis.Record
	for _, res := range batch {
		item := analyzeResult{File: res.Name}
		if res.Err != nil {
			item.Error = res.Err.Error()
		} else {
			rec := res.Record
			targets := svc.TargetsFor(rec)
			item.Metrics = &rec
			item.Targets = &targets
			records = append(records, rec)
		}
		report.Results = append(report.Results, item)
	}
	if aggregate && len(records) > 0 {
		summary := analysis.Aggregate(records)
		report.Aggregate = &summary
	}
	return report
}

func countFailures(results []analyzeResult) int {
	n := 0
	for _, res := range results {
		if res.Error != "" {
			n++
		}
	}
	return n
}

// resolveFormat picks table output for terminals and JSON for pipes.
func resolveFormat(format string, out io.Writer) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		return "json"
	case "table":
		return "table"
	}
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return "table"
	}
	return "json"
}
