package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/I3lackEye/linuxgamebench/pkg/analysis"
	apiclient "github.com/I3lackEye/linuxgamebench/pkg/api/client"
)

func formatMetric(m analysis.Metric, unit string) string {
	v, ok := m.Get()
	if !ok {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%s", v, unit)
}

func renderRecord(w io.Writer, rec analysis.Record, targets *analysis.TargetEvaluation) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "  Average FPS\t%.1f\n", rec.AverageFPS)
	fmt.Fprintf(tw, "  1%% low\t%s\n", formatMetric(rec.Low1, ""))
	fmt.Fprintf(tw, "  0.1%% low\t%s\n", formatMetric(rec.Low01, ""))
	fmt.Fprintf(tw, "  Min / Max\t%.1f / %.1f\n", rec.MinFPS, rec.MaxFPS)
	fmt.Fprintf(tw, "  Stutter\t%s (%d events, rate %s)\n", rec.Stutter, rec.StutterEvents, formatMetric(rec.StutterRate, "%"))
	fmt.Fprintf(tw, "  Consistency\t%s (CV %s, stability %s)\n", rec.Consistency, formatMetric(rec.CVPercent, "%"), formatMetric(rec.Stability, "%"))
	fmt.Fprintf(tw, "  Frames\t%d over %s", rec.SampleCount, rec.Duration().Round(time.Millisecond))
	if rec.Discarded > 0 {
		fmt.Fprintf(tw, " (%d lines discarded)", rec.Discarded)
	}
	fmt.Fprintln(tw)
	if targets != nil && len(targets.Targets) > 0 {
		parts := make([]string, 0, len(targets.Targets))
		for _, t := range targets.Targets {
			parts = append(parts, fmt.Sprintf("%d:%s", t.FPS, t.Rating))
		}
		fmt.Fprintf(tw, "  Targets\t%s\n", strings.Join(parts, " "))
		if targets.Recommended > 0 {
			fmt.Fprintf(tw, "  Recommended\t%d FPS (%s)\n", targets.Recommended, targets.RecommendedRating)
		}
	}
	for _, warning := range rec.Warnings {
		fmt.Fprintf(tw, "  Warning\t%s\n", warning)
	}
	_ = tw.Flush()
}

func renderAnalyzeReport(w io.Writer, report analyzeReport) {
	for i, res := range report.Results {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, res.File)
		if res.Error != "" {
			fmt.Fprintf(w, "  error: %s\n", res.Error)
			continue
		}
		renderRecord(w, *res.Metrics, res.Targets)
	}
	if s := report.Aggregate; s != nil {
		fmt.Fprintf(w, "\nAggregate over %d runs\n", s.Runs)
		renderSummary(w, *s)
	}
}

func renderSummary(w io.Writer, s analysis.Summary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "  Average FPS\t%.1f\n", s.AverageFPS)
	fmt.Fprintf(tw, "  1%% / 0.1%% low\t%s / %s\n", formatMetric(s.Low1, ""), formatMetric(s.Low01, ""))
	fmt.Fprintf(tw, "  Stutter\t%s\n", s.Stutter)
	fmt.Fprintf(tw, "  Consistency\t%s\n", s.Consistency)
	fmt.Fprintf(tw, "  Run variation\t%s (CV %s)\n", s.Variation, formatMetric(s.RunCV, "%"))
	_ = tw.Flush()
}

func renderRuns(w io.Writer, runs []apiclient.Run) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tRES\t#\tAVG\t1% LOW\tSTUTTER\tCONSISTENCY\tRECORDED")
	for _, run := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.1f\t%s\t%s\t%s\t%s\n",
			run.ID, run.Resolution, run.RunNumber, run.Metrics.AverageFPS,
			formatMetric(run.Metrics.Low1, ""), run.Metrics.Stutter, run.Metrics.Consistency,
			run.RecordedAt.Format("2006-01-02 15:04"))
	}
	_ = tw.Flush()
}

func renderComparison(w io.Writer, cmp apiclient.Comparison) {
	fmt.Fprintf(w, "%s @ %s\n", cmp.Game.Name, cmp.Resolution)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "GPU\tCPU\tRUNS\tAVG\t1% LOW\tSTUTTER\tVARIATION\tRECOMMENDED")
	for _, entry := range cmp.Entries {
		recommended := "-"
		if entry.Targets.Recommended > 0 {
			recommended = fmt.Sprintf("%d (%s)", entry.Targets.Recommended, entry.Targets.RecommendedRating)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.1f\t%s\t%s\t%s\t%s\n",
			entry.System.GPU, entry.System.CPU, entry.Summary.Runs, entry.Summary.AverageFPS,
			formatMetric(entry.Summary.Low1, ""), entry.Summary.Stutter, entry.Summary.Variation, recommended)
	}
	_ = tw.Flush()
}
