package httpx

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/I3lackEye/linuxgamebench/pkg/analysis"
	"github.com/I3lackEye/linuxgamebench/pkg/frametime"
)

var (
	histogramBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5}
)

func (r *Router) initMetrics() {
	r.metricsOnce.Do(func() {
		r.requestTotal = registerCounterVec(prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lgb",
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Count of processed HTTP requests",
		}, []string{"method", "route", "status"}))

		r.requestLatency = registerHistogramVec(prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lgb",
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "Latency distribution of HTTP handlers",
			Buckets:   histogramBuckets,
		}, []string{"method", "route", "status"}))

		r.rateLimitHits = registerCounterVec(prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lgb",
			Subsystem: "api",
			Name:      "rate_limit_hits_total",
			Help:      "Number of rate-limited responses",
		}, []string{"route", "key"}))

		r.analysisTotal = registerCounterVec(prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lgb",
			Subsystem: "analysis",
			Name:      "captures_total",
			Help:      "Analysed captures by outcome",
		}, []string{"source", "outcome"}))

		r.ratingTotal = registerCounterVec(prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lgb",
			Subsystem: "analysis",
			Name:      "ratings_total",
			Help:      "Ratings assigned to analysed captures",
		}, []string{"kind", "rating"}))

		r.metricsInitialized = true
	})
}

func registerCounterVec(c *prometheus.CounterVec) *prometheus.CounterVec {
	if err := prometheus.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
	}
	return c
}

func registerHistogramVec(h *prometheus.HistogramVec) *prometheus.HistogramVec {
	if err := prometheus.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing
			}
		}
	}
	return h
}

func (r *Router) recordRequestMetrics(method, route string, status int, duration time.Duration) {
	if !r.metricsInitialized {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"route":  route,
		"status": strconv.Itoa(status),
	}
	r.requestTotal.With(labels).Inc()
	r.requestLatency.With(labels).Observe(duration.Seconds())
}

func (r *Router) recordRateLimitHit(route, key string) {
	if !r.metricsInitialized {
		return
	}
	r.rateLimitHits.With(prometheus.Labels{"route": route, "key": key}).Inc()
}

// recordAnalysis counts one capture outcome and, when a record was produced,
// its ratings.
func (r *Router) recordAnalysis(source string, rec analysis.Record, err error) {
	if !r.metricsInitialized {
		return
	}
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
		if errors.Is(err, frametime.ErrNoValidSamples) {
			outcome = "no_samples"
		}
	case len(rec.Warnings) > 0:
		outcome = "degraded"
	}
	r.analysisTotal.With(prometheus.Labels{"source": source, "outcome": outcome}).Inc()
	if err != nil {
		return
	}
	r.ratingTotal.With(prometheus.Labels{"kind": "stutter", "rating": rec.Stutter.String()}).Inc()
	r.ratingTotal.With(prometheus.Labels{"kind": "consistency", "rating": rec.Consistency.String()}).Inc()
}
