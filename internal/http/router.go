package httpx

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/I3lackEye/linuxgamebench/internal/domain"
	"github.com/I3lackEye/linuxgamebench/internal/service/benchmark"
	"github.com/I3lackEye/linuxgamebench/internal/service/report"
	"github.com/I3lackEye/linuxgamebench/pkg/analysis"
	"github.com/I3lackEye/linuxgamebench/pkg/frametime"
)

// Router wires HTTP endpoints to services.
type Router struct {
	mux      *http.ServeMux
	logger   *slog.Logger
	bench    *benchmark.Service
	reports  *report.Service
	upgrader websocket.Upgrader
	limiter  RateLimiter
	dbHealth func(context.Context) error
	maxBody  int64

	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	rateLimitHits      *prometheus.CounterVec
	analysisTotal      *prometheus.CounterVec
	ratingTotal        *prometheus.CounterVec
}

const (
	rateWindowDefault  = time.Minute
	rateWindowRealtime = 30 * time.Second
	rateLimitAnalyze   = 30
	rateLimitRegister  = 10
	rateLimitSubmit    = 60
	rateLimitRead      = 240
	rateLimitStream    = 30
	healthCheckTimeout = 2 * time.Second
	sseHeartbeat       = 25 * time.Second

	// DefaultMaxBodyBytes bounds request bodies when no limit is configured.
	DefaultMaxBodyBytes int64 = 32 << 20
)

// NewRouter assembles routes with dependencies. A nil limiter selects the
// in-memory limiter; maxBody <= 0 selects DefaultMaxBodyBytes.
func NewRouter(logger *slog.Logger, bench *benchmark.Service, reports *report.Service, limiter RateLimiter, dbHealth func(context.Context) error, maxBody int64) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}
	r := &Router{
		mux:     http.NewServeMux(),
		logger:  logger,
		bench:   bench,
		reports: reports,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		limiter:  limiter,
		dbHealth: dbHealth,
		maxBody:  maxBody,
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	r.initMetrics()
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.mux.HandleFunc("/healthz", r.instrument("/healthz", r.handleHealthz))
	r.mux.Handle("/metrics", promhttp.Handler())
	r.mux.HandleFunc("/analyze", r.instrument("/analyze", r.withRateLimit("/analyze", rateLimitAnalyze, rateWindowDefault, rateLimitKeyIP, r.handleAnalyze)))
	r.mux.HandleFunc("/systems", r.instrument("/systems", r.withRateLimit("/systems", rateLimitRegister, rateWindowDefault, rateLimitKeyIP, r.handleSystems)))
	r.mux.HandleFunc("/systems/", r.instrument("/systems/{id}", r.withRateLimit("/systems/{id}", rateLimitRead, rateWindowDefault, rateLimitKeyIP, r.handleSystem)))
	r.mux.HandleFunc("/runs", r.instrument("/runs", r.handleRuns))
	r.mux.HandleFunc("/runs/", r.instrument("/runs/{id}", r.handleRunSubroutes))
	r.mux.HandleFunc("/games", r.instrument("/games", r.withRateLimit("/games", rateLimitRead, rateWindowDefault, rateLimitKeyIP, r.handleGames)))
	r.mux.HandleFunc("/reports/compare", r.instrument("/reports/compare", r.withRateLimit("/reports/compare", rateLimitRead, rateWindowDefault, rateLimitKeyIP, r.handleCompare)))
	r.mux.HandleFunc("/ws/runs", r.instrument("/ws/runs", r.withRateLimit("/ws/runs", rateLimitStream, rateWindowRealtime, rateLimitKeyIP, r.handleRunsWS)))
	r.mux.HandleFunc("/events/runs", r.instrument("/events/runs", r.withRateLimit("/events/runs", rateLimitStream, rateWindowRealtime, rateLimitKeyIP, r.handleRunsSSE)))
	r.mux.HandleFunc("/", r.instrument("unmatched", func(w http.ResponseWriter, req *http.Request) { r.notFound(w) }))
}

type capturePayload struct {
	Capture    string    `json:"capture"`
	Frametimes []float64 `json:"frametimes"`
	Encoding   string    `json:"encoding"`
	Column     int       `json:"column"`
	Delimiter  string    `json:"delimiter"`
}

func (p capturePayload) input(name string) (benchmark.CaptureInput, error) {
	enc, err := frametime.ParseEncoding(p.Encoding)
	if err != nil {
		return benchmark.CaptureInput{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	delimiter, err := parseDelimiter(p.Delimiter)
	if err != nil {
		return benchmark.CaptureInput{}, err
	}
	if p.Column < 0 {
		return benchmark.CaptureInput{}, fmt.Errorf("%w: column must not be negative", domain.ErrInvalidInput)
	}
	in := benchmark.CaptureInput{
		Name:      name,
		Values:    p.Frametimes,
		Encoding:  enc,
		Column:    p.Column,
		Delimiter: delimiter,
	}
	if strings.TrimSpace(p.Capture) != "" {
		in.Reader = strings.NewReader(p.Capture)
	}
	return in, nil
}

func parseDelimiter(raw string) (rune, error) {
	switch raw {
	case "":
		return 0, nil
	case "\\t", "tab":
		return '\t', nil
	}
	runes := []rune(raw)
	if len(runes) != 1 {
		return 0, fmt.Errorf("%w: delimiter must be a single character", domain.ErrInvalidInput)
	}
	return runes[0], nil
}

// readCapture accepts either a JSON body or a raw capture file. Raw bodies
// take their parse options from the query string.
func (r *Router) readCapture(req *http.Request) (benchmark.CaptureInput, error) {
	if isJSON(req.Header.Get("Content-Type")) {
		var payload capturePayload
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			return benchmark.CaptureInput{}, decodeError(err)
		}
		return payload.input("request")
	}
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return benchmark.CaptureInput{}, err
	}
	query := req.URL.Query()
	payload := capturePayload{
		Capture:   string(body),
		Encoding:  query.Get("encoding"),
		Delimiter: query.Get("delimiter"),
	}
	if raw := query.Get("column"); raw != "" {
		column, err := strconv.Atoi(raw)
		if err != nil {
			return benchmark.CaptureInput{}, fmt.Errorf("%w: column must be an integer", domain.ErrInvalidInput)
		}
		payload.Column = column
	}
	return payload.input("request")
}

func isJSON(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json"
}

func decodeError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return err
	}
	return fmt.Errorf("%w: invalid JSON body", domain.ErrInvalidInput)
}

func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	req.Body = http.MaxBytesReader(w, req.Body, r.maxBody)
	in, err := r.readCapture(req)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	record, err := r.bench.Analyze(req.Context(), in)
	r.recordAnalysis("analyze", record, err)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"metrics": record,
		"targets": r.bench.TargetsFor(record),
	})
}

func (r *Router) handleSystems(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	req.Body = http.MaxBytesReader(w, req.Body, 64<<10)
	var payload struct {
		OS        string `json:"os"`
		Kernel    string `json:"kernel"`
		GPU       string `json:"gpu"`
		GPUDriver string `json:"gpu_driver"`
		CPU       string `json:"cpu"`
		RAMGB     int    `json:"ram_gb"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		r.writeServiceError(w, req, decodeError(err))
		return
	}
	reg, err := r.bench.RegisterSystem(req.Context(), domain.SystemInfo{
		OS:        payload.OS,
		Kernel:    payload.Kernel,
		GPU:       payload.GPU,
		GPUDriver: payload.GPUDriver,
		CPU:       payload.CPU,
		RAMGB:     payload.RAMGB,
	})
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"system": systemPayload(reg.System),
		"token":  reg.Token,
	})
}

func (r *Router) handleSystem(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	id := strings.Trim(strings.TrimPrefix(req.URL.Path, "/systems/"), "/")
	if id == "" || strings.Contains(id, "/") {
		r.notFound(w)
		return
	}
	system, err := r.bench.GetSystem(req.Context(), id)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, systemPayload(*system))
}

func (r *Router) handleRuns(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		r.withRateLimit("/runs", rateLimitRead, rateWindowDefault, rateLimitKeyIP, r.listRuns)(w, req)
	case http.MethodPost:
		r.handlerAuthRate("/runs", rateLimitSubmit, rateWindowDefault, r.submitRun)(w, req)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) listRuns(w http.ResponseWriter, req *http.Request) {
	query := req.URL.Query()
	filter := domain.RunFilter{
		GameID:     strings.TrimSpace(query.Get("game_id")),
		SystemID:   strings.TrimSpace(query.Get("system_id")),
		Resolution: strings.TrimSpace(query.Get("resolution")),
	}
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}
	runs, err := r.bench.ListRuns(req.Context(), filter)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	items := make([]map[string]any, 0, len(runs))
	for _, run := range runs {
		items = append(items, benchmark.RunPayload(run))
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": items})
}

func (r *Router) submitRun(w http.ResponseWriter, req *http.Request) {
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for run upload", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	req.Body = http.MaxBytesReader(w, req.Body, r.maxBody)
	var payload struct {
		capturePayload
		Game       string `json:"game"`
		SteamAppID int    `json:"steam_app_id"`
		Resolution string `json:"resolution"`
		Label      string `json:"label"`
		RecordedAt string `json:"recorded_at"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		r.writeServiceError(w, req, decodeError(err))
		return
	}
	in, err := payload.input("upload")
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	var recordedAt time.Time
	if raw := strings.TrimSpace(payload.RecordedAt); raw != "" {
		recordedAt, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "recorded_at must be RFC3339")
			return
		}
	}
	run, err := r.bench.Submit(req.Context(), info.SystemID, benchmark.SubmitInput{
		GameName:   payload.Game,
		SteamAppID: payload.SteamAppID,
		Resolution: payload.Resolution,
		Label:      payload.Label,
		RecordedAt: recordedAt,
		Capture:    in,
	})
	var record analysis.Record
	if run != nil {
		record = run.Metrics
	}
	r.recordAnalysis("upload", record, err)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	run.Frametimes = nil
	payloadOut := benchmark.RunPayload(*run)
	payloadOut["targets"] = r.bench.TargetsFor(run.Metrics)
	writeJSON(w, http.StatusCreated, payloadOut)
}

func (r *Router) handleRunSubroutes(w http.ResponseWriter, req *http.Request) {
	id := strings.Trim(strings.TrimPrefix(req.URL.Path, "/runs/"), "/")
	if id == "" || strings.Contains(id, "/") {
		r.notFound(w)
		return
	}
	switch req.Method {
	case http.MethodGet:
		r.withRateLimit("/runs/{id}", rateLimitRead, rateWindowDefault, rateLimitKeyIP, func(w http.ResponseWriter, req *http.Request) {
			r.getRun(w, req, id)
		})(w, req)
	case http.MethodDelete:
		r.handlerAuthRate("/runs/{id}", rateLimitSubmit, rateWindowDefault, func(w http.ResponseWriter, req *http.Request) {
			r.deleteRun(w, req, id)
		})(w, req)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) getRun(w http.ResponseWriter, req *http.Request, id string) {
	withFrametimes := queryBool(req.URL.Query().Get("frametimes"))
	run, err := r.bench.GetRun(req.Context(), id, withFrametimes)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	payload := benchmark.RunPayload(*run)
	payload["targets"] = r.bench.TargetsFor(run.Metrics)
	writeJSON(w, http.StatusOK, payload)
}

func (r *Router) deleteRun(w http.ResponseWriter, req *http.Request, id string) {
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	if err := r.bench.DeleteRun(req.Context(), info.SystemID, id); err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) handleGames(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	games, err := r.bench.ListGames(req.Context())
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	items := make([]map[string]any, 0, len(games))
	for _, game := range games {
		items = append(items, gamePayload(game))
	}
	writeJSON(w, http.StatusOK, map[string]any{"games": items})
}

func (r *Router) handleCompare(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	if r.reports == nil {
		writeError(w, http.StatusServiceUnavailable, "reports unavailable")
		return
	}
	query := req.URL.Query()
	rep, err := r.reports.Compare(req.Context(), query.Get("game_id"), query.Get("resolution"))
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	entries := make([]map[string]any, 0, len(rep.Entries))
	for _, entry := range rep.Entries {
		entries = append(entries, map[string]any{
			"system":       systemPayload(entry.System),
			"summary":      entry.Summary,
			"targets":      entry.Targets,
			"distribution": entry.Distribution,
			"runs":         entry.Runs,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"game":         gamePayload(rep.Game),
		"resolution":   rep.Resolution,
		"generated_at": rep.GeneratedAt.Format(time.RFC3339Nano),
		"entries":      entries,
	})
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	components := make(map[string]any)
	status := "ok"
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			status = "degraded"
			components["database"] = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
		} else {
			components["database"] = map[string]any{"status": "up"}
		}
	}
	if hub := r.bench.Hub(); hub != nil {
		components["stream"] = map[string]any{"subscribers": hub.Subscribers("")}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

func systemPayload(system domain.System) map[string]any {
	return map[string]any{
		"id":          system.ID,
		"fingerprint": system.Fingerprint,
		"os":          system.Info.OS,
		"kernel":      system.Info.Kernel,
		"gpu":         system.Info.GPU,
		"gpu_driver":  system.Info.GPUDriver,
		"cpu":         system.Info.CPU,
		"ram_gb":      system.Info.RAMGB,
		"created_at":  system.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func gamePayload(game domain.Game) map[string]any {
	payload := map[string]any{
		"id":         game.ID,
		"name":       game.Name,
		"created_at": game.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if game.SteamAppID > 0 {
		payload["steam_app_id"] = game.SteamAppID
	}
	return payload
}

func queryBool(raw string) bool {
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	return err == nil && value
}

// instrument logs every request and records its latency under route.
func (r *Router) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		duration := time.Since(start)
		r.recordRequestMetrics(req.Method, route, status, duration)

		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		if info, ok := authInfoFromContext(ctx); ok {
			fields = append(fields, "system_id", info.SystemID)
		}

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func (sr *statusRecorder) Push(target string, opts *http.PushOptions) error {
	if p, ok := sr.ResponseWriter.(http.Pusher); ok {
		return p.Push(target, opts)
	}
	return http.ErrNotSupported
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (r *Router) notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}
