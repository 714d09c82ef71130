package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/I3lackEye/linuxgamebench/pkg/analysis"
)

var (
	// ErrUnauthorized matches 401 and 403 responses.
	ErrUnauthorized = errors.New("client: unauthorized")
	// ErrNotFound matches 404 responses.
	ErrNotFound = errors.New("client: not found")
	// ErrInvalidArgument matches 400 and 422 responses.
	ErrInvalidArgument = errors.New("client: invalid argument")
)

// Client provides typed access to the benchmark API for the CLI.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// New constructs a Client pointing at the provided API base URL.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = "http://localhost:4000"
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	cli := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// BaseURL reports the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// APIError represents an error response from the API.
type APIError struct {
	Status  int
	Message string
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed with status %d", e.Status)
	}
	return fmt.Sprintf("api request failed (%d): %s", e.Status, e.Message)
}

// Unwrap maps the status onto the package sentinels.
func (e APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ErrInvalidArgument
	default:
		return nil
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any, token string, v any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	endpoint := c.baseURL + path
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(token) != "" {
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		msg := extractError(resp.Body)
		return APIError{Status: resp.StatusCode, Message: msg}
	}

	if v == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func extractError(body io.Reader) string {
	if body == nil {
		return ""
	}
	var payload struct {
		Error string `json:"error"`
	}
	data, err := io.ReadAll(body)
	if err != nil || len(data) == 0 {
		return ""
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return strings.TrimSpace(string(data))
	}
	return strings.TrimSpace(payload.Error)
}

// Health reports the server status string.
func (c *Client) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/healthz", nil, "", &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// Capture is a frametime capture sent as text or as values.
type Capture struct {
	Capture    string    `json:"capture,omitempty"`
	Frametimes []float64 `json:"frametimes,omitempty"`
	Encoding   string    `json:"encoding,omitempty"`
	Column     int       `json:"column,omitempty"`
}

// Analysis is the server's result for one capture.
type Analysis struct {
	Metrics analysis.Record           `json:"metrics"`
	Targets analysis.TargetEvaluation `json:"targets"`
}

// Analyze runs a capture through the server's engine without storing it.
func (c *Client) Analyze(ctx context.Context, capture Capture) (Analysis, error) {
	var resp Analysis
	if err := c.do(ctx, http.MethodPost, "/analyze", capture, "", &resp); err != nil {
		return Analysis{}, err
	}
	return resp, nil
}

// SystemInfo describes the machine a capture was recorded on.
type SystemInfo struct {
	OS        string `json:"os"`
	Kernel    string `json:"kernel,omitempty"`
	GPU       string `json:"gpu"`
	GPUDriver string `json:"gpu_driver,omitempty"`
	CPU       string `json:"cpu"`
	RAMGB     int    `json:"ram_gb"`
}

// System is a registered machine.
type System struct {
	SystemInfo
	ID          string    `json:"id"`
	Fingerprint string    `json:"fingerprint"`
	CreatedAt   time.Time `json:"created_at"`
}

// Registration carries the system and its upload token.
type Registration struct {
	System System `json:"system"`
	Token  string `json:"token"`
}

// RegisterSystem registers hardware and returns an upload token.
func (c *Client) RegisterSystem(ctx context.Context, info SystemInfo) (Registration, error) {
	var resp Registration
	if err := c.do(ctx, http.MethodPost, "/systems", info, "", &resp); err != nil {
		return Registration{}, err
	}
	return resp, nil
}

// GetSystem fetches a registered system.
func (c *Client) GetSystem(ctx context.Context, id string) (System, error) {
	var system System
	if err := c.do(ctx, http.MethodGet, "/systems/"+url.PathEscape(id), nil, "", &system); err != nil {
		return System{}, err
	}
	return system, nil
}

// Upload is a run submission.
type Upload struct {
	Capture
	Game       string    `json:"game"`
	SteamAppID int       `json:"steam_app_id,omitempty"`
	Resolution string    `json:"resolution"`
	Label      string    `json:"label,omitempty"`
	RecordedAt time.Time `json:"-"`
}

// MarshalJSON omits recorded_at when unset.
func (u Upload) MarshalJSON() ([]byte, error) {
	type alias Upload
	payload := struct {
		alias
		RecordedAt string `json:"recorded_at,omitempty"`
	}{alias: alias(u)}
	if !u.RecordedAt.IsZero() {
		payload.RecordedAt = u.RecordedAt.UTC().Format(time.RFC3339)
	}
	return json.Marshal(payload)
}

// Run is a stored run.
type Run struct {
	ID         string                     `json:"id"`
	GameID     string                     `json:"game_id"`
	Game       string                     `json:"game,omitempty"`
	SystemID   string                     `json:"system_id"`
	Resolution string                     `json:"resolution"`
	Label      string                     `json:"label"`
	RunNumber  int                        `json:"run_number"`
	RecordedAt time.Time                  `json:"recorded_at"`
	CreatedAt  time.Time                  `json:"created_at"`
	Metrics    analysis.Record            `json:"metrics"`
	Targets    *analysis.TargetEvaluation `json:"targets,omitempty"`
	Frametimes []float64                  `json:"frametimes,omitempty"`
}

// SubmitRun uploads a run with the system's token.
func (c *Client) SubmitRun(ctx context.Context, token string, upload Upload) (Run, error) {
	var run Run
	if err := c.do(ctx, http.MethodPost, "/runs", upload, token, &run); err != nil {
		return Run{}, err
	}
	return run, nil
}

// RunQuery filters ListRuns. Empty fields are ignored.
type RunQuery struct {
	GameID     string
	SystemID   string
	Resolution string
	Limit      int
}

// ListRuns returns runs newest first.
func (c *Client) ListRuns(ctx context.Context, q RunQuery) ([]Run, error) {
	values := url.Values{}
	if q.GameID != "" {
		values.Set("game_id", q.GameID)
	}
	if q.SystemID != "" {
		values.Set("system_id", q.SystemID)
	}
	if q.Resolution != "" {
		values.Set("resolution", q.Resolution)
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	path := "/runs"
	if encoded := values.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var resp struct {
		Runs []Run `json:"runs"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, "", &resp); err != nil {
		return nil, err
	}
	return resp.Runs, nil
}

// GetRun fetches one run, optionally with its frametimes.
func (c *Client) GetRun(ctx context.Context, id string, withFrametimes bool) (Run, error) {
	path := "/runs/" + url.PathEscape(id)
	if withFrametimes {
		path += "?frametimes=true"
	}
	var run Run
	if err := c.do(ctx, http.MethodGet, path, nil, "", &run); err != nil {
		return Run{}, err
	}
	return run, nil
}

// DeleteRun removes a run owned by the token's system.
func (c *Client) DeleteRun(ctx context.Context, token, id string) error {
	return c.do(ctx, http.MethodDelete, "/runs/"+url.PathEscape(id), nil, token, nil)
}

// Game is a benchmarked title.
type Game struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	SteamAppID int       `json:"steam_app_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ListGames returns every known game.
func (c *Client) ListGames(ctx context.Context) ([]Game, error) {
	var resp struct {
		Games []Game `json:"games"`
	}
	if err := c.do(ctx, http.MethodGet, "/games", nil, "", &resp); err != nil {
		return nil, err
	}
	return resp.Games, nil
}

// Distribution holds pooled frametime percentiles in milliseconds.
type Distribution struct {
	Frames int             `json:"frames"`
	P50MS  analysis.Metric `json:"p50_ms"`
	P90MS  analysis.Metric `json:"p90_ms"`
	P99MS  analysis.Metric `json:"p99_ms"`
	P999MS analysis.Metric `json:"p99_9_ms"`
}

// CompareEntry is one system's aggregate in a comparison.
type CompareEntry struct {
	System       System                    `json:"system"`
	Summary      analysis.Summary          `json:"summary"`
	Targets      analysis.TargetEvaluation `json:"targets"`
	Distribution Distribution              `json:"distribution"`
}

// Comparison ranks systems for a game and resolution.
type Comparison struct {
	Game        Game           `json:"game"`
	Resolution  string         `json:"resolution"`
	GeneratedAt time.Time      `json:"generated_at"`
	Entries     []CompareEntry `json:"entries"`
}

// Compare fetches the per-system comparison for a game at a resolution.
func (c *Client) Compare(ctx context.Context, gameID, resolution string) (Comparison, error) {
	values := url.Values{}
	values.Set("game_id", gameID)
	values.Set("resolution", resolution)
	var resp Comparison
	if err := c.do(ctx, http.MethodGet, "/reports/compare?"+values.Encode(), nil, "", &resp); err != nil {
		return Comparison{}, err
	}
	return resp, nil
}
