package benchmark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/I3lackEye/linuxgamebench/internal/domain"
	"github.com/I3lackEye/linuxgamebench/internal/repository"
	"github.com/I3lackEye/linuxgamebench/internal/repository/memory"
	"github.com/I3lackEye/linuxgamebench/internal/ws"
	"github.com/I3lackEye/linuxgamebench/pkg/analysis"
	"github.com/I3lackEye/linuxgamebench/pkg/frametime"
)

type testSubscriber struct {
	ch chan []byte
}

func newTestSubscriber() *testSubscriber {
	return &testSubscriber{ch: make(chan []byte, 4)}
}

func (s *testSubscriber) Send(payload []byte) error {
	s.ch <- payload
	return nil
}

func (s *testSubscriber) Close() {}

func newTestService(t *testing.T) (*Service, *memory.Repository, *ws.Hub) {
	t.Helper()
	repo := memory.New()
	hub := ws.NewHub()
	t.Cleanup(hub.Close)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := New(repo, repo, repo, hub, logger, Config{TokenSecret: "test-secret", TokenTTL: time.Hour})

	base := time.Date(2025, time.June, 1, 18, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }
	var mu sync.Mutex
	seq := 0
	svc.newID = func() string {
		mu.Lock()
		defer mu.Unlock()
		seq++
		return fmt.Sprintf("id-%d", seq)
	}
	return svc, repo, hub
}

func captureText(n int, d float64) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "%g\n", d)
	}
	return b.String()
}

var testSystem = domain.SystemInfo{OS: "Fedora 40", GPU: "AMD Radeon RX 6800", CPU: "AMD Ryzen 5 5600X", RAMGB: 32}

func TestAnalyzeParsesAndCaches(t *testing.T) {
	svc, _, _ := newTestService(t)
	in := CaptureInput{Reader: strings.NewReader("frametime\n" + captureText(100, 16.6))}
	rec, err := svc.Analyze(context.Background(), in)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if rec.SampleCount != 100 || rec.Discarded != 1 {
		t.Fatalf("expected 100 samples and 1 discarded, got %d/%d", rec.SampleCount, rec.Discarded)
	}
	if svc.cache.Len() != 1 {
		t.Fatalf("expected one cached record, got %d", svc.cache.Len())
	}

	again, err := svc.Analyze(context.Background(), CaptureInput{Reader: strings.NewReader("frametime\n" + captureText(100, 16.6))})
	if err != nil {
		t.Fatalf("analyze again: %v", err)
	}
	if again.AverageFPS != rec.AverageFPS || svc.cache.Len() != 1 {
		t.Fatalf("expected cached result to be reused")
	}
}

func TestAnalyzeRequiresInput(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.Analyze(context.Background(), CaptureInput{}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	_, err := svc.Analyze(context.Background(), CaptureInput{Values: []float64{0, -1}})
	if !errors.Is(err, frametime.ErrNoValidSamples) {
		t.Fatalf("expected no valid samples, got %v", err)
	}
}

func TestAnalyzeTimestampValues(t *testing.T) {
	svc, _, _ := newTestService(t)
	values := make([]float64, 61)
	for i := range values {
		values[i] = float64(i) * 10
	}
	rec, err := svc.Analyze(context.Background(), CaptureInput{Values: values, Encoding: frametime.Timestamps})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if rec.SampleCount != 60 || rec.AverageFPS != 100 {
		t.Fatalf("expected 60 frames at 100 fps, got %d at %v", rec.SampleCount, rec.AverageFPS)
	}
}

func TestAnalyzeBatchKeepsOrderAndErrors(t *testing.T) {
	svc, _, _ := newTestService(t)
	inputs := []CaptureInput{
		{Name: "a.csv", Reader: strings.NewReader(captureText(50, 16.6))},
		{Name: "empty.csv", Reader: strings.NewReader("\n\n")},
		{Name: "b.csv", Reader: strings.NewReader(captureText(50, 8.3))},
	}
	results, err := svc.AnalyzeBatch(context.Background(), inputs, 2)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, in := range inputs {
		if results[i].Name != in.Name {
			t.Fatalf("result %d: expected %s, got %s", i, in.Name, results[i].Name)
		}
	}
	if results[0].Err != nil || results[2].Err != nil {
		t.Fatalf("unexpected errors %v %v", results[0].Err, results[2].Err)
	}
	if !errors.Is(results[1].Err, frametime.ErrNoValidSamples) {
		t.Fatalf("expected no valid samples for empty capture, got %v", results[1].Err)
	}
	if results[2].Record.AverageFPS <= results[0].Record.AverageFPS {
		t.Fatalf("expected faster capture to have higher fps")
	}
}

func TestAnalyzeBatchStopsOnCancel(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.AnalyzeBatch(ctx, []CaptureInput{{Values: []float64{16.6}}}, 1)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}

func TestRegisterSystemIsIdempotentPerFingerprint(t *testing.T) {
	svc, _, _ := newTestService(t)
	first, err := svc.RegisterSystem(context.Background(), testSystem)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if first.Token == "" || first.System.Fingerprint != testSystem.Fingerprint() {
		t.Fatalf("unexpected registration %+v", first)
	}
	updated := testSystem
	updated.Kernel = "6.10"
	second, err := svc.RegisterSystem(context.Background(), updated)
	if err != nil {
		t.Fatalf("register again: %v", err)
	}
	if second.System.ID != first.System.ID {
		t.Fatalf("expected same system id, got %s and %s", first.System.ID, second.System.ID)
	}
	claims, err := svc.Authorize(second.Token)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if claims.SystemID != first.System.ID {
		t.Fatalf("expected token for %s, got %s", first.System.ID, claims.SystemID)
	}
	if _, err := svc.Authorize("garbage"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if _, err := svc.RegisterSystem(context.Background(), domain.SystemInfo{OS: "Linux"}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestSubmitStoresAndBroadcasts(t *testing.T) {
	svc, repo, hub := newTestService(t)
	reg, err := svc.RegisterSystem(context.Background(), testSystem)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	subscriber := newTestSubscriber()
	hub.Register("", subscriber)

	run, err := svc.Submit(context.Background(), reg.System.ID, SubmitInput{
		GameName:   "  Baldur's   Gate 3 ",
		Resolution: "2560x1440",
		Label:      " ultra ",
		Capture:    CaptureInput{Reader: strings.NewReader(captureText(120, 16.6))},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if run.Resolution != "WQHD" || run.Label != "ultra" || run.RunNumber != 1 {
		t.Fatalf("unexpected run %+v", run)
	}
	if run.Metrics.SampleCount != 120 || run.RecordedAt != svc.now().UTC() {
		t.Fatalf("unexpected metrics or timestamp %+v", run)
	}
	stored, err := repo.GetRun(context.Background(), run.ID, true)
	if err != nil {
		t.Fatalf("get stored run: %v", err)
	}
	if len(stored.Frametimes) != 120 {
		t.Fatalf("expected frametimes to be stored, got %d", len(stored.Frametimes))
	}
	games, _ := svc.ListGames(context.Background())
	if len(games) != 1 || games[0].Name != "Baldur's Gate 3" {
		t.Fatalf("expected normalized game name, got %+v", games)
	}

	select {
	case payload := <-subscriber.ch:
		var msg map[string]any
		if err := json.Unmarshal(payload, &msg); err != nil {
			t.Fatalf("unmarshal broadcast: %v", err)
		}
		if msg["id"] != run.ID || msg["game"] != "Baldur's Gate 3" {
			t.Fatalf("unexpected broadcast %v", msg)
		}
		if _, ok := msg["frametimes"]; ok {
			t.Fatalf("expected broadcast to omit frametimes")
		}
	case <-time.After(time.Second):
		t.Fatal("expected run broadcast")
	}

	second, err := svc.Submit(context.Background(), reg.System.ID, SubmitInput{
		GameName:   "Baldur's Gate 3",
		Resolution: "WQHD",
		Capture:    CaptureInput{Values: []float64{16.6, 16.7, 16.8}},
	})
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if second.RunNumber != 2 || !second.Metrics.HasWarning(analysis.WarningInsufficientSamples) {
		t.Fatalf("expected degraded second run, got %+v", second)
	}
}

func TestSubmitValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	reg, err := svc.RegisterSystem(context.Background(), testSystem)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	capture := CaptureInput{Values: []float64{16.6}}
	if _, err := svc.Submit(context.Background(), reg.System.ID, SubmitInput{Resolution: "FHD", Capture: capture}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for missing game, got %v", err)
	}
	if _, err := svc.Submit(context.Background(), reg.System.ID, SubmitInput{GameName: "x", Capture: capture}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for missing resolution, got %v", err)
	}
	if _, err := svc.Submit(context.Background(), "unknown", SubmitInput{GameName: "x", Resolution: "FHD", Capture: capture}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized for unknown system, got %v", err)
	}
	if _, err := svc.Submit(context.Background(), reg.System.ID, SubmitInput{GameName: "x", Resolution: "FHD", Capture: CaptureInput{Values: []float64{-1}}}); !errors.Is(err, frametime.ErrNoValidSamples) {
		t.Fatalf("expected no valid samples, got %v", err)
	}
}

func TestDeleteRunRequiresOwner(t *testing.T) {
	svc, _, _ := newTestService(t)
	owner, _ := svc.RegisterSystem(context.Background(), testSystem)
	other := testSystem
	other.GPU = "NVIDIA GeForce RTX 3080"
	intruder, _ := svc.RegisterSystem(context.Background(), other)

	run, err := svc.Submit(context.Background(), owner.System.ID, SubmitInput{GameName: "Hades", Resolution: "FHD", Capture: CaptureInput{Values: []float64{8, 8, 8}}})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := svc.DeleteRun(context.Background(), intruder.System.ID, run.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if err := svc.DeleteRun(context.Background(), owner.System.ID, run.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.GetRun(context.Background(), run.ID, false); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected run to be gone, got %v", err)
	}
}

func TestListRunsClampsLimit(t *testing.T) {
	svc, _, _ := newTestService(t)
	reg, _ := svc.RegisterSystem(context.Background(), testSystem)
	for i := 0; i < 3; i++ {
		if _, err := svc.Submit(context.Background(), reg.System.ID, SubmitInput{GameName: "Hades", Resolution: "1920x1080", Capture: CaptureInput{Values: []float64{8}}}); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	runs, err := svc.ListRuns(context.Background(), domain.RunFilter{Resolution: "1920x1080", Limit: 2, WithFrametimes: true})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].Frametimes != nil {
		t.Fatalf("expected listing to omit frametimes")
	}
}

func TestRegisterSystemWithoutSecretStoresNothing(t *testing.T) {
	repo := memory.New()
	svc := New(repo, repo, repo, nil, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{})
	svc.newID = func() string { return "sys-1" }
	if _, err := svc.RegisterSystem(context.Background(), testSystem); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if _, err := repo.GetSystemByID(context.Background(), "sys-1"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected system not stored, got %v", err)
	}
}

func TestGetSystem(t *testing.T) {
	svc, _, _ := newTestService(t)
	reg, err := svc.RegisterSystem(context.Background(), testSystem)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	system, err := svc.GetSystem(context.Background(), reg.System.ID)
	if err != nil {
		t.Fatalf("get system: %v", err)
	}
	if system.Fingerprint != testSystem.Fingerprint() {
		t.Fatalf("expected fingerprint %s, got %s", testSystem.Fingerprint(), system.Fingerprint)
	}
	if _, err := svc.GetSystem(context.Background(), ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if _, err := svc.GetSystem(context.Background(), "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStatelessServiceRejectsStorageCalls(t *testing.T) {
	svc := New(nil, nil, nil, nil, nil, Config{})
	if _, err := svc.ListGames(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured without storage, got %v", err)
	}
	if _, err := svc.Analyze(context.Background(), CaptureInput{Values: []float64{16.6}}); err != nil {
		t.Fatalf("expected stateless analysis to work, got %v", err)
	}
}

func TestChanged(t *testing.T) {
	fp := testSystem.Fingerprint()
	if Changed(fp, testSystem) {
		t.Fatalf("expected unchanged system")
	}
	moved := testSystem
	moved.CPU = "AMD Ryzen 7 7700X"
	if !Changed(fp, moved) {
		t.Fatalf("expected cpu swap to be detected")
	}
}
