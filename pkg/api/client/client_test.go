package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/I3lackEye/linuxgamebench/pkg/analysis"
)

func TestNewNormalisesBaseURL(t *testing.T) {
	cli, err := New(" localhost:4000/ ")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if cli.BaseURL() != "http://localhost:4000" {
		t.Fatalf("unexpected base url %q", cli.BaseURL())
	}
}

func TestAPIErrorUnwrapsToSentinels(t *testing.T) {
	cases := map[int]error{
		http.StatusUnauthorized:        ErrUnauthorized,
		http.StatusForbidden:           ErrUnauthorized,
		http.StatusNotFound:            ErrNotFound,
		http.StatusBadRequest:          ErrInvalidArgument,
		http.StatusUnprocessableEntity: ErrInvalidArgument,
	}
	for status, want := range cases {
		err := error(APIError{Status: status})
		if !errors.Is(err, want) {
			t.Fatalf("expected status %d to match %v", status, want)
		}
	}
	if errors.Is(APIError{Status: http.StatusInternalServerError}, ErrNotFound) {
		t.Fatalf("expected 500 to match no sentinel")
	}
}

func TestSubmitRunSendsTokenAndPayload(t *testing.T) {
	recorded := time.Date(2025, time.April, 3, 20, 15, 0, 0, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/runs" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("unexpected authorization header %q", got)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["game"] != "Hades II" || body["resolution"] != "FHD" || body["encoding"] != "timestamps" {
			t.Errorf("unexpected body %v", body)
		}
		if body["recorded_at"] != "2025-04-03T20:15:00Z" {
			t.Errorf("unexpected recorded_at %v", body["recorded_at"])
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"run-1","game_id":"game-1","system_id":"sys-1","resolution":"FHD","run_number":2,
			"recorded_at":"2025-04-03T20:15:00Z","created_at":"2025-04-03T20:16:00Z",
			"metrics":{"average_fps":144.2,"low_1_percent":101.5,"low_0_1_percent":null,"stutter_rating":"good","consistency_rating":"unavailable","sample_count":900},
			"targets":{"targets":[{"fps":60,"rating":"smooth","meets_target":true}],"recommended":60,"recommended_rating":"smooth"}}`))
	}))
	defer server.Close()

	cli, err := New(server.URL)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	run, err := cli.SubmitRun(context.Background(), "tok", Upload{
		Capture:    Capture{Capture: "0\n16\n", Encoding: "timestamps"},
		Game:       "Hades II",
		Resolution: "FHD",
		RecordedAt: recorded,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if run.ID != "run-1" || run.RunNumber != 2 {
		t.Fatalf("unexpected run %+v", run)
	}
	if run.Metrics.Stutter != analysis.RatingGood || run.Metrics.Consistency != analysis.RatingUnavailable {
		t.Fatalf("unexpected ratings %v/%v", run.Metrics.Stutter, run.Metrics.Consistency)
	}
	if run.Metrics.Low01.Available() {
		t.Fatalf("expected 0.1%% low unavailable")
	}
	if run.Targets == nil || run.Targets.Recommended != 60 {
		t.Fatalf("unexpected targets %+v", run.Targets)
	}
}

func TestErrorResponsesCarryServerMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"repository: not found"}`))
	}))
	defer server.Close()

	cli, _ := New(server.URL)
	_, err := cli.Compare(context.Background(), "missing", "FHD")
	var apiErr APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Message != "repository: not found" || !errors.Is(err, ErrNotFound) {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestListRunsEncodesQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("game_id") != "g1" || q.Get("resolution") != "WQHD" || q.Get("limit") != "5" || q.Has("system_id") {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"runs":[{"id":"a"},{"id":"b"}]}`))
	}))
	defer server.Close()

	cli, _ := New(server.URL)
	runs, err := cli.ListRuns(context.Background(), RunQuery{GameID: "g1", Resolution: "WQHD", Limit: 5})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 2 || runs[1].ID != "b" {
		t.Fatalf("unexpected runs %+v", runs)
	}
}

func TestDeleteRunAcceptsNoContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/runs/run-9" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	cli, _ := New(server.URL)
	if err := cli.DeleteRun(context.Background(), "tok", "run-9"); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestGetSystem(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/systems/sys-1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"sys-1","fingerprint":"ff00","gpu":"Intel Arc A770"}`))
	}))
	defer server.Close()
	cli, err := New(server.URL)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	system, err := cli.GetSystem(context.Background(), "sys-1")
	if err != nil {
		t.Fatalf("get system: %v", err)
	}
	if system.ID != "sys-1" || system.Fingerprint != "ff00" || system.GPU != "Intel Arc A770" {
		t.Fatalf("unexpected system %+v", system)
	}
}
