package ws

import (
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

type recordingSubscriber struct {
	mu       sync.Mutex
	payloads []string
	failing  bool
	closed   bool
	received chan struct{}
}

func newRecordingSubscriber() *recordingSubscriber {
	return &recordingSubscriber{received: make(chan struct{}, 16)}
}

func (s *recordingSubscriber) Send(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errors.New("broken pipe")
	}
	s.payloads = append(s.payloads, string(payload))
	s.received <- struct{}{}
	return nil
}

func (s *recordingSubscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *recordingSubscriber) snapshot() ([]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.payloads...), s.closed
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for delivery")
	}
}

func TestHubDeliversToGameAndAllSubscribers(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	game := newRecordingSubscriber()
	other := newRecordingSubscriber()
	all := newRecordingSubscriber()
	hub.Register("game-1", game)
	hub.Register("game-2", other)
	hub.Register("", all)

	hub.Broadcast("game-1", []byte(`{"id":"run-1"}`))
	waitFor(t, game.received)
	waitFor(t, all.received)

	if got, _ := game.snapshot(); len(got) != 1 || got[0] != `{"id":"run-1"}` {
		t.Fatalf("unexpected game payloads %v", got)
	}
	if got, _ := other.snapshot(); len(got) != 0 {
		t.Fatalf("expected other game to receive nothing, got %v", got)
	}
	if n := hub.Subscribers(""); n != 1 {
		t.Fatalf("expected 1 wildcard subscriber, got %d", n)
	}
}

func TestHubDropsFailingSubscriber(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	sub := newRecordingSubscriber()
	sub.failing = true
	hub.Register("game-1", sub)
	hub.Broadcast("game-1", []byte("x"))

	if n := hub.Subscribers("game-1"); n != 0 {
		t.Fatalf("expected failing subscriber to be removed, got %d", n)
	}
	if _, closed := sub.snapshot(); !closed {
		t.Fatalf("expected failing subscriber to be closed")
	}
}

func TestHubUnregisterAndClose(t *testing.T) {
	hub := NewHub()
	sub := newRecordingSubscriber()
	hub.Register("game-1", sub)
	hub.Unregister("game-1", sub)
	if n := hub.Subscribers("game-1"); n != 0 {
		t.Fatalf("expected no subscribers, got %d", n)
	}

	kept := newRecordingSubscriber()
	hub.Register("game-1", kept)
	hub.Close()
	hub.Broadcast("game-1", []byte("ignored"))
	if n := hub.Subscribers("game-1"); n != 0 {
		t.Fatalf("expected closed hub to report zero, got %d", n)
	}
}

func TestSSEClientFramesEvents(t *testing.T) {
	rec := httptest.NewRecorder()
	client := NewSSEClient(rec, rec, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := client.Send([]byte(`{"id":"run-1"}`)); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := client.Heartbeat(); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "event: run\ndata: {\"id\":\"run-1\"}\n\n") || !strings.HasSuffix(body, ": ping\n\n") {
		t.Fatalf("unexpected stream %q", body)
	}
	client.Close()
	select {
	case <-client.Done():
	default:
		t.Fatalf("expected done channel to be closed")
	}
	if err := client.Send([]byte("late")); err != io.EOF {
		t.Fatalf("expected EOF after close, got %v", err)
	}
}
