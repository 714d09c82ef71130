package httpx

import (
	"net/http"
	"strings"
	"time"

	"github.com/I3lackEye/linuxgamebench/internal/ws"
)

func (r *Router) handleRunsWS(w http.ResponseWriter, req *http.Request) {
	hub := r.bench.Hub()
	if hub == nil {
		writeError(w, http.StatusServiceUnavailable, "run stream unavailable")
		return
	}
	gameID := strings.TrimSpace(req.URL.Query().Get("game_id"))
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	client := ws.NewClient(conn, r.logger)
	hub.Register(gameID, client)
	go func() {
		defer func() {
			hub.Unregister(gameID, client)
			client.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (r *Router) handleRunsSSE(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	hub := r.bench.Hub()
	if hub == nil {
		writeError(w, http.StatusServiceUnavailable, "run stream unavailable")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	gameID := strings.TrimSpace(req.URL.Query().Get("game_id"))

	headers := w.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	headers.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	client := ws.NewSSEClient(w, flusher, r.logger)
	hub.Register(gameID, client)
	defer func() {
		client.Close()
		hub.Unregister(gameID, client)
	}()

	ticker := time.NewTicker(sseHeartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-req.Context().Done():
			return
		case <-client.Done():
			return
		case <-ticker.C:
			if err := client.Heartbeat(); err != nil {
				return
			}
		}
	}
}
