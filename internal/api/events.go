package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/seantiz/timelock/internal/model"
	"github.com/seantiz/timelock/internal/notify"
)

// listEventsResponse is the JSON response for GET /v1/events.
type listEventsResponse struct {
	Events []model.Notification `json:"events"`
	// Next is the cursor to pass as ?after= for the following page.
	Next int64 `json:"next"`
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		s.writeError(w, http.StatusServiceUnavailable, "journal_disabled", "notification journal is not configured")
		return
	}

	after := parseInt64Query(r, "after", 0)
	if after < 0 {
		after = 0
	}
	limit := parseIntQuery(r, "limit", notify.DefaultListLimit)
	if limit <= 0 || limit > notify.MaxListLimit {
		limit = notify.DefaultListLimit
	}

	events, err := s.journal.List(r.Context(), notify.ListOptions{
		After:       after,
		Limit:       limit,
		OperationID: strings.ToLower(r.URL.Query().Get("operation_id")),
	})
	if err != nil {
		s.logger.Error("list events", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal", "failed to list events")
		return
	}

	next := after
	if len(events) > 0 {
		next = events[len(events)-1].Seq
	}
	s.writeJSON(w, http.StatusOK, listEventsResponse{Events: events, Next: next})
}

func (s *Server) handleStreamEvents(w http.ResponseWriter, r *http.Request) {
	if s.broker == nil {
		s.writeError(w, http.StatusServiceUnavailable, "stream_disabled", "notification stream is not configured")
		return
	}

	// Set SSE headers.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Disable write timeout for long-lived SSE connections.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Error("set write deadline for SSE", "error", err)
	}

	// A closed broker returns a closed channel, so the loop below exits
	// immediately during shutdown.
	ch, unsub := s.broker.Subscribe(strings.ToLower(r.URL.Query().Get("operation_id")))
	defer unsub()

	w.WriteHeader(http.StatusOK)
	flusher, canFlush := w.(http.Flusher)
	if canFlush {
		flusher.Flush()
	}

	for {
		select {
		case n, ok := <-ch:
			if !ok {
				// Server shutting down; send explicit done event before closing.
				_ = writeSSEEvent(w, "done", "stream complete")
				if canFlush {
					flusher.Flush()
				}
				return
			}
			payload, err := json.Marshal(n)
			if err != nil {
				s.logger.Error("encode notification", "notification_id", n.ID, "error", err)
				continue
			}
			if err := writeSSEEvent(w, n.Action(), string(payload)); err != nil {
				return // Write failed (e.g. client gone).
			}
			if canFlush {
				flusher.Flush()
			}
		case <-r.Context().Done():
			return // Client disconnected.
		}
	}
}

// writeSSEData writes data as an SSE data event. Multi-line strings are
// split so that each segment gets its own "data:" prefix.
func writeSSEData(w http.ResponseWriter, data string) error {
	for seg := range strings.SplitSeq(data, "\n") {
		if _, err := fmt.Fprintf(w, "data: %s\n", seg); err != nil {
			return err
		}
	}
	// Blank line terminates the event.
	_, err := fmt.Fprint(w, "\n")
	return err
}

// writeSSEEvent writes a named SSE event (event: <type>\ndata: <data>\n\n).
func writeSSEEvent(w http.ResponseWriter, eventType, data string) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", eventType); err != nil {
		return err
	}
	return writeSSEData(w, data)
}
