package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/terraguess/api/internal/session"
)

// handleSessionEvents streams session snapshots over SSE. Every write
// to the session document becomes a `state` event; deletion ends the
// stream with a `deleted` event.
func handleSessionEvents(svc Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming not supported")
			return
		}

		// Subscribe before the initial read so no update can slip
		// between snapshot and stream.
		ch, unsubscribe := svc.Store.Subscribe(session.Collection, id)
		defer unsubscribe()

		// Any subscriber may repair stale players; the correction is
		// idempotent so concurrent watchers are safe.
		if _, err := svc.Presence.SelfHeal(r.Context(), id); err != nil {
			svc.Log.Warn("self heal on subscribe failed", "session", id, "error", err)
		}

		s, err := svc.Sessions.Get(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		snapshot, _ := json.Marshal(s)
		fmt.Fprintf(w, "event: state\ndata: %s\n\n", snapshot)
		flusher.Flush()

		ping := time.NewTicker(30 * time.Second)
		defer ping.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case data := <-ch:
				if data == nil {
					fmt.Fprintf(w, "event: deleted\ndata: {}\n\n")
					flusher.Flush()
					return
				}
				fmt.Fprintf(w, "event: state\ndata: %s\n\n", data)
				flusher.Flush()
			case <-ping.C:
				fmt.Fprintf(w, ": ping\n\n")
				flusher.Flush()
			}
		}
	}
}
