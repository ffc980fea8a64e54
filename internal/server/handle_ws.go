package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"nhooyr.io/websocket"

	"github.com/terraguess/api/internal/geo"
	"github.com/terraguess/api/internal/session"
)

// handleSessionSocket is the bidirectional counterpart of the SSE
// stream: outbound session snapshots, inbound heartbeats and camera
// position updates.
func handleSessionSocket(svc Services) http.HandlerFunc {
	type inbound struct {
		Type     string      `json:"type"`
		Position *geo.LatLng `json:"position,omitempty"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		userID := r.URL.Query().Get("userId")
		if userID == "" {
			writeError(w, http.StatusBadRequest, "userId query parameter required")
			return
		}

		s, err := svc.Sessions.Get(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			svc.Log.Error("websocket accept failed", "error", err)
			return
		}
		defer conn.CloseNow()

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Hour)
		defer cancel()

		ch, unsubscribe := svc.Store.Subscribe(session.Collection, id)
		defer unsubscribe()

		go func() {
			defer cancel()
			for {
				_, msg, err := conn.Read(ctx)
				if err != nil {
					svc.Log.Debug("websocket read ended", "error", err)
					return
				}

				var in inbound
				if err := json.Unmarshal(msg, &in); err != nil {
					continue
				}
				switch in.Type {
				case "heartbeat":
					if err := svc.Sessions.Heartbeat(ctx, id, userID); err != nil {
						svc.Log.Debug("heartbeat failed", "session", id, "error", err)
						return
					}
				case "position":
					if in.Position == nil {
						continue
					}
					if err := svc.Sessions.UpdatePosition(ctx, id, userID, *in.Position); err != nil {
						svc.Log.Debug("position update failed", "session", id, "error", err)
					}
				}
			}
		}()

		snapshot, _ := json.Marshal(s)
		if err := conn.Write(ctx, websocket.MessageText, snapshot); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case data := <-ch:
				if data == nil {
					conn.Close(websocket.StatusNormalClosure, "session ended")
					return
				}
				if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
					svc.Log.Debug("websocket write failed", "error", err)
					return
				}
			}
		}
	}
}
