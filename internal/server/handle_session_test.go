package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/terraguess/api/internal/geo"
	"github.com/terraguess/api/internal/session"
)

func createSession(t *testing.T, r *chi.Mux, req CreateSessionRequest) CreateSessionResponse {
	t.Helper()
	body, _ := json.Marshal(req)
	httpReq := httptest.NewRequest(http.MethodPost, "/api/sessions", bytes.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httpReq)

	if w.Code != http.StatusCreated {
		t.Fatalf("create session: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp CreateSessionResponse
	json.NewDecoder(w.Body).Decode(&resp)
	return resp
}

func TestSessionCreateAndGet(t *testing.T) {
	r, _ := newTestRouter(t)

	created := createSession(t, r, CreateSessionRequest{
		UserID: "u1", Username: "alice", Difficulty: "normal", GameType: "classic",
	})
	if created.SessionID == "" {
		t.Fatal("missing session id")
	}
	if len(created.ShareCode) != 6 {
		t.Fatalf("share code = %q, want 6 characters", created.ShareCode)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/"+created.SessionID, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var s session.Session
	json.NewDecoder(w.Body).Decode(&s)
	if s.Status != session.StatusWaiting || s.Host != "u1" {
		t.Errorf("unexpected session: status=%s host=%s", s.Status, s.Host)
	}
	if _, in := s.Players["u1"]; !in {
		t.Error("creator missing from players")
	}
}

func TestSessionCreateValidation(t *testing.T) {
	r, _ := newTestRouter(t)

	cases := []CreateSessionRequest{
		{Username: "alice"},
		{UserID: "u1"},
		{UserID: "u1", Username: "alice", Difficulty: "extreme"},
		{UserID: "u1", Username: "alice", GameType: "speedrun"},
	}
	for i, c := range cases {
		body, _ := json.Marshal(c)
		req := httptest.NewRequest(http.MethodPost, "/api/sessions", bytes.NewReader(body))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("case %d: expected 400, got %d", i, w.Code)
		}
	}
}

func TestSessionNotFound(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/nope", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestSessionJoinFlow(t *testing.T) {
	r, _ := newTestRouter(t)

	created := createSession(t, r, CreateSessionRequest{
		UserID: "u1", Username: "alice",
	})

	body, _ := json.Marshal(JoinSessionRequest{UserID: "u2", Username: "bob"})
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+created.SessionID+"/join", bytes.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("join: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var s session.Session
	json.NewDecoder(w.Body).Decode(&s)
	if s.PlayerCount != 2 {
		t.Errorf("playerCount = %d, want 2", s.PlayerCount)
	}
	if _, in := s.Players["u2"]; !in {
		t.Error("joiner missing from players")
	}

	// A third player bounces off a full 2-player session.
	body, _ = json.Marshal(JoinSessionRequest{UserID: "u3", Username: "carol"})
	req = httptest.NewRequest(http.MethodPost, "/api/sessions/"+created.SessionID+"/join", bytes.NewReader(body))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Errorf("full session: expected 409, got %d", w.Code)
	}
}

func TestSessionByCode(t *testing.T) {
	r, _ := newTestRouter(t)

	created := createSession(t, r, CreateSessionRequest{UserID: "u1", Username: "alice"})

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/code/"+created.ShareCode, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp SessionLookupResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.SessionID != created.SessionID {
		t.Errorf("sessionId = %q, want %q", resp.SessionID, created.SessionID)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/sessions/code/ZZZZZZ", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown code: expected 404, got %d", w.Code)
	}
}

func TestSessionGuessBeforePlaying(t *testing.T) {
	r, _ := newTestRouter(t)

	created := createSession(t, r, CreateSessionRequest{UserID: "u1", Username: "alice"})

	body, _ := json.Marshal(GuessRequest{UserID: "u1", Position: geo.LatLng{Lat: 1, Lng: 1}})
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+created.SessionID+"/guess", bytes.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("guess while waiting: expected 409, got %d", w.Code)
	}
}

func TestSessionReadyGhostForbidden(t *testing.T) {
	r, _ := newTestRouter(t)

	created := createSession(t, r, CreateSessionRequest{UserID: "u1", Username: "alice"})

	body, _ := json.Marshal(ReadyRequest{UserID: "ghost", Ready: true})
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+created.SessionID+"/ready", bytes.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
}

func TestSessionStartNotHost(t *testing.T) {
	r, _ := newTestRouter(t)

	created := createSession(t, r, CreateSessionRequest{UserID: "u1", Username: "alice"})

	body, _ := json.Marshal(JoinSessionRequest{UserID: "u2", Username: "bob"})
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+created.SessionID+"/join", bytes.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("join: %d", w.Code)
	}

	body, _ = json.Marshal(playerRequest{UserID: "u2"})
	req = httptest.NewRequest(http.MethodPost, "/api/sessions/"+created.SessionID+"/start", bytes.NewReader(body))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("non-host start: expected 403, got %d", w.Code)
	}
}

func TestSessionHeartbeatAndLeave(t *testing.T) {
	r, _ := newTestRouter(t)

	created := createSession(t, r, CreateSessionRequest{UserID: "u1", Username: "alice"})

	body, _ := json.Marshal(playerRequest{UserID: "u1"})
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+created.SessionID+"/heartbeat", bytes.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("heartbeat: expected 204, got %d", w.Code)
	}

	body, _ = json.Marshal(playerRequest{UserID: "u1"})
	req = httptest.NewRequest(http.MethodPost, "/api/sessions/"+created.SessionID+"/leave", bytes.NewReader(body))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("leave: expected 204, got %d", w.Code)
	}

	// The last player leaving deletes the session.
	req = httptest.NewRequest(http.MethodGet, "/api/sessions/"+created.SessionID, nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("after last leave: expected 404, got %d", w.Code)
	}
}
