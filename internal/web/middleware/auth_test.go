package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
)

func TestSessionManager_CreateAndGet(t *testing.T) {
	sm := NewSessionManager("test-secret")

	session := sm.CreateSession("alice", attendance.RoleUser)
	if session.ID == "" {
		t.Fatal("expected a session ID")
	}

	got := sm.GetSession(session.ID)
	if got == nil {
		t.Fatal("expected to retrieve the session")
	}
	if got.Username != "alice" || got.Role != attendance.RoleUser {
		t.Errorf("unexpected session contents: %+v", got)
	}
}

func TestSessionManager_ExpiredSession(t *testing.T) {
	sm := NewSessionManager("test-secret")
	session := sm.CreateSession("alice", attendance.RoleUser)
	session.ExpiresAt = time.Now().Add(-time.Minute)

	if got := sm.GetSession(session.ID); got != nil {
		t.Error("expired session must not be returned")
	}
}

func TestSessionManager_CookieRoundtrip(t *testing.T) {
	sm := NewSessionManager("test-secret")
	session := sm.CreateSession("boss", attendance.RoleAdmin)

	recorder := httptest.NewRecorder()
	sm.SetSessionCookie(recorder, session)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range recorder.Result().Cookies() {
		req.AddCookie(c)
	}

	got := sm.GetSessionFromRequest(req)
	if got == nil {
		t.Fatal("expected session from signed cookie")
	}
	if got.Username != "boss" {
		t.Errorf("expected username 'boss', got '%s'", got.Username)
	}
}

func TestSessionManager_TamperedCookieRejected(t *testing.T) {
	sm := NewSessionManager("test-secret")
	session := sm.CreateSession("boss", attendance.RoleAdmin)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{
		Name:  sessionCookieName,
		Value: session.ID + ".forged-signature",
	})

	if got := sm.GetSessionFromRequest(req); got != nil {
		t.Error("tampered cookie signature must be rejected")
	}
}

func TestRequireAuth(t *testing.T) {
	sm := NewSessionManager("test-secret")
	session := sm.CreateSession("alice", attendance.RoleUser)

	handler := RequireAuth(sm)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := GetSessionFromContext(r.Context())
		if s == nil || s.Username != "alice" {
			t.Error("expected session in request context")
		}
		w.WriteHeader(http.StatusOK)
	}))

	// Without credentials.
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))
	if recorder.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without session, got %d", recorder.Code)
	}

	// With a bearer token.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+session.ID)
	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Errorf("expected 200 with session, got %d", recorder.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// User role is rejected.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(SetSessionInContext(req.Context(), &Session{Username: "alice", Role: attendance.RoleUser}))
	recorder := httptest.NewRecorder()
	RequireAdmin(ok).ServeHTTP(recorder, req)
	if recorder.Code != http.StatusForbidden {
		t.Errorf("expected 403 for user role, got %d", recorder.Code)
	}

	// Admin passes.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(SetSessionInContext(req.Context(), &Session{Username: "boss", Role: attendance.RoleAdmin}))
	recorder = httptest.NewRecorder()
	RequireAdmin(ok).ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Errorf("expected 200 for admin role, got %d", recorder.Code)
	}
}
