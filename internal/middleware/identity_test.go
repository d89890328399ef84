package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/roomgate/internal/model"
)

func identityProbe(t *testing.T) (http.Handler, *string) {
	t.Helper()
	var got string
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	return h, &got
}

func TestIdentityDevHeader(t *testing.T) {
	probe, got := identityProbe(t)
	h := Identity("", nil)(probe)

	req := httptest.NewRequest(http.MethodGet, "/api/rooms/r1", nil)
	req.Header.Set("X-User-Id", "alice")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if *got != "alice" {
		t.Fatalf("user id = %q, want alice", *got)
	}
}

func TestIdentityDevNoHeaderIsAnonymous(t *testing.T) {
	probe, got := identityProbe(t)
	h := Identity("", nil)(probe)

	req := httptest.NewRequest(http.MethodGet, "/api/rooms/r1", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if *got != model.AnonymousID {
		t.Fatalf("user id = %q, want %q", *got, model.AnonymousID)
	}
}

func TestIdentityPartialSessionHeaders(t *testing.T) {
	probe, _ := identityProbe(t)
	h := Identity("http://auth.invalid", nil)(probe)

	req := httptest.NewRequest(http.MethodGet, "/api/rooms/r1", nil)
	req.Header.Set("X-Session-Id", "s1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestIdentityValidSession(t *testing.T) {
	auth := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/internal/validate" {
			t.Errorf("path = %s, want /internal/validate", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"user_id":"bob"}`))
	}))
	defer auth.Close()

	probe, got := identityProbe(t)
	h := Identity(auth.URL, nil)(probe)

	req := httptest.NewRequest(http.MethodGet, "/api/rooms/r1", nil)
	req.Header.Set("X-Session-Id", "s1")
	req.Header.Set("X-Timestamp", "1700000000")
	req.Header.Set("X-Signature", "sig")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if *got != "bob" {
		t.Fatalf("user id = %q, want bob", *got)
	}
}

func TestIdentityRejectedSession(t *testing.T) {
	auth := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
	}))
	defer auth.Close()

	probe, _ := identityProbe(t)
	h := Identity(auth.URL, nil)(probe)

	req := httptest.NewRequest(http.MethodGet, "/api/rooms/r1", nil)
	req.Header.Set("X-Session-Id", "s1")
	req.Header.Set("X-Timestamp", "1700000000")
	req.Header.Set("X-Signature", "bad")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRequireUser(t *testing.T) {
	probe, _ := identityProbe(t)
	h := Identity("", nil)(RequireUser(probe))

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("X-User-Id", "alice")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("alice: status = %d, want 200", rec.Code)
	}
}
