package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/huddlecal/huddle/libs/auth"
)

func TestRequireRole(t *testing.T) {
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), RequireRole(auth.RoleHost))

	req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	req = req.WithContext(ContextWithPrincipal(req.Context(), Principal{UserID: "u1", Role: auth.RoleMember}))
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rw.Code)
	}

	reqOK := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	reqOK = reqOK.WithContext(ContextWithPrincipal(reqOK.Context(), Principal{UserID: "u1", Role: auth.RoleHost}))
	rwOK := httptest.NewRecorder()
	h.ServeHTTP(rwOK, reqOK)
	if rwOK.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rwOK.Code)
	}

	rwAnon := httptest.NewRecorder()
	h.ServeHTTP(rwAnon, httptest.NewRequest(http.MethodGet, "http://example.com", nil))
	if rwAnon.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rwAnon.Code)
	}
}

func TestRequireAuthHS256(t *testing.T) {
	secret := "test-secret"
	token, err := auth.SignHS256(auth.NewClaims("user-1", "Ada", auth.RoleHost, time.Hour), secret)
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}

	h := RequireAuth(auth.HS256Verifier(secret))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		if !ok || p.UserID != "user-1" || p.Role != auth.RoleHost || p.Name != "Ada" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}

	reqBad := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	reqBad.Header.Set("Authorization", "Bearer badtoken")
	rwBad := httptest.NewRecorder()
	h.ServeHTTP(rwBad, reqBad)
	if rwBad.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rwBad.Code)
	}

	rwMissing := httptest.NewRecorder()
	h.ServeHTTP(rwMissing, httptest.NewRequest(http.MethodGet, "http://example.com", nil))
	if rwMissing.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without header, got %d", rwMissing.Code)
	}
}

func TestOptionalAuth(t *testing.T) {
	var sawPrincipal bool
	h := OptionalAuth(auth.HS256Verifier("s"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawPrincipal = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "http://example.com", nil))
	if rw.Code != http.StatusOK || sawPrincipal {
		t.Fatalf("anonymous request: code=%d principal=%v", rw.Code, sawPrincipal)
	}

	req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rwBad := httptest.NewRecorder()
	h.ServeHTTP(rwBad, req)
	if rwBad.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for invalid token, got %d", rwBad.Code)
	}
}
