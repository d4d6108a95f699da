package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"policyforge/internal/domain/models"
	"policyforge/internal/httputil"
)

// fakeVerifier accepts exactly one token string.
type fakeVerifier struct {
	valid string
}

func (v *fakeVerifier) VerifyToken(token string) (*models.IdentityClaims, error) {
	if token != v.valid {
		return nil, fmt.Errorf("signature verification failed")
	}
	return &models.IdentityClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
	}, nil
}

func (v *fakeVerifier) Close() error { return nil }

func authedMux(verifier *fakeVerifier) http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("GET /api/v1/drafts", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, httputil.GetUserID(r))
	})

	outer := http.NewServeMux()
	outer.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	outer.Handle("/api/v1/", AuthMiddleware(verifier)(api))
	return outer
}

func TestAuthMiddlewareRejectsMissingOrInvalidToken(t *testing.T) {
	root := authedMux(&fakeVerifier{valid: "good-token"})

	cases := map[string]string{
		"no header":     "",
		"wrong scheme":  "Basic abc",
		"invalid token": "Bearer bad-token",
	}
	for name, header := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/drafts", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		root.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: got status %d, want 401", name, rec.Code)
		}
	}
}

func TestAuthMiddlewarePutsUserIDInContext(t *testing.T) {
	root := authedMux(&fakeVerifier{valid: "good-token"})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/drafts", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()
	root.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
	if rec.Body.String() != "user-1" {
		t.Errorf("user id not in context: %q", rec.Body.String())
	}
}

func TestHealthBypassesAuth(t *testing.T) {
	root := authedMux(&fakeVerifier{valid: "good-token"})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	root.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("unauthenticated health check got %d, want 200", rec.Code)
	}
}
