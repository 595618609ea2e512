package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wolfman30/sms-dispatch-gateway/pkg/logging"
)

func serveAdmin(t *testing.T, secret, authHeader string, next http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/batches", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	AdminJWT(secret, logging.Discard())(next).ServeHTTP(rec, req)
	return rec
}

func noop(w http.ResponseWriter, r *http.Request) {}

func TestAdminJWTMissingSecret(t *testing.T) {
	rec := serveAdmin(t, "", "Bearer "+signedAdminToken(t, "secret", jwt.SigningMethodHS256, time.Minute), noop)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestAdminJWTMissingHeader(t *testing.T) {
	for _, header := range []string{"", "Basic abc", "Bearer "} {
		rec := serveAdmin(t, "secret", header, noop)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected status %d, got %d", header, http.StatusUnauthorized, rec.Code)
		}
	}
}

func TestAdminJWTInvalidToken(t *testing.T) {
	rec := serveAdmin(t, "secret", "Bearer "+signedAdminToken(t, "wrong", jwt.SigningMethodHS256, time.Minute), noop)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestAdminJWTExpiredToken(t *testing.T) {
	rec := serveAdmin(t, "secret", "Bearer "+signedAdminToken(t, "secret", jwt.SigningMethodHS256, -time.Minute), noop)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestAdminJWTRejectsOtherHMAC(t *testing.T) {
	rec := serveAdmin(t, "secret", "Bearer "+signedAdminToken(t, "secret", jwt.SigningMethodHS512, time.Minute), noop)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestAdminJWTValidToken(t *testing.T) {
	called := false
	rec := serveAdmin(t, "secret", "Bearer "+signedAdminToken(t, "secret", jwt.SigningMethodHS256, time.Minute), func(w http.ResponseWriter, r *http.Request) {
		called = true
		if got := AdminSubject(r.Context()); got != "ops-user" {
			t.Errorf("expected subject ops-user, got %q", got)
		}
		w.WriteHeader(http.StatusOK)
	})

	if !called {
		t.Fatalf("expected handler to be called")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
}

func TestAdminSubjectDefault(t *testing.T) {
	if got := AdminSubject(context.Background()); got != "admin" {
		t.Fatalf("expected default subject, got %q", got)
	}
}

func signedAdminToken(t *testing.T, secret string, method jwt.SigningMethod, ttl time.Duration) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   "ops-user",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
