package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("test-secret")

func newTestAuthenticator() *Authenticator {
	return NewAuthenticator(testSecret, "moxie-test")
}

// createTestToken creates a signed test JWT for userID
func createTestToken(t *testing.T, userID string, ttl time.Duration) string {
	t.Helper()
	token, err := newTestAuthenticator().IssueToken(userID, ttl)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	return token
}

// TestRequireAuth_ValidToken tests that valid tokens are accepted
func TestRequireAuth_ValidToken(t *testing.T) {
	auth := newTestAuthenticator()

	handlerCalled := false
	handler := auth.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true

		if id := GetUserID(r); id != "alice" {
			t.Errorf("expected user id 'alice', got %s", id)
		}
		if claims := GetJWTClaims(r); claims == nil {
			t.Error("expected claims to be non-nil")
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/test", nil)
	req.Header.Set("Authorization", "Bearer "+createTestToken(t, "alice", time.Hour))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if !handlerCalled {
		t.Error("handler was not called")
	}
	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
}

// TestRequireAuth_Rejections tests the 401 paths
func TestRequireAuth_Rejections(t *testing.T) {
	auth := newTestAuthenticator()

	otherIssuer, err := NewAuthenticator(testSecret, "someone-else").IssueToken("alice", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	otherSecret, err := NewAuthenticator([]byte("other"), "moxie-test").IssueToken("alice", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "alice",
		Issuer:    "moxie-test",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "wrong scheme", header: "Basic abc"},
		{name: "empty bearer", header: "Bearer "},
		{name: "garbage token", header: "Bearer not-a-jwt"},
		{name: "expired token", header: "Bearer " + createTestToken(t, "alice", -time.Minute)},
		{name: "wrong issuer", header: "Bearer " + otherIssuer},
		{name: "wrong secret", header: "Bearer " + otherSecret},
		{name: "alg none", header: "Bearer " + unsigned},
		{name: "missing subject", header: "Bearer " + createTestToken(t, "", time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := auth.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Error("handler should not be called")
			}))

			req := httptest.NewRequest(http.MethodPost, "/test", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("expected status 401, got %d", w.Code)
			}
		})
	}
}

// TestOptionalAuth tests that anonymous and invalid callers pass through without identity
func TestOptionalAuth(t *testing.T) {
	auth := newTestAuthenticator()

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{name: "anonymous", header: "", want: ""},
		{name: "invalid token", header: "Bearer garbage", want: ""},
		{name: "valid token", header: "Bearer " + createTestToken(t, "bob", time.Hour), want: "bob"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			called := false
			handler := auth.OptionalAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				got = GetUserID(r)
			}))

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			handler.ServeHTTP(httptest.NewRecorder(), req)

			if !called {
				t.Fatal("handler was not called")
			}
			if got != tt.want {
				t.Errorf("expected user id %q, got %q", tt.want, got)
			}
		})
	}
}

func TestSetTestUserID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req = req.WithContext(SetTestUserID(req.Context(), "carol"))

	if id := GetUserID(req); id != "carol" {
		t.Errorf("expected carol, got %s", id)
	}
}
