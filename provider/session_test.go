package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fennwick/clientauth"
	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, subject string, expiry time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(expiry),
	})
	raw, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("signing token failed: %v", err)
	}
	return raw
}

func newTestProvider(t *testing.T, handler http.Handler) (*HTTPSessionProvider, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p, err := NewHTTPSessionProvider(Config{ServerURL: server.URL})
	if err != nil {
		t.Fatalf("NewHTTPSessionProvider failed: %v", err)
	}
	return p, server
}

func TestNewHTTPSessionProviderRejectsBadURL(t *testing.T) {
	for _, serverURL := range []string{"", "not a url", "example.com"} {
		if _, err := NewHTTPSessionProvider(Config{ServerURL: serverURL}); err == nil {
			t.Errorf("NewHTTPSessionProvider(%q) accepted", serverURL)
		}
	}
}

func TestSendCode(t *testing.T) {
	var gotEmail string
	p, _ := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/otp/send" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("invalid request body: %v", err)
		}
		gotEmail = body["email"]
		w.WriteHeader(http.StatusOK)
	}))

	if err := p.SendCode(context.Background(), "user@example.com"); err != nil {
		t.Fatalf("SendCode failed: %v", err)
	}
	if gotEmail != "user@example.com" {
		t.Fatalf("backend saw email %q", gotEmail)
	}
}

func TestSendCodeBackendError(t *testing.T) {
	p, _ := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"error_description": "mail relay down"})
	}))

	err := p.SendCode(context.Background(), "user@example.com")
	if err == nil {
		t.Fatal("SendCode succeeded against a failing backend")
	}
}

func TestVerifyCodeIssuesSession(t *testing.T) {
	expiry := time.Now().Add(time.Hour).Truncate(time.Second)
	access := ""
	p, _ := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/otp/verify" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  access,
			"refresh_token": "rt",
			"token_type":    "bearer",
		})
	}))
	access = signedToken(t, "u1", expiry)

	session, err := p.VerifyCode(context.Background(), "user@example.com", "123456")
	if err != nil {
		t.Fatalf("VerifyCode failed: %v", err)
	}

	// user_id and expiry fall back to the token's registered claims.
	if session.UserID != "u1" {
		t.Errorf("UserID = %q, want u1", session.UserID)
	}
	if !session.ExpiresAt.Equal(expiry) {
		t.Errorf("ExpiresAt = %v, want %v", session.ExpiresAt, expiry)
	}
	if session.RefreshToken != "rt" {
		t.Errorf("RefreshToken = %q", session.RefreshToken)
	}

	current, err := p.CurrentSession(context.Background())
	if err != nil {
		t.Fatalf("CurrentSession failed: %v", err)
	}
	if current == nil || current.UserID != "u1" {
		t.Fatalf("CurrentSession = %+v, want issued session", current)
	}
}

func TestVerifyCodeStructuredFailure(t *testing.T) {
	cases := []struct {
		name      string
		code      string
		wantClass clientauth.CodeErrorClass
	}{
		{"expired", "otp_expired", clientauth.CodeErrorExpired},
		{"invalid", "otp_invalid", clientauth.CodeErrorInvalid},
		{"invalid grant", "invalid_grant", clientauth.CodeErrorInvalid},
		{"unrecognized", "server_error", clientauth.CodeErrorUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, _ := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error":             tc.code,
					"error_description": "verification failed",
				})
			}))

			_, err := p.VerifyCode(context.Background(), "user@example.com", "123456")
			if err == nil {
				t.Fatal("VerifyCode succeeded against a failing backend")
			}

			var verifyErr *VerifyError
			if !errors.As(err, &verifyErr) {
				t.Fatalf("error %T is not *VerifyError", err)
			}
			if verifyErr.Code != tc.code {
				t.Errorf("Code = %q, want %q", verifyErr.Code, tc.code)
			}
			if verifyErr.CodeClass() != tc.wantClass {
				t.Errorf("CodeClass = %v, want %v", verifyErr.CodeClass(), tc.wantClass)
			}

			// The session layer discovers the class through its interface.
			var classifier clientauth.CodeClassifier
			if !errors.As(err, &classifier) {
				t.Fatal("error does not implement CodeClassifier")
			}
		})
	}
}

func TestCurrentSessionEmpty(t *testing.T) {
	p, _ := newTestProvider(t, http.NotFoundHandler())

	session, err := p.CurrentSession(context.Background())
	if err != nil {
		t.Fatalf("CurrentSession failed: %v", err)
	}
	if session != nil {
		t.Fatalf("CurrentSession = %+v for a fresh provider", session)
	}
}

func TestSignOutRevokesAndClears(t *testing.T) {
	var sawBearer string
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/otp/verify", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "opaque-token",
			"user_id":      "u1",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/auth/signout", func(w http.ResponseWriter, r *http.Request) {
		sawBearer = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	})
	p, _ := newTestProvider(t, mux)

	if _, err := p.VerifyCode(context.Background(), "user@example.com", "123456"); err != nil {
		t.Fatalf("VerifyCode failed: %v", err)
	}

	if err := p.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}
	if sawBearer != "Bearer opaque-token" {
		t.Fatalf("revocation bearer = %q", sawBearer)
	}

	session, err := p.CurrentSession(context.Background())
	if err != nil {
		t.Fatalf("CurrentSession failed: %v", err)
	}
	if session != nil {
		t.Fatalf("session slot not cleared: %+v", session)
	}

	// A second sign-out has nothing to revoke and is a no-op.
	if err := p.SignOut(context.Background()); err != nil {
		t.Fatalf("repeated SignOut failed: %v", err)
	}
}

func TestTransportAddsBearer(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/otp/verify", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "opaque-token",
			"user_id":      "u1",
			"expires_in":   3600,
		})
	})
	var sawBearer string
	mux.HandleFunc("/profiles/u1", func(w http.ResponseWriter, r *http.Request) {
		sawBearer = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNotFound)
	})
	p, server := newTestProvider(t, mux)

	if _, err := p.VerifyCode(context.Background(), "user@example.com", "123456"); err != nil {
		t.Fatalf("VerifyCode failed: %v", err)
	}

	authed := &http.Client{Transport: p.Transport(nil)}
	store, err := NewRESTProfileStore(server.URL, authed)
	if err != nil {
		t.Fatalf("NewRESTProfileStore failed: %v", err)
	}

	if _, err := store.Fetch(context.Background(), "u1"); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if sawBearer != "Bearer opaque-token" {
		t.Fatalf("profile request bearer = %q", sawBearer)
	}
}
