package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/fennwick/clientauth"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

const (
	defaultSendCodePath   = "/auth/otp/send"
	defaultVerifyCodePath = "/auth/otp/verify"
	defaultSignOutPath    = "/auth/signout"
)

// Config configures an [HTTPSessionProvider].
type Config struct {
	// ServerURL is the identity backend origin, e.g. "https://id.example.com".
	ServerURL string

	// OAuth drives the federated credential exchange. Required only when
	// ExchangeFederatedCredential is used.
	OAuth *oauth2.Config

	// HTTPClient overrides the default client (timeouts, TLS config, proxies).
	HTTPClient *http.Client

	SendCodePath   string
	VerifyCodePath string
	SignOutPath    string
}

// HTTPSessionProvider implements [clientauth.SessionProvider] over a REST
// identity backend. The most recently issued session is held in an in-memory
// slot so CurrentSession can answer without a network round trip.
type HTTPSessionProvider struct {
	serverURL string
	oauth     *oauth2.Config
	http      *http.Client

	sendCodePath   string
	verifyCodePath string
	signOutPath    string

	mu      sync.Mutex
	current *clientauth.Session
}

// NewHTTPSessionProvider creates a provider for the given backend.
func NewHTTPSessionProvider(cfg Config) (*HTTPSessionProvider, error) {
	u, err := url.Parse(cfg.ServerURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server url %q", cfg.ServerURL)
	}

	p := &HTTPSessionProvider{
		serverURL:      fmt.Sprintf("%s://%s", u.Scheme, u.Host),
		oauth:          cfg.OAuth,
		http:           cfg.HTTPClient,
		sendCodePath:   cfg.SendCodePath,
		verifyCodePath: cfg.VerifyCodePath,
		signOutPath:    cfg.SignOutPath,
	}
	if p.http == nil {
		p.http = &http.Client{}
	}
	if p.sendCodePath == "" {
		p.sendCodePath = defaultSendCodePath
	}
	if p.verifyCodePath == "" {
		p.verifyCodePath = defaultVerifyCodePath
	}
	if p.signOutPath == "" {
		p.signOutPath = defaultSignOutPath
	}
	return p, nil
}

// errorBody is the backend's JSON error envelope.
type errorBody struct {
	Error     string `json:"error,omitempty"`
	ErrorDesc string `json:"error_description,omitempty"`
}

// tokenResponse is the token envelope returned by the verify endpoint.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	UserID       string `json:"user_id,omitempty"`
	errorBody
}

// CurrentSession returns a copy of the held session, or (nil, nil) when no
// session has been issued or the last one was signed out.
func (p *HTTPSessionProvider) CurrentSession(ctx context.Context) (*clientauth.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil, nil
	}
	copied := *p.current
	return &copied, nil
}

// SendCode asks the backend to mail a one-time code to email.
func (p *HTTPSessionProvider) SendCode(ctx context.Context, email string) error {
	body, err := json.Marshal(map[string]string{"email": email})
	if err != nil {
		return err
	}

	resp, err := p.post(ctx, p.sendCodePath, "", body)
	if err != nil {
		return fmt.Errorf("send code: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("send code: %s", readErrorBody(resp))
	}
	return nil
}

// VerifyCode exchanges email+code for a session. Verification failures carry
// a structured [*VerifyError] so the session layer can classify them without
// inspecting error text.
func (p *HTTPSessionProvider) VerifyCode(ctx context.Context, email, code string) (*clientauth.Session, error) {
	body, err := json.Marshal(map[string]string{"email": email, "code": code})
	if err != nil {
		return nil, err
	}

	resp, err := p.post(ctx, p.verifyCodePath, "", body)
	if err != nil {
		return nil, fmt.Errorf("verify code: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("verify code: %w", err)
	}

	var token tokenResponse
	if err := json.Unmarshal(raw, &token); err != nil {
		return nil, fmt.Errorf("verify code: invalid response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &VerifyError{
			Code:        token.Error,
			Description: token.ErrorDesc,
			Status:      resp.StatusCode,
		}
	}

	session := p.sessionFromTokenResponse(&token)

	p.mu.Lock()
	p.current = session
	p.mu.Unlock()

	copied := *session
	return &copied, nil
}

// ExchangeFederatedCredential trades a federated provider credential for a
// backend session through the configured OAuth2 token endpoint.
func (p *HTTPSessionProvider) ExchangeFederatedCredential(ctx context.Context, providerToken string) (*clientauth.Session, error) {
	if p.oauth == nil {
		return nil, fmt.Errorf("federated exchange not configured")
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.http)
	token, err := p.oauth.Exchange(ctx, providerToken)
	if err != nil {
		return nil, fmt.Errorf("federated exchange: %w", err)
	}

	session := p.sessionFromOAuthToken(token)

	p.mu.Lock()
	p.current = session
	p.mu.Unlock()

	copied := *session
	return &copied, nil
}

// SignOut revokes the held session at the backend and clears the local slot.
// The slot is cleared even when revocation fails.
func (p *HTTPSessionProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	var bearer string
	if p.current != nil {
		bearer = p.current.AccessToken
	}
	p.current = nil
	p.mu.Unlock()

	if bearer == "" {
		return nil
	}

	resp, err := p.post(ctx, p.signOutPath, bearer, nil)
	if err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("sign out: %s", readErrorBody(resp))
	}
	return nil
}

// Transport wraps base with a bearer-token round tripper presenting the held
// session, for building profile and blob store HTTP clients that ride the
// same authentication.
func (p *HTTPSessionProvider) Transport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &bearerTransport{provider: p, base: base}
}

func (p *HTTPSessionProvider) post(ctx context.Context, path, bearer string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return p.http.Do(req)
}

// sessionFromTokenResponse derives the session identity from the token
// envelope, falling back to the access token's registered claims when the
// backend omits user_id or expires_in.
func (p *HTTPSessionProvider) sessionFromTokenResponse(token *tokenResponse) *clientauth.Session {
	session := &clientauth.Session{
		UserID:       token.UserID,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}
	if token.ExpiresIn > 0 {
		session.ExpiresAt = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	}
	fillFromClaims(session)
	return session
}

func (p *HTTPSessionProvider) sessionFromOAuthToken(token *oauth2.Token) *clientauth.Session {
	session := &clientauth.Session{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
	}
	fillFromClaims(session)
	return session
}

// fillFromClaims parses the access token's registered claims without
// verifying the signature; the client is not the token's verifier, it only
// needs the subject and expiry.
func fillFromClaims(session *clientauth.Session) {
	if session.AccessToken == "" {
		return
	}

	var claims jwt.RegisteredClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(session.AccessToken, &claims); err != nil {
		return
	}

	if session.UserID == "" {
		session.UserID = claims.Subject
	}
	if session.ExpiresAt.IsZero() && claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
}

func readErrorBody(resp *http.Response) string {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err == nil {
		var body errorBody
		if json.Unmarshal(raw, &body) == nil {
			if body.ErrorDesc != "" {
				return body.ErrorDesc
			}
			if body.Error != "" {
				return body.Error
			}
		}
	}
	return fmt.Sprintf("HTTP %d", resp.StatusCode)
}

// bearerTransport adds the held session's access token to outgoing requests.
type bearerTransport struct {
	provider *HTTPSessionProvider
	base     http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.provider.mu.Lock()
	var bearer string
	if t.provider.current != nil {
		bearer = t.provider.current.AccessToken
	}
	t.provider.mu.Unlock()

	if bearer != "" {
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return t.base.RoundTrip(req)
}
