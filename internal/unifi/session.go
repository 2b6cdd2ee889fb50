// Package unifi talks to a UniFi Network controller through the same
// cookie session the web UI uses: log in, pick up the TOKEN cookie,
// fetch a CSRF token, then issue writes with both attached.
package unifi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/kr/pretty"

	"github.com/nugget/unifi-led/internal/httpkit"
)

const (
	// DefaultTimeout bounds every controller request, including each
	// login attempt.
	DefaultTimeout = 10 * time.Second

	// TokenCookie is the session cookie set by a successful login.
	TokenCookie = "TOKEN"

	// CSRFHeader carries the CSRF token on responses and on writes.
	CSRFHeader = "X-Csrf-Token"

	selfPath = "/proxy/network/api/self"

	// maxResponseBody caps how much of any response is read into memory.
	maxResponseBody = 1 << 20
)

// loginEndpoint is one candidate login URL, tried in order.
type loginEndpoint struct {
	name string
	path string
}

// UniFi OS consoles first, then standalone Network controllers.
var loginEndpoints = []loginEndpoint{
	{name: "unifi-os", path: "/api/auth/login"},
	{name: "legacy", path: "/api/login"},
}

// Endpoint identifies a controller. BaseURL includes the scheme and host
// (e.g., "https://192.168.1.1") without a trailing slash.
type Endpoint struct {
	BaseURL   string
	VerifyTLS bool
}

// Credentials is a local controller account. Accounts with two-factor
// authentication are not supported.
type Credentials struct {
	Username string
	Password string
}

// LogValue implements slog.LogValuer so credentials can be logged
// without the password.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("username", c.Username),
		slog.String("password", "[redacted]"),
	)
}

type loginRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

// Session is an authenticated controller client. It is owned by a
// single caller and is not safe for concurrent use.
type Session struct {
	baseURL    string
	base       *url.URL
	httpClient *http.Client
	jar        http.CookieJar
	header     http.Header
	logger     *slog.Logger

	token string
	csrf  string
}

// Login opens a session against ep. It tries each login endpoint once,
// stopping at the first that accepts the credentials, then requires
// the TOKEN cookie and a CSRF token before returning.
func Login(ctx context.Context, ep Endpoint, creds Credentials, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}

	base, err := url.Parse(ep.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse controller URL: %w", err)
	}

	jar, err := httpkit.NewCookieJar()
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Accept", "application/json, text/plain, */*")
	header.Set("Content-Type", "application/json")

	opts := []httpkit.ClientOption{
		httpkit.WithTimeout(DefaultTimeout),
		httpkit.WithCookieJar(jar),
		httpkit.WithHeader(header),
	}
	if !ep.VerifyTLS {
		opts = append(opts, httpkit.WithTLSInsecureSkipVerify())
		logger.Debug("TLS certificate verification disabled", "controller", ep.BaseURL)
	}

	s := &Session{
		baseURL:    ep.BaseURL,
		base:       base,
		httpClient: httpkit.NewClient(opts...),
		jar:        jar,
		header:     header,
		logger:     logger,
	}

	logger.Info("opening controller session",
		"controller", ep.BaseURL,
		"verify_ssl", ep.VerifyTLS,
		"username", creds.Username,
	)

	if err := s.login(ctx, creds); err != nil {
		logger.Debug("login failed",
			"controller", ep.BaseURL,
			"credentials", creds,
		)
		return nil, err
	}

	s.token = s.cookie(TokenCookie)
	if s.token == "" {
		logger.Warn("no TOKEN cookie after login",
			"cookies", pretty.Sprint(s.cookieNames()),
		)
		return nil, ErrNoSessionToken
	}
	logger.Info("TOKEN cookie acquired")

	csrf, err := s.fetchCSRF(ctx)
	if err != nil {
		return nil, err
	}
	s.csrf = csrf
	logger.Info("CSRF token acquired")

	// Required by the controller on every mutating call.
	s.header.Set(CSRFHeader, csrf)

	return s, nil
}

// login walks loginEndpoints and returns nil at the first success.
func (s *Session) login(ctx context.Context, creds Credentials) error {
	payload, err := json.Marshal(loginRequest{
		Username:   creds.Username,
		Password:   creds.Password,
		RememberMe: true,
	})
	if err != nil {
		return fmt.Errorf("encode login request: %w", err)
	}

	var attempts []LoginAttempt
	for _, ep := range loginEndpoints {
		u := s.baseURL + ep.path
		s.logger.Info("trying login", "url", u, "endpoint", ep.name)

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("build login request: %w", err)
		}

		resp, err := s.httpClient.Do(req)
		if err != nil {
			s.logger.Warn("login request failed", "url", u, "error", err)
			attempts = append(attempts, LoginAttempt{URL: u, Err: err})
			continue
		}

		s.logger.Info("login response", "url", u, "status", resp.StatusCode)

		if resp.StatusCode < http.StatusBadRequest {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
			resp.Body.Close()
			s.logger.Log(ctx, slog.Level(-8), "login response body", "url", u, "body", string(body)) // config.LevelTrace
			s.logger.Info("login ok", "url", u)
			return nil
		}

		body := httpkit.ReadErrorBody(resp.Body, maxResponseBody)
		s.logger.Info("login rejected", "url", u, "status", resp.StatusCode, "body", body)
		attempts = append(attempts, LoginAttempt{URL: u, StatusCode: resp.StatusCode, Body: body})
	}

	return &LoginError{Attempts: attempts}
}

// fetchCSRF reads the CSRF token from the self endpoint's response
// headers. The response status is informational only.
func (s *Session) fetchCSRF(ctx context.Context) (string, error) {
	u := s.baseURL + selfPath
	s.logger.Info("fetching CSRF token", "url", u)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("build CSRF request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: fetch CSRF token: %w", ErrAuth, err)
	}
	defer httpkit.DrainAndClose(resp.Body, 64<<10)

	s.logger.Info("CSRF fetch response", "status", resp.StatusCode)

	csrf := resp.Header.Get(CSRFHeader)
	if csrf == "" {
		s.logger.Warn("no x-csrf-token header in response",
			"headers", pretty.Sprint(resp.Header),
		)
		return "", ErrNoCSRFToken
	}
	return csrf, nil
}

func (s *Session) cookie(name string) string {
	for _, c := range s.jar.Cookies(s.base) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

// cookieNames lists cookie names only; values are session secrets.
func (s *Session) cookieNames() []string {
	var names []string
	for _, c := range s.jar.Cookies(s.base) {
		names = append(names, c.Name)
	}
	return names
}

// BaseURL returns the controller URL the session was opened against.
func (s *Session) BaseURL() string { return s.baseURL }

// Token returns the TOKEN cookie value.
func (s *Session) Token() string { return s.token }

// CSRF returns the CSRF token attached to every request.
func (s *Session) CSRF() string { return s.csrf }
