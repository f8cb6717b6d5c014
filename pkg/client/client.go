// Package client is the dashboard's HTTP client for the enfermeria API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/noah-isme/enfermeria-api/internal/models"
)

// ErrTransport marks failures to reach the API at all.
var ErrTransport = errors.New("transport error")

// ErrNoSession is returned when an authenticated call is made before Login.
var ErrNoSession = errors.New("no active session")

// APIError is an error reported by the API in the response envelope.
type APIError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
}

// IsAPIError reports whether err carries an API error with the given code.
func IsAPIError(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

type envelope struct {
	Data       json.RawMessage        `json:"data"`
	Error      *APIError              `json:"error"`
	Pagination *models.Pagination     `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
}

// Config configures a Client.
type Config struct {
	BaseURL       string
	APIPrefix     string
	FunctionsPath string
	Timeout       time.Duration
	HTTPClient    *http.Client
	Dialer        *websocket.Dialer
	Logger        *zap.Logger
}

// Session is the authenticated identity created by Login.
type Session struct {
	AccessToken  string
	RefreshToken string
	User         models.UserInfo
	ExpiresAt    time.Time
}

// Client talks to the REST API, the report mail function and the realtime socket.
type Client struct {
	base      *url.URL
	apiPrefix string
	functions string
	timeout   time.Duration
	http      *http.Client
	dialer    *websocket.Dialer
	logger    *zap.Logger

	mu      sync.RWMutex
	session *Session

	subsMu sync.Mutex
	subs   map[*Subscription]struct{}
}

// New validates cfg and builds a client.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api"
	}
	if cfg.FunctionsPath == "" {
		cfg.FunctionsPath = "/.netlify/functions"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		base:      base,
		apiPrefix: "/" + strings.Trim(cfg.APIPrefix, "/"),
		functions: "/" + strings.Trim(cfg.FunctionsPath, "/"),
		timeout:   cfg.Timeout,
		http:      httpClient,
		dialer:    dialer,
		logger:    logger,
		subs:      make(map[*Subscription]struct{}),
	}, nil
}

// Session returns the current session, or nil when logged out.
func (c *Client) Session() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

// SetSession installs a session obtained elsewhere.
func (c *Client) SetSession(s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = s
}

// Login authenticates and stores the session.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	var res models.LoginResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.doJSON(ctx, http.MethodPost, c.apiPath("/auth/login"), nil, body, &res, false); err != nil {
		return nil, err
	}
	session := &Session{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		User:         res.User,
		ExpiresAt:    res.IssuedAt.Add(time.Duration(res.ExpiresIn) * time.Second),
	}
	c.SetSession(session)
	return c.Session(), nil
}

// Logout revokes the refresh token and clears the local session either way.
func (c *Client) Logout(ctx context.Context) error {
	session := c.Session()
	if session == nil {
		return nil
	}
	defer c.SetSession(nil)
	body := map[string]string{"refresh_token": session.RefreshToken}
	return c.doJSON(ctx, http.MethodPost, c.apiPath("/auth/logout"), nil, body, nil, true)
}

func (c *Client) apiPath(p string) string {
	return c.apiPrefix + p
}

func (c *Client) endpoint(p string, query url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(c.base.Path, "/") + p
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) doJSON(ctx context.Context, method, p string, query url.Values, in, out interface{}, auth bool) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}
	_, err := c.do(ctx, method, p, query, body, "application/json", out, auth)
	return err
}

func (c *Client) doMultipart(ctx context.Context, p, field, filename string, content io.Reader, out interface{}) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, content); err != nil {
		return fmt.Errorf("read %s: %w", field, err)
	}
	if err := writer.Close(); err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodPost, p, nil, &buf, writer.FormDataContentType(), out, true)
	return err
}

// do issues one request. There are no retries.
func (c *Client) do(ctx context.Context, method, p string, query url.Values, body io.Reader, contentType string, out interface{}, auth bool) (*envelope, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(p, query), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	if auth {
		session := c.Session()
		if session == nil {
			return nil, ErrNoSession
		}
		req.Header.Set("Authorization", "Bearer "+session.AccessToken)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrTransport, method, p, err)
	}
	defer resp.Body.Close()
	c.logger.Debug("api request", zap.String("method", method), zap.String("path", p), zap.Int("status", resp.StatusCode), zap.Duration("latency", time.Since(started)))

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s %s: %w", ErrTransport, method, p, err)
	}
	if resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(raw)) == 0 {
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, &APIError{Status: resp.StatusCode, Code: http.StatusText(resp.StatusCode)}
		}
		return &envelope{}, nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, &APIError{Status: resp.StatusCode, Code: http.StatusText(resp.StatusCode), Message: strings.TrimSpace(string(raw))}
		}
		return nil, fmt.Errorf("decode %s %s: %w", method, p, err)
	}
	if env.Error != nil {
		if env.Error.Status == 0 {
			env.Error.Status = resp.StatusCode
		}
		return nil, env.Error
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &APIError{Status: resp.StatusCode, Code: http.StatusText(resp.StatusCode)}
	}
	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, fmt.Errorf("decode %s %s data: %w", method, p, err)
		}
	}
	return &env, nil
}

func deadline() time.Time {
	return time.Now().Add(time.Second)
}
