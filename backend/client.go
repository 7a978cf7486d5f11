// Package backend performs calls against the FABRIC reports REST API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fabric-testbed/reports-mcp/credential"
	"github.com/fabric-testbed/reports-mcp/internal/logctx"
)

const (
	DefaultBaseURL = "https://reports.fabric-testbed.net/reports"
	DefaultTimeout = 30 * time.Second
)

// Kind classifies a failed call.
type Kind string

const (
	KindEncode  Kind = "encode"
	KindNetwork Kind = "network"
	KindStatus  Kind = "status"
	KindDecode  Kind = "decode"
)

// CallError is returned by Do for every failure. The response body of a
// non-2xx reply is never included.
type CallError struct {
	Kind       Kind
	Method     string
	Path       string
	StatusCode int
	Err        error
}

func (e *CallError) Error() string {
	if e.Kind == KindStatus {
		return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %s: %v", e.Method, e.Path, e.Kind, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// IsKind reports whether err is a *CallError of kind k.
func IsKind(err error, k Kind) bool {
	var ce *CallError
	return errors.As(err, &ce) && ce.Kind == k
}

// Request describes one outbound call. Path is relative to the client's base
// URL. Token is the per-call credential override.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	Token  string
}

type Client struct {
	baseURL      string
	httpClient   *http.Client
	defaultToken string
	logger       *slog.Logger
	now          func() time.Time
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithDefaultToken sets the process-wide credential used when neither the
// call nor the request context supplies one.
func WithDefaultToken(token string) Option {
	return func(c *Client) { c.defaultToken = strings.TrimSpace(token) }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logctx.Wrap(logger)
		}
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

// Do issues req and decodes a 2xx JSON reply into T. The credential is chosen
// by credential.Resolve from req.Token, the ambient token in ctx, and the
// client default. There are no retries. The call is detached from ctx's
// cancellation and bounded by the client timeout alone.
func Do[T any](ctx context.Context, c *Client, req Request) (T, error) {
	var zero T

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	start := c.now()

	ambient, _ := credential.Ambient(ctx)
	token, source, hasToken := credential.Resolve(strings.TrimSpace(req.Token), ambient, c.defaultToken)

	fail := func(kind Kind, status int, err error) (T, error) {
		ce := &CallError{Kind: kind, Method: method, Path: req.Path, StatusCode: status, Err: err}
		c.logger.WarnContext(ctx, "backend request",
			"method", method,
			"path", req.Path,
			"outcome", "error",
			"kind", string(kind),
			"status", status,
			"credential_source", string(source),
			"credential_fp", credential.Fingerprint(token),
			"error", ce.Error(),
			"duration_ms", c.now().Sub(start).Milliseconds(),
		)
		return zero, ce
	}

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return fail(KindEncode, 0, err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(context.WithoutCancel(ctx), method, c.endpoint(req.Path, req.Query), body)
	if err != nil {
		return fail(KindEncode, 0, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if hasToken {
		httpReq.Header.Set("Authorization", "Bearer "+token)
		c.warnIfExpired(ctx, token, source)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fail(KindNetwork, 0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fail(KindStatus, resp.StatusCode, nil)
	}

	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fail(KindDecode, resp.StatusCode, err)
	}

	c.logger.DebugContext(ctx, "backend request",
		"method", method,
		"path", req.Path,
		"outcome", "success",
		"status", resp.StatusCode,
		"credential_source", string(source),
		"credential_fp", credential.Fingerprint(token),
		"duration_ms", c.now().Sub(start).Milliseconds(),
	)
	return out, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *Client) warnIfExpired(ctx context.Context, token string, source credential.Source) {
	claims, ok := credential.Inspect(token)
	if !ok || !claims.Expired(c.now()) {
		return
	}
	c.logger.WarnContext(ctx, "credential expired",
		"credential_source", string(source),
		"credential_fp", credential.Fingerprint(token),
		"subject", claims.Subject,
		"expired_at", claims.ExpiresAt,
	)
}
