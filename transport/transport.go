// Package transport serves MCP over HTTP with one stateless transport per
// request.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/elnormous/contenttype"
	"github.com/fabric-testbed/reports-mcp/credential"
	"github.com/fabric-testbed/reports-mcp/internal/logctx"
	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	DefaultMaxBodyBytes = 4 << 20

	protocolVersionHeader  = "Mcp-Protocol-Version"
	defaultProtocolVersion = "2025-03-26"

	methodInitialize        = "initialize"
	notificationInitialized = "notifications/initialized"
)

// JSON-RPC error codes used at the HTTP boundary.
const (
	CodeParseError    = -32700
	CodeInternalError = -32603
	CodeServerError   = -32000
)

const methodNotAllowedMessage = "Method not allowed. Use POST to interact with the MCP server. Follow README for details."

var (
	jsonMediaType        = contenttype.NewMediaType("application/json")
	eventStreamMediaType = contenttype.NewMediaType("text/event-stream")
	acceptedMediaTypes   = []contenttype.MediaType{eventStreamMediaType}
)

// Release describes a finished exchange, as passed to the release hook.
type Release struct {
	RequestID string
	// Reached is the furthest state the exchange got to before release.
	Reached State
	// Final is StateCompleted or StateAborted.
	Final State
}

type Handler struct {
	server       *mcp.Server
	logger       *slog.Logger
	maxBodyBytes int64
	onRelease    func(Release)
	newID        func() string
}

type Option func(*Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logctx.Wrap(logger)
		}
	}
}

// WithReleaseHook registers fn to run once per exchange, after its transport
// has been released.
func WithReleaseHook(fn func(Release)) Option {
	return func(h *Handler) { h.onRelease = fn }
}

func WithMaxBodyBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxBodyBytes = n
		}
	}
}

func New(server *mcp.Server, opts ...Option) *Handler {
	h := &Handler{
		server:       server,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxBodyBytes: DefaultMaxBodyBytes,
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.logger.InfoContext(r.Context(), "mcp request",
			"method", r.Method,
			"outcome", "rejected",
			"status", http.StatusMethodNotAllowed,
		)
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, CodeServerError, methodNotAllowedMessage)
		return
	}
	h.servePOST(w, r)
}

func (h *Handler) servePOST(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ex := &exchange{id: h.newID(), onRelease: h.onRelease}

	ctx := logctx.WithRequestData(r.Context(), &logctx.RequestData{
		RequestID:  ex.id,
		Method:     r.Method,
		Path:       r.URL.Path,
		RemoteAddr: r.RemoteAddr,
	})

	if mt, err := contenttype.GetMediaType(r); err != nil || !mt.Matches(jsonMediaType) {
		h.reject(ctx, w, http.StatusUnsupportedMediaType, CodeServerError, "Unsupported Media Type: Content-Type must be application/json")
		return
	}
	if _, _, err := contenttype.GetAcceptableMediaType(r, acceptedMediaTypes); err != nil {
		h.reject(ctx, w, http.StatusNotAcceptable, CodeServerError, "Not Acceptable: Accept must allow text/event-stream")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.reject(ctx, w, http.StatusRequestEntityTooLarge, CodeServerError, "Request body too large")
			return
		}
		h.reject(ctx, w, http.StatusBadRequest, CodeParseError, "Parse error")
		return
	}
	lc, err := peekLifecycle(body)
	if err != nil {
		h.reject(ctx, w, http.StatusBadRequest, CodeParseError, "Parse error")
		return
	}

	if token, ok := credential.FromAuthorization(r.Header.Get("Authorization")); ok {
		ctx = credential.WithAmbient(ctx, token)
	}
	r = r.WithContext(ctx)
	r.Body = io.NopCloser(bytes.NewReader(body))

	rw := &responseWriter{ResponseWriter: w}
	released := ex.bindRelease(r.Context())
	defer func() {
		released(false)
		h.logger.InfoContext(ctx, "mcp request",
			"outcome", ex.final().String(),
			"reached", ex.reached().String(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}()
	defer func() {
		if p := recover(); p != nil {
			h.fault(ctx, rw, fmt.Errorf("panic: %v", p))
		}
	}()

	transport := &mcp.StreamableServerTransport{Stateless: true}
	session, err := h.server.Connect(ctx, transport, &mcp.ServerSessionOptions{
		State: sessionState(lc, r.Header.Get(protocolVersionHeader)),
	})
	if err != nil {
		h.fault(ctx, rw, fmt.Errorf("connect transport: %w", err))
		return
	}
	if !ex.connect(session) || !ex.advance(StateHandling) {
		return
	}
	transport.ServeHTTP(rw, r)
}

func (h *Handler) reject(ctx context.Context, w http.ResponseWriter, status, code int, message string) {
	h.logger.InfoContext(ctx, "mcp request",
		"outcome", "rejected",
		"status", status,
		"error", message,
	)
	writeError(w, status, code, message)
}

// fault reports an unexpected failure. Once bytes have reached the client the
// error can only be logged.
func (h *Handler) fault(ctx context.Context, rw *responseWriter, err error) {
	if rw.written() {
		h.logger.ErrorContext(ctx, "mcp request failed after response started", "error", err.Error())
		return
	}
	h.logger.ErrorContext(ctx, "mcp request failed", "error", err.Error())
	writeError(rw, http.StatusInternalServerError, CodeInternalError, "Internal server error")
}

type lifecycle struct {
	hasInitialize  bool
	hasInitialized bool
}

// peekLifecycle decodes body as a JSON-RPC message or batch and reports
// whether it carries the initialization handshake.
func peekLifecycle(body []byte) (lifecycle, error) {
	var lc lifecycle
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return lc, errors.New("empty body")
	}

	raws := []json.RawMessage{trimmed}
	if trimmed[0] == '[' {
		raws = nil
		if err := json.Unmarshal(trimmed, &raws); err != nil {
			return lc, err
		}
		if len(raws) == 0 {
			return lc, errors.New("empty batch")
		}
	}

	for _, raw := range raws {
		msg, err := jsonrpc.DecodeMessage(raw)
		if err != nil {
			return lc, err
		}
		req, ok := msg.(*jsonrpc.Request)
		if !ok {
			continue
		}
		switch req.Method {
		case methodInitialize:
			lc.hasInitialize = true
		case notificationInitialized:
			lc.hasInitialized = true
		}
	}
	return lc, nil
}

// sessionState seeds a stateless session so that requests other than the
// handshake are accepted without a prior initialize.
func sessionState(lc lifecycle, protocolVersion string) *mcp.ServerSessionState {
	if protocolVersion == "" {
		protocolVersion = defaultProtocolVersion
	}
	state := &mcp.ServerSessionState{LogLevel: "info"}
	if !lc.hasInitialize {
		state.InitializeParams = &mcp.InitializeParams{ProtocolVersion: protocolVersion}
	}
	if !lc.hasInitialized {
		state.InitializedParams = &mcp.InitializedParams{}
	}
	return state
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	JSONRPC string   `json:"jsonrpc"`
	Error   rpcError `json:"error"`
	ID      any      `json:"id"`
}

func writeError(w http.ResponseWriter, status, code int, message string) {
	data, _ := json.Marshal(errorResponse{
		JSONRPC: "2.0",
		Error:   rpcError{Code: code, Message: message},
	})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// responseWriter records whether anything has been sent. The SDK writes
// stream events from its own goroutines, hence the atomic.
type responseWriter struct {
	http.ResponseWriter
	wrote atomic.Bool
}

func (w *responseWriter) WriteHeader(status int) {
	w.wrote.Store(true)
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseWriter) Write(p []byte) (int, error) {
	w.wrote.Store(true)
	return w.ResponseWriter.Write(p)
}

func (w *responseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *responseWriter) written() bool {
	return w.wrote.Load()
}

var _ http.Flusher = (*responseWriter)(nil)

// exchange tracks one request's transport from creation to release.
type exchange struct {
	id        string
	onRelease func(Release)

	mu       sync.Mutex
	state    State
	furthest State
	session  *mcp.ServerSession
	once     sync.Once
}

// bindRelease arranges for the exchange to be released when ctx ends (client
// abort) and returns the function the normal exit path calls. Release happens
// exactly once whichever fires first.
func (e *exchange) bindRelease(ctx context.Context) func(aborted bool) {
	stop := context.AfterFunc(ctx, func() { e.release(true) })
	return func(aborted bool) {
		stop()
		e.release(aborted || ctx.Err() != nil)
	}
}

// connect records the session. It reports false when the exchange was already
// released, in which case the session is closed here.
func (e *exchange) connect(session *mcp.ServerSession) bool {
	e.mu.Lock()
	if e.state.Terminal() {
		e.mu.Unlock()
		_ = session.Close()
		return false
	}
	e.session = session
	e.state, e.furthest = StateConnected, StateConnected
	e.mu.Unlock()
	return true
}

func (e *exchange) advance(s State) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Terminal() {
		return false
	}
	e.state, e.furthest = s, s
	return true
}

func (e *exchange) release(aborted bool) {
	e.once.Do(func() {
		final := StateCompleted
		if aborted {
			final = StateAborted
		}
		e.mu.Lock()
		e.state = final
		session, furthest := e.session, e.furthest
		e.mu.Unlock()

		if session != nil {
			_ = session.Close()
		}
		if e.onRelease != nil {
			e.onRelease(Release{RequestID: e.id, Reached: furthest, Final: final})
		}
	})
}

func (e *exchange) final() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *exchange) reached() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.furthest
}
