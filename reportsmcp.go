// Package reportsmcp is an MCP gateway to the FABRIC reports API.
package reportsmcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/fabric-testbed/reports-mcp/backend"
	"github.com/fabric-testbed/reports-mcp/config"
	"github.com/fabric-testbed/reports-mcp/credential"
	"github.com/fabric-testbed/reports-mcp/server"
	"github.com/fabric-testbed/reports-mcp/transport"
)

type Config struct {
	// Settings replaces the file and environment configuration when non-nil.
	Settings *config.Settings

	// HTTPClient is used for reports API calls. If nil, a client with the
	// configured request timeout is created.
	HTTPClient *http.Client

	// Logger is the structured logger passed to every component. If nil, a
	// discard logger is used.
	Logger *slog.Logger

	// OnRelease, if set, runs once per HTTP exchange after its transport is
	// released.
	OnRelease func(transport.Release)

	// Name overrides the MCP server implementation name (default: "fabric-reports").
	Name string

	// Version overrides the MCP server implementation version (default: "1.0.0").
	Version string
}

// LoadSettings reads the config file and environment and resolves them.
func LoadSettings() (config.Settings, error) {
	userCfg, err := config.Load()
	if err != nil {
		return config.Settings{}, fmt.Errorf("load user config: %w", err)
	}
	settings, err := userCfg.Settings()
	if err != nil {
		return config.Settings{}, fmt.Errorf("resolve settings: %w", err)
	}
	return settings, nil
}

func (cfg Config) settings() (config.Settings, error) {
	if cfg.Settings != nil {
		return *cfg.Settings, nil
	}
	return LoadSettings()
}

func (cfg Config) logger() *slog.Logger {
	if cfg.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return cfg.Logger
}

// New builds a Core wired to the reports API described by cfg.
func New(cfg Config) (*server.Core, error) {
	settings, err := cfg.settings()
	if err != nil {
		return nil, err
	}
	return newCore(cfg, settings), nil
}

func newCore(cfg Config, settings config.Settings) *server.Core {
	logger := cfg.logger()

	opts := []backend.Option{backend.WithLogger(logger)}
	if settings.RequestTimeout > 0 {
		opts = append(opts, backend.WithTimeout(settings.RequestTimeout))
	}
	if settings.DefaultToken != "" {
		opts = append(opts, backend.WithDefaultToken(settings.DefaultToken))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, backend.WithHTTPClient(cfg.HTTPClient))
	}
	api := backend.NewClient(settings.APIURL, opts...)

	attrs := []any{"api_url", api.BaseURL(), "credential_source", string(settings.TokenSource)}
	if settings.DefaultToken != "" {
		attrs = append(attrs, "credential_fp", credential.Fingerprint(settings.DefaultToken))
	}
	logger.Info("reports api configured", attrs...)

	return server.NewCore(api, logger)
}

func (cfg Config) serverOptions() server.ServerOptions {
	return server.ServerOptions{Name: cfg.Name, Version: cfg.Version}
}

// NewHTTPHandler serves the MCP endpoint at /mcp and a liveness probe at
// /healthz.
func NewHTTPHandler(cfg Config) (http.Handler, error) {
	core, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return newMux(cfg, core), nil
}

func newMux(cfg Config, core *server.Core) *http.ServeMux {
	mcpServer := server.NewMCPServer(core, cfg.serverOptions())

	mux := http.NewServeMux()
	mux.Handle("/mcp", transport.New(mcpServer,
		transport.WithLogger(cfg.logger()),
		transport.WithReleaseHook(cfg.OnRelease),
	))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "ok")
	})
	return mux
}

// ListenAndServe serves the HTTP endpoint on the configured port until ctx is
// cancelled, then shuts down gracefully.
func ListenAndServe(ctx context.Context, cfg Config) error {
	settings, err := cfg.settings()
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", settings.Port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return Serve(ctx, cfg, settings, ln)
}

// Serve is ListenAndServe on an existing listener.
func Serve(ctx context.Context, cfg Config, settings config.Settings, ln net.Listener) error {
	logger := cfg.logger()
	srv := &http.Server{
		Handler:           newMux(cfg, newCore(cfg, settings)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("mcp http server listening", "addr", ln.Addr().String(), "endpoint", "/mcp")
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("serve http: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve http: %w", err)
	}
	return nil
}

// RunStdio creates a server from cfg and runs it over stdin/stdout.
func RunStdio(ctx context.Context, cfg Config) error {
	core, err := New(cfg)
	if err != nil {
		return err
	}
	return server.RunStdio(ctx, core, cfg.serverOptions())
}
