// Command reports-mcp runs the FABRIC reports MCP gateway over HTTP or stdio.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	reportsmcp "github.com/fabric-testbed/reports-mcp"
)

var version = "dev"

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{}))
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		logger.Error("reports-mcp failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, args []string, stdout, stderr io.Writer) error {
	cmd := "serve"
	if len(args) > 0 {
		cmd = args[0]
	}

	switch cmd {
	case "serve":
		return ignoreCanceled(reportsmcp.ListenAndServe(ctx, config(logger)))
	case "stdio":
		return ignoreCanceled(reportsmcp.RunStdio(ctx, config(logger)))
	case "help", "-h", "--help":
		printHelp(stdout)
		return nil
	case "version", "-v", "--version":
		_, _ = fmt.Fprintf(stdout, "reports-mcp %s\n", version)
		return nil
	default:
		printHelp(stderr)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func config(logger *slog.Logger) reportsmcp.Config {
	return reportsmcp.Config{Logger: logger, Version: version}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func printHelp(w io.Writer) {
	_, _ = fmt.Fprintln(w, "reports-mcp - MCP gateway for the FABRIC reports API")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "Usage:")
	_, _ = fmt.Fprintln(w, "  reports-mcp            Serve MCP over HTTP on MCP_SERVER_PORT (default)")
	_, _ = fmt.Fprintln(w, "  reports-mcp serve      Same as above")
	_, _ = fmt.Fprintln(w, "  reports-mcp stdio      Serve MCP over stdin/stdout")
	_, _ = fmt.Fprintln(w, "  reports-mcp help       Show this help")
	_, _ = fmt.Fprintln(w, "  reports-mcp version    Show version")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "Environment:")
	_, _ = fmt.Fprintln(w, "  MCP_SERVER_PORT        HTTP port (4000)")
	_, _ = fmt.Fprintln(w, "  MCP_API_URL            reports API base URL")
	_, _ = fmt.Fprintln(w, "  MCP_API_TOKEN          default bearer token")
	_, _ = fmt.Fprintln(w, "  MCP_REQUEST_TIMEOUT    reports API call timeout (30s)")
	_, _ = fmt.Fprintln(w, "  FABRIC_RC              directory or file with fabric_rc exports")
	_, _ = fmt.Fprintln(w, "  FABRIC_TOKEN_LOCATION  JSON token file (id_token)")
	_, _ = fmt.Fprintln(w, "  FABRIC_TOKEN           default bearer token, used last")
}
