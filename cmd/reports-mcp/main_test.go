package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
)

func TestRunHelpAndVersion(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var out bytes.Buffer
	if err := run(context.Background(), logger, []string{"help"}, &out, io.Discard); err != nil {
		t.Fatalf("run(help) error = %v", err)
	}
	if !strings.Contains(out.String(), "reports-mcp stdio") {
		t.Fatalf("help output missing stdio usage:\n%s", out.String())
	}

	out.Reset()
	if err := run(context.Background(), logger, []string{"--version"}, &out, io.Discard); err != nil {
		t.Fatalf("run(--version) error = %v", err)
	}
	if got, want := out.String(), "reports-mcp dev\n"; got != want {
		t.Fatalf("version output = %q, want %q", got, want)
	}
}

func TestRunUnknownCommand(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var errOut bytes.Buffer
	if err := run(context.Background(), logger, []string{"bogus"}, io.Discard, &errOut); err == nil {
		t.Fatal("run(bogus) expected error")
	}
	if !strings.Contains(errOut.String(), "Usage:") {
		t.Fatalf("expected help on stderr, got:\n%s", errOut.String())
	}
}
