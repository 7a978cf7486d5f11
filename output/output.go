// Package output builds the text results returned by reports tools.
package output

import (
	"fmt"
	"unicode/utf8"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// MaxFieldBytes bounds a single backend value quoted in a summary.
	MaxFieldBytes = 256
	// MaxTextBytes bounds a whole summary.
	MaxTextBytes = 4096
)

// Text wraps a summary sentence in a tool result.
func Text(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: Clip(text, MaxTextBytes)}},
	}
}

// Failure is the result for an operation whose backend call failed. The call
// itself still succeeds at the protocol level.
func Failure(text string) *mcp.CallToolResult {
	res := Text(text)
	res.IsError = true
	return res
}

// Count formats a collection summary, e.g. "Retrieved 3 users.".
func Count(n int, noun string) string {
	return fmt.Sprintf("Retrieved %d %s.", n, noun)
}

// Fields formats a sentence from backend values, clipping each value.
func Fields(format string, values ...string) string {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = Clip(v, MaxFieldBytes)
	}
	return fmt.Sprintf(format, args...)
}

// Clip shortens s to at most maxBytes, keeping the head and tail around a
// marker. Cuts fall on rune boundaries.
func Clip(s string, maxBytes int) string {
	data := []byte(s)
	total := len(data)
	if total <= maxBytes {
		return s
	}
	if maxBytes <= 0 {
		return ""
	}

	marker := []byte(fmt.Sprintf(" ...[%d bytes]... ", total))
	if maxBytes <= len(marker) {
		cut := maxBytes
		for cut > 0 && !utf8.RuneStart(data[cut]) {
			cut--
		}
		return string(data[:cut])
	}

	budget := maxBytes - len(marker)
	head := budget * 3 / 4
	tail := budget - head

	for head > 0 && !utf8.RuneStart(data[head]) {
		head--
	}
	start := total - tail
	for start < total && !utf8.RuneStart(data[start]) {
		start++
	}

	out := make([]byte, 0, maxBytes)
	out = append(out, data[:head]...)
	out = append(out, marker...)
	out = append(out, data[start:]...)
	return string(out)
}
