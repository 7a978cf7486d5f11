package output

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func textOf(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("len(Content) = %d, want 1", len(res.Content))
	}
	tc, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("Content[0] = %T, want *mcp.TextContent", res.Content[0])
	}
	return tc.Text
}

func TestText(t *testing.T) {
	res := Text("Retrieved 3 users.")
	if got, want := textOf(t, res), "Retrieved 3 users."; got != want {
		t.Fatalf("text = %q, want %q", got, want)
	}
	if res.IsError {
		t.Fatal("IsError = true, want false")
	}
}

func TestFailure(t *testing.T) {
	res := Failure("Failed to retrieve sites data")
	if got, want := textOf(t, res), "Failed to retrieve sites data"; got != want {
		t.Fatalf("text = %q, want %q", got, want)
	}
	if !res.IsError {
		t.Fatal("IsError = false, want true")
	}
}

func TestCount(t *testing.T) {
	if got, want := Count(0, "slices"), "Retrieved 0 slices."; got != want {
		t.Fatalf("Count() = %q, want %q", got, want)
	}
	if got, want := Count(12, "user memberships"), "Retrieved 12 user memberships."; got != want {
		t.Fatalf("Count() = %q, want %q", got, want)
	}
}

func TestFieldsClipsValues(t *testing.T) {
	long := strings.Repeat("a", 1000)
	got := Fields("User: %s, Email: %s", long, "a@x.com")
	if !strings.HasSuffix(got, ", Email: a@x.com") {
		t.Fatalf("Fields() = %q, want email preserved", got)
	}
	if len(got) > MaxFieldBytes+len("User: , Email: a@x.com") {
		t.Fatalf("len(Fields()) = %d, value was not clipped", len(got))
	}
}

func TestClip(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		max      int
		wantLen  int
		wantSame bool
	}{
		{"under limit", "hello", 10, 5, true},
		{"at limit", "hello", 5, 5, true},
		{"zero", "hello", 0, 0, false},
		{"tiny limit", strings.Repeat("x", 100), 4, 4, false},
		{"head and tail", strings.Repeat("x", 500) + "END", 100, 100, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Clip(tt.in, tt.max)
			if len(got) != tt.wantLen {
				t.Fatalf("len(Clip()) = %d, want %d", len(got), tt.wantLen)
			}
			if tt.wantSame && got != tt.in {
				t.Fatalf("Clip() = %q, want unchanged", got)
			}
		})
	}

	got := Clip(strings.Repeat("x", 500)+"END", 100)
	if !strings.HasSuffix(got, "END") || !strings.Contains(got, "[503 bytes]") {
		t.Fatalf("Clip() = %q, want tail and marker", got)
	}
}

func TestClipKeepsRunesWhole(t *testing.T) {
	in := strings.Repeat("é", 300) + strings.Repeat("日本", 50)
	for _, max := range []int{4, 5, 17, 100, 101, 257} {
		got := Clip(in, max)
		if !utf8.ValidString(got) {
			t.Fatalf("Clip(max=%d) split a rune: %q", max, got)
		}
		if len(got) > max {
			t.Fatalf("len(Clip(max=%d)) = %d", max, len(got))
		}
	}
}
