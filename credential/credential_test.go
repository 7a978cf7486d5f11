package credential

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestResolvePrecedence(t *testing.T) {
	tests := []struct {
		name                       string
		perCall, ambient, fallback string
		wantToken                  string
		wantSource                 Source
		wantOK                     bool
	}{
		{"per call wins", "X", "Y", "Z", "X", SourcePerCall, true},
		{"ambient over default", "", "Y", "Z", "Y", SourceAmbient, true},
		{"default only", "", "", "Z", "Z", SourceDefault, true},
		{"nothing", "", "", "", "", SourceNone, false},
		{"per call without ambient", "X", "", "", "X", SourcePerCall, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, source, ok := Resolve(tt.perCall, tt.ambient, tt.fallback)
			if token != tt.wantToken || source != tt.wantSource || ok != tt.wantOK {
				t.Fatalf("Resolve(%q, %q, %q) = (%q, %q, %v), want (%q, %q, %v)",
					tt.perCall, tt.ambient, tt.fallback, token, source, ok, tt.wantToken, tt.wantSource, tt.wantOK)
			}
		})
	}
}

func TestAmbientOutsideScope(t *testing.T) {
	if token, ok := Ambient(context.Background()); ok {
		t.Fatalf("Ambient() = %q, want none", token)
	}
}

func TestWithAmbientBlankIsNone(t *testing.T) {
	ctx := WithAmbient(context.Background(), "   ")
	if _, ok := Ambient(ctx); ok {
		t.Fatal("blank token should not be bound")
	}
}

func TestAmbientVisibleAcrossGoroutines(t *testing.T) {
	ctx := WithAmbient(context.Background(), "A")
	got := make(chan string, 1)
	go func(ctx context.Context) {
		token, _ := Ambient(ctx)
		got <- token
	}(ctx)
	if token := <-got; token != "A" {
		t.Fatalf("Ambient() in child goroutine = %q, want A", token)
	}
}

func TestAmbientIsolation(t *testing.T) {
	base := context.Background()
	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make(chan string, 200)

	for i := range 100 {
		want := "token-a"
		if i%2 == 1 {
			want = "token-b"
		}
		wg.Add(1)
		go func(ctx context.Context, want string) {
			defer wg.Done()
			<-start
			for range 50 {
				token, _ := Ambient(ctx)
				if token != want {
					errs <- token
					return
				}
			}
		}(WithAmbient(base, want), want)
	}
	close(start)
	wg.Wait()
	close(errs)

	for token := range errs {
		t.Errorf("request observed foreign token %q", token)
	}
	if _, ok := Ambient(base); ok {
		t.Fatal("parent context must not see a child binding")
	}
}

func TestFromAuthorization(t *testing.T) {
	tests := []struct {
		header string
		want   string
		wantOK bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer   abc ", "abc", true},
		{"BEARER abc", "abc", true},
		{"abc", "abc", true},
		{"Bearer ", "", false},
		{"Bearer", "", false},
		{"  bearer \t ", "", false},
		{"Bearer\tabc", "abc", true},
		{"BearerXYZ", "BearerXYZ", true},
		{"   ", "", false},
		{"", "", false},
		{"Basic dXNlcjpwYXNz", "Basic dXNlcjpwYXNz", true},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			got, ok := FromAuthorization(tt.header)
			if got != tt.want || ok != tt.wantOK {
				t.Fatalf("FromAuthorization(%q) = (%q, %v), want (%q, %v)", tt.header, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestFingerprint(t *testing.T) {
	if got := Fingerprint(""); got != "" {
		t.Fatalf("Fingerprint(\"\") = %q, want empty", got)
	}
	a, b := Fingerprint("secret-a"), Fingerprint("secret-b")
	if len(a) != 16 {
		t.Fatalf("len(Fingerprint) = %d, want 16", len(a))
	}
	if a == b {
		t.Fatal("distinct tokens produced the same fingerprint")
	}
	if a != Fingerprint("secret-a") {
		t.Fatal("Fingerprint is not deterministic")
	}
}

func TestInspectJWT(t *testing.T) {
	exp := time.Now().Add(-time.Hour).Truncate(time.Second)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "http://cilogon.org/serverA/users/1",
		"email": "alice@example.org",
		"uuid":  "u-1",
		"exp":   exp.Unix(),
	}).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}

	claims, ok := Inspect(signed)
	if !ok {
		t.Fatal("Inspect() ok = false, want true")
	}
	if got, want := claims.Email, "alice@example.org"; got != want {
		t.Fatalf("Email = %q, want %q", got, want)
	}
	if got, want := claims.UUID, "u-1"; got != want {
		t.Fatalf("UUID = %q, want %q", got, want)
	}
	if !claims.ExpiresAt.Equal(exp) {
		t.Fatalf("ExpiresAt = %v, want %v", claims.ExpiresAt, exp)
	}
	if !claims.Expired(time.Now()) {
		t.Fatal("Expired() = false, want true")
	}
}

func TestInspectOpaqueToken(t *testing.T) {
	if _, ok := Inspect("not-a-jwt"); ok {
		t.Fatal("Inspect(opaque) ok = true, want false")
	}
	if (Claims{}).Expired(time.Now()) {
		t.Fatal("zero Claims should never be expired")
	}
}
