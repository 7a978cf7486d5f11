// Package credential resolves which bearer token an outbound reports API call
// carries, and keeps the inbound request's token in its context.
package credential

import (
	"context"
	"strings"
)

const bearerScheme = "bearer"

type ambientKey struct{}

// WithAmbient returns a copy of ctx carrying token as the request's ambient
// credential. Everything reached through the returned context sees it;
// sibling requests never do. A blank token leaves ctx unchanged.
func WithAmbient(ctx context.Context, token string) context.Context {
	token = strings.TrimSpace(token)
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, ambientKey{}, token)
}

// Ambient returns the credential bound by WithAmbient, if any.
func Ambient(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	token, ok := ctx.Value(ambientKey{}).(string)
	return token, ok && token != ""
}

// FromAuthorization extracts a token from an Authorization header value.
// The "Bearer" scheme is matched case-insensitively and a scheme with nothing
// after it means no token. A value without a scheme is used verbatim.
func FromAuthorization(header string) (string, bool) {
	header = strings.TrimLeft(header, " \t")
	if len(header) >= len(bearerScheme) && strings.EqualFold(header[:len(bearerScheme)], bearerScheme) {
		rest := header[len(bearerScheme):]
		if rest == "" || rest[0] == ' ' || rest[0] == '\t' {
			rest = strings.TrimSpace(rest)
			return rest, rest != ""
		}
	}
	header = strings.TrimSpace(header)
	return header, header != ""
}
