package credential

import (
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/blake2b"
)

// Fingerprint returns a short, non-reversible identifier for token so that log
// lines can correlate calls without recording the credential.
func Fingerprint(token string) string {
	if token == "" {
		return ""
	}
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}

// Claims are the identity fields of a FABRIC identity token. They are read
// without verifying the signature and only ever used for diagnostics; the
// reports API performs the real validation.
type Claims struct {
	Subject   string
	Email     string
	UUID      string
	ExpiresAt time.Time
}

// Expired reports whether the token carried an expiry before now.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// Inspect decodes token's JWT claims. Opaque tokens yield zero Claims and
// ok=false.
func Inspect(token string) (Claims, bool) {
	if token == "" {
		return Claims{}, false
	}
	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, mc); err != nil {
		return Claims{}, false
	}

	var c Claims
	if sub, err := mc.GetSubject(); err == nil {
		c.Subject = sub
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	if email, ok := mc["email"].(string); ok {
		c.Email = email
	}
	if id, ok := mc["uuid"].(string); ok {
		c.UUID = id
	}
	return c, true
}
