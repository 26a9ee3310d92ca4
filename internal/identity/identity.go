// Package identity turns an optional HS256 token into a verified display name.
package identity

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/lixenwraith/auth"
)

var (
	ErrNoToken      = errors.New("no token")
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrNoUsername   = errors.New("token carries no username claim")
)

// UsernameClaim is the claim holding the display name.
const UsernameClaim = "username"

// Verifier validates tokens signed with a shared secret. A nil Verifier
// accepts nobody, so anonymous sessions stay anonymous.
type Verifier struct {
	secret []byte
}

// New returns nil when secret is empty.
func New(secret string) *Verifier {
	if strings.TrimSpace(secret) == "" {
		return nil
	}
	return &Verifier{secret: []byte(secret)}
}

func (v *Verifier) Enabled() bool { return v != nil }

// Verify returns the username claim of a valid token.
func (v *Verifier) Verify(token string) (string, error) {
	if v == nil {
		return "", ErrNoToken
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrNoToken
	}
	_, claims, err := auth.ValidateHS256Token(v.secret, token)
	if err != nil {
		return "", errors.Join(ErrInvalidToken, err)
	}
	name, _ := claims[UsernameClaim].(string)
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrNoUsername
	}
	return name, nil
}

// FromRequest reads the token from the "token" query parameter, falling back
// to an Authorization: Bearer header. Browsers cannot set headers on a
// WebSocket upgrade, hence the query form.
func (v *Verifier) FromRequest(r *http.Request) (string, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = BearerToken(r.Header.Get("Authorization"))
	}
	return v.Verify(token)
}

// Issue signs a token for name. Used by tests and the relaycheck client.
func (v *Verifier) Issue(userID, name string, ttl time.Duration) (string, error) {
	if v == nil {
		return "", ErrNoToken
	}
	return auth.GenerateHS256Token(v.secret, userID, map[string]any{UsernameClaim: name}, ttl)
}

func BearerToken(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}
