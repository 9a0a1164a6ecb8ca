package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

// ErrUnauthorized is returned when a request carries no acceptable credential.
var ErrUnauthorized = errors.New("unauthorized")

// Gate checks the shared API key and socket tokens. With no API key
// configured every request passes, though a presented token is still
// validated so it can bind a session.
type Gate struct {
	apiKey string
	tokens *JWTService
}

// NewGate creates a gate. tokens may be nil when socket tokens are disabled.
func NewGate(apiKey string, tokens *JWTService) *Gate {
	return &Gate{apiKey: apiKey, tokens: tokens}
}

// Enabled reports whether an API key is required.
func (g *Gate) Enabled() bool { return g.apiKey != "" }

// CheckKey reports whether key matches the configured API key.
func (g *Gate) CheckKey(key string) bool {
	if g.apiKey == "" {
		return true
	}
	return key != "" && subtle.ConstantTimeCompare([]byte(key), []byte(g.apiKey)) == 1
}

// AuthorizeRequest accepts the API key from x-api-key, a bearer header or
// the apiKey query parameter.
func (g *Gate) AuthorizeRequest(r *http.Request) error {
	if g.CheckKey(requestKey(r)) {
		return nil
	}
	return ErrUnauthorized
}

// AuthorizeSocket authorizes a socket upgrade. It returns the session a
// token is bound to, or "" when the caller may pick any session.
func (g *Gate) AuthorizeSocket(r *http.Request) (string, error) {
	if tok := r.URL.Query().Get("token"); tok != "" && g.tokens != nil {
		claims, err := g.tokens.Validate(tok)
		if err != nil {
			return "", ErrUnauthorized
		}
		return claims.SessionID, nil
	}
	key := requestKey(r)
	if g.CheckKey(key) {
		return "", nil
	}
	// A bearer value that is not the key may still be a socket token.
	if g.tokens != nil && key != "" {
		if claims, err := g.tokens.Validate(key); err == nil {
			return claims.SessionID, nil
		}
	}
	return "", ErrUnauthorized
}

func requestKey(r *http.Request) string {
	if k := r.Header.Get("x-api-key"); k != "" {
		return k
	}
	if h := r.Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return r.URL.Query().Get("apiKey")
}
