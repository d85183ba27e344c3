// pkg/mapillary/session.go - Access token holder
package mapillary

import (
	"strings"
)

// Session holds the access token used by every authorized call. It is
// created once and never changes; pass the same session to as many clients
// as needed.
type Session struct {
	token string
}

// NewSession creates a session for token. Surrounding whitespace is trimmed.
func NewSession(token string) *Session {
	return &Session{token: strings.TrimSpace(token)}
}

// Authenticated reports whether the session carries a token
func (s *Session) Authenticated() bool {
	return s != nil && s.token != ""
}

// Token returns the access token, or ErrNotAuthenticated when there is none
func (s *Session) Token() (string, error) {
	if !s.Authenticated() {
		return "", ErrNotAuthenticated
	}
	return s.token, nil
}

// String never reveals the token
func (s *Session) String() string {
	if !s.Authenticated() {
		return "Session(unauthenticated)"
	}
	return "Session(" + redacted + ")"
}
