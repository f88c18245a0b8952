package auth

import (
	"net/http"
	"time"
)

// CookieName is the session cookie. The token inside it is the only session
// state in the system; there is no server-side session table.
const CookieName = "session"

// SessionTTL bounds the lifetime of every issued token.
const SessionTTL = 7 * 24 * time.Hour

// Sessions manages the cookie-based session lifecycle. It is stateless:
// every method takes the request or response it operates on explicitly.
type Sessions struct {
	codec  *TokenCodec
	secure bool
	ttl    time.Duration
}

// NewSessions builds a session manager around a token codec. secure controls
// the cookie's Secure attribute and should be true in production.
func NewSessions(codec *TokenCodec, secure bool) *Sessions {
	return &Sessions{codec: codec, secure: secure, ttl: SessionTTL}
}

// Issue mints a session token for subject and sets it as the session cookie
// on w. Expiry is now + 7 days, carried inside the encrypted payload as well
// as in the cookie's own MaxAge.
func (s *Sessions) Issue(w http.ResponseWriter, subject string) error {
	payload := SessionPayload{
		Subject:   subject,
		ExpiresAt: time.Now().Add(s.ttl).UnixMilli(),
	}
	token, err := s.codec.Encrypt(payload)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Read performs the authoritative identity check: cookie, decrypt, expiry.
// It returns the session subject, or "" and false when there is no valid
// session. Every privileged handler must call this (the perimeter gate only
// screens token shape).
func (s *Sessions) Read(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	payload, ok := s.codec.Decrypt(cookie.Value)
	if !ok {
		return "", false
	}
	return payload.Subject, true
}

// Clear expires the session cookie. Clearing an absent cookie is a no-op,
// so logout is idempotent.
func (s *Sessions) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
