package auth

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// CookieName is the cookie carrying the session token.
const CookieName = "token"

type contextKey string

const (
	userIDKey contextKey = "userID"
	claimsKey contextKey = "claims"
)

// Sessions validates session cookies. It bundles the token service with the
// revocation list so middleware and logout agree on what a live session is.
type Sessions struct {
	tokens  *TokenService
	revoker Revoker
	secure  bool
}

// NewSessions wires a Sessions. secure sets the cookie's Secure flag.
func NewSessions(tokens *TokenService, revoker Revoker, secure bool) *Sessions {
	return &Sessions{tokens: tokens, revoker: revoker, secure: secure}
}

// Tokens exposes the underlying token service.
func (s *Sessions) Tokens() *TokenService {
	return s.tokens
}

// SetCookie stores a freshly issued token on the response.
func (s *Sessions) SetCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.tokens.TTL().Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie tells the browser to drop the session cookie.
func (s *Sessions) ClearCookie(w http.ResponseWriter) {
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

// Revoke invalidates the session carried by r, if any. Logging out an
// anonymous request is not an error.
func (s *Sessions) Revoke(r *http.Request) error {
	c, ok := ClaimsFromContext(r.Context())
	if !ok {
		var err error
		c, err = s.extract(r)
		if err != nil {
			return nil
		}
	}
	if c.TokenID == "" {
		return nil
	}
	return s.revoker.Revoke(r.Context(), c.TokenID, c.ExpiresAt)
}

// RequireAuth rejects requests without a valid, unrevoked session with 401.
func (s *Sessions) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := s.extract(r)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"unauthorized","message":"valid authentication required"}` + "\n"))
			return
		}
		next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), c)))
	})
}

// OptionalAuth resolves the session when there is one and lets anonymous
// requests through unchanged.
func (s *Sessions) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := s.extract(r); err == nil {
			r = r.WithContext(withClaims(r.Context(), c))
		}
		next.ServeHTTP(w, r)
	})
}

var errRevoked = errors.New("auth: token revoked")

func (s *Sessions) extract(r *http.Request) (*Claims, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return nil, err
	}

	c, err := s.tokens.Parse(cookie.Value)
	if err != nil {
		return nil, err
	}

	if c.TokenID != "" {
		revoked, err := s.revoker.IsRevoked(r.Context(), c.TokenID)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, errRevoked
		}
	}
	return c, nil
}

func withClaims(ctx context.Context, c *Claims) context.Context {
	ctx = context.WithValue(ctx, claimsKey, c)
	return context.WithValue(ctx, userIDKey, c.UserID)
}

// WithUserID returns a context carrying userID, as the middleware would set
// it. Used by tests and by code running outside an HTTP request.
func WithUserID(ctx context.Context, userID string) context.Context {
	return withClaims(ctx, &Claims{UserID: userID, ExpiresAt: time.Now().Add(DefaultTokenTTL)})
}

// UserIDFromContext returns the authenticated user's id, or ("", false) for
// anonymous requests.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// ClaimsFromContext returns the session claims stored by the middleware.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*Claims)
	return c, ok && c != nil
}
