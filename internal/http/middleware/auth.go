// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves the caller from an "Authorization: Bearer <token>"
// header and gates routes on the casbin role policy. Authenticated requests
// carry these Gin context keys:
//
//	userID  string        the actor's id
//	role    string        the actor's role
//	user    *domain.User  the actor
//	session string        the session id (the token's jti)
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-helpdesk-backend/internal/domain"
)

const (
	ctxUserID    = "userID"
	ctxRole      = "role"
	ctxUser      = "user"
	ctxSessionID = "session"
)

// ErrUnauthenticated is what an Authenticator returns for tokens that do not
// name a live session. Other errors are treated as server failures.
var ErrUnauthenticated = errors.New("unauthenticated")

// Authenticator resolves a bearer token to its user and session.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.User, *domain.Session, error)
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(ctx context.Context, token string) (*domain.User, *domain.Session, error)

// Authenticate implements Authenticator.
func (f AuthenticatorFunc) Authenticate(ctx context.Context, token string) (*domain.User, *domain.Session, error) {
	return f(ctx, token)
}

// Policy answers role permission checks.
type Policy interface {
	Enforce(role, obj, act string) (bool, error)
}

// RequireAuth rejects requests without a valid bearer token with 401
// unauthorized. isUnauth classifies authenticator errors; nil means only
// ErrUnauthenticated counts as a client error.
func RequireAuth(a Authenticator, isUnauth func(error) bool) gin.HandlerFunc {
	if isUnauth == nil {
		isUnauth = func(err error) bool { return errors.Is(err, ErrUnauthenticated) }
	}
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}

		u, sess, err := a.Authenticate(c.Request.Context(), token)
		switch {
		case err != nil && isUnauth(err):
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "invalid or expired session")
			return
		case err != nil:
			LoggerFrom(c).Error().Err(err).Msg("authenticate")
			abortJSON(c, http.StatusInternalServerError, "internal_error", "internal server error")
			return
		}

		c.Set(ctxUserID, u.ID)
		c.Set(ctxRole, string(u.Role))
		c.Set(ctxUser, u)
		if sess != nil {
			c.Set(ctxSessionID, sess.ID)
		}
		WithActor(c, u.ID, string(u.Role))
		c.Next()
	}
}

// Authorize lets the request through only when the actor's role may perform
// action on resource. It must run after RequireAuth.
func Authorize(p Policy, resource, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(ctxRole)
		if role == "" {
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		allowed, err := p.Enforce(role, resource, action)
		if err != nil {
			LoggerFrom(c).Error().Err(err).Msg("authorize")
			abortJSON(c, http.StatusInternalServerError, "internal_error", "internal server error")
			return
		}
		if !allowed {
			LoggerFrom(c).Debug().Str("resource", resource).Str("action", action).Msg("permission denied")
			abortJSON(c, http.StatusForbidden, "forbidden", "insufficient permissions")
			return
		}
		c.Next()
	}
}

// CurrentUser returns the actor stored by RequireAuth.
func CurrentUser(c *gin.Context) (*domain.User, bool) {
	v, ok := c.Get(ctxUser)
	if !ok {
		return nil, false
	}
	u, ok := v.(*domain.User)
	return u, ok && u != nil
}

// SessionID returns the session id stored by RequireAuth.
func SessionID(c *gin.Context) string { return c.GetString(ctxSessionID) }

// bearerToken extracts the token from an Authorization header value. The
// scheme is matched case-insensitively.
func bearerToken(h string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(h), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func abortJSON(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       code,
		"message":    msg,
	})
}
