// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements Idempotency-Key support for create endpoints
// (POST /reports, POST /chat/messages). The middleware validates the header,
// asks a lookup whether (user, scope, key) already produced a resource, and
// annotates the Gin context so that:
//   - handlers read the key (GetIdempotencyKey) and the replayed resource id
//     (ReplayResourceID)
//   - the rate limiter skips replays
//
// Persistence stays behind the IdempotencyLookup function type.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey is the request header carrying the idempotency key.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	ctxKeyIdemKey      = "idem.key"
	ctxKeyIdemScope    = "idem.scope"
	ctxKeyIdemResource = "idem.resource" // string: resource id of the stored result
	ctxKeyRateBypass   = "rate.bypass"   // bool: skip rate limiting
)

var defaultIdemPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// GetIdempotencyKey returns the validated key stashed by IdempotencyValidator.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	s := c.GetString(ctxKeyIdemKey)
	return s, s != ""
}

// IdempotencyScope returns the operation scope configured for this route.
func IdempotencyScope(c *gin.Context) string { return c.GetString(ctxKeyIdemScope) }

// ReplayResourceID returns the id of the resource a previous request with the
// same key produced. The second value is false when this is not a replay.
func ReplayResourceID(c *gin.Context) (string, bool) {
	s := c.GetString(ctxKeyIdemResource)
	return s, s != ""
}

// IsReplay reports whether a stored result exists for this request.
func IsReplay(c *gin.Context) bool {
	_, ok := ReplayResourceID(c)
	return ok
}

// IdempotencyOptions configures header validation for IdempotencyValidator.
type IdempotencyOptions struct {
	// Scope names the operation, e.g. "reports". Required.
	Scope string
	// MaxLen caps the accepted key length. Values <= 0 default to 200.
	MaxLen int
	// Pattern restricts allowed characters. Defaults to ^[A-Za-z0-9._~\-:]+$.
	Pattern *regexp.Regexp
}

// IdempotencyLookup returns the resource id stored for (userID, scope, key)
// when a still-valid record exists. TTL is enforced by the implementation.
// Errors are treated as a miss.
type IdempotencyLookup func(ctx context.Context, userID, scope, key string, now time.Time) (resourceID string, found bool, err error)

// IdempotencyValidator validates the Idempotency-Key header when present and
// marks replays. An invalid key answers 400 bad_idempotency_key. It must run
// after authentication so records are scoped per user.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultIdemPattern
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.GetString(requestIDKey),
				"code":       "bad_idempotency_key",
				"message":    "invalid Idempotency-Key",
			})
			return
		}

		c.Set(ctxKeyIdemKey, key)
		c.Set(ctxKeyIdemScope, opts.Scope)

		if lookup != nil {
			rid, found, err := lookup(c.Request.Context(), c.GetString(ctxUserID), opts.Scope, key, time.Now().UTC())
			if err != nil {
				LoggerFrom(c).Warn().Err(err).Str("scope", opts.Scope).Msg("idempotency lookup failed")
			}
			if found && rid != "" {
				c.Set(ctxKeyIdemResource, rid)
				c.Set(ctxKeyRateBypass, true)
			}
		}

		c.Next()
	}
}
