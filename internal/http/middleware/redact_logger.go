// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements RedactingLogger, an access logger that scrubs PII from
// request metadata before it is written. Helpdesk traffic carries reporter
// phone numbers, user emails and bearer tokens, so the router installs it
// in place of Logger() when LOG_REDACT is on. Bodies are never logged.
package middleware

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const redactedValue = "[REDACTED]"

// RedactOptions configures additional scrub behavior for RedactingLogger.
type RedactOptions struct {
	// MaskHeaders are extra header names (case-insensitive) whose values are
	// replaced wholesale, on top of Authorization, Cookie and Set-Cookie.
	MaskHeaders []string
	// MaskParams are extra query parameter names whose values are replaced
	// wholesale, on top of password, token and access_token.
	MaskParams []string
}

// UUIDs are replaced before phone numbers so the phone pattern never eats the
// digit groups of an id.
var (
	uuidRE  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`)
	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	// Matches "+62 812-3456-7890", "081234567890", "(021) 555-1212".
	phoneRE = regexp.MustCompile(`(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
)

// Redact replaces ids, emails and phone numbers in s with typed markers.
func Redact(s string) string {
	if s == "" {
		return s
	}
	s = uuidRE.ReplaceAllString(s, "[REDACTED:id]")
	s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
	return phoneRE.ReplaceAllString(s, "[REDACTED:phone]")
}

func lowerSet(base []string, extra []string) map[string]struct{} {
	m := make(map[string]struct{}, len(base)+len(extra))
	for _, s := range append(base, extra...) {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			m[s] = struct{}{}
		}
	}
	return m
}

// redactQuery masks the configured parameters and pattern-redacts the rest.
// Unparseable queries fall back to plain pattern redaction.
func redactQuery(raw string, masked map[string]struct{}) string {
	if raw == "" {
		return ""
	}
	vals, err := url.ParseQuery(raw)
	if err != nil {
		return Redact(raw)
	}
	for k, vv := range vals {
		_, mask := masked[strings.ToLower(k)]
		for i := range vv {
			if mask {
				vv[i] = redactedValue
			} else {
				vv[i] = Redact(vv[i])
			}
		}
	}
	// Encode escapes the markers' brackets; decode again for readable logs.
	out, err := url.QueryUnescape(vals.Encode())
	if err != nil {
		return vals.Encode()
	}
	return out
}

// RedactingLogger logs method, route, scrubbed query, scrubbed request
// headers, status, size, latency, and the authenticated actor. Level is info,
// warn for 4xx and error for 5xx.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	maskHeaders := lowerSet([]string{"authorization", "cookie", "set-cookie"}, opts.MaskHeaders)
	maskParams := lowerSet([]string{"password", "token", "access_token"}, opts.MaskParams)

	return func(c *gin.Context) {
		start := time.Now()
		path := routeOf(c)
		safeQuery := redactQuery(c.Request.URL.RawQuery, maskParams)

		rid, _ := c.Get(requestIDKey)
		attachLogger(c, log.With().
			Str("request_id", asString(rid)).
			Str("method", c.Request.Method).
			Str("path", path).
			Logger())

		safeHeaders := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if _, ok := maskHeaders[strings.ToLower(k)]; ok {
				safeHeaders[k] = redactedValue
				continue
			}
			safeHeaders[k] = Redact(strings.Join(vv, ", "))
		}

		c.Next()

		status := c.Writer.Status()
		reqID := c.Writer.Header().Get(requestIDHeader)
		if reqID == "" {
			reqID = c.GetHeader(requestIDHeader)
		}

		ev := log.Info()
		switch {
		case status >= 500:
			ev = log.Error()
		case status >= 400:
			ev = log.Warn()
		}

		ev.
			Str("request_id", reqID).
			Str("user_id", c.GetString(ctxUserID)).
			Str("role", c.GetString(ctxRole)).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", safeQuery).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", safeHeaders).
			Msg("http_request")
	}
}
