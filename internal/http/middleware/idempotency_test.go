package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestIdempotencyHelpers_Defaults(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)

	if k, ok := GetIdempotencyKey(c); k != "" || ok {
		t.Fatalf("expected no key")
	}
	if IsReplay(c) || IdempotencyScope(c) != "" {
		t.Fatalf("expected no replay and no scope")
	}
	c.Set(ctxKeyIdemKey, 123)
	if _, ok := GetIdempotencyKey(c); ok {
		t.Fatalf("non-string key must read as absent")
	}
}

func TestIdempotencyValidator_NoHeader_NoLookup(t *testing.T) {
	gin.SetMode(gin.TestMode)
	called := false
	lookup := func(context.Context, string, string, string, time.Time) (string, bool, error) {
		called = true
		return "", false, nil
	}

	r := gin.New()
	r.Use(IdempotencyValidator(IdempotencyOptions{Scope: "reports"}, lookup))
	r.POST("/reports", func(c *gin.Context) {
		if _, ok := GetIdempotencyKey(c); ok {
			t.Fatalf("key should be absent")
		}
		c.Status(http.StatusCreated)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/reports", nil))
	if w.Code != http.StatusCreated || called {
		t.Fatalf("code=%d lookupCalled=%v", w.Code, called)
	}
}

func TestIdempotencyValidator_InvalidKeys(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(IdempotencyValidator(IdempotencyOptions{
		Scope:   "reports",
		MaxLen:  8,
		Pattern: regexp.MustCompile(`^[a-z]+$`),
	}, nil))
	r.POST("/reports", func(c *gin.Context) { c.Status(http.StatusCreated) })

	for _, key := range []string{"toolongkey", "BAD", "sp ace"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/reports", nil)
		req.Header.Set(HeaderIdempotencyKey, key)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("key %q: code=%d; want 400", key, w.Code)
		}
		var body map[string]any
		_ = json.Unmarshal(w.Body.Bytes(), &body)
		if body["code"] != "bad_idempotency_key" {
			t.Fatalf("key %q: body=%v", key, body)
		}
	}
}

func TestIdempotencyValidator_ReplayScopedPerUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var gotUser, gotScope, gotKey string
	lookup := func(_ context.Context, userID, scope, key string, _ time.Time) (string, bool, error) {
		gotUser, gotScope, gotKey = userID, scope, key
		if userID == "staff-1" && key == "k-1" {
			return "report-77", true, nil
		}
		return "", false, nil
	}

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(ctxUserID, c.GetHeader("X-Test-User"))
		c.Next()
	})
	r.Use(IdempotencyValidator(IdempotencyOptions{Scope: "reports"}, lookup))
	r.POST("/reports", func(c *gin.Context) {
		rid, replay := ReplayResourceID(c)
		c.JSON(http.StatusOK, gin.H{
			"replay":   replay,
			"resource": rid,
			"bypass":   IsRateBypass(c),
			"scope":    IdempotencyScope(c),
		})
	})

	send := func(user string) map[string]any {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/reports", nil)
		req.Header.Set(HeaderIdempotencyKey, "k-1")
		req.Header.Set("X-Test-User", user)
		r.ServeHTTP(w, req)
		var body map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("json: %v", err)
		}
		return body
	}

	b := send("staff-1")
	if b["replay"] != true || b["resource"] != "report-77" || b["bypass"] != true || b["scope"] != "reports" {
		t.Fatalf("expected replay for owner, got %v", b)
	}
	if gotUser != "staff-1" || gotScope != "reports" || gotKey != "k-1" {
		t.Fatalf("lookup args = %q %q %q", gotUser, gotScope, gotKey)
	}

	b = send("staff-2")
	if b["replay"] != false || b["bypass"] != false {
		t.Fatalf("another user must not replay: %v", b)
	}
}

func TestIdempotencyValidator_LookupErrorIsMiss(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)
	lookup := func(context.Context, string, string, string, time.Time) (string, bool, error) {
		return "", false, errors.New("db down")
	}

	r := gin.New()
	r.Use(IdempotencyValidator(IdempotencyOptions{Scope: "chat_messages"}, lookup))
	r.POST("/chat/messages", func(c *gin.Context) {
		if IsReplay(c) {
			t.Fatalf("lookup error must not mark replay")
		}
		c.Status(http.StatusCreated)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/chat/messages", nil)
	req.Header.Set(HeaderIdempotencyKey, "abc")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("code=%d", w.Code)
	}
	if !strings.Contains(buf.String(), "idempotency lookup failed") {
		t.Fatalf("expected warning log, got %s", buf.String())
	}
}
