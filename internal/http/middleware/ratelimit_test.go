package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

func TestKeyFuncs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = net.JoinHostPort("203.0.113.9", "12345")
	c.Request = req

	if got := KeyByUserOrIP()(c); got != "ip:203.0.113.9" {
		t.Fatalf("expected ip key, got %q", got)
	}
	c.Set(ctxUserID, "staff-1")
	if got := KeyByUserOrIP()(c); got != "user:staff-1" {
		t.Fatalf("expected user key, got %q", got)
	}
	if got := KeyByIP()(c); got != "ip:203.0.113.9" {
		t.Fatalf("KeyByIP must ignore the user, got %q", got)
	}
}

func TestNewRateLimiter_BurstCoercionAndReuse(t *testing.T) {
	rl := NewRateLimiter(2, 0, KeyByIP())
	if rl.burst != 1 {
		t.Fatalf("burst coercion failed, got %d", rl.burst)
	}
	lim := rl.getVisitor("k1")
	if rl.getVisitor("k1") != lim {
		t.Fatalf("expected limiter reuse")
	}
}

func TestRateLimiter_EvictsIdleVisitors(t *testing.T) {
	rl := NewRateLimiter(1, 1, KeyByIP())
	rl.ttl = time.Nanosecond

	rl.mu.Lock()
	rl.visitors["old"] = &visitor{limiter: rate.NewLimiter(1, 1), lastSeen: time.Now().Add(-time.Hour)}
	rl.cleanupN = gcEvery - 1
	rl.mu.Unlock()

	_ = rl.getVisitor("new")

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.visitors["old"]; ok {
		t.Fatalf("expected old visitor evicted")
	}
	if _, ok := rl.visitors["new"]; !ok {
		t.Fatalf("expected new visitor created")
	}
}

func TestRateLimiter_RetryAfter(t *testing.T) {
	cases := []struct {
		rps  float64
		want string
	}{
		{5, "1"},
		{0.5, "2"},
		{0.1, "10"},
		{0, "60"},
	}
	for _, tc := range cases {
		if got := NewRateLimiter(tc.rps, 1, KeyByIP()).retryAfter(); got != tc.want {
			t.Fatalf("rps=%v retryAfter=%q; want %q", tc.rps, got, tc.want)
		}
	}
}

func TestRateLimiter_Handler_AllowDenyBypass(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(1, 1, KeyByUserOrIP())

	r := gin.New()
	r.Use(func(c *gin.Context) { c.Header(requestIDHeader, "rid-1"); c.Next() })
	r.Use(rl.Handler())
	r.POST("/auth/login", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/login", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("first request should pass, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/login", nil))
	if w.Code != http.StatusTooManyRequests || w.Header().Get("Retry-After") != "1" {
		t.Fatalf("second request: code=%d retry=%q", w.Code, w.Header().Get("Retry-After"))
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body["code"] != "rate_limited" || body["request_id"] != "rid-1" {
		t.Fatalf("unexpected body: %v", body)
	}

	rb := gin.New()
	rb.Use(func(c *gin.Context) { c.Set(ctxKeyRateBypass, true); c.Next() })
	rb.Use(rl.Handler())
	rb.POST("/auth/login", func(c *gin.Context) { c.Status(http.StatusOK) })
	w = httptest.NewRecorder()
	rb.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/login", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("bypass should pass, got %d", w.Code)
	}
}
