// Package httpapi wires the HTTP transport (Gin) to the helpdesk services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// compression, CORS, security headers, authentication, role checks,
// idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Every API route states the casbin (resource, action) it needs
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-helpdesk-backend/docs"
	"github.com/tbourn/go-helpdesk-backend/internal/config"
	"github.com/tbourn/go-helpdesk-backend/internal/http/handlers"
	"github.com/tbourn/go-helpdesk-backend/internal/http/middleware"
	"github.com/tbourn/go-helpdesk-backend/internal/markdown"
	"github.com/tbourn/go-helpdesk-backend/internal/permission"
	"github.com/tbourn/go-helpdesk-backend/internal/repo"
	"github.com/tbourn/go-helpdesk-backend/internal/services"
)

const (
	maxBodyBytes = 1 << 20

	// Login is keyed by client IP and kept well below the API budget to slow
	// password guessing.
	loginRPS   = 0.2
	loginBurst = 5

	// Idempotency scopes of the keyed create routes.
	scopeReports      = "reports"
	scopeChatMessages = "chat_messages"

	faqHTMLPolicy = "default-src 'none'; img-src https: data:; style-src 'unsafe-inline'; frame-ancestors 'none'"
)

// Services is the assembled service graph behind the API.
type Services struct {
	Auth          *services.AuthService
	Users         *services.UserService
	Reports       *services.ReportService
	Notifications *services.NotificationService
	FAQs          *services.FAQService
	Chat          *services.ChatService
	Policy        *permission.Enforcer
}

// NewServices constructs every service over db and loads the role policy.
func NewServices(db *gorm.DB, cfg config.Config) (*Services, error) {
	policy, err := permission.NewEnforcer(db, log.Logger)
	if err != nil {
		return nil, err
	}
	texts := services.NewTexts(cfg.NotifyLocale)
	return &Services{
		Auth:          services.NewAuthService(db, []byte(cfg.Auth.JWTSecret), cfg.Auth.SessionTTL),
		Users:         services.NewUserService(db, cfg.Auth.BcryptCost),
		Reports:       services.NewReportService(db, texts, cfg.ReportLockTTL),
		Notifications: services.NewNotificationService(db),
		FAQs:          services.NewFAQService(db, markdown.New()),
		Chat:          services.NewChatService(db, texts, cfg.NotifyStaffOnReply),
		Policy:        policy,
	}, nil
}

// idempotencyStore persists keyed creates in the idempotency table.
type idempotencyStore struct {
	db  *gorm.DB
	ttl time.Duration
}

// Remember records the resource a keyed create produced. A concurrent
// duplicate keeps the first record.
func (s idempotencyStore) Remember(ctx context.Context, userID, scope, key, resourceID string, status int) error {
	_, err := repo.CreateIdempotency(ctx, s.db, userID, scope, key, resourceID, status, s.ttl)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil
	}
	return err
}

// Lookup implements middleware.IdempotencyLookup.
func (s idempotencyStore) Lookup(ctx context.Context, userID, scope, key string, now time.Time) (string, bool, error) {
	rec, err := repo.GetIdempotency(ctx, s.db, userID, scope, key, now)
	if errors.Is(err, repo.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return rec.ResourceID, true, nil
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and mounts the versioned API under cfg.APIBasePath.
//
// Global middleware order:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Access logging (redacting when LOG_REDACT is on)
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Gzip (optional)
//  8. CORS and security headers
//
// API routes then run RequireAuth, the Idempotency validator on keyed
// creates (before the rate limiter so replays bypass it), the per-user rate
// limiter, and Authorize with the route's (resource, action).
func RegisterRoutes(r *gin.Engine, db *gorm.DB, svc *Services, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging, PII scrubbed by default
	if cfg.LogRedact {
		r.Use(middleware.RedactingLogger(middleware.RedactOptions{}))
	} else {
		r.Use(middleware.Logger())
	}

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(maxBodyBytes))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Compression
	if cfg.GzipEnabled {
		r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))
	}

	// 8) CORS posture and security headers
	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:    cfg.Security.EnableHSTS,
		HSTSMaxAge:    cfg.Security.HSTSMaxAge,
		EnablePolicy:  true,
		ExposeHeaders: []string{"ETag", "Retry-After", handlers.HeaderIdempotencyReplayed},
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) {
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API docs
	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	idem := idempotencyStore{db: db, ttl: cfg.IdempotencyTTL}
	h := handlers.New(handlers.Deps{
		Auth:          svc.Auth,
		Users:         svc.Users,
		Reports:       svc.Reports,
		Notifications: svc.Notifications,
		FAQs:          svc.FAQs,
		Chat:          svc.Chat,
		Policy:        svc.Policy,
		Idempotency:   idem,
	})

	api := groupWithPrefix(r, cfg.APIBasePath)

	// Public: login, throttled per client IP
	loginLimiter := middleware.NewRateLimiter(loginRPS, loginBurst, middleware.KeyByIP())
	api.POST("/auth/login", loginLimiter.Handler(), h.Login)

	isUnauth := func(err error) bool { return errors.Is(err, services.ErrUnauthenticated) }
	authed := api.Group("", middleware.RequireAuth(svc.Auth, isUnauth))

	limit := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP()).Handler()
	keyed := func(scope string) gin.HandlerFunc {
		return middleware.IdempotencyValidator(middleware.IdempotencyOptions{Scope: scope}, idem.Lookup)
	}
	can := func(res, act string) gin.HandlerFunc { return middleware.Authorize(svc.Policy, res, act) }

	// Keyed creates: idempotency runs before the limiter so replays bypass it.
	authed.POST("/reports", keyed(scopeReports), limit, can(permission.ResReport, permission.ActCreate), h.CreateReport)
	authed.POST("/chat/messages", keyed(scopeChatMessages), limit, can(permission.ResChat, permission.ActSend), h.SendMessage)

	v := authed.Group("", limit)
	{
		// Session
		v.POST("/auth/logout", h.Logout)
		v.GET("/auth/me", h.Me)

		// Users
		v.GET("/users", can(permission.ResUser, permission.ActRead), h.ListUsers)
		v.POST("/users", can(permission.ResUser, permission.ActCreate), h.CreateUser)
		v.PATCH("/users/me", can(permission.ResUser, permission.ActSelf), h.UpdateMe)
		v.GET("/users/:id", can(permission.ResUser, permission.ActRead), h.GetUser)
		v.PATCH("/users/:id", can(permission.ResUser, permission.ActUpdate), h.UpdateUser)
		v.DELETE("/users/:id", can(permission.ResUser, permission.ActDelete), h.DeleteUser)

		// Reports
		v.GET("/reports", can(permission.ResReport, permission.ActRead), h.ListReports)
		v.GET("/reports/:id", can(permission.ResReport, permission.ActRead), h.GetReport)
		v.PATCH("/reports/:id", can(permission.ResReport, permission.ActUpdate), h.UpdateReport)
		v.DELETE("/reports/:id", can(permission.ResReport, permission.ActDelete), h.DeleteReport)
		v.GET("/reports/:id/lock", can(permission.ResReport, permission.ActLock), h.GetReportLock)
		v.POST("/reports/:id/lock", can(permission.ResReport, permission.ActLock), h.LockReport)
		v.DELETE("/reports/:id/lock", can(permission.ResReport, permission.ActLock), h.UnlockReport)

		// Notifications
		v.GET("/notifications", can(permission.ResNotification, permission.ActRead), h.ListNotifications)
		v.GET("/notifications/unread-count", can(permission.ResNotification, permission.ActRead), h.UnreadCount)
		v.POST("/notifications", can(permission.ResNotification, permission.ActCreate), h.CreateNotification)
		v.POST("/notifications/read-all", can(permission.ResNotification, permission.ActUpdate), h.MarkAllNotificationsRead)
		v.PATCH("/notifications/:id/read", can(permission.ResNotification, permission.ActUpdate), h.MarkNotificationRead)
		v.DELETE("/notifications/:id", can(permission.ResNotification, permission.ActDelete), h.DeleteNotification)

		// FAQs
		v.GET("/faqs", can(permission.ResFAQ, permission.ActRead), h.ListFAQs)
		v.GET("/faqs/search", can(permission.ResFAQ, permission.ActRead), h.SearchFAQs)
		v.POST("/faqs", can(permission.ResFAQ, permission.ActCreate), h.CreateFAQ)
		v.GET("/faqs/:id", can(permission.ResFAQ, permission.ActRead), h.GetFAQ)
		v.GET("/faqs/:id/html", can(permission.ResFAQ, permission.ActRead),
			middleware.SecurityHeaders(middleware.SecurityOptions{ContentSecurityPolicy: faqHTMLPolicy}), h.FAQHTML)
		v.PATCH("/faqs/:id", can(permission.ResFAQ, permission.ActUpdate), h.UpdateFAQ)
		v.DELETE("/faqs/:id", can(permission.ResFAQ, permission.ActDelete), h.DeleteFAQ)

		// Chat
		v.GET("/chat/messages", can(permission.ResChat, permission.ActMonitor), h.ListAllMessages)
		v.GET("/chat/channel", can(permission.ResChat, permission.ActRead), h.ChannelMessages)
		v.GET("/chat/staff-conversations", can(permission.ResChat, permission.ActMonitor), h.StaffConversations)
		v.GET("/chat/own-conversations", can(permission.ResChat, permission.ActRead), h.OwnConversations)
		v.POST("/chat/read", can(permission.ResChat, permission.ActRead), h.MarkChannelRead)
	}
}

// corsMiddleware allows every origin when none are configured, otherwise
// echoes allowlisted origins.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	base := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "If-Match", "If-None-Match", middleware.HeaderIdempotencyKey},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag", "Retry-After", handlers.HeaderIdempotencyReplayed},
		AllowCredentials: false, // must remain false with AllowAllOrigins
		MaxAge:           12 * time.Hour,
	}

	if len(origins) == 0 {
		base.AllowAllOrigins = true
		return []gin.HandlerFunc{
			// Force ACAO: * even for requests without an Origin header.
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(base),
		}
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	base.AllowOrigins = origins
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(base),
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
