// Package httpapi wires the HTTP transport (Gin) to the application
// services, middleware, and route handlers. It centralizes cross-cutting
// concerns: tracing, correlation ids, structured logging, panic recovery,
// metrics, CORS, security headers, idempotency, rate limiting, and
// authentication.
//
// Middleware order matters:
//  1. OpenTelemetry traces everything
//  2. RequestID generates/propagates the correlation id
//  3. Logger attaches the request-scoped logger
//  4. Recovery captures panics after the logger
//  5. Body size limiter
//  6. Metrics
//  7. Authentication (identity must exist before idempotency and limits)
//  8. Idempotency validator (before the rate limiter, so replays bypass it)
//  9. Rate limiter per user/IP
//  10. CORS and security headers
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/amoria-app/backend/internal/auth"
	"github.com/amoria-app/backend/internal/config"
	"github.com/amoria-app/backend/internal/events"
	"github.com/amoria-app/backend/internal/http/handlers"
	"github.com/amoria-app/backend/internal/http/middleware"
	"github.com/amoria-app/backend/internal/payments"
	"github.com/amoria-app/backend/internal/repo"
	"github.com/amoria-app/backend/internal/services"
)

// RegisterRoutes attaches all middleware and endpoints to the Gin engine.
// All dependencies are injected; nothing global beyond the metric
// registries.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, broker *events.Broker, provider payments.Provider, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured access logging
	r.Use(middleware.Logger())

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Authentication: resolve identity, enforce later per group
	var minter *auth.Minter
	if cfg.JWTSecret != "" {
		minter = auth.NewMinter(cfg.JWTSecret, cfg.JWTTTL)
	}
	authn := &middleware.Authenticator{Minter: minter}
	r.Use(authn.Handler())

	// 8) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{MaxLen: 200},
		func(ctx context.Context, accountID, chatID, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, accountID, chatID, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	// 9) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 10) CORS posture (allow all when no origins configured)
	allowHeaders := []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", middleware.HeaderIdempotencyKey}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must stay false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Dependency injection: services ← repo/db/broker/provider
	authSvc := &services.AuthService{DB: db, BotToken: cfg.TelegramToken, Minter: minter}
	chatSvc := services.NewChatService(db, broker)
	entrySvc := &services.EntryService{
		DB:            db,
		Events:        broker,
		QuotaLocation: cfg.QuotaLocation(),
		MaxBodyRunes:  4000,
	}
	giftSvc := services.NewGiftService(db, broker)
	billingSvc := services.NewBillingService(db, provider)

	h := handlers.New(authSvc, chatSvc, entrySvc, giftSvc, billingSvc, broker, provider, db, cfg.IdempotencyTTL)

	// Public API
	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		api.POST("/auth/telegram", h.LoginTelegram)
		api.POST("/telegram/webhook", h.TelegramWebhook)

		authed := api.Group("", middleware.RequireUser())
		{
			// Chats
			authed.POST("/chats", h.CreateChat)
			authed.GET("/chats", h.ListChats)
			authed.GET("/chats/:id", h.GetChat)

			// Entries
			authed.GET("/chats/:id/entries", h.ListEntries)
			authed.POST("/chats/:id/entries", h.PostEntry)
			authed.POST("/entries/read", h.MarkRead)

			// Gifts
			authed.GET("/gifts", h.GiftCatalog)
			authed.POST("/chats/:id/gifts", h.SendGift)

			// Billing
			authed.GET("/me/unread", h.Unread)
			authed.GET("/me/balance", h.Balance)
			authed.POST("/balance/topup", h.TopUp)
			authed.POST("/tariffs/:id/purchase", h.PurchaseTariff)

			// Realtime
			authed.GET("/events", h.StreamEvents)
		}
	}
}

// limitBody caps the request body size for all endpoints via
// http.MaxBytesReader; oversized bodies fail on read downstream.
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
