package handler

import (
	"net/http"

	"github.com/GoPolymarket/arena/internal/config"
	"github.com/GoPolymarket/arena/internal/middleware"
	"github.com/GoPolymarket/arena/internal/service"
	"github.com/GoPolymarket/arena/internal/stream"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Deps is everything the HTTP surface needs. Audit, Hub, Feed and Idempotency are optional.
type Deps struct {
	Config      *config.Config
	Vault       *service.VaultService
	Audit       *service.AuditService
	Auth        *service.Authenticator
	Limiter     *service.IdentityLimiter
	Idempotency middleware.IdempotencyStore
	Hub         *stream.Hub
	Feed        TradeFeed
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("arena"))

	// Global Middleware
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.MetricsMiddleware())
	if d.Audit != nil {
		r.Use(middleware.AuditMiddleware(d.Audit))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "arena"})
	})
	if d.Config.Metrics.Enabled {
		r.GET(d.Config.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	agents := NewAgentHandler(d.Vault)
	balances := NewBalanceHandler(d.Vault)

	// 公开读取，按客户端 IP 限流
	public := r.Group("/v1")
	public.Use(middleware.RateLimitMiddleware(d.Limiter))
	{
		public.GET("/agents", agents.List)
		public.GET("/agents/:id", agents.Get)
		public.GET("/agents/:id/vault", agents.GetVault)
		public.GET("/agents/:id/trades", agents.ListTrades)
		public.GET("/agents/:id/positions", agents.ListPositions)
		public.GET("/agents/:id/positions/:investor", agents.Position)
		public.GET("/agents/:id/quote", agents.Quote)
		public.GET("/agents/:id/stats", agents.Stats)
		public.GET("/leaderboard", agents.Leaderboard)
		public.GET("/balances/:address", balances.Get)
		if d.Hub != nil {
			public.GET("/stream", NewStreamHandler(d.Hub).Subscribe)
		}
		if d.Feed != nil {
			public.GET("/feed", NewFeedHandler(d.Feed).Recent)
		}
	}

	// 需要签名的写操作
	signed := r.Group("/v1")
	signed.Use(middleware.AuthMiddleware(d.Auth))
	signed.Use(middleware.RateLimitMiddleware(d.Limiter))
	signed.Use(middleware.ReadOnlyMiddleware(d.Config.Server.ReadOnly))
	if d.Idempotency != nil {
		signed.Use(middleware.IdempotencyMiddleware(d.Idempotency))
	}
	{
		signed.POST("/agents", agents.Register)
		signed.POST("/agents/:id/vault", agents.InitializeVault)
		signed.POST("/agents/:id/deposit", agents.Deposit)
		signed.POST("/agents/:id/withdraw", agents.Withdraw)
		signed.POST("/agents/:id/trades", agents.RecordTrade)
		signed.POST("/agents/:id/halt", agents.Halt)
		if d.Audit != nil {
			signed.GET("/audit", NewAuditHandler(d.Audit).List)
		}
	}

	admin := r.Group("/admin")
	admin.Use(middleware.AdminMiddleware(d.Config))
	{
		admin.POST("/fund", balances.Fund)
	}

	return r
}
