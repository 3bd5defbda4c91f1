package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GoPolymarket/arena/internal/address"
	"github.com/GoPolymarket/arena/internal/config"
	"github.com/GoPolymarket/arena/internal/handler"
	"github.com/GoPolymarket/arena/internal/ledger"
	"github.com/GoPolymarket/arena/internal/middleware"
	"github.com/GoPolymarket/arena/internal/pkg/logger"
	"github.com/GoPolymarket/arena/internal/pkg/tracing"
	"github.com/GoPolymarket/arena/internal/repository"
	"github.com/GoPolymarket/arena/internal/service"
	"github.com/GoPolymarket/arena/internal/stream"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

func main() {
	// 0. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.Init(cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Tracing
	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		ServiceName:  "arena",
		Exporter:     cfg.Tracing.Exporter,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		OTLPInsecure: cfg.Tracing.OTLPInsecure,
	})
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	// 2. Initialize Persistence
	// Ledger + Audit (Postgres > Memory)
	var (
		store     ledger.Store
		auditRepo *repository.PostgresAuditRepo
	)
	if cfg.Database.DSN != "" {
		db, err := repository.NewDB(cfg)
		if err != nil {
			log.Fatalf("Failed to connect to DB: %v", err)
		}
		pg, err := repository.NewPostgresLedgerStore(db)
		if err != nil {
			log.Fatalf("Failed to migrate ledger schema: %v", err)
		}
		store = pg
		auditRepo = repository.NewPostgresAuditRepo(db)
		logger.Info("✅ Connected to PostgreSQL")
	} else {
		store = repository.NewMemoryStore()
		logger.Warn("⚠️ No database configured, ledger state is in memory only")
	}

	// Notifications + Idempotency (Redis > Memory)
	hub := stream.NewHub()
	var (
		notifier    service.TradeNotifier = hub
		idempotency middleware.IdempotencyStore
		relay       *stream.RedisRelay
		redisClient *repository.RedisClient
		feed        handler.TradeFeed
	)
	idemTTL := time.Duration(cfg.Redis.IdempotencyTTLSeconds) * time.Second
	if cfg.Redis.Addr != "" {
		redisClient, err = repository.NewRedisClient(cfg)
		if err == nil {
			logger.Info("✅ Connected to Redis")
			// 所有实例经 Redis 频道汇入本地 hub
			redisNotifier := repository.NewRedisTradeNotifier(redisClient, cfg.Redis.TradeListKey, cfg.Redis.TradeListMax, cfg.Redis.TradeChannel)
			notifier, feed = redisNotifier, redisNotifier
			idempotency = repository.NewRedisIdempotencyStore(redisClient, idemTTL)
			relay = stream.NewRedisRelay(redisClient.Client, cfg.Redis.TradeChannel, hub)
			relay.Start()
		} else {
			logger.Error("⚠️ Failed to connect to Redis, falling back to memory", "error", err)
		}
	}
	if idempotency == nil {
		idempotency = middleware.NewInMemIdempotencyStore(idemTTL)
	}

	// 3. Initialize Core Services
	programID, err := address.Parse(cfg.Vault.ProgramID)
	if err != nil {
		log.Fatalf("Invalid vault.program_id: %v", err)
	}
	var opts []ledger.Option
	if cfg.Vault.MinReserve > 0 {
		opts = append(opts, ledger.WithMinReserve(cfg.Vault.MinReserve))
	}
	engine := ledger.NewEngine(store, address.NewDeriver(programID), opts...)
	vaultSvc := service.NewVaultService(engine, notifier)

	var auditStore service.AuditRepo
	if auditRepo != nil {
		auditStore = auditRepo
	}
	auditSvc, err := service.NewAuditService(cfg.Audit.LogDir, auditStore)
	if err != nil {
		log.Fatalf("Failed to initialize audit service: %v", err)
	}

	authn := service.NewAuthenticator(cfg.Auth.RequireSignature, time.Duration(cfg.Auth.MaxClockSkewSeconds)*time.Second)
	limiter := service.NewIdentityLimiter(cfg.RateLimit.QPS, cfg.RateLimit.Burst)
	if !cfg.Auth.RequireSignature {
		logger.Warn("⚠️ Signature verification disabled, identity header is trusted")
	}

	// 4. Setup Router
	if err := handler.RegisterValidators(); err != nil {
		log.Fatalf("Failed to register validators: %v", err)
	}
	if cfg.Server.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := handler.NewRouter(handler.Deps{
		Config:      cfg,
		Vault:       vaultSvc,
		Audit:       auditSvc,
		Auth:        authn,
		Limiter:     limiter,
		Idempotency: idempotency,
		Hub:         hub,
		Feed:        feed,
	})

	// 5. Start Server and housekeeping; stop both on signal
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("🚀 Arena started", "port", cfg.Server.Port, "program_id", programID.String(), "min_reserve", engine.MinReserve())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		housekeeping(gctx, cfg, limiter, authn, auditRepo)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("🛑 Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	waitErr := g.Wait()
	if waitErr != nil {
		logger.Error("server stopped with error", "error", waitErr)
	}

	if relay != nil {
		relay.Stop()
	}
	hub.Close()
	auditSvc.Close()
	if redisClient != nil {
		_ = redisClient.Close()
	}
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTracing(flushCtx); err != nil {
		logger.Warn("tracing shutdown failed", "error", err)
	}

	logger.Info("Server exiting")
	if waitErr != nil {
		os.Exit(1)
	}
}

// housekeeping prunes limiter buckets and replay state every minute and audit rows on the
// configured retention interval.
func housekeeping(ctx context.Context, cfg *config.Config, limiter *service.IdentityLimiter, authn *service.Authenticator, auditRepo *repository.PostgresAuditRepo) {
	sweep := time.NewTicker(time.Minute)
	defer sweep.Stop()

	interval := time.Duration(cfg.Database.CleanupIntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = time.Hour
	}
	cleanup := time.NewTicker(interval)
	defer cleanup.Stop()
	retention := time.Duration(cfg.Database.AuditRetentionDays) * 24 * time.Hour

	for {
		select {
		case <-ctx.Done():
			return
		case <-sweep.C:
			if n := limiter.Sweep(); n > 0 {
				logger.Debug("rate limiter buckets pruned", "count", n)
			}
			authn.Sweep()
		case <-cleanup.C:
			if auditRepo == nil {
				continue
			}
			if err := auditRepo.Cleanup(ctx, retention); err != nil {
				logger.Warn("audit cleanup failed", "error", err)
			}
		}
	}
}
