package main

// @title Mailroute Backend API
// @version 1.0.0
// @description 邮件别名路由服务 API 文档
// @contact.name API Support
// @contact.email support@example.com
// @BasePath /
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description 使用格式：Bearer {token}

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	_ "mailroute/backend/docs" // Swagger docs
	"mailroute/backend/internal/auth"
	jwtpkg "mailroute/backend/internal/auth/jwt"
	"mailroute/backend/internal/cache"
	"mailroute/backend/internal/config"
	"mailroute/backend/internal/health"
	"mailroute/backend/internal/logger"
	"mailroute/backend/internal/middleware"
	"mailroute/backend/internal/monitoring"
	"mailroute/backend/internal/provider"
	"mailroute/backend/internal/routing"
	"mailroute/backend/internal/service"
	"mailroute/backend/internal/storage"
	"mailroute/backend/internal/storage/hybrid"
	"mailroute/backend/internal/storage/memory"
	"mailroute/backend/internal/storage/postgres"
	"mailroute/backend/internal/storage/redis"
	httptransport "mailroute/backend/internal/transport/http"
)

const connectionGaugeInterval = 30 * time.Second

// backing 持有数据库相关资源，内存模式下全部为空
type backing struct {
	db    *postgres.Store
	pg    *postgres.Client
	redis *redis.Client
	local *cache.LocalCache
}

func (b *backing) close(log *zap.Logger) {
	if b.redis != nil {
		if err := b.redis.Close(); err != nil {
			log.Warn("redis close warning", zap.Error(err))
		}
	}
	if b.pg != nil {
		b.pg.Close()
	}
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			log.Warn("database close warning", zap.Error(err))
		}
	}
}

// connections 返回当前数据库连接数，优先使用服务端统计
func (b *backing) connections(ctx context.Context) (int, bool) {
	if b.pg != nil {
		count, err := b.pg.ServerConnections(ctx)
		if err == nil {
			return count, true
		}
	}
	if b.db != nil {
		return b.db.OpenConnections(), true
	}
	return 0, false
}

// main 启动邮件路由 HTTP 服务
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if cfg.Log.Development {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	log, err := logger.NewLogger(logger.FromConfig(cfg.Log))
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting mailroute server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
		zap.Int("provider_routes", len(cfg.Provider.Routes)),
	)

	store, res, err := initializeStorage(cfg, log)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize storage: %v", err))
	}
	defer res.close(log)

	metrics := monitoring.NewMetrics()

	healthChecker := health.NewHealthChecker(store, log)
	if res.redis != nil {
		healthChecker.AddReadinessCheck("redis", res.redis.Ping, 2*time.Second)
	}
	if res.pg != nil {
		healthChecker.AddReadinessCheck("postgres", res.pg.Ping, 2*time.Second)
	}

	// 路由表在启动时构建一次，之后只读
	router := routing.FromConfig(cfg.Provider)
	if len(router.Domains()) == 0 {
		log.Warn("no provider routes configured, every domain will be rejected")
	}

	gateway := provider.NewCloudflareClient(provider.CloudflareOptions{
		BaseURL: cfg.Provider.BaseURL,
		Timeout: cfg.Provider.Timeout,
		Router:  router,
		Metrics: metrics,
		Logger:  log,
	})

	authService := auth.NewService(store, auth.Options{
		ResetTokenTTL: cfg.Account.ResetTokenTTL,
		Logger:        log,
	})
	jwtManager := jwtpkg.NewManager(
		cfg.JWT.Secret,
		cfg.JWT.Issuer,
		cfg.JWT.AccessExpiry,
		cfg.JWT.RefreshExpiry,
	)

	routingService := service.NewRoutingService(store, gateway, router, authService, service.RoutingOptions{
		FreeDestinationLimit: cfg.Account.FreeDestinationLimit,
		Metrics:              metrics,
		Logger:               log,
	})
	accountService := service.NewAccountService(store, authService, log)

	limiter := middleware.NewRateLimiter(cfg.RateLimit, metrics, log)

	engine := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:         cfg,
		AuthService:    authService,
		AccountService: accountService,
		RoutingService: routingService,
		JWTManager:     jwtManager,
		RateLimiter:    limiter,
		Health:         healthChecker,
		Metrics:        metrics,
		Logger:         log,
	})

	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	group.Go(func() error {
		limiter.Run(groupCtx.Done())
		return nil
	})

	if res.local != nil {
		group.Go(func() error {
			res.local.Run(groupCtx.Done())
			return nil
		})
	}

	group.Go(func() error {
		if _, ok := res.connections(groupCtx); !ok {
			return nil
		}
		ticker := time.NewTicker(connectionGaugeInterval)
		defer ticker.Stop()

		for {
			select {
			case <-groupCtx.Done():
				return nil
			case <-ticker.C:
				if count, ok := res.connections(groupCtx); ok {
					metrics.UpdateDatabaseConnections(count)
				}
			}
		}
	})

	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}
		log.Info("server stopped")
		return nil
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}

// initializeStorage 按配置选择存储：未配置数据库时使用内存存储，
// 配置了数据库时使用 GORM 存储并叠加缓存，缓存优先使用 Redis
func initializeStorage(cfg *config.Config, log *zap.Logger) (storage.Store, *backing, error) {
	res := &backing{}
	if cfg.Database.Type == "" || cfg.Database.DSN == "" {
		log.Info("using memory storage (development mode)")
		return memory.NewStore(), res, nil
	}

	db, err := postgres.Open(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	res.db = db
	log.Info("using database storage", zap.String("type", cfg.Database.Type))

	if cfg.Database.Type == "postgres" {
		client, err := postgres.New(cfg.Database, log)
		if err != nil {
			// 仅影响就绪检查和连接统计，不阻止启动
			log.Warn("pgx client unavailable", zap.Error(err))
		} else {
			res.pg = client
		}
	}

	if cfg.Redis.Address == "" {
		res.local = cache.NewLocalCache(0)
		log.Info("redis not configured, using in-process cache", zap.Duration("ttl", cfg.Redis.CacheTTL))
		return hybrid.NewStore(db, res.local, cfg.Redis.CacheTTL, log), res, nil
	}

	client, err := redis.New(cfg.Redis, log)
	if err != nil {
		res.close(log)
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	res.redis = client
	log.Info("redis cache enabled", zap.Duration("ttl", cfg.Redis.CacheTTL))

	return hybrid.NewStore(db, redis.NewCache(client), cfg.Redis.CacheTTL, log), res, nil
}
