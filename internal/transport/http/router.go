package httptransport

import (
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"mailroute/backend/internal/auth"
	jwtpkg "mailroute/backend/internal/auth/jwt"
	"mailroute/backend/internal/config"
	"mailroute/backend/internal/health"
	"mailroute/backend/internal/middleware"
	"mailroute/backend/internal/monitoring"
	"mailroute/backend/internal/service"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config         *config.Config
	AuthService    *auth.Service
	AccountService *service.AccountService
	RoutingService *service.RoutingService
	JWTManager     *jwtpkg.Manager
	RateLimiter    *middleware.RateLimiter
	Health         *health.HealthChecker
	Metrics        *monitoring.Metrics
	Logger         *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	router := gin.New()
	router.Use(middleware.RecoveryHandler(log))
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.HTTPMetrics(deps.Metrics))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.BodySizeLimit(middleware.DefaultBodyLimit))

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	// 允许所有来源时不能携带凭证
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	authHandler := NewAuthHandler(deps.AuthService, deps.JWTManager, !deps.Config.Log.Development, log)
	accountHandler := NewAccountHandler(deps.AccountService, authHandler, log)
	mailHandler := NewMailHandler(deps.RoutingService, log)

	jwtAuth := middleware.NewJWTAuth(deps.JWTManager, deps.AuthService, log)
	var rateLimit gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if deps.RateLimiter != nil {
		rateLimit = deps.RateLimiter.Middleware()
	}

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))

	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.Health != nil {
		router.GET("/health/live", gin.WrapF(deps.Health.LiveEndpoint))
		router.GET("/health/ready", gin.WrapF(deps.Health.ReadyEndpoint))
	}

	v1 := router.Group("/api/v1")
	{
		authRoutes := v1.Group("/auth")
		{
			authRoutes.POST("/signup", authHandler.Signup)
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.POST("/refresh", authHandler.Refresh)
			authRoutes.POST("/forgot-password", rateLimit, authHandler.ForgotPassword)
			authRoutes.PATCH("/reset-password/:token", authHandler.ResetPassword)
			authRoutes.POST("/logout", jwtAuth.RequireAuth(), authHandler.Logout)
		}

		userRoutes := v1.Group("/user", jwtAuth.RequireAuth())
		{
			userRoutes.GET("/me", accountHandler.Me)
			userRoutes.PATCH("/me", accountHandler.UpdateMe)
			userRoutes.DELETE("/me", accountHandler.DeleteMe)
			userRoutes.PATCH("/password", accountHandler.ChangePassword)
			userRoutes.GET("/routing", accountHandler.Routing)
		}

		mailRoutes := v1.Group("/mail", jwtAuth.RequireAuth())
		{
			mailRoutes.GET("/domains", mailHandler.Domains)

			mailRoutes.POST("/destinations", rateLimit, mailHandler.CreateDestination)
			mailRoutes.GET("/destinations", mailHandler.ListDestinations)
			mailRoutes.GET("/destinations/:id/verify", rateLimit, mailHandler.VerifyDestination)
			mailRoutes.DELETE("/destinations/:id", rateLimit, mailHandler.DeleteDestination)

			mailRoutes.POST("/rules", rateLimit, mailHandler.CreateRule)
			mailRoutes.GET("/rules", mailHandler.ListRules)
			mailRoutes.GET("/rules/:id", mailHandler.GetRule)
			mailRoutes.PATCH("/rules/:id", rateLimit, mailHandler.UpdateRule)
			mailRoutes.DELETE("/rules/:id", rateLimit, mailHandler.DeleteRule)
			mailRoutes.PATCH("/rules/:id/toggle", rateLimit, mailHandler.ToggleRule)
		}
	}

	return router
}
