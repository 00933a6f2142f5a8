package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"wavely/backend/internal/auth"
	"wavely/backend/internal/cache"
	"wavely/backend/internal/config"
	"wavely/backend/internal/database"
	"wavely/backend/internal/handler"
	"wavely/backend/internal/hub"
	"wavely/backend/internal/logger"
	"wavely/backend/internal/middleware"
	"wavely/backend/internal/service"
	"wavely/backend/internal/tracing"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	// Swagger imports
	_ "wavely/backend/docs" // This is important for swag to find the generated docs

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func init() {
	config.LoadConfig()
}

// @title           Wavely API
// @version         1.0
// @description     Social graph and notification API for the Wavely service.
// @host            localhost:8080
// @BasePath        /api/v1
// @securityDefinitions.apiKey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg := config.AppConfig

	zlog, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zlog.Sync()

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.Env,
		}); err != nil {
			zlog.Warn("sentry init failed", zap.Error(err))
		}
		defer sentry.Flush(2 * time.Second)
	}

	if cfg.OTLPEndpoint != "" {
		shutdown, err := tracing.Init(context.Background(), cfg.OTLPEndpoint, "wavely-backend")
		if err != nil {
			zlog.Warn("tracing init failed", zap.Error(err))
		} else {
			defer shutdown(context.Background())
		}
	}

	// Connect to the database
	database.Connect(cfg.DatabaseURL)

	var followerCache *cache.FollowerCache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			zlog.Warn("redis unreachable, follower cache disabled", zap.Error(err))
		} else {
			followerCache = cache.New(rdb, 30*time.Second, zlog)
		}
	}

	eventHub := hub.NewHub(zlog)
	followService := service.NewFollowService(database.DB, eventHub, followerCache, zlog)
	notificationService := service.NewNotificationService(database.DB, eventHub, zlog)

	userHandler := handler.NewUserHandler(database.DB, followService)
	followHandler := handler.NewFollowHandler(followService)
	notificationHandler := handler.NewNotificationHandler(notificationService)
	eventsHandler := handler.NewEventsHandler(eventHub)

	router := gin.Default()
	if cfg.SentryDSN != "" {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	if cfg.OTLPEndpoint != "" {
		router.Use(otelgin.Middleware("wavely-backend"))
	}
	// SSE responses must stream uncompressed.
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/v1/events"})))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check endpoint
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	// API v1 routes
	apiV1 := router.Group("/api/v1")
	{
		// Auth routes
		authRoutes := apiV1.Group("/auth")
		{
			authRoutes.POST("/register", userHandler.Register)
			authRoutes.POST("/login", userHandler.Login)
		}

		// User routes (protected)
		userRoutes := apiV1.Group("/users")
		userRoutes.Use(auth.AuthMiddleware())
		{
			userRoutes.GET("", userHandler.SearchUsers) // Must be before /:id
			userRoutes.GET("/me", userHandler.GetMe)
			userRoutes.GET("/:id", userHandler.GetUserByID)
		}

		// Follow routes: public read paths, protected mutations
		followRoutes := apiV1.Group("/follow")
		{
			followRoutes.GET("/followers/:userId", followHandler.GetFollowers)
			followRoutes.GET("/following/:userId", followHandler.GetFollowing)

			protected := followRoutes.Group("")
			protected.Use(auth.AuthMiddleware(), middleware.RateLimit(rate.Limit(5), 10))
			{
				protected.POST("/:userId", followHandler.Follow)
				protected.DELETE("/:userId", followHandler.Unfollow)
				protected.GET("/check/:userId", followHandler.CheckStatus)
				protected.GET("/suggestions", followHandler.GetSuggestions)
			}
		}

		// Notification routes (protected)
		notificationRoutes := apiV1.Group("/notifications")
		notificationRoutes.Use(auth.AuthMiddleware())
		{
			notificationRoutes.GET("", notificationHandler.List)
			notificationRoutes.POST("/:id/read", notificationHandler.MarkRead)
			notificationRoutes.POST("/read-all", notificationHandler.MarkAllRead)
			notificationRoutes.DELETE("/clear", notificationHandler.Clear)
		}

		// Real-time event stream (protected)
		apiV1.GET("/events", auth.AuthMiddleware(), eventsHandler.Stream)
	}

	zlog.Info("server starting", zap.String("port", cfg.Port))
	log.Fatal(router.Run(":" + cfg.Port))
}
