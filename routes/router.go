package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/prepdash/prepdash/config"
	"github.com/prepdash/prepdash/controllers"
	"github.com/prepdash/prepdash/middleware"
	"github.com/prepdash/prepdash/services"
	"github.com/prepdash/prepdash/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(db *gorm.DB) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(utils.GinLogger())
	r.Use(utils.GinRecovery())

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}

	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	rewardStore := services.NewGormRewardStore(db)
	ledger := services.NewRewardLedger(rewardStore)
	ledger.Subscribe(func(event services.RewardEvent, result services.AwardResult) {
		utils.Sugar.Infow("coins awarded",
			"user_id", event.UserID,
			"event_type", event.EventType,
			"event_id", event.EventID,
			"coins", result.Coins,
			"total_coins", result.TotalCoins,
		)
	})

	oauthStore := services.NewGormOAuthStore(db)
	linkedIn := services.NewLinkedIn(cfg, oauthStore, oauthStore)

	authController := controllers.NewAuthController(db)
	rewardController := controllers.NewRewardController(ledger)
	streakController := controllers.NewStreakController(ledger)
	proxyController := controllers.NewProxyController()
	linkedInController := controllers.NewLinkedInController(linkedIn)

	// CORS proxies live outside /api/v1 and answer OPTIONS/405 themselves,
	// mirroring the serverless endpoints they replace.
	r.Any("/leetcode/graphql", proxyController.GraphQL)
	r.Any("/leetcode/problems", proxyController.Problems)

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware())
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/login", authController.Login)
	authGroup.POST("/logout", middleware.AuthRequired(), authController.Logout)
	authGroup.GET("/me", middleware.AuthRequired(), authController.Me)

	// The provider redirects the browser here; no bearer token on this hop.
	api.GET("/linkedin/callback", linkedInController.Callback)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired(), middleware.RateLimitMiddleware())

	protected.POST("/rewards/award", rewardController.Award)
	protected.GET("/rewards/completed", rewardController.Completed)
	protected.GET("/rewards/coins", rewardController.Coins)

	protected.GET("/streaks", streakController.Streaks)
	protected.GET("/streaks/calendar", streakController.Calendar)
	protected.GET("/streaks/heatmap", streakController.Heatmap)

	protected.GET("/linkedin/start", linkedInController.Start)
	protected.GET("/linkedin/status", linkedInController.Status)
	protected.POST("/linkedin/share", linkedInController.Share)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return r
}
