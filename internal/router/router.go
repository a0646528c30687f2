package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-assembly/internal/config"
	"github.com/stemsi/exstem-assembly/internal/handler"
	"github.com/stemsi/exstem-assembly/internal/middleware"
	"github.com/stemsi/exstem-assembly/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Assembly *handler.AssemblyHandler
	Question *handler.QuestionHandler
	System   *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// assemblyLimiter guards the endpoints that may call the generative model.
func SetupRouter(
	handlers *Handlers,
	assemblyLimiter *middleware.RateLimiter,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Assembled tests carry every item; compress them.
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", handlers.System.Health)

	api := router.Group("/api/v1")
	{
		api.GET("/system/metrics", handlers.System.Metrics)
	}

	// ─── 1. Assembly Group (Rate Limited) ──────────────────────────────
	assemblies := api.Group("/assemblies")
	{
		assemblies.POST("", assemblyLimiter.Middleware(), handlers.Assembly.Assemble)
		assemblies.POST("/resolve", handlers.Assembly.Resolve)
		assemblies.GET("/:id", middleware.CacheControl(300), handlers.Assembly.GetTest)
		assemblies.GET("/:id/answer-key", handlers.Assembly.GetAnswerKey)
	}

	// ─── 2. Question Bank Group ────────────────────────────────────────
	questions := api.Group("/questions")
	{
		questions.GET("", handlers.Question.ListQuestions)
		questions.GET("/:id", handlers.Question.GetQuestion)
		questions.POST("", handlers.Question.CreateQuestion)
	}

	return router
}
