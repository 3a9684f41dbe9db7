package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/cardlet/cardlet-backend/internal/config"
	"github.com/cardlet/cardlet-backend/internal/handler"
	"github.com/cardlet/cardlet-backend/internal/middleware"
	"github.com/cardlet/cardlet-backend/internal/response"
	"github.com/cardlet/cardlet-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Test *handler.TestHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
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
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// ─── Test lifecycle (JWT) ──────────────────────────────────────────
	tests := router.Group("/api/v1/tests")
	tests.Use(middleware.RequireJWT(authService))
	{
		tests.POST("", handlers.Test.CreateTest)
		tests.GET("", handlers.Test.ListTests)
		tests.GET("/:test_id", handlers.Test.GetTest)
		tests.POST("/:test_id/start", handlers.Test.StartTest)
		tests.POST("/:test_id/submit", handlers.Test.SubmitTest)
		tests.GET("/:test_id/result", handlers.Test.GetResult)
		tests.GET("/:test_id/question-statuses", handlers.Test.GetQuestionStatuses)
		tests.GET("/:test_id/questions/:question_id", handlers.Test.GetTestingQuestion)
		tests.PUT("/:test_id/questions/:question_id", handlers.Test.ResolveTestingQuestion)
		tests.GET("/:test_id/questions/:question_id/solution", handlers.Test.ReviewSolution)
	}

	return router
}
