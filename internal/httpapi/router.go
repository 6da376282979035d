package httpapi

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/ogatech4real/AI-Communication-Skills-Coach/internal/ai"
	"github.com/ogatech4real/AI-Communication-Skills-Coach/internal/coach"
	"github.com/ogatech4real/AI-Communication-Skills-Coach/internal/config"
	"github.com/ogatech4real/AI-Communication-Skills-Coach/internal/httpapi/handlers"
	"github.com/ogatech4real/AI-Communication-Skills-Coach/internal/httpapi/middleware"
	"github.com/ogatech4real/AI-Communication-Skills-Coach/internal/store/rabbitmq"
	"gorm.io/gorm"
)

func NewRouter(db *gorm.DB, cfg config.Config, provider ai.Provider, cache coach.ScenarioCache, rabbit *rabbitmq.Publisher) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())

	// The front end is a separately hosted SPA; pre-flight OPTIONS must pass.
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:    []string{"Authorization", "Content-Type", "Idempotency-Key", "X-Request-ID"},
	}))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "method not allowed"})
	})

	h := handlers.NewHandler(db, cfg, provider, cache, rabbit)

	r.GET("/ping", h.Ping)

	r.POST("/users", h.CreateUser)
	r.POST("/login", h.Login)

	r.GET("/scenarios", h.ListScenarios)
	r.GET("/scenarios/:id", h.GetScenario)

	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(cfg.JWTSecret))
	authGroup.GET("/me", h.Me)

	authGroup.POST("/sessions", h.CreateSession)
	authGroup.GET("/sessions/:session_id", h.GetSession)
	authGroup.POST("/sessions/:session_id/abandon", h.AbandonSession)
	authGroup.POST("/sessions/:session_id/messages", h.PostMessage)
	authGroup.GET("/sessions/:session_id/messages", h.ListMessages)
	authGroup.GET("/sessions/:session_id/feedback", h.GetSessionFeedback)

	authGroup.POST("/chat", h.Chat)
	authGroup.POST("/feedback", h.GenerateFeedback)
	authGroup.POST("/feedback/async", h.GenerateFeedbackAsync)
	authGroup.GET("/feedback/jobs/:job_id", h.GetFeedbackJob)

	return r
}
