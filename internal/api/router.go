package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/agrigpt/backend/internal/auth"
	"github.com/agrigpt/backend/internal/handlers"
	"github.com/agrigpt/backend/internal/middleware"
	"github.com/agrigpt/backend/internal/services"
)

// Deps bundles the constructed services the router wires into handlers.
type Deps struct {
	DB       *gorm.DB
	JWT      *auth.JWTService
	Flow     *auth.FlowService
	Accounts *services.AccountService
	Chat     *services.ChatService
	Reports  *services.ReportService
	Feedback *services.FeedbackService
	Devs     *services.DeveloperService

	// MetricsEnabled mounts the Prometheus endpoint when true.
	MetricsEnabled bool
	// AuthRateLimit caps authentication attempts per client and minute.
	// Zero disables the limiter.
	AuthRateLimit int
}

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(deps Deps) (*gin.Engine, error) {
	switch {
	case deps.DB == nil:
		return nil, fmt.Errorf("database handle must be provided")
	case deps.JWT == nil:
		return nil, fmt.Errorf("jwt service must be provided")
	case deps.Flow == nil:
		return nil, fmt.Errorf("flow service must be provided")
	case deps.Accounts == nil:
		return nil, fmt.Errorf("account service must be provided")
	case deps.Chat == nil:
		return nil, fmt.Errorf("chat service must be provided")
	case deps.Reports == nil:
		return nil, fmt.Errorf("report service must be provided")
	case deps.Feedback == nil:
		return nil, fmt.Errorf("feedback service must be provided")
	case deps.Devs == nil:
		return nil, fmt.Errorf("developer service must be provided")
	}

	r := gin.New()

	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())

	r.NoRoute(middleware.NotFoundHandler)

	r.GET("/health", handlers.Health(deps.DB))
	if deps.MetricsEnabled {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	authHandler := handlers.NewAuthHandler(deps.Flow, deps.Accounts)
	profileHandler := handlers.NewProfileHandler(deps.Accounts)
	chatHandler := handlers.NewChatHandler(deps.Chat)
	reportHandler := handlers.NewReportHandler(deps.Reports)
	feedbackHandler := handlers.NewFeedbackHandler(deps.Feedback)
	adminHandler := handlers.NewAdminHandler(deps.Devs, deps.Feedback)

	requireAuth := middleware.Auth(deps.JWT)
	optionalAuth := middleware.OptionalAuth(deps.JWT)

	// Public auth routes, rate limited to slow down credential and code
	// enumeration.
	authLimit := middleware.RateLimit(deps.AuthRateLimit, time.Minute)
	authGroup := r.Group("/api/auth")
	authGroup.Use(authLimit)
	{
		authGroup.POST("/signup", authHandler.InitiateSignup)
		authGroup.POST("/signup/verify", authHandler.CompleteSignup)
		authGroup.POST("/login", authHandler.InitiateLogin)
		authGroup.POST("/login/verify", authHandler.CompleteLogin)
		authGroup.POST("/federated", authHandler.FederatedSignIn)
		authGroup.POST("/password-reset", authHandler.InitiatePasswordReset)
		authGroup.POST("/password-reset/verify", authHandler.CompletePasswordReset)
	}

	r.GET("/api/auth/me", requireAuth, authHandler.Me)

	// Asking questions and leaving feedback work for guests too.
	r.POST("/api/chat/ask", optionalAuth, chatHandler.Ask)
	r.POST("/api/feedback", optionalAuth, feedbackHandler.Submit)

	api := r.Group("/api")
	api.Use(requireAuth)

	api.POST("/voice", chatHandler.Voice)
	api.GET("/history", chatHandler.History)

	profile := api.Group("/profile")
	{
		profile.PATCH("", profileHandler.Update)
		profile.DELETE("", profileHandler.Delete)
		profile.POST("/password", profileHandler.ChangePassword)
		profile.POST("/password/create", profileHandler.SetPassword)
	}

	chat := api.Group("/chat/sessions")
	{
		chat.GET("", chatHandler.ListSessions)
		chat.GET("/:id", chatHandler.GetSession)
		chat.DELETE("/:id", chatHandler.DeleteSession)
	}

	reports := api.Group("/reports")
	{
		reports.POST("", reportHandler.Create)
		reports.GET("", reportHandler.List)
		reports.GET("/:id", reportHandler.Get)
		reports.DELETE("/:id", reportHandler.Delete)
	}

	admin := api.Group("/admin")
	admin.Use(middleware.RequireDeveloper(deps.Devs))
	{
		admin.GET("/developers", adminHandler.ListDevelopers)
		admin.POST("/developers", adminHandler.GrantDeveloper)
		admin.DELETE("/developers", adminHandler.RevokeDeveloper)
		admin.GET("/feedback", adminHandler.ListFeedback)
	}

	return r, nil
}
