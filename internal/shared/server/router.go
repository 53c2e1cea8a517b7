package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"farmdata-backend/internal/analysis"
	googleauth "farmdata-backend/internal/auth"
	"farmdata-backend/internal/files"
	"farmdata-backend/internal/services/health"
	"farmdata-backend/internal/shared/config"
	"farmdata-backend/internal/shared/metrics"
	"farmdata-backend/internal/shared/server/middleware"
	"farmdata-backend/internal/shared/server/respond"
	"farmdata-backend/internal/users"
)

// RouterDeps holds the handlers mounted under /api/v1.
type RouterDeps struct {
	Config          config.Config
	Health          *health.Service
	FileHandler     *files.Handler
	AnalysisHandler *analysis.Handler
	UserHandler     *users.Handler
	GoogleAuth      *googleauth.GoogleService
	Limiter         *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if config.IsDevLike(deps.Config.Env) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	limiter := deps.Limiter
	if limiter == nil {
		limiter = middleware.NewRateLimiter(nil)
	}

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.Auth(deps.Config.Env),
		middleware.AnalysisRateLimit(deps.Config.AnalysesPerMinute, limiter),
	)

	r.GET("/metrics", metrics.Handler())

	healthSvc := deps.Health
	if healthSvc == nil {
		healthSvc = health.NewService(nil, deps.Config.ObjectStoreType)
	}

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		status := healthSvc.Status(c.Request.Context())
		code := http.StatusOK
		if !status.OK {
			code = http.StatusServiceUnavailable
		}
		respond.JSON(c, code, status)
	})
	if deps.GoogleAuth != nil {
		deps.GoogleAuth.RegisterRoutes(api)
	}
	if deps.UserHandler != nil {
		deps.UserHandler.RegisterRoutes(api)
	}
	if deps.FileHandler != nil {
		deps.FileHandler.RegisterRoutes(api)
	}
	if deps.AnalysisHandler != nil {
		deps.AnalysisHandler.RegisterRoutes(api)
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
