package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"resumind/internal/analysis"
	"resumind/internal/resumes"
	"resumind/internal/runs"
	"resumind/internal/services/health"
	"resumind/internal/shared/config"
	"resumind/internal/shared/metrics"
	"resumind/internal/shared/server/middleware"
	"resumind/internal/shared/server/respond"
)

const (
	rateGroupDefault = "DEFAULT"
	rateGroupAnalyze = "ANALYZE"
	rateGroupPoll    = "POLL"
)

// RouterDeps are the handlers mounted by NewRouter.
type RouterDeps struct {
	Config         config.Config
	AnalyzeHandler *analysis.Handler
	ResumesHandler *resumes.Handler
	RunsHandler    *runs.Handler
	Health         *health.Service
	// Limiter is shared across requests; nil builds a fresh one.
	Limiter *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Session(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.RateLimit(middleware.RateLimitConfig{
			DefaultGroup: rateGroupDefault,
			GroupFor:     rateGroupFor,
			Limiter:      deps.Limiter,
			Rules: map[string]middleware.RateLimitRule{
				rateGroupAnalyze: {Rate: deps.Config.AnalyzeRatePerSecond, Burst: deps.Config.AnalyzeRateBurst},
				rateGroupPoll:    {Rate: 5, Burst: 10},
			},
		}),
	)

	r.GET("/metrics", metrics.Handler())
	if deps.AnalyzeHandler != nil {
		deps.AnalyzeHandler.RegisterRoutes(r)
	}

	api := r.Group("/api/v1")
	healthSvc := deps.Health
	if healthSvc == nil {
		healthSvc = health.NewService()
	}
	api.GET("/health", func(c *gin.Context) {
		status := healthSvc.Status(c.Request.Context())
		code := http.StatusOK
		if !status["ok"] {
			code = http.StatusServiceUnavailable
		}
		respond.JSON(c, code, status)
	})
	if deps.ResumesHandler != nil {
		deps.ResumesHandler.RegisterRoutes(api)
	}
	if deps.RunsHandler != nil {
		deps.RunsHandler.RegisterRoutes(api)
	}

	return r
}

// rateGroupFor limits the two routes that reach the model provider and the
// run progress route clients poll.
func rateGroupFor(c *gin.Context) string {
	if c.Request.Method == http.MethodGet && strings.HasPrefix(c.Request.URL.Path, "/api/v1/runs/") {
		return rateGroupPoll
	}
	switch {
	case c.Request.URL.Path == "/api/analyze" && c.Request.Method == http.MethodPost:
		return rateGroupAnalyze
	case c.Request.URL.Path == "/api/v1/resumes" && c.Request.Method == http.MethodPost:
		return rateGroupAnalyze
	}
	return rateGroupDefault
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
