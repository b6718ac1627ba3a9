package api

import (
	"github.com/gin-gonic/gin"
	"github.com/timmy/stash/internal/api/handler"
	"github.com/timmy/stash/internal/api/middleware"
	"github.com/timmy/stash/internal/config"
	"github.com/timmy/stash/internal/logger"
)

// SetupRouter configures the run history API.
// Parameters:
//   - runs: run ledger queried by the handlers.
//   - ping: optional database liveness check for /health.
//   - log: base logger for request logging.
//   - cfg: server settings (mode, CORS).
//
// Returns:
//   - *gin.Engine: configured router.
func SetupRouter(runs handler.RunStore, ping handler.PingFunc, log *logger.Logger, cfg *config.ServerConfig) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:  cfg.CORS.AllowedOrigins,
		AllowAllOrigins: cfg.CORS.AllowAllOrigins,
	}))

	healthHandler := handler.NewHealthHandler(ping)
	runHandler := handler.NewRunHandler(runs)

	r.GET("/health", healthHandler.Health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/runs", runHandler.ListRuns)
		v1.GET("/runs/:id", runHandler.GetRun)
	}

	return r
}
