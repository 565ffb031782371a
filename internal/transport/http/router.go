package http

import (
	"github.com/gin-gonic/gin"
	"github.com/richardliu001/ledgerx/internal/config"
	"github.com/richardliu001/ledgerx/internal/executor"
	"go.uber.org/zap"
)

// NewRouter builds the outer HTTP adapter around exec, kept intentionally
// thin: transport-level concerns only, no business rules.
func NewRouter(exec *executor.Executor, rl config.RateLimitConfig, log *zap.SugaredLogger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware(log))
	r.Use(RateLimitMiddleware(rl.RPS, rl.Burst))
	RegisterHandlers(r, exec)
	return r
}
