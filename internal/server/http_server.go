package server

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/webmatcha/matcha-go/internal/config"
	"github.com/webmatcha/matcha-go/internal/logger"
)

// StartHTTPServer boots the HTTP server and registers all provided route sets
func StartHTTPServer(cfg *config.Config, registrars ...Registrar) error {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// register all route sets
	for _, reg := range registrars {
		reg.Register(r)
	}

	addr := fmt.Sprintf("%s:%s", cfg.HTTP.Host, cfg.HTTP.Port)
	return r.Run(addr)
}

// requestLogger logs one line per request through the global slog logger.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
