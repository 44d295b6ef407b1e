package api

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

func SetupRouter(h *Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/health", h.Health)

	api := r.Group("/api")
	{
		api.POST("/feedback", h.UploadFeedback)
		api.POST("/feedback/:batchId/analyze", h.AnalyzeBatch)
		api.GET("/aspects/summary", h.AspectSummary)
		api.GET("/aspects/history", h.AspectHistory)
		api.GET("/statistics", h.Statistics)
	}

	return r
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		attrs := []any{
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
		}
		if c.Writer.Status() >= 500 {
			slog.Warn("[API] Request failed", attrs...)
			return
		}
		slog.Debug("[API] Request", attrs...)
	}
}
