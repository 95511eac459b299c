package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/comment-export-api/internal/config"
	"github.com/comment-export-api/internal/export"
	"github.com/comment-export-api/internal/models"
	"github.com/comment-export-api/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// NewRouter creates and configures the Gin router
func NewRouter(services *service.Services, cfg *config.Config, log zerolog.Logger) *gin.Engine {
	// Set Gin mode
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Middleware
	router.Use(recoveryMiddleware(log))
	router.Use(loggingMiddleware(log))
	router.Use(corsMiddleware())

	// Handlers
	catalogHandler := NewCatalogHandler(services, log)
	importHandler := NewImportHandler(services, cfg, log)
	exportHandler := NewExportHandler(services, cfg, log)

	// Health check
	router.GET("/health", healthCheck)
	router.GET("/metrics", metricsHandler(services))

	// API v1
	v1 := router.Group("/v1")
	{
		videos := v1.Group("/videos")
		{
			videos.GET("", catalogHandler.ListVideos)
			videos.GET("/:video_id", catalogHandler.GetVideo)
			videos.GET("/:video_id/comments", catalogHandler.ListComments)
		}

		v1.GET("/comments/:comment_id", catalogHandler.GetComment)

		v1.POST("/imports", importHandler.CreateImport)

		exports := v1.Group("/exports")
		{
			exports.POST("", exportHandler.CreateExport)
			exports.GET("", exportHandler.ListExports)
			exports.GET("/:run_id", exportHandler.GetExport)
			exports.DELETE("/:run_id", exportHandler.CancelExport)
			exports.GET("/:run_id/events", exportHandler.StreamEvents)
			exports.GET("/:run_id/failures", exportHandler.GetFailures)
			exports.GET("/:run_id/archives/:index", exportHandler.DownloadArchive)
			exports.POST("/:run_id/retry", exportHandler.RetryExport)
		}
	}

	return router
}

// healthCheck returns the health status
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"service":   "comment-export-api",
	})
}

// metricsHandler returns corpus counts and export run counts
func metricsHandler(services *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := services.Catalog.Stats(c.Request.Context())
		if err != nil {
			stats = &models.CorpusStats{}
		}

		runs := make(map[models.RunStatus]int)
		for _, r := range services.Export.ListRuns() {
			runs[r.Status]++
		}

		c.JSON(http.StatusOK, gin.H{
			"database": gin.H{
				"videos":   stats.Videos,
				"comments": stats.Comments,
				"replies":  stats.Replies,
			},
			"exports":   runs,
			"timestamp": time.Now().Format(time.RFC3339),
		})
	}
}

// respondError maps service and engine errors onto HTTP status codes
func respondError(c *gin.Context, log zerolog.Logger, err error) {
	var invalid *service.InvalidRequestError
	var resolution *export.ResolutionError

	switch {
	case errors.As(err, &invalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid export request", "details": invalid.Errors})
	case errors.As(err, &resolution):
		c.JSON(http.StatusNotFound, gin.H{"error": resolution.Error()})
	case errors.Is(err, service.ErrRunNotFound), errors.Is(err, service.ErrArchiveNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrRunFinished), errors.Is(err, service.ErrRunActive), errors.Is(err, service.ErrNothingToRetry):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrTooManyRuns):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrShuttingDown):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrUnknownResource):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// recoveryMiddleware handles panics
func recoveryMiddleware(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Error().Interface("error", err).Msg("Panic recovered")
				c.JSON(http.StatusInternalServerError, gin.H{
					"error": "Internal server error",
				})
				c.Abort()
			}
		}()
		c.Next()
	}
}

// loggingMiddleware logs requests
func loggingMiddleware(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		event := log.Info()
		if statusCode >= 400 {
			event = log.Warn()
		}
		if statusCode >= 500 {
			event = log.Error()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", statusCode).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP()).
			Msg("Request completed")
	}
}

// corsMiddleware handles CORS
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
