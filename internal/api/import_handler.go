package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/comment-export-api/internal/config"
	"github.com/comment-export-api/internal/models"
	"github.com/comment-export-api/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// ImportHandler handles corpus import endpoints
type ImportHandler struct {
	services *service.Services
	cfg      *config.Config
	log      zerolog.Logger
}

// NewImportHandler creates a new ImportHandler
func NewImportHandler(services *service.Services, cfg *config.Config, log zerolog.Logger) *ImportHandler {
	return &ImportHandler{
		services: services,
		cfg:      cfg,
		log:      log.With().Str("handler", "import").Logger(),
	}
}

// CreateImport handles POST /v1/imports?resource=videos|comments
// Accepts a multipart file upload or a raw NDJSON body and imports it synchronously
func (h *ImportHandler) CreateImport(c *gin.Context) {
	ctx := c.Request.Context()

	// Get resource type
	resource := c.Query("resource")
	if resource == "" {
		resource = c.PostForm("resource")
	}
	if resource == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "resource parameter is required (videos, comments)"})
		return
	}
	if resource != models.ResourceVideos && resource != models.ResourceComments {
		c.JSON(http.StatusBadRequest, gin.H{"error": "resource must be one of: videos, comments"})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.Import.MaxUploadSize)

	var body io.Reader
	source := "body"
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		file, header, err := c.Request.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file upload is required"})
			return
		}
		defer file.Close()

		// Validate file size
		if header.Size > h.cfg.Import.MaxUploadSize {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("file too large, max size is %d MB", h.cfg.Import.MaxUploadSize/(1024*1024)),
			})
			return
		}

		ext := strings.ToLower(filepath.Ext(header.Filename))
		if ext != ".ndjson" && ext != ".jsonl" && ext != ".json" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "import requires an NDJSON file"})
			return
		}
		body = file
		source = header.Filename
	} else {
		body = c.Request.Body
	}

	result, err := h.services.Corpus.Import(ctx, resource, body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
			return
		}
		h.log.Error().Err(err).Str("resource", resource).Msg("Import failed")
		if result != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "import failed", "result": result})
			return
		}
		respondError(c, h.log, err)
		return
	}

	h.log.Info().
		Str("resource", resource).
		Str("source", source).
		Int("total", result.TotalRecords).
		Int("successful", result.SuccessfulCount).
		Int("failed", result.FailedCount).
		Msg("Import finished")

	c.JSON(http.StatusOK, result)
}
