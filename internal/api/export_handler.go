package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/comment-export-api/internal/archive"
	"github.com/comment-export-api/internal/config"
	"github.com/comment-export-api/internal/models"
	"github.com/comment-export-api/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// ExportHandler handles export run endpoints
type ExportHandler struct {
	services *service.Services
	cfg      *config.Config
	log      zerolog.Logger
}

// NewExportHandler creates a new ExportHandler
func NewExportHandler(services *service.Services, cfg *config.Config, log zerolog.Logger) *ExportHandler {
	return &ExportHandler{
		services: services,
		cfg:      cfg,
		log:      log.With().Str("handler", "export").Logger(),
	}
}

// createExportRequest is the body of POST /v1/exports.
// A missing archive_size falls back to the configured default.
type createExportRequest struct {
	Scope       models.Scope         `json:"scope"`
	TargetIDs   []string             `json:"target_ids"`
	ArchiveSize *int                 `json:"archive_size"`
	Filter      models.CommentFilter `json:"filter"`
	Sort        models.CommentSort   `json:"sort"`
	VideoOrder  models.VideoOrder    `json:"video_order"`
}

func (r *createExportRequest) toModel(defaultSize int) models.ExportRequest {
	size := defaultSize
	if r.ArchiveSize != nil {
		size = *r.ArchiveSize
	}
	return models.ExportRequest{
		Scope:       r.Scope,
		TargetIDs:   r.TargetIDs,
		ArchiveSize: size,
		Filter:      r.Filter,
		Sort:        r.Sort,
		VideoOrder:  r.VideoOrder,
	}
}

// CreateExport handles POST /v1/exports
// Starts an export run and returns immediately with its id
func (h *ExportHandler) CreateExport(c *gin.Context) {
	var body createExportRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	req := body.toModel(h.cfg.Export.ArchiveSize)
	info, err := h.services.Export.StartExport(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	h.log.Info().
		Str("run_id", info.ID).
		Str("scope", string(req.Scope)).
		Strs("targets", req.TargetIDs).
		Msg("Export run started")

	c.JSON(http.StatusAccepted, gin.H{
		"run_id":     info.ID,
		"status":     info.Status,
		"events_url": fmt.Sprintf("/v1/exports/%s/events", info.ID),
		"run_url":    fmt.Sprintf("/v1/exports/%s", info.ID),
	})
}

// ListExports handles GET /v1/exports
func (h *ExportHandler) ListExports(c *gin.Context) {
	runs := h.services.Export.ListRuns()
	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}

// GetExport handles GET /v1/exports/:run_id
func (h *ExportHandler) GetExport(c *gin.Context) {
	info, err := h.services.Export.GetRun(c.Param("run_id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// CancelExport handles DELETE /v1/exports/:run_id
func (h *ExportHandler) CancelExport(c *gin.Context) {
	info, err := h.services.Export.CancelRun(c.Param("run_id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"run_id": info.ID, "status": "cancelling"})
}

// RetryExport handles POST /v1/exports/:run_id/retry
// Starts a new run over the failed comments of a finished run
func (h *ExportHandler) RetryExport(c *gin.Context) {
	info, err := h.services.Export.RetryFailures(c.Request.Context(), c.Param("run_id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"run_id":     info.ID,
		"status":     info.Status,
		"retry_of":   info.RetryOf,
		"events_url": fmt.Sprintf("/v1/exports/%s/events", info.ID),
	})
}

// StreamEvents handles GET /v1/exports/:run_id/events
// Streams run events as server-sent events until the run finishes or the client leaves
func (h *ExportHandler) StreamEvents(c *gin.Context) {
	runID := c.Param("run_id")

	events, unsubscribe, err := h.services.Export.Subscribe(runID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	defer unsubscribe()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				// dropped for falling behind, the client has to poll the run
				payload := gin.H{"run_id": runID, "error": "event stream ended before the run finished"}
				if info, err := h.services.Export.GetRun(runID); err == nil {
					payload["status"] = info.Status
				}
				c.SSEvent("error", payload)
				c.Writer.Flush()
				return
			}
			c.SSEvent(string(ev.Type), ev)
			c.Writer.Flush()
			if ev.Type.IsTerminal() {
				return
			}
		}
	}
}

// GetFailures handles GET /v1/exports/:run_id/failures?format=json|csv
func (h *ExportHandler) GetFailures(c *gin.Context) {
	runID := c.Param("run_id")

	failures, err := h.services.Export.GetFailures(runID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if failures == nil {
		failures = []models.FailureRecord{}
	}

	switch c.DefaultQuery("format", "json") {
	case "csv":
		c.Header("Content-Type", "text/csv")
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s-%s", runID, archive.FailureReportName))
		c.Status(http.StatusOK)
		if err := archive.WriteFailuresCSV(c.Writer, failures); err != nil {
			h.log.Error().Err(err).Str("run_id", runID).Msg("Failed to write failures CSV")
		}
	case "json":
		c.JSON(http.StatusOK, gin.H{"run_id": runID, "failures": failures, "count": len(failures)})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be one of: json, csv"})
	}
}

// DownloadArchive handles GET /v1/exports/:run_id/archives/:index
func (h *ExportHandler) DownloadArchive(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "archive index must be a positive integer"})
		return
	}

	file, err := h.services.Export.GetArchive(c.Param("run_id"), index)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.FileAttachment(file.Path, file.Name)
}
