package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/comment-export-api/internal/models"
	"github.com/comment-export-api/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

var videoSorts = map[string]bool{
	"published_at":  true,
	"title":         true,
	"view_count":    true,
	"like_count":    true,
	"comment_count": true,
}

// browsing uses the column names of the corpus, exports use short keys
var commentSorts = map[string]models.CommentSortBy{
	"published_at": models.CommentSortDate,
	"like_count":   models.CommentSortLikes,
	"author":       models.CommentSortAuthor,
}

// CatalogHandler handles corpus browsing endpoints
type CatalogHandler struct {
	services *service.Services
	log      zerolog.Logger
}

// NewCatalogHandler creates a new CatalogHandler
func NewCatalogHandler(services *service.Services, log zerolog.Logger) *CatalogHandler {
	return &CatalogHandler{
		services: services,
		log:      log.With().Str("handler", "catalog").Logger(),
	}
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return n, nil
}

func queryDir(c *gin.Context) (models.SortDir, error) {
	dir := models.SortDir(c.DefaultQuery("order", string(models.SortDesc)))
	if !models.ValidSortDirs[dir] {
		return "", fmt.Errorf("order must be asc or desc")
	}
	return dir, nil
}

// parseDate accepts RFC 3339 or a plain date. A plain end date covers the whole day.
func parseDate(raw string, endOfDay bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

// ListVideos handles GET /v1/videos
func (h *CatalogHandler) ListVideos(c *gin.Context) {
	sortBy := c.DefaultQuery("sort", "published_at")
	if !videoSorts[sortBy] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sort must be one of: published_at, title, view_count, like_count, comment_count"})
		return
	}
	dir, err := queryDir(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	limit, err := queryInt(c, "limit", service.DefaultPageSize)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	page, err := h.services.Catalog.ListVideos(c.Request.Context(), models.VideoListParams{
		ChannelID: c.Query("channel_id"),
		SortBy:    sortBy,
		Dir:       dir,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetVideo handles GET /v1/videos/:video_id
func (h *CatalogHandler) GetVideo(c *gin.Context) {
	videoID := c.Param("video_id")

	video, err := h.services.Catalog.GetVideo(c.Request.Context(), videoID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if video == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "video not found"})
		return
	}
	c.JSON(http.StatusOK, video)
}

// ListComments handles GET /v1/videos/:video_id/comments
func (h *CatalogHandler) ListComments(c *gin.Context) {
	videoID := c.Param("video_id")

	sortBy, ok := commentSorts[c.DefaultQuery("sort", "published_at")]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sort must be one of: published_at, like_count, author"})
		return
	}
	dir, err := queryDir(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	q := models.CommentQuery{
		VideoID: videoID,
		Filter:  models.CommentFilter{Keyword: c.Query("search")},
		Sort:    models.CommentSort{By: sortBy, Dir: dir},
	}

	if q.Limit, err = queryInt(c, "limit", service.DefaultPageSize); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if q.Offset, err = queryInt(c, "offset", 0); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	minLikes, err := queryInt(c, "min_likes", 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	q.Filter.MinLikes = int64(minLikes)

	if q.Filter.DateFrom, err = parseDate(c.Query("start_date"), false); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start_date must be YYYY-MM-DD or RFC 3339"})
		return
	}
	if q.Filter.DateTo, err = parseDate(c.Query("end_date"), true); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end_date must be YYYY-MM-DD or RFC 3339"})
		return
	}

	video, err := h.services.Catalog.GetVideo(c.Request.Context(), videoID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if video == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "video not found"})
		return
	}

	page, err := h.services.Catalog.ListThreads(c.Request.Context(), q)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetComment handles GET /v1/comments/:comment_id
func (h *CatalogHandler) GetComment(c *gin.Context) {
	comment, err := h.services.Catalog.GetComment(c.Request.Context(), c.Param("comment_id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if comment == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "comment not found"})
		return
	}
	c.JSON(http.StatusOK, comment)
}
