package validation

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/comment-export-api/internal/models"
)

// MaxKeywordLength bounds the export keyword filter
const MaxKeywordLength = 200

// ValidationError represents a single validation error
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// Validator validates corpus records. It remembers the ids it has accepted so
// duplicates and dangling references inside one import are caught.
type Validator struct {
	videoIDCache   map[string]bool
	commentVideo   map[string]string // comment id -> video id
	seenVideoIDs   map[string]bool
	seenCommentIDs map[string]bool
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{
		videoIDCache:   make(map[string]bool),
		commentVideo:   make(map[string]string),
		seenVideoIDs:   make(map[string]bool),
		seenCommentIDs: make(map[string]bool),
	}
}

// SetVideoIDCache sets the ids of videos already stored
func (v *Validator) SetVideoIDCache(ids []string) {
	for _, id := range ids {
		v.videoIDCache[id] = true
	}
}

// SetCommentIndex sets the comments already stored, keyed by comment id
func (v *Validator) SetCommentIndex(index map[string]string) {
	for id, videoID := range index {
		v.commentVideo[id] = videoID
	}
}

// AddVideoID records an accepted video
func (v *Validator) AddVideoID(id string) {
	v.videoIDCache[id] = true
	v.seenVideoIDs[id] = true
}

// AddComment records an accepted comment so later replies can reference it
func (v *Validator) AddComment(id, videoID string) {
	v.commentVideo[id] = videoID
	v.seenCommentIDs[id] = true
}

// ValidateVideo validates a video record
func (v *Validator) ValidateVideo(video *models.VideoNDJSON) []ValidationError {
	var errors []ValidationError

	if video.ID == "" {
		errors = append(errors, ValidationError{Field: "video_id", Message: "video_id is required"})
	} else if v.seenVideoIDs[video.ID] {
		errors = append(errors, ValidationError{Field: "video_id", Message: "duplicate video_id", Value: video.ID})
	}

	if video.ChannelID == "" {
		errors = append(errors, ValidationError{Field: "channel_id", Message: "channel_id is required"})
	}

	if video.PublishedAt != "" {
		if _, err := time.Parse(time.RFC3339, video.PublishedAt); err != nil {
			errors = append(errors, ValidationError{Field: "published_at", Message: "invalid ISO 8601 date format", Value: video.PublishedAt})
		}
	}

	if video.ViewCount < 0 || video.LikeCount < 0 || video.CommentCount < 0 {
		errors = append(errors, ValidationError{Field: "counts", Message: "counts must not be negative"})
	}

	return errors
}

// ValidateComment validates a comment record
func (v *Validator) ValidateComment(comment *models.CommentNDJSON) []ValidationError {
	var errors []ValidationError

	if comment.ID == "" {
		errors = append(errors, ValidationError{Field: "comment_id", Message: "comment_id is required"})
	} else if v.seenCommentIDs[comment.ID] {
		errors = append(errors, ValidationError{Field: "comment_id", Message: "duplicate comment_id", Value: comment.ID})
	}

	// Validate video_id (FK)
	if comment.VideoID == "" {
		errors = append(errors, ValidationError{Field: "video_id", Message: "video_id is required"})
	} else if !v.videoIDCache[comment.VideoID] {
		errors = append(errors, ValidationError{Field: "video_id", Message: "referenced video does not exist", Value: comment.VideoID})
	}

	// Replies must point at a known comment on the same video
	if comment.ParentID != "" {
		parentVideo, ok := v.commentVideo[comment.ParentID]
		switch {
		case comment.ParentID == comment.ID:
			errors = append(errors, ValidationError{Field: "parent_comment_id", Message: "comment cannot reply to itself", Value: comment.ParentID})
		case !ok:
			errors = append(errors, ValidationError{Field: "parent_comment_id", Message: "referenced parent comment does not exist", Value: comment.ParentID})
		case parentVideo != comment.VideoID:
			errors = append(errors, ValidationError{Field: "parent_comment_id", Message: "parent comment belongs to another video", Value: comment.ParentID})
		}
	}

	if !utf8.ValidString(comment.Text) {
		errors = append(errors, ValidationError{Field: "text", Message: "text is not valid UTF-8"})
	}

	if comment.PublishedAt == "" {
		errors = append(errors, ValidationError{Field: "published_at", Message: "published_at is required"})
	} else if _, err := time.Parse(time.RFC3339, comment.PublishedAt); err != nil {
		errors = append(errors, ValidationError{Field: "published_at", Message: "invalid ISO 8601 date format", Value: comment.PublishedAt})
	}

	if comment.UpdatedAt != "" {
		if _, err := time.Parse(time.RFC3339, comment.UpdatedAt); err != nil {
			errors = append(errors, ValidationError{Field: "updated_at", Message: "invalid ISO 8601 date format", Value: comment.UpdatedAt})
		}
	}

	if comment.LikeCount < 0 {
		errors = append(errors, ValidationError{Field: "like_count", Message: "like_count must not be negative", Value: comment.LikeCount})
	}

	return errors
}

// ValidateExportRequest checks an export request before it reaches the engine
func ValidateExportRequest(req *models.ExportRequest, maxArchiveSize int) []ValidationError {
	var errors []ValidationError

	if req.Scope == "" {
		errors = append(errors, ValidationError{Field: "scope", Message: "scope is required"})
	} else if !models.ValidScopes[req.Scope] {
		errors = append(errors, ValidationError{
			Field:   "scope",
			Message: "invalid scope, must be one of: single-comment, video, channel, comments",
			Value:   req.Scope,
		})
	}

	if len(req.TargetIDs) == 0 {
		errors = append(errors, ValidationError{Field: "target_ids", Message: "at least one target id is required"})
	}
	for _, id := range req.TargetIDs {
		if strings.TrimSpace(id) == "" {
			errors = append(errors, ValidationError{Field: "target_ids", Message: "target ids must not be blank"})
			break
		}
	}
	if req.Scope == models.ScopeSingleComment && len(req.TargetIDs) > 1 {
		errors = append(errors, ValidationError{Field: "target_ids", Message: "single-comment scope takes exactly one comment id"})
	}

	if req.ArchiveSize < 0 {
		errors = append(errors, ValidationError{Field: "archive_size", Message: "archive_size must not be negative", Value: req.ArchiveSize})
	} else if maxArchiveSize > 0 && req.ArchiveSize > maxArchiveSize {
		errors = append(errors, ValidationError{
			Field:   "archive_size",
			Message: fmt.Sprintf("archive_size must not exceed %d", maxArchiveSize),
			Value:   req.ArchiveSize,
		})
	}

	if req.Sort.By != "" && !models.ValidCommentSorts[req.Sort.By] {
		errors = append(errors, ValidationError{Field: "sort.by", Message: "invalid sort, must be one of: date, likes, author", Value: req.Sort.By})
	}
	if req.Sort.Dir != "" && !models.ValidSortDirs[req.Sort.Dir] {
		errors = append(errors, ValidationError{Field: "sort.dir", Message: "invalid direction, must be asc or desc", Value: req.Sort.Dir})
	}

	if req.VideoOrder.By != "" && req.VideoOrder.By != models.VideoOrderPublished && req.VideoOrder.By != models.VideoOrderIngestion {
		errors = append(errors, ValidationError{Field: "video_order.by", Message: "invalid video order, must be published or ingestion", Value: req.VideoOrder.By})
	}
	if req.VideoOrder.Dir != "" && !models.ValidSortDirs[req.VideoOrder.Dir] {
		errors = append(errors, ValidationError{Field: "video_order.dir", Message: "invalid direction, must be asc or desc", Value: req.VideoOrder.Dir})
	}

	f := req.Filter
	if f.DateFrom != nil && f.DateTo != nil && f.DateFrom.After(*f.DateTo) {
		errors = append(errors, ValidationError{Field: "filter.date_from", Message: "date_from must not be after date_to"})
	}
	if f.MinLikes < 0 {
		errors = append(errors, ValidationError{Field: "filter.min_likes", Message: "min_likes must not be negative", Value: f.MinLikes})
	}
	if len(f.Keyword) > MaxKeywordLength {
		errors = append(errors, ValidationError{Field: "filter.keyword", Message: fmt.Sprintf("keyword must not exceed %d characters", MaxKeywordLength)})
	}

	return errors
}
