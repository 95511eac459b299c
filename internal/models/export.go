package models

// Scope is the granularity of an export request
type Scope string

const (
	ScopeSingleComment Scope = "single-comment"
	ScopeVideo         Scope = "video"
	ScopeChannel       Scope = "channel"
	ScopeComments      Scope = "comments" // explicit comment list, used for retries
)

// ValidScopes defines allowed export scopes
var ValidScopes = map[Scope]bool{
	ScopeSingleComment: true,
	ScopeVideo:         true,
	ScopeChannel:       true,
	ScopeComments:      true,
}

// ExportRequest describes one export. It is never mutated once a run starts.
type ExportRequest struct {
	Scope       Scope         `json:"scope"`
	TargetIDs   []string      `json:"target_ids"`
	ArchiveSize int           `json:"archive_size"` // 0 means one unbounded archive per video
	Filter      CommentFilter `json:"filter"`
	Sort        CommentSort   `json:"sort"`
	VideoOrder  VideoOrder    `json:"video_order"`
}

// RenderedArtifact is the rendered output for one comment
type RenderedArtifact struct {
	CommentID   string `json:"comment_id"`
	VideoID     string `json:"video_id"`
	DisplayName string `json:"display_name"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"-"`
}

// ArchiveUnit is an ordered, size-bounded group of artifacts from one video
type ArchiveUnit struct {
	VideoID    string             `json:"video_id"`
	VideoTitle string             `json:"video_title"`
	Index      int                `json:"index"` // 1-based, resets per video
	Name       string             `json:"name"`
	Items      []RenderedArtifact `json:"items"`
}

// Size returns the total payload size of the unit
func (u *ArchiveUnit) Size() int64 {
	var n int64
	for i := range u.Items {
		n += int64(len(u.Items[i].Data))
	}
	return n
}

// FailureReason classifies a per-item failure
type FailureReason string

const (
	FailureRenderError         FailureReason = "render_error"
	FailureMalformedContent    FailureReason = "malformed_content"
	FailureTimeout             FailureReason = "timeout"
	FailurePanic               FailureReason = "panic"
	FailureRendererUnavailable FailureReason = "renderer_unavailable"
	FailureInvalidComment      FailureReason = "invalid_comment"
	FailureEmptyArtifact       FailureReason = "empty_artifact"
	// the item rendered but its archive could not be written
	FailureArchiveWriteFailed FailureReason = "archive_write_failed"
)

// FailureRecord is one entry of the failure ledger
type FailureRecord struct {
	CommentID string        `json:"comment_id"`
	VideoID   string        `json:"video_id"`
	Reason    FailureReason `json:"reason"`
	Message   string        `json:"message,omitempty"`
}

// ProgressSnapshot is an immutable copy of a run's counters
type ProgressSnapshot struct {
	Total     int `json:"total"`
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Remaining int `json:"remaining"`
	Archives  int `json:"archives"`

	VideoIndex     int    `json:"video_index"` // 1-based, 0 before the first video
	VideoCount     int    `json:"video_count"`
	VideoID        string `json:"video_id,omitempty"`
	VideoTitle     string `json:"video_title,omitempty"`
	VideoTotal     int    `json:"video_total"`
	VideoCompleted int    `json:"video_completed"`

	Percent float64 `json:"percent"`
}

// EventType identifies an export event
type EventType string

const (
	EventArchive  EventType = "archive"
	EventProgress EventType = "progress"
	EventDone     EventType = "done"
	EventFailed   EventType = "failed"
)

// IsTerminal reports whether no further events follow
func (t EventType) IsTerminal() bool {
	return t == EventDone || t == EventFailed
}

// Event is one element of a run's output stream
type Event struct {
	Type     EventType         `json:"type"`
	RunID    string            `json:"run_id"`
	Unit     *ArchiveUnit      `json:"unit,omitempty"`
	Archive  *ArchiveFile      `json:"archive,omitempty"`
	Snapshot *ProgressSnapshot `json:"snapshot,omitempty"`
	Failures []FailureRecord   `json:"failures,omitempty"`
	Status   RunStatus         `json:"status,omitempty"`
	Error    string            `json:"error,omitempty"`
}
