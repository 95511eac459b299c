package models

import (
	"time"
)

// RunStatus represents the status of an export run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// IsFinished returns true if the run will not change any more
func (s RunStatus) IsFinished() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCancelled
}

// ArchiveFile is a persisted archive unit
type ArchiveFile struct {
	Index      int    `json:"index"` // 1-based position within the run
	VideoID    string `json:"video_id"`
	VideoTitle string `json:"video_title"`
	UnitIndex  int    `json:"unit_index"`
	Name       string `json:"name"`
	Path       string `json:"-"`
	Items      int    `json:"items"`
	SizeBytes  int64  `json:"size_bytes"`
	URL        string `json:"download_url,omitempty"`
}

// RunInfo is the API view of an export run
type RunInfo struct {
	ID            string           `json:"run_id"`
	Status        RunStatus        `json:"status"`
	Request       ExportRequest    `json:"request"`
	Progress      ProgressSnapshot `json:"progress"`
	Archives      []ArchiveFile    `json:"archives"`
	FailureCount  int              `json:"failure_count"`
	FailureReport string           `json:"failure_report_url,omitempty"`
	Error         string           `json:"error,omitempty"`
	DurationMs    int64            `json:"duration_ms,omitempty"`
	ItemsPerSec   float64          `json:"items_per_sec,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	CompletedAt   *time.Time       `json:"completed_at,omitempty"`
	RetryOf       string           `json:"retry_of,omitempty"`
}
