package export

import (
	"context"
	"errors"
	"fmt"

	"github.com/comment-export-api/internal/models"
)

// Renderer-side sentinels. A Renderer wraps one of these to pick the failure reason.
var (
	ErrMalformedContent    = errors.New("malformed comment content")
	ErrRendererUnavailable = errors.New("renderer unavailable")
	ErrInvalidComment      = errors.New("comment does not belong to the video being exported")
	ErrEmptyArtifact       = errors.New("renderer produced an empty artifact")

	errRenderPanic = errors.New("renderer panicked")
)

// ResolutionError means the requested scope could not be resolved at all.
// No run is started.
type ResolutionError struct {
	Scope models.Scope
	ID    string
	Err   error
}

func (e *ResolutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resolve %s %q: %v", e.Scope, e.ID, e.Err)
	}
	return fmt.Sprintf("resolve %s %q: not found", e.Scope, e.ID)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// RenderFailure is a per-item failure. It ends up in the failure ledger and
// never stops the walk on its own.
type RenderFailure struct {
	CommentID string
	VideoID   string
	Reason    models.FailureReason
	Err       error
}

func (e *RenderFailure) Error() string {
	return fmt.Sprintf("render comment %s: %s: %v", e.CommentID, e.Reason, e.Err)
}

func (e *RenderFailure) Unwrap() error { return e.Err }

// Record converts the failure to a ledger entry
func (e *RenderFailure) Record() models.FailureRecord {
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return models.FailureRecord{
		CommentID: e.CommentID,
		VideoID:   e.VideoID,
		Reason:    e.Reason,
		Message:   msg,
	}
}

// SystemicError aborts a run after too many consecutive render failures
type SystemicError struct {
	Consecutive int
	Last        *RenderFailure
}

func (e *SystemicError) Error() string {
	if e.Last == nil {
		return fmt.Sprintf("renderer failed %d consecutive items", e.Consecutive)
	}
	return fmt.Sprintf("renderer failed %d consecutive items, last: %v", e.Consecutive, e.Last)
}

func (e *SystemicError) Unwrap() error {
	if e.Last == nil {
		return nil
	}
	return e.Last
}

// classify maps a renderer error to a failure reason
func classify(err error) models.FailureReason {
	switch {
	case errors.Is(err, ErrMalformedContent):
		return models.FailureMalformedContent
	case errors.Is(err, ErrRendererUnavailable):
		return models.FailureRendererUnavailable
	case errors.Is(err, ErrInvalidComment):
		return models.FailureInvalidComment
	case errors.Is(err, ErrEmptyArtifact):
		return models.FailureEmptyArtifact
	case errors.Is(err, errRenderPanic):
		return models.FailurePanic
	case errors.Is(err, context.DeadlineExceeded):
		return models.FailureTimeout
	default:
		return models.FailureRenderError
	}
}

// countsTowardSystemic reports whether a failure reason says something about
// the renderer itself rather than about one comment.
func countsTowardSystemic(reason models.FailureReason) bool {
	switch reason {
	case models.FailureMalformedContent, models.FailureInvalidComment:
		return false
	default:
		return true
	}
}
