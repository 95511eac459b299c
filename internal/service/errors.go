package service

import (
	"errors"
	"fmt"

	"github.com/comment-export-api/internal/validation"
)

var (
	ErrRunNotFound     = errors.New("export run not found")
	ErrRunFinished     = errors.New("export run already finished")
	ErrRunActive       = errors.New("export run still running")
	ErrTooManyRuns     = errors.New("too many export runs in progress")
	ErrNothingToRetry  = errors.New("export run has no failed items")
	ErrArchiveNotFound = errors.New("archive not found")
	ErrUnknownResource = errors.New("unknown resource")
	ErrShuttingDown    = errors.New("export service is shutting down")
)

// InvalidRequestError carries the validation errors of a rejected export request
type InvalidRequestError struct {
	Errors []validation.ValidationError
}

func (e *InvalidRequestError) Error() string {
	if len(e.Errors) == 0 {
		return "invalid export request"
	}
	return fmt.Sprintf("invalid export request: %s: %s", e.Errors[0].Field, e.Errors[0].Message)
}
