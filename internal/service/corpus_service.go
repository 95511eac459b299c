package service

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/comment-export-api/internal/config"
	"github.com/comment-export-api/internal/models"
	"github.com/comment-export-api/internal/repository"
	"github.com/comment-export-api/internal/validation"
	"github.com/rs/zerolog"
)

// maxReportedErrors caps the validation errors returned with an import result.
// ErrorCount still counts all of them.
const maxReportedErrors = 1000

// corpusService is the concrete implementation of CorpusService
type corpusService struct {
	repos *repository.Repositories
	cfg   *config.Config
	log   zerolog.Logger
}

func newCorpusService(repos *repository.Repositories, cfg *config.Config, log zerolog.Logger) *corpusService {
	return &corpusService{
		repos: repos,
		cfg:   cfg,
		log:   log.With().Str("service", "corpus").Logger(),
	}
}

// importState accumulates counters and errors while an import streams
type importState struct {
	result *models.ImportResult
	start  time.Time
}

func (st *importState) reject(line int, errs []validation.ValidationError) {
	st.result.FailedCount++
	for _, e := range errs {
		st.result.ErrorCount++
		if len(st.result.Errors) < maxReportedErrors {
			st.result.Errors = append(st.result.Errors, models.ValidationError{
				Line:    line,
				Field:   e.Field,
				Message: e.Message,
				Value:   e.Value,
			})
		}
	}
}

// Import reads NDJSON records from r and stores the valid ones in batches
func (s *corpusService) Import(ctx context.Context, resource string, r io.Reader) (*models.ImportResult, error) {
	st := &importState{
		result: &models.ImportResult{Resource: resource},
		start:  time.Now(),
	}

	s.log.Info().Str("resource", resource).Msg("Starting corpus import")

	var err error
	switch resource {
	case models.ResourceVideos:
		err = s.importVideos(ctx, r, st)
	case models.ResourceComments:
		err = s.importComments(ctx, r, st)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownResource, resource)
	}

	duration := time.Since(st.start)
	st.result.DurationMs = duration.Milliseconds()
	if st.result.TotalRecords > 0 && duration.Seconds() > 0 {
		st.result.RowsPerSec = float64(st.result.TotalRecords) / duration.Seconds()
	}

	if err != nil {
		s.log.Error().Err(err).Str("resource", resource).Msg("Import failed")
		return st.result, err
	}

	s.log.Info().
		Str("resource", resource).
		Int("total", st.result.TotalRecords).
		Int("successful", st.result.SuccessfulCount).
		Int("failed", st.result.FailedCount).
		Int64("duration_ms", st.result.DurationMs).
		Float64("rows_per_sec", st.result.RowsPerSec).
		Msg("Import completed")

	return st.result, nil
}

// scanLines calls fn for every non-blank line, checking for cancellation periodically
func scanLines(ctx context.Context, r io.Reader, fn func(lineNum int, line []byte) error) error {
	scanner := bufio.NewScanner(r)
	// Increase buffer size for long comment texts
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 4*1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if lineNum%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		if err := fn(lineNum, line); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func invalidJSON(err error) []validation.ValidationError {
	return []validation.ValidationError{{Field: "json", Message: fmt.Sprintf("invalid JSON: %v", err)}}
}

func (s *corpusService) importVideos(ctx context.Context, r io.Reader, st *importState) error {
	validator := validation.NewValidator()
	batchSize := s.cfg.Import.BatchSize

	var batch []*models.Video
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		inserted, err := s.repos.Video.BatchInsert(ctx, batch)
		if err != nil {
			return fmt.Errorf("insert videos: %w", err)
		}
		st.result.SuccessfulCount += inserted
		batch = batch[:0]
		return nil
	}

	err := scanLines(ctx, r, func(lineNum int, line []byte) error {
		st.result.TotalRecords++

		var rec models.VideoNDJSON
		if err := json.Unmarshal(line, &rec); err != nil {
			st.reject(lineNum, invalidJSON(err))
			return nil
		}
		if errs := validator.ValidateVideo(&rec); len(errs) > 0 {
			st.reject(lineNum, errs)
			return nil
		}

		validator.AddVideoID(rec.ID)
		batch = append(batch, convertVideo(&rec))
		if len(batch) >= batchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return err
	}
	return flush()
}

func (s *corpusService) importComments(ctx context.Context, r io.Reader, st *importState) error {
	validator := validation.NewValidator()
	batchSize := s.cfg.Import.BatchSize

	// Pre-load references for FK validation
	videoIDs, err := s.repos.Video.GetAllIDs(ctx)
	if err != nil {
		return fmt.Errorf("load video ids: %w", err)
	}
	validator.SetVideoIDCache(videoIDs)

	index, err := s.repos.Comment.GetVideoIndex(ctx)
	if err != nil {
		return fmt.Errorf("load comment index: %w", err)
	}
	validator.SetCommentIndex(index)

	var batch []*models.Comment
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		inserted, err := s.repos.Comment.BatchInsert(ctx, batch)
		if err != nil {
			return fmt.Errorf("insert comments: %w", err)
		}
		st.result.SuccessfulCount += inserted
		batch = batch[:0]

		s.log.Debug().
			Int("processed", st.result.TotalRecords).
			Float64("rows_per_sec", float64(st.result.TotalRecords)/time.Since(st.start).Seconds()).
			Msg("Batch processed")
		return nil
	}

	err = scanLines(ctx, r, func(lineNum int, line []byte) error {
		st.result.TotalRecords++

		var rec models.CommentNDJSON
		if err := json.Unmarshal(line, &rec); err != nil {
			st.reject(lineNum, invalidJSON(err))
			return nil
		}
		if errs := validator.ValidateComment(&rec); len(errs) > 0 {
			st.reject(lineNum, errs)
			return nil
		}

		validator.AddComment(rec.ID, rec.VideoID)
		batch = append(batch, convertComment(&rec))
		if len(batch) >= batchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return err
	}
	return flush()
}

func convertVideo(rec *models.VideoNDJSON) *models.Video {
	video := &models.Video{
		ID:           rec.ID,
		ChannelID:    rec.ChannelID,
		ChannelTitle: rec.ChannelTitle,
		Title:        rec.Title,
		Description:  rec.Description,
		ViewCount:    rec.ViewCount,
		LikeCount:    rec.LikeCount,
		CommentCount: rec.CommentCount,
		ThumbnailURL: rec.ThumbnailURL,
	}
	if rec.PublishedAt != "" {
		video.PublishedAt, _ = time.Parse(time.RFC3339, rec.PublishedAt)
	}
	return video
}

func convertComment(rec *models.CommentNDJSON) *models.Comment {
	comment := &models.Comment{
		ID:                rec.ID,
		VideoID:           rec.VideoID,
		Author:            rec.Author,
		Text:              rec.Text,
		LikeCount:         rec.LikeCount,
		ChannelOwnerLiked: rec.ChannelOwnerLiked,
	}
	comment.PublishedAt, _ = time.Parse(time.RFC3339, rec.PublishedAt)
	if rec.UpdatedAt != "" {
		comment.UpdatedAt, _ = time.Parse(time.RFC3339, rec.UpdatedAt)
	}
	if rec.ParentID != "" {
		parent := rec.ParentID
		comment.ParentID = &parent
	}
	return comment
}
