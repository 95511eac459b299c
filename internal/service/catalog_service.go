package service

import (
	"context"
	"fmt"

	"github.com/comment-export-api/internal/models"
	"github.com/comment-export-api/internal/repository"
	"github.com/rs/zerolog"
)

// Listing bounds
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// catalogService is the concrete implementation of CatalogService
type catalogService struct {
	repos *repository.Repositories
	log   zerolog.Logger
}

func newCatalogService(repos *repository.Repositories, log zerolog.Logger) *catalogService {
	return &catalogService{
		repos: repos,
		log:   log.With().Str("service", "catalog").Logger(),
	}
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// ListVideos returns one page of videos
func (s *catalogService) ListVideos(ctx context.Context, params models.VideoListParams) (*models.VideoPage, error) {
	params.Limit, params.Offset = clampPage(params.Limit, params.Offset)

	videos, err := s.repos.Video.List(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	if videos == nil {
		videos = []*models.Video{}
	}
	return &models.VideoPage{Videos: videos, Limit: params.Limit, Offset: params.Offset}, nil
}

// GetVideo returns nil when the video does not exist
func (s *catalogService) GetVideo(ctx context.Context, id string) (*models.Video, error) {
	return s.repos.Video.GetByID(ctx, id)
}

// ListThreads returns top-level comments of a video with their direct replies.
// Filters and sorting apply to the top-level comments; replies follow in date order.
func (s *catalogService) ListThreads(ctx context.Context, q models.CommentQuery) (*models.ThreadPage, error) {
	q.TopLevelOnly = true
	q.Limit, q.Offset = clampPage(q.Limit, q.Offset)

	total, err := s.repos.Comment.CountMatching(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("count comments: %w", err)
	}

	comments, err := s.repos.Comment.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}

	page := &models.ThreadPage{
		VideoID: q.VideoID,
		Threads: make([]*models.CommentThread, 0, len(comments)),
		Total:   total,
		Limit:   q.Limit,
		Offset:  q.Offset,
	}
	if len(comments) == 0 {
		return page, nil
	}

	byID := make(map[string]*models.CommentThread, len(comments))
	parentIDs := make([]string, 0, len(comments))
	for _, c := range comments {
		thread := &models.CommentThread{Comment: *c, Replies: []*models.Comment{}}
		page.Threads = append(page.Threads, thread)
		byID[c.ID] = thread
		parentIDs = append(parentIDs, c.ID)
	}

	replies, err := s.repos.Comment.ListReplies(ctx, q.VideoID, parentIDs)
	if err != nil {
		return nil, fmt.Errorf("list replies: %w", err)
	}
	for _, r := range replies {
		if r.ParentID == nil {
			continue
		}
		if thread, ok := byID[*r.ParentID]; ok {
			thread.Replies = append(thread.Replies, r)
		}
	}

	return page, nil
}

// GetComment returns nil when the comment does not exist
func (s *catalogService) GetComment(ctx context.Context, id string) (*models.Comment, error) {
	return s.repos.Comment.GetByID(ctx, id)
}

// Stats returns corpus counts
func (s *catalogService) Stats(ctx context.Context) (*models.CorpusStats, error) {
	videos, err := s.repos.Video.Count(ctx)
	if err != nil {
		return nil, err
	}
	comments, err := s.repos.Comment.Count(ctx)
	if err != nil {
		return nil, err
	}
	replies, err := s.repos.Comment.CountReplies(ctx)
	if err != nil {
		return nil, err
	}
	return &models.CorpusStats{Videos: videos, Comments: comments, Replies: replies}, nil
}
