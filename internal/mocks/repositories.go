package mocks

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/comment-export-api/internal/models"
	"github.com/comment-export-api/internal/repository"
)

// Verify interface compliance
var (
	_ repository.VideoRepository   = (*MockVideoRepository)(nil)
	_ repository.CommentRepository = (*MockCommentRepository)(nil)
)

// MockVideoRepository is an in-memory implementation of VideoRepository
type MockVideoRepository struct {
	mu               sync.RWMutex
	Videos           map[string]*models.Video
	InsertError      error
	QueryError       error
	BatchInsertFunc  func(ctx context.Context, videos []*models.Video) (int, error)
	BatchInsertCalls int
	seq              int64
}

func NewMockVideoRepository() *MockVideoRepository {
	return &MockVideoRepository{
		Videos: make(map[string]*models.Video),
	}
}

// Add stores videos in ingestion order
func (m *MockVideoRepository) Add(videos ...*models.Video) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range videos {
		if _, ok := m.Videos[v.ID]; ok {
			continue
		}
		m.seq++
		v.Seq = m.seq
		m.Videos[v.ID] = v
	}
}

func (m *MockVideoRepository) BatchInsert(ctx context.Context, videos []*models.Video) (int, error) {
	m.mu.Lock()
	m.BatchInsertCalls++
	m.mu.Unlock()

	if m.BatchInsertFunc != nil {
		return m.BatchInsertFunc(ctx, videos)
	}
	if m.InsertError != nil {
		return 0, m.InsertError
	}

	m.mu.RLock()
	before := len(m.Videos)
	m.mu.RUnlock()
	m.Add(videos...)
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.Videos) - before, nil
}

func (m *MockVideoRepository) GetByID(ctx context.Context, id string) (*models.Video, error) {
	if m.QueryError != nil {
		return nil, m.QueryError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Videos[id], nil
}

func (m *MockVideoRepository) List(ctx context.Context, params models.VideoListParams) ([]*models.Video, error) {
	if m.QueryError != nil {
		return nil, m.QueryError
	}

	by := models.VideoOrderPublished
	if params.SortBy == "seq" {
		by = models.VideoOrderIngestion
	}
	videos, _ := m.ListByChannel(ctx, params.ChannelID, models.VideoOrder{By: by, Dir: params.Dir})

	if params.Limit > 0 {
		start := min(params.Offset, len(videos))
		end := min(start+params.Limit, len(videos))
		videos = videos[start:end]
	}
	return videos, nil
}

func (m *MockVideoRepository) ListByChannel(ctx context.Context, channelID string, order models.VideoOrder) ([]*models.Video, error) {
	if m.QueryError != nil {
		return nil, m.QueryError
	}

	m.mu.RLock()
	videos := make([]*models.Video, 0, len(m.Videos))
	for _, v := range m.Videos {
		if channelID == "" || v.ChannelID == channelID {
			videos = append(videos, v)
		}
	}
	m.mu.RUnlock()

	desc := order.Dir == models.SortDesc
	sort.Slice(videos, func(i, j int) bool {
		a, b := videos[i], videos[j]
		if order.By == models.VideoOrderIngestion {
			if a.Seq != b.Seq {
				return (a.Seq < b.Seq) != desc
			}
		} else if !a.PublishedAt.Equal(b.PublishedAt) {
			return a.PublishedAt.Before(b.PublishedAt) != desc
		}
		return a.ID < b.ID
	})
	return videos, nil
}

func (m *MockVideoRepository) GetAllIDs(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.Videos))
	for id := range m.Videos {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *MockVideoRepository) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.Videos), nil
}

// MockCommentRepository is an in-memory implementation of CommentRepository
// with the same filter and ordering rules as the SQL store
type MockCommentRepository struct {
	mu               sync.RWMutex
	Comments         map[string]*models.Comment
	InsertError      error
	QueryError       error
	QueryFunc        func(ctx context.Context, q models.CommentQuery) ([]*models.Comment, error)
	BatchInsertFunc  func(ctx context.Context, comments []*models.Comment) (int, error)
	BatchInsertCalls int
	QueryCalls       int
	seq              int64
}

func NewMockCommentRepository() *MockCommentRepository {
	return &MockCommentRepository{
		Comments: make(map[string]*models.Comment),
	}
}

// Add stores comments in ingestion order
func (m *MockCommentRepository) Add(comments ...*models.Comment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range comments {
		if _, ok := m.Comments[c.ID]; ok {
			continue
		}
		m.seq++
		c.Seq = m.seq
		c.IsReply = !c.IsTopLevel()
		m.Comments[c.ID] = c
	}
}

func (m *MockCommentRepository) BatchInsert(ctx context.Context, comments []*models.Comment) (int, error) {
	m.mu.Lock()
	m.BatchInsertCalls++
	m.mu.Unlock()

	if m.BatchInsertFunc != nil {
		return m.BatchInsertFunc(ctx, comments)
	}
	if m.InsertError != nil {
		return 0, m.InsertError
	}

	m.mu.RLock()
	before := len(m.Comments)
	m.mu.RUnlock()
	m.Add(comments...)
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.Comments) - before, nil
}

func (m *MockCommentRepository) GetByID(ctx context.Context, id string) (*models.Comment, error) {
	if m.QueryError != nil {
		return nil, m.QueryError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Comments[id], nil
}

func (m *MockCommentRepository) matching(q models.CommentQuery) []*models.Comment {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keyword := strings.ToLower(q.Filter.Keyword)
	out := make([]*models.Comment, 0)
	for _, c := range m.Comments {
		if c.VideoID != q.VideoID {
			continue
		}
		if q.TopLevelOnly && !c.IsTopLevel() {
			continue
		}
		if keyword != "" &&
			!strings.Contains(strings.ToLower(c.Text), keyword) &&
			!strings.Contains(strings.ToLower(c.Author), keyword) {
			continue
		}
		if q.Filter.DateFrom != nil && c.PublishedAt.Before(*q.Filter.DateFrom) {
			continue
		}
		if q.Filter.DateTo != nil && c.PublishedAt.After(*q.Filter.DateTo) {
			continue
		}
		if c.LikeCount < q.Filter.MinLikes {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (m *MockCommentRepository) Query(ctx context.Context, q models.CommentQuery) ([]*models.Comment, error) {
	m.mu.Lock()
	m.QueryCalls++
	m.mu.Unlock()

	if m.QueryFunc != nil {
		return m.QueryFunc(ctx, q)
	}
	if m.QueryError != nil {
		return nil, m.QueryError
	}

	comments := m.matching(q)
	SortComments(comments, q.Sort)

	if q.Limit > 0 {
		start := min(q.Offset, len(comments))
		end := min(start+q.Limit, len(comments))
		comments = comments[start:end]
	}
	return comments, nil
}

func (m *MockCommentRepository) CountMatching(ctx context.Context, q models.CommentQuery) (int, error) {
	if m.QueryError != nil {
		return 0, m.QueryError
	}
	return len(m.matching(q)), nil
}

func (m *MockCommentRepository) ListReplies(ctx context.Context, videoID string, parentIDs []string) ([]*models.Comment, error) {
	parents := make(map[string]bool, len(parentIDs))
	for _, id := range parentIDs {
		parents[id] = true
	}

	m.mu.RLock()
	replies := make([]*models.Comment, 0)
	for _, c := range m.Comments {
		if c.VideoID == videoID && !c.IsTopLevel() && parents[*c.ParentID] {
			replies = append(replies, c)
		}
	}
	m.mu.RUnlock()

	SortComments(replies, models.CommentSort{})
	return replies, nil
}

func (m *MockCommentRepository) GetVideoIndex(ctx context.Context) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	index := make(map[string]string, len(m.Comments))
	for id, c := range m.Comments {
		index[id] = c.VideoID
	}
	return index, nil
}

func (m *MockCommentRepository) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.Comments), nil
}

func (m *MockCommentRepository) CountReplies(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, c := range m.Comments {
		if !c.IsTopLevel() {
			n++
		}
	}
	return n, nil
}

// SortComments orders comments like the SQL store: sort key, then comment id
func SortComments(comments []*models.Comment, s models.CommentSort) {
	desc := s.Dir == models.SortDesc
	sort.SliceStable(comments, func(i, j int) bool {
		a, b := comments[i], comments[j]
		switch s.By {
		case models.CommentSortLikes:
			if a.LikeCount != b.LikeCount {
				return (a.LikeCount < b.LikeCount) != desc
			}
		case models.CommentSortAuthor:
			if a.Author != b.Author {
				return (a.Author < b.Author) != desc
			}
		default:
			if !a.PublishedAt.Equal(b.PublishedAt) {
				return a.PublishedAt.Before(b.PublishedAt) != desc
			}
		}
		return a.ID < b.ID
	})
}
