package mocks

import (
	"context"
	"io"
	"sync"

	"github.com/comment-export-api/internal/models"
	"github.com/comment-export-api/internal/service"
)

// Verify interface compliance
var (
	_ service.CatalogService = (*MockCatalogService)(nil)
	_ service.CorpusService  = (*MockCorpusService)(nil)
	_ service.ExportService  = (*MockExportService)(nil)
)

// MockCatalogService is a mock implementation of CatalogService
type MockCatalogService struct {
	Videos      map[string]*models.Video
	Comments    map[string]*models.Comment
	ThreadsFunc func(ctx context.Context, q models.CommentQuery) (*models.ThreadPage, error)
	StatsResult models.CorpusStats
	Err         error
	LastParams  models.VideoListParams
	LastQuery   models.CommentQuery
}

func NewMockCatalogService() *MockCatalogService {
	return &MockCatalogService{
		Videos:   make(map[string]*models.Video),
		Comments: make(map[string]*models.Comment),
	}
}

func (m *MockCatalogService) ListVideos(ctx context.Context, params models.VideoListParams) (*models.VideoPage, error) {
	m.LastParams = params
	if m.Err != nil {
		return nil, m.Err
	}
	page := &models.VideoPage{Videos: []*models.Video{}, Limit: params.Limit, Offset: params.Offset}
	for _, v := range m.Videos {
		if params.ChannelID == "" || v.ChannelID == params.ChannelID {
			page.Videos = append(page.Videos, v)
		}
	}
	return page, nil
}

func (m *MockCatalogService) GetVideo(ctx context.Context, id string) (*models.Video, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Videos[id], nil
}

func (m *MockCatalogService) ListThreads(ctx context.Context, q models.CommentQuery) (*models.ThreadPage, error) {
	m.LastQuery = q
	if m.ThreadsFunc != nil {
		return m.ThreadsFunc(ctx, q)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return &models.ThreadPage{VideoID: q.VideoID, Threads: []*models.CommentThread{}, Limit: q.Limit, Offset: q.Offset}, nil
}

func (m *MockCatalogService) GetComment(ctx context.Context, id string) (*models.Comment, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Comments[id], nil
}

func (m *MockCatalogService) Stats(ctx context.Context) (*models.CorpusStats, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	stats := m.StatsResult
	return &stats, nil
}

// MockCorpusService is a mock implementation of CorpusService
type MockCorpusService struct {
	ImportFunc func(ctx context.Context, resource string, r io.Reader) (*models.ImportResult, error)
	Imported   map[string][]byte
}

func NewMockCorpusService() *MockCorpusService {
	return &MockCorpusService{Imported: make(map[string][]byte)}
}

func (m *MockCorpusService) Import(ctx context.Context, resource string, r io.Reader) (*models.ImportResult, error) {
	if m.ImportFunc != nil {
		return m.ImportFunc(ctx, resource, r)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	m.Imported[resource] = data
	return &models.ImportResult{Resource: resource, TotalRecords: 1, SuccessfulCount: 1}, nil
}

// MockExportService is a mock implementation of ExportService
type MockExportService struct {
	mu        sync.Mutex
	Runs      map[string]*models.RunInfo
	Failures  map[string][]models.FailureRecord
	Events    map[string][]models.Event
	StartFunc func(ctx context.Context, req models.ExportRequest) (*models.RunInfo, error)
	CancelErr error
	RetryErr  error
	Started   []models.ExportRequest
}

func NewMockExportService() *MockExportService {
	return &MockExportService{
		Runs:     make(map[string]*models.RunInfo),
		Failures: make(map[string][]models.FailureRecord),
		Events:   make(map[string][]models.Event),
	}
}

func (m *MockExportService) StartExport(ctx context.Context, req models.ExportRequest) (*models.RunInfo, error) {
	m.mu.Lock()
	m.Started = append(m.Started, req)
	m.mu.Unlock()

	if m.StartFunc != nil {
		return m.StartFunc(ctx, req)
	}
	info := &models.RunInfo{ID: "run-1", Status: models.RunStatusRunning, Request: req}
	m.mu.Lock()
	m.Runs[info.ID] = info
	m.mu.Unlock()
	return info, nil
}

func (m *MockExportService) GetRun(id string) (*models.RunInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.Runs[id]
	if !ok {
		return nil, service.ErrRunNotFound
	}
	return info, nil
}

func (m *MockExportService) ListRuns() []*models.RunInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	runs := make([]*models.RunInfo, 0, len(m.Runs))
	for _, r := range m.Runs {
		runs = append(runs, r)
	}
	return runs
}

func (m *MockExportService) CancelRun(id string) (*models.RunInfo, error) {
	info, err := m.GetRun(id)
	if err != nil {
		return nil, err
	}
	if m.CancelErr != nil {
		return nil, m.CancelErr
	}
	return info, nil
}

func (m *MockExportService) RetryFailures(ctx context.Context, id string) (*models.RunInfo, error) {
	if _, err := m.GetRun(id); err != nil {
		return nil, err
	}
	if m.RetryErr != nil {
		return nil, m.RetryErr
	}
	return &models.RunInfo{ID: "retry-1", Status: models.RunStatusRunning, RetryOf: id}, nil
}

func (m *MockExportService) GetFailures(id string) ([]models.FailureRecord, error) {
	if _, err := m.GetRun(id); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Failures[id], nil
}

// Subscribe replays the configured events for a run and closes the channel
func (m *MockExportService) Subscribe(id string) (<-chan models.Event, func(), error) {
	if _, err := m.GetRun(id); err != nil {
		return nil, nil, err
	}
	m.mu.Lock()
	events := m.Events[id]
	m.mu.Unlock()

	ch := make(chan models.Event, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return ch, func() {}, nil
}

func (m *MockExportService) GetArchive(id string, index int) (*models.ArchiveFile, error) {
	info, err := m.GetRun(id)
	if err != nil {
		return nil, err
	}
	if index < 1 || index > len(info.Archives) {
		return nil, service.ErrArchiveNotFound
	}
	file := info.Archives[index-1]
	return &file, nil
}

func (m *MockExportService) StartJanitor(ctx context.Context) {}

func (m *MockExportService) StopJanitor() {}

func (m *MockExportService) Shutdown(ctx context.Context) error { return nil }
