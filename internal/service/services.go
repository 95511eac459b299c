package service

import (
	"context"
	"io"

	"github.com/comment-export-api/internal/archive"
	"github.com/comment-export-api/internal/config"
	"github.com/comment-export-api/internal/export"
	"github.com/comment-export-api/internal/models"
	"github.com/comment-export-api/internal/repository"
	"github.com/rs/zerolog"
)

// CatalogService defines read access to the corpus
type CatalogService interface {
	ListVideos(ctx context.Context, params models.VideoListParams) (*models.VideoPage, error)
	GetVideo(ctx context.Context, id string) (*models.Video, error)
	ListThreads(ctx context.Context, q models.CommentQuery) (*models.ThreadPage, error)
	GetComment(ctx context.Context, id string) (*models.Comment, error)
	Stats(ctx context.Context) (*models.CorpusStats, error)
}

// CorpusService defines the interface for corpus imports
type CorpusService interface {
	Import(ctx context.Context, resource string, r io.Reader) (*models.ImportResult, error)
}

// ExportService defines the interface for export runs
type ExportService interface {
	StartExport(ctx context.Context, req models.ExportRequest) (*models.RunInfo, error)
	GetRun(id string) (*models.RunInfo, error)
	ListRuns() []*models.RunInfo
	CancelRun(id string) (*models.RunInfo, error)
	RetryFailures(ctx context.Context, id string) (*models.RunInfo, error)
	GetFailures(id string) ([]models.FailureRecord, error)
	Subscribe(id string) (<-chan models.Event, func(), error)
	GetArchive(id string, index int) (*models.ArchiveFile, error)
	StartJanitor(ctx context.Context)
	StopJanitor()
	Shutdown(ctx context.Context) error
}

// Services holds all service interfaces
type Services struct {
	Catalog CatalogService
	Corpus  CorpusService
	Export  ExportService
}

// EngineConfig maps export settings onto the engine configuration
func EngineConfig(cfg config.ExportConfig) export.Config {
	return export.Config{
		Workers:            cfg.RenderWorkers,
		Window:             cfg.ReorderWindow,
		MaxPendingArchives: cfg.MaxPendingArchives,
		FailureThreshold:   cfg.FailureThreshold,
		RenderTimeout:      cfg.RenderTimeout,
	}
}

// NewServices creates all services
func NewServices(repos *repository.Repositories, renderer export.Renderer, store *archive.Store, cfg *config.Config, log zerolog.Logger) *Services {
	engine := export.NewEngine(repos.Video, repos.Comment, renderer, EngineConfig(cfg.Export), log)

	return &Services{
		Catalog: newCatalogService(repos, log),
		Corpus:  newCorpusService(repos, cfg, log),
		Export:  newExportService(engine, store, cfg.Export, log),
	}
}

// NewCorpusService creates a standalone corpus service for loaders that never export
func NewCorpusService(repos *repository.Repositories, cfg *config.Config, log zerolog.Logger) CorpusService {
	return newCorpusService(repos, cfg, log)
}
