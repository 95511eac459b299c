package benchmark

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/comment-export-api/internal/export"
	"github.com/comment-export-api/internal/mocks"
	"github.com/comment-export-api/internal/models"
	"github.com/comment-export-api/internal/render"
	"github.com/comment-export-api/internal/validation"
	"github.com/rs/zerolog"
)

// corpusSize matches the largest channel dumps the exporter is expected to handle
const corpusSize = 80000

var base = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// seedCorpus spreads n comments over the given number of videos of one channel
func seedCorpus(videos, n int) (*mocks.MockVideoRepository, *mocks.MockCommentRepository) {
	videoRepo := mocks.NewMockVideoRepository()
	commentRepo := mocks.NewMockCommentRepository()

	perVideo := n / videos
	for v := 0; v < videos; v++ {
		videoID := fmt.Sprintf("vid_%03d", v)
		videoRepo.Add(&models.Video{
			ID:          videoID,
			ChannelID:   "UC_bench",
			Title:       fmt.Sprintf("Benchmark video %d", v),
			PublishedAt: base.Add(time.Duration(v) * time.Hour),
		})

		comments := make([]*models.Comment, 0, perVideo)
		for i := 0; i < perVideo; i++ {
			comments = append(comments, &models.Comment{
				ID:          fmt.Sprintf("%s_c%06d", videoID, i),
				VideoID:     videoID,
				Author:      fmt.Sprintf("@viewer%d", i%997),
				Text:        fmt.Sprintf("comment number %d on %s", i, videoID),
				PublishedAt: base.Add(time.Duration(i) * time.Second),
				LikeCount:   int64(i % 50),
			})
		}
		commentRepo.Add(comments...)
	}
	return videoRepo, commentRepo
}

// runExport drains one run and returns the number of archive units it emitted
func runExport(b *testing.B, engine *export.Engine, req models.ExportRequest) int {
	b.Helper()

	run, err := engine.Start(context.Background(), req)
	if err != nil {
		b.Fatalf("Start() error = %v", err)
	}

	units := 0
	for ev := range run.Events() {
		switch ev.Type {
		case models.EventArchive:
			units++
		case models.EventFailed:
			b.Fatalf("run failed: %s", ev.Error)
		}
	}
	return units
}

// BenchmarkEngineVideoExport benchmarks a single video holding the whole corpus
func BenchmarkEngineVideoExport(b *testing.B) {
	videoRepo, commentRepo := seedCorpus(1, corpusSize)
	engine := export.NewEngine(videoRepo, commentRepo, mocks.NewMockRenderer(), export.Config{
		Workers:            8,
		Window:             64,
		MaxPendingArchives: 2,
	}, zerolog.Nop())

	req := models.ExportRequest{Scope: models.ScopeVideo, TargetIDs: []string{"vid_000"}, ArchiveSize: 500}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if units := runExport(b, engine, req); units != corpusSize/500 {
			b.Fatalf("units = %d, want %d", units, corpusSize/500)
		}
	}

	b.ReportMetric(float64(corpusSize*b.N)/b.Elapsed().Seconds(), "comments/sec")
}

// BenchmarkEngineChannelExport benchmarks a channel walk over 40 videos
func BenchmarkEngineChannelExport(b *testing.B) {
	videoRepo, commentRepo := seedCorpus(40, corpusSize)
	engine := export.NewEngine(videoRepo, commentRepo, mocks.NewMockRenderer(), export.Config{
		Workers:            8,
		Window:             64,
		MaxPendingArchives: 2,
	}, zerolog.Nop())

	req := models.ExportRequest{
		Scope:       models.ScopeChannel,
		TargetIDs:   []string{"UC_bench"},
		ArchiveSize: 500,
		Sort:        models.CommentSort{By: models.CommentSortLikes, Dir: models.SortDesc},
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		// 2000 comments per video in units of 500
		if units := runExport(b, engine, req); units != 40*4 {
			b.Fatalf("units = %d, want %d", units, 40*4)
		}
	}

	b.ReportMetric(float64(corpusSize*b.N)/b.Elapsed().Seconds(), "comments/sec")
}

// BenchmarkEngineWorkers compares render pool sizes with a renderer that takes real time
func BenchmarkEngineWorkers(b *testing.B) {
	const n = 2000
	videoRepo, commentRepo := seedCorpus(1, n)

	for _, workers := range []int{1, 4, 16} {
		b.Run(fmt.Sprintf("workers=%d", workers), func(b *testing.B) {
			renderer := mocks.NewMockRenderer()
			renderer.RenderFunc = func(ctx context.Context, comment *models.Comment, video *models.Video) ([]byte, error) {
				time.Sleep(50 * time.Microsecond)
				return []byte(comment.Text), nil
			}
			engine := export.NewEngine(videoRepo, commentRepo, renderer, export.Config{
				Workers: workers,
				Window:  workers * 8,
			}, zerolog.Nop())
			req := models.ExportRequest{Scope: models.ScopeVideo, TargetIDs: []string{"vid_000"}, ArchiveSize: 250}

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				runExport(b, engine, req)
			}
			b.ReportMetric(float64(n*b.N)/b.Elapsed().Seconds(), "comments/sec")
		})
	}
}

// BenchmarkHTMLRender benchmarks the built-in comment card renderer
func BenchmarkHTMLRender(b *testing.B) {
	renderer, err := render.NewHTMLRenderer()
	if err != nil {
		b.Fatal(err)
	}
	video := &models.Video{ID: "vid_000", Title: "Benchmark video"}
	comment := &models.Comment{
		ID:          "c1",
		VideoID:     "vid_000",
		Author:      "@viewer",
		Text:        "Great walkthrough, the part about reflow profiles saved my board <3",
		PublishedAt: base,
		LikeCount:   1234,
	}
	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, err := renderer.Render(ctx, comment, video); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkChunkerNaming benchmarks name claiming and chunking without rendering
func BenchmarkChunkerNaming(b *testing.B) {
	video := &models.Video{ID: "vid_000", Title: "Benchmark video"}
	comments := make([]*models.Comment, 1000)
	for i := range comments {
		comments[i] = &models.Comment{
			ID:          fmt.Sprintf("c%04d", i),
			VideoID:     video.ID,
			Author:      "@same author",
			Text:        "same text",
			PublishedAt: base,
		}
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		chunker := export.NewChunker(video, 100, "html", export.NewNameSet())
		for _, c := range comments {
			chunker.Accept(models.RenderedArtifact{
				CommentID:   c.ID,
				VideoID:     c.VideoID,
				DisplayName: export.BaseName(c, video),
				Data:        []byte("x"),
			})
		}
		chunker.Flush()
	}
}

// BenchmarkCommentValidation benchmarks import validation of comment records
func BenchmarkCommentValidation(b *testing.B) {
	validator := validation.NewValidator()
	validator.SetVideoIDCache([]string{"vid_000"})

	records := make([]*models.CommentNDJSON, b.N)
	for i := range records {
		records[i] = &models.CommentNDJSON{
			ID:          fmt.Sprintf("c%09d", i),
			VideoID:     "vid_000",
			Author:      "@viewer",
			Text:        "a perfectly ordinary comment",
			PublishedAt: "2024-01-01T00:00:00Z",
			LikeCount:   3,
		}
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		validator.ValidateComment(records[i])
	}
}
