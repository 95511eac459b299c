package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/comment-export-api/internal/models"
	"github.com/comment-export-api/internal/service"
)

func strPtr(s string) *string { return &s }

func TestCatalogService_ListThreads(t *testing.T) {
	h := newTestHarness(t, nil)
	h.videos.Add(&models.Video{ID: "v1", ChannelID: "UC1", Title: "One", PublishedAt: base})
	h.comments.Add(
		&models.Comment{ID: "c1", VideoID: "v1", Author: "ann", Text: "first", PublishedAt: base, LikeCount: 5},
		&models.Comment{ID: "c2", VideoID: "v1", Author: "bob", Text: "second", PublishedAt: base.Add(time.Minute), LikeCount: 50},
		&models.Comment{ID: "c3", VideoID: "v1", Author: "cat", Text: "third", PublishedAt: base.Add(2 * time.Minute)},
		&models.Comment{ID: "r2", VideoID: "v1", ParentID: strPtr("c1"), Author: "dan", Text: "later reply", PublishedAt: base.Add(3 * time.Minute)},
		&models.Comment{ID: "r1", VideoID: "v1", ParentID: strPtr("c1"), Author: "eve", Text: "reply", PublishedAt: base.Add(90 * time.Second)},
	)

	page, err := h.services.Catalog.ListThreads(context.Background(), models.CommentQuery{
		VideoID: "v1",
		Sort:    models.CommentSort{By: models.CommentSortLikes, Dir: models.SortDesc},
		Limit:   2,
	})
	if err != nil {
		t.Fatalf("ListThreads() error = %v", err)
	}

	if page.Total != 3 || len(page.Threads) != 2 {
		t.Fatalf("total = %d, threads = %d", page.Total, len(page.Threads))
	}
	if page.Threads[0].ID != "c2" || page.Threads[1].ID != "c1" {
		t.Errorf("thread order = %s, %s", page.Threads[0].ID, page.Threads[1].ID)
	}
	replies := page.Threads[1].Replies
	if len(replies) != 2 || replies[0].ID != "r1" || replies[1].ID != "r2" {
		t.Errorf("replies of c1 = %v", replies)
	}
	if page.Threads[0].Replies == nil {
		t.Error("threads without replies should carry an empty list")
	}
}

func TestCatalogService_PagingBounds(t *testing.T) {
	h := newTestHarness(t, nil)

	page, err := h.services.Catalog.ListVideos(context.Background(), models.VideoListParams{Limit: 0, Offset: -3})
	if err != nil {
		t.Fatalf("ListVideos() error = %v", err)
	}
	if page.Limit != service.DefaultPageSize || page.Offset != 0 || page.Videos == nil {
		t.Errorf("page = %+v", page)
	}

	threads, err := h.services.Catalog.ListThreads(context.Background(), models.CommentQuery{VideoID: "v1", Limit: 1000})
	if err != nil {
		t.Fatalf("ListThreads() error = %v", err)
	}
	if threads.Limit != service.MaxPageSize || len(threads.Threads) != 0 {
		t.Errorf("threads = %+v", threads)
	}
}

func TestCatalogService_LookupsAndStats(t *testing.T) {
	h := newTestHarness(t, nil)
	h.videos.Add(&models.Video{ID: "v1", ChannelID: "UC1"}, &models.Video{ID: "v2", ChannelID: "UC2"})
	h.comments.Add(
		&models.Comment{ID: "c1", VideoID: "v1"},
		&models.Comment{ID: "r1", VideoID: "v1", ParentID: strPtr("c1")},
		&models.Comment{ID: "c2", VideoID: "v2"},
	)
	ctx := context.Background()

	if v, err := h.services.Catalog.GetVideo(ctx, "v2"); err != nil || v == nil || v.ChannelID != "UC2" {
		t.Errorf("GetVideo(v2) = %+v, %v", v, err)
	}
	if v, err := h.services.Catalog.GetVideo(ctx, "nope"); err != nil || v != nil {
		t.Errorf("GetVideo(nope) = %+v, %v; want nil, nil", v, err)
	}
	if c, err := h.services.Catalog.GetComment(ctx, "r1"); err != nil || c == nil || c.IsTopLevel() {
		t.Errorf("GetComment(r1) = %+v, %v", c, err)
	}

	stats, err := h.services.Catalog.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Videos != 2 || stats.Comments != 3 || stats.Replies != 1 {
		t.Errorf("stats = %+v", stats)
	}
}
