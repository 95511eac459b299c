package render

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/comment-export-api/internal/export"
	"github.com/comment-export-api/internal/models"
)

func TestHTMLRenderer_Render(t *testing.T) {
	r, err := NewHTMLRenderer()
	if err != nil {
		t.Fatalf("NewHTMLRenderer() error = %v", err)
	}

	comment := &models.Comment{
		ID:                "c1",
		VideoID:           "v1",
		Author:            "@alice",
		Text:              "<script>alert(1)</script> & more",
		PublishedAt:       time.Date(2024, 3, 9, 23, 30, 0, 0, time.UTC),
		LikeCount:         1234,
		ChannelOwnerLiked: true,
	}
	video := &models.Video{ID: "v1", Title: "Tom & Jerry"}

	out, err := r.Render(context.Background(), comment, video)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	html := string(out)

	checks := []string{
		"Mar 09, 2024",
		"1.2K",
		"From: Tom &amp; Jerry",
		"&lt;script&gt;alert(1)&lt;/script&gt; &amp; more",
		`<div class="avatar">A</div>`,
		`class="heart-icon"`,
		AvatarColor("@alice"),
	}
	for _, want := range checks {
		if !strings.Contains(html, want) {
			t.Errorf("rendered card missing %q", want)
		}
	}
	if strings.Contains(html, "<script>") {
		t.Error("comment text was not escaped")
	}
	if strings.Contains(html, "reply-marker\">Reply") {
		t.Error("top-level comment marked as reply")
	}
}

func TestHTMLRenderer_Options(t *testing.T) {
	r, err := NewHTMLRenderer(WithVideoTitle(false))
	if err != nil {
		t.Fatalf("NewHTMLRenderer() error = %v", err)
	}
	parent := "c0"
	out, err := r.Render(context.Background(),
		&models.Comment{ID: "c1", ParentID: &parent, Author: "bob", Text: "hi"},
		&models.Video{Title: "Hidden"})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if strings.Contains(string(out), "Hidden") {
		t.Error("video title shown although disabled")
	}
	if !strings.Contains(string(out), "Reply") {
		t.Error("reply not marked")
	}
	if strings.Contains(string(out), "heart-icon\">") {
		t.Error("heart shown without owner like")
	}
}

func TestHTMLRenderer_MalformedContent(t *testing.T) {
	r, err := NewHTMLRenderer()
	if err != nil {
		t.Fatalf("NewHTMLRenderer() error = %v", err)
	}

	_, err = r.Render(context.Background(), &models.Comment{ID: "c1", Text: "bad \xff bytes"}, &models.Video{})
	if !errors.Is(err, export.ErrMalformedContent) {
		t.Errorf("Render() error = %v, want ErrMalformedContent", err)
	}
}

func TestHTMLRenderer_CancelledContext(t *testing.T) {
	r, err := NewHTMLRenderer()
	if err != nil {
		t.Fatalf("NewHTMLRenderer() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := r.Render(ctx, &models.Comment{ID: "c1"}, &models.Video{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Render() error = %v, want context.Canceled", err)
	}
}

func TestFormatLikes(t *testing.T) {
	tests := map[int64]string{
		0:         "0",
		999:       "999",
		1000:      "1K",
		1234:      "1.2K",
		15000:     "15K",
		2_500_000: "2.5M",
	}
	for n, want := range tests {
		if got := FormatLikes(n); got != want {
			t.Errorf("FormatLikes(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestAvatarColorAndInitial(t *testing.T) {
	if AvatarColor("alice") != AvatarColor("alice") {
		t.Error("AvatarColor is not stable")
	}

	tests := map[string]string{
		"@alice": "A",
		"élodie": "É",
		"":       "U",
		"@":      "U",
	}
	for in, want := range tests {
		if got := Initial(in); got != want {
			t.Errorf("Initial(%q) = %q, want %q", in, got, want)
		}
	}
}
