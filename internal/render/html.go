package render

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"hash/fnv"
	"html/template"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/comment-export-api/internal/export"
	"github.com/comment-export-api/internal/models"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// DateLayout is how comment dates appear on a card
const DateLayout = "Jan 02, 2006"

var avatarColors = []string{
	"#FF6B6B", "#4ECDC4", "#45B7D1", "#96CEB4",
	"#FFEAA7", "#DDA0DD", "#98D8C8", "#F39C12",
	"#E74C3C", "#9B59B6", "#3498DB", "#2ECC71",
}

// HTMLRenderer renders a comment as a standalone YouTube-style HTML card
type HTMLRenderer struct {
	tmpl      *template.Template
	showVideo bool
}

var _ export.Renderer = (*HTMLRenderer)(nil)

// Option configures an HTMLRenderer
type Option func(*HTMLRenderer)

// WithVideoTitle controls the "From: <video>" line on each card
func WithVideoTitle(show bool) Option {
	return func(r *HTMLRenderer) { r.showVideo = show }
}

// NewHTMLRenderer parses the embedded card template
func NewHTMLRenderer(opts ...Option) (*HTMLRenderer, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/comment.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse comment template: %w", err)
	}

	r := &HTMLRenderer{tmpl: tmpl, showVideo: true}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

type card struct {
	AvatarColor template.CSS
	Initial     string
	Author      string
	Date        string
	Text        string
	Likes       string
	OwnerLiked  bool
	IsReply     bool
	VideoTitle  string
}

// Render renders one comment. Text that is not valid UTF-8 is rejected as
// malformed content.
func (r *HTMLRenderer) Render(ctx context.Context, comment *models.Comment, video *models.Video) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !utf8.ValidString(comment.Text) || !utf8.ValidString(comment.Author) {
		return nil, fmt.Errorf("comment %s: invalid utf-8: %w", comment.ID, export.ErrMalformedContent)
	}

	author := comment.Author
	if author == "" {
		author = "Unknown"
	}

	c := card{
		AvatarColor: template.CSS(AvatarColor(comment.Author)),
		Initial:     Initial(comment.Author),
		Author:      author,
		Text:        comment.Text,
		Likes:       FormatLikes(comment.LikeCount),
		OwnerLiked:  comment.ChannelOwnerLiked,
		IsReply:     !comment.IsTopLevel(),
	}
	if !comment.PublishedAt.IsZero() {
		c.Date = comment.PublishedAt.UTC().Format(DateLayout)
	}
	if r.showVideo && video != nil {
		c.VideoTitle = video.Title
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, c); err != nil {
		return nil, fmt.Errorf("render comment %s: %w", comment.ID, err)
	}
	return buf.Bytes(), nil
}

// Extension returns the artifact file extension
func (r *HTMLRenderer) Extension() string { return "html" }

// ContentType returns the artifact MIME type
func (r *HTMLRenderer) ContentType() string { return "text/html; charset=utf-8" }

// AvatarColor picks a stable colour for an author
func AvatarColor(author string) string {
	h := fnv.New32a()
	h.Write([]byte(author))
	return avatarColors[h.Sum32()%uint32(len(avatarColors))]
}

// Initial returns the upper-cased first letter shown in the avatar
func Initial(author string) string {
	author = strings.TrimLeft(author, "@")
	r, _ := utf8.DecodeRuneInString(author)
	if r == utf8.RuneError {
		return "U"
	}
	return string(unicode.ToUpper(r))
}

// FormatLikes abbreviates like counts: 999, 1.2K, 15K, 3.4M
func FormatLikes(n int64) string {
	switch {
	case n < 1000:
		return strconv.FormatInt(n, 10)
	case n < 1_000_000:
		return trimZero(strconv.FormatFloat(float64(n)/1000, 'f', 1, 64)) + "K"
	default:
		return trimZero(strconv.FormatFloat(float64(n)/1_000_000, 'f', 1, 64)) + "M"
	}
}

func trimZero(s string) string {
	return strings.TrimSuffix(s, ".0")
}
