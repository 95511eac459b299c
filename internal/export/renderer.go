package export

import (
	"context"

	"github.com/comment-export-api/internal/models"
)

// Renderer turns one comment into a self-contained artifact.
// Render must be safe for concurrent use and must not retain the comment.
type Renderer interface {
	Render(ctx context.Context, comment *models.Comment, video *models.Video) ([]byte, error)
	Extension() string
	ContentType() string
}

// CommentSource is the read side of the comment store the engine walks
type CommentSource interface {
	GetByID(ctx context.Context, id string) (*models.Comment, error)
	Query(ctx context.Context, q models.CommentQuery) ([]*models.Comment, error)
	CountMatching(ctx context.Context, q models.CommentQuery) (int, error)
}

// VideoSource is the read side of the video store the engine walks
type VideoSource interface {
	GetByID(ctx context.Context, id string) (*models.Video, error)
	ListByChannel(ctx context.Context, channelID string, order models.VideoOrder) ([]*models.Video, error)
}
