package repository

import (
	"context"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/comment-export-api/internal/database"
	"github.com/comment-export-api/internal/models"
)

// VideoRepository defines the interface for video data operations
type VideoRepository interface {
	BatchInsert(ctx context.Context, videos []*models.Video) (int, error)
	GetByID(ctx context.Context, id string) (*models.Video, error)
	List(ctx context.Context, params models.VideoListParams) ([]*models.Video, error)
	ListByChannel(ctx context.Context, channelID string, order models.VideoOrder) ([]*models.Video, error)
	GetAllIDs(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int, error)
}

// CommentRepository defines the interface for comment data operations.
// Query results are stable for a fixed input: every ordering ends with the comment id.
type CommentRepository interface {
	BatchInsert(ctx context.Context, comments []*models.Comment) (int, error)
	GetByID(ctx context.Context, id string) (*models.Comment, error)
	Query(ctx context.Context, q models.CommentQuery) ([]*models.Comment, error)
	CountMatching(ctx context.Context, q models.CommentQuery) (int, error)
	ListReplies(ctx context.Context, videoID string, parentIDs []string) ([]*models.Comment, error)
	GetVideoIndex(ctx context.Context) (map[string]string, error)
	Count(ctx context.Context) (int, error)
	CountReplies(ctx context.Context) (int, error)
}

// Repositories holds all repository interfaces
type Repositories struct {
	Video   VideoRepository
	Comment CommentRepository
}

// New creates all repositories with the given database connection
func New(db *database.DB) *Repositories {
	return &Repositories{
		Video:   NewVideoRepo(db),
		Comment: NewCommentRepo(db),
	}
}

// insertChunkRows keeps multi-row inserts under the bind variable limits of both dialects
const insertChunkRows = 500

func statementBuilder(db *database.DB) sq.StatementBuilderType {
	builder := sq.StatementBuilder.RunWith(db.DB)
	if db.Dialect == database.DialectPostgres {
		return builder.PlaceholderFormat(sq.Dollar)
	}
	return builder.PlaceholderFormat(sq.Question)
}

func sortDir(dir models.SortDir) string {
	if dir == models.SortDesc {
		return "DESC"
	}
	return "ASC"
}

// likePattern builds a lower-cased, escaped substring pattern for LIKE ... ESCAPE '\'
func likePattern(keyword string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(strings.ToLower(keyword)) + "%"
}
