package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/comment-export-api/internal/database"
	"github.com/comment-export-api/internal/models"
)

const tableComments = "comments"

func commentColumns() []string {
	return []string{
		"comment_id", "video_id", "parent_comment_id", "author", "text", "published_at",
		"updated_at", "like_count", "is_reply", "channel_owner_liked", "seq",
	}
}

var commentSortColumns = map[models.CommentSortBy]string{
	models.CommentSortDate:   "published_at",
	models.CommentSortLikes:  "like_count",
	models.CommentSortAuthor: "author",
}

// commentRepo is the concrete implementation of CommentRepository
type commentRepo struct {
	db *database.DB
	sb sq.StatementBuilderType
}

// NewCommentRepo creates a new comment repository
func NewCommentRepo(db *database.DB) CommentRepository {
	return &commentRepo{db: db, sb: statementBuilder(db)}
}

func scanComment(row sq.RowScanner) (*models.Comment, error) {
	var comment models.Comment
	var parentID sql.NullString
	var publishedAt, updatedAt sql.NullTime

	err := row.Scan(
		&comment.ID, &comment.VideoID, &parentID, &comment.Author, &comment.Text,
		&publishedAt, &updatedAt, &comment.LikeCount, &comment.IsReply,
		&comment.ChannelOwnerLiked, &comment.Seq,
	)
	if err != nil {
		return nil, err
	}
	if parentID.Valid && parentID.String != "" {
		comment.ParentID = &parentID.String
	}
	if publishedAt.Valid {
		comment.PublishedAt = publishedAt.Time.UTC()
	}
	if updatedAt.Valid {
		comment.UpdatedAt = updatedAt.Time.UTC()
	}
	return &comment, nil
}

// BatchInsert inserts comments that are not stored yet. Slice order becomes ingestion order.
func (r *commentRepo) BatchInsert(ctx context.Context, comments []*models.Comment) (int, error) {
	if len(comments) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var maxSeq int64
	err = r.sb.Select("COALESCE(MAX(seq), 0)").From(tableComments).RunWith(tx).QueryRowContext(ctx).Scan(&maxSeq)
	if err != nil {
		return 0, fmt.Errorf("failed to read comment sequence: %w", err)
	}

	inserted := 0
	for start := 0; start < len(comments); start += insertChunkRows {
		end := min(start+insertChunkRows, len(comments))

		q := r.sb.Insert(tableComments).Columns(commentColumns()...)
		for _, c := range comments[start:end] {
			maxSeq++
			c.Seq = maxSeq
			c.IsReply = !c.IsTopLevel()

			var parent sql.NullString
			if !c.IsTopLevel() {
				parent = sql.NullString{String: *c.ParentID, Valid: true}
			}
			q = q.Values(
				c.ID, c.VideoID, parent, c.Author, c.Text, nullTime(c.PublishedAt),
				nullTime(c.UpdatedAt), c.LikeCount, c.IsReply, c.ChannelOwnerLiked, c.Seq,
			)
		}
		q = q.Suffix("ON CONFLICT (comment_id) DO NOTHING")

		result, err := q.RunWith(tx).ExecContext(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to insert comments: %w", err)
		}
		rows, _ := result.RowsAffected()
		inserted += int(rows)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	return inserted, nil
}

// GetByID retrieves a comment by ID
func (r *commentRepo) GetByID(ctx context.Context, id string) (*models.Comment, error) {
	row := r.sb.Select(commentColumns()...).
		From(tableComments).
		Where(sq.Eq{"comment_id": id}).
		QueryRowContext(ctx)

	comment, err := scanComment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return comment, nil
}

// applyFilter narrows a builder to one video and the filter of q
func applyFilter(b sq.SelectBuilder, q models.CommentQuery) sq.SelectBuilder {
	b = b.Where(sq.Eq{"video_id": q.VideoID})

	if q.TopLevelOnly {
		b = b.Where(sq.Eq{"is_reply": false})
	}
	if q.Filter.Keyword != "" {
		pattern := likePattern(q.Filter.Keyword)
		b = b.Where(sq.Or{
			sq.Expr(`LOWER(text) LIKE ? ESCAPE '\'`, pattern),
			sq.Expr(`LOWER(author) LIKE ? ESCAPE '\'`, pattern),
		})
	}
	if q.Filter.DateFrom != nil {
		b = b.Where(sq.GtOrEq{"published_at": q.Filter.DateFrom.UTC()})
	}
	if q.Filter.DateTo != nil {
		b = b.Where(sq.LtOrEq{"published_at": q.Filter.DateTo.UTC()})
	}
	if q.Filter.MinLikes > 0 {
		b = b.Where(sq.GtOrEq{"like_count": q.Filter.MinLikes})
	}
	return b
}

// Query returns the filtered comment sequence of one video in a stable order
func (r *commentRepo) Query(ctx context.Context, q models.CommentQuery) ([]*models.Comment, error) {
	column, ok := commentSortColumns[q.Sort.By]
	if !ok {
		column = "published_at"
	}

	query := applyFilter(r.sb.Select(commentColumns()...).From(tableComments), q).
		OrderBy(column+" "+sortDir(q.Sort.Dir), "comment_id ASC")

	if q.Limit > 0 {
		query = query.Limit(uint64(q.Limit)).Offset(uint64(q.Offset))
	}

	return r.queryComments(ctx, query)
}

// CountMatching returns how many comments Query would return without paging
func (r *commentRepo) CountMatching(ctx context.Context, q models.CommentQuery) (int, error) {
	var count int
	err := applyFilter(r.sb.Select("COUNT(*)").From(tableComments), q).
		QueryRowContext(ctx).
		Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count comments: %w", err)
	}
	return count, nil
}

// ListReplies returns the replies to the given parents in chronological order
func (r *commentRepo) ListReplies(ctx context.Context, videoID string, parentIDs []string) ([]*models.Comment, error) {
	if len(parentIDs) == 0 {
		return []*models.Comment{}, nil
	}

	query := r.sb.Select(commentColumns()...).
		From(tableComments).
		Where(sq.Eq{"video_id": videoID, "parent_comment_id": parentIDs}).
		OrderBy("published_at ASC", "comment_id ASC")

	return r.queryComments(ctx, query)
}

func (r *commentRepo) queryComments(ctx context.Context, query sq.SelectBuilder) ([]*models.Comment, error) {
	rows, err := query.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	comments := make([]*models.Comment, 0)
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, comment)
	}

	return comments, rows.Err()
}

// GetVideoIndex maps every stored comment id to its video id for reply validation
func (r *commentRepo) GetVideoIndex(ctx context.Context) (map[string]string, error) {
	rows, err := r.sb.Select("comment_id", "video_id").From(tableComments).QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	index := make(map[string]string)
	for rows.Next() {
		var id, videoID string
		if err := rows.Scan(&id, &videoID); err != nil {
			return nil, err
		}
		index[id] = videoID
	}
	return index, rows.Err()
}

// Count returns the total number of comments
func (r *commentRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.sb.Select("COUNT(*)").From(tableComments).QueryRowContext(ctx).Scan(&count)
	return count, err
}

// CountReplies returns the number of reply comments
func (r *commentRepo) CountReplies(ctx context.Context) (int, error) {
	var count int
	err := r.sb.Select("COUNT(*)").From(tableComments).Where(sq.Eq{"is_reply": true}).QueryRowContext(ctx).Scan(&count)
	return count, err
}
