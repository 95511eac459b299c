package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/comment-export-api/internal/database"
	"github.com/comment-export-api/internal/models"
)

const tableVideos = "videos"

func videoColumns() []string {
	return []string{
		"video_id", "channel_id", "channel_title", "title", "description", "published_at",
		"view_count", "like_count", "comment_count", "thumbnail_url", "seq",
	}
}

// validVideoSorts maps API sort keys to columns
var validVideoSorts = map[string]string{
	"published_at":  "published_at",
	"title":         "title",
	"view_count":    "view_count",
	"like_count":    "like_count",
	"comment_count": "comment_count",
	"seq":           "seq",
}

// videoRepo is the concrete implementation of VideoRepository
type videoRepo struct {
	db *database.DB
	sb sq.StatementBuilderType
}

// NewVideoRepo creates a new video repository
func NewVideoRepo(db *database.DB) VideoRepository {
	return &videoRepo{db: db, sb: statementBuilder(db)}
}

func scanVideo(row sq.RowScanner) (*models.Video, error) {
	var video models.Video
	var publishedAt sql.NullTime

	err := row.Scan(
		&video.ID, &video.ChannelID, &video.ChannelTitle, &video.Title, &video.Description,
		&publishedAt, &video.ViewCount, &video.LikeCount, &video.CommentCount,
		&video.ThumbnailURL, &video.Seq,
	)
	if err != nil {
		return nil, err
	}
	if publishedAt.Valid {
		video.PublishedAt = publishedAt.Time.UTC()
	}
	return &video, nil
}

// BatchInsert inserts videos that are not stored yet, preserving slice order as ingestion order
func (r *videoRepo) BatchInsert(ctx context.Context, videos []*models.Video) (int, error) {
	if len(videos) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var maxSeq int64
	err = r.sb.Select("COALESCE(MAX(seq), 0)").From(tableVideos).RunWith(tx).QueryRowContext(ctx).Scan(&maxSeq)
	if err != nil {
		return 0, fmt.Errorf("failed to read video sequence: %w", err)
	}

	inserted := 0
	for start := 0; start < len(videos); start += insertChunkRows {
		end := min(start+insertChunkRows, len(videos))

		q := r.sb.Insert(tableVideos).Columns(videoColumns()...)
		for _, v := range videos[start:end] {
			maxSeq++
			v.Seq = maxSeq
			q = q.Values(
				v.ID, v.ChannelID, v.ChannelTitle, v.Title, v.Description, nullTime(v.PublishedAt),
				v.ViewCount, v.LikeCount, v.CommentCount, v.ThumbnailURL, v.Seq,
			)
		}
		q = q.Suffix("ON CONFLICT (video_id) DO NOTHING")

		result, err := q.RunWith(tx).ExecContext(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to insert videos: %w", err)
		}
		rows, _ := result.RowsAffected()
		inserted += int(rows)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	return inserted, nil
}

// GetByID retrieves a video by ID
func (r *videoRepo) GetByID(ctx context.Context, id string) (*models.Video, error) {
	row := r.sb.Select(videoColumns()...).
		From(tableVideos).
		Where(sq.Eq{"video_id": id}).
		QueryRowContext(ctx)

	video, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return video, nil
}

// List retrieves videos for browsing
func (r *videoRepo) List(ctx context.Context, params models.VideoListParams) ([]*models.Video, error) {
	column, ok := validVideoSorts[params.SortBy]
	if !ok {
		column = "published_at"
	}

	query := r.sb.Select(videoColumns()...).
		From(tableVideos).
		OrderBy(column+" "+sortDir(params.Dir), "video_id ASC")

	if params.ChannelID != "" {
		query = query.Where(sq.Eq{"channel_id": params.ChannelID})
	}
	if params.Limit > 0 {
		query = query.Limit(uint64(params.Limit)).Offset(uint64(params.Offset))
	}

	return r.queryVideos(ctx, query)
}

// ListByChannel returns every video of a channel in a stable order. An empty
// channel id selects the whole corpus.
func (r *videoRepo) ListByChannel(ctx context.Context, channelID string, order models.VideoOrder) ([]*models.Video, error) {
	column := "published_at"
	if order.By == models.VideoOrderIngestion {
		column = "seq"
	}

	query := r.sb.Select(videoColumns()...).
		From(tableVideos).
		OrderBy(column+" "+sortDir(order.Dir), "video_id ASC")

	if channelID != "" {
		query = query.Where(sq.Eq{"channel_id": channelID})
	}

	return r.queryVideos(ctx, query)
}

func (r *videoRepo) queryVideos(ctx context.Context, query sq.SelectBuilder) ([]*models.Video, error) {
	rows, err := query.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query videos: %w", err)
	}
	defer rows.Close()

	videos := make([]*models.Video, 0)
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, video)
	}

	return videos, rows.Err()
}

// GetAllIDs returns all video IDs for reference validation
func (r *videoRepo) GetAllIDs(ctx context.Context) ([]string, error) {
	rows, err := r.sb.Select("video_id").From(tableVideos).QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Count returns the total number of videos
func (r *videoRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.sb.Select("COUNT(*)").From(tableVideos).QueryRowContext(ctx).Scan(&count)
	return count, err
}

// nullTime stores the zero time as NULL and everything else in UTC at second precision
func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC().Truncate(time.Second), Valid: true}
}
