package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/comment-export-api/internal/database"
	"github.com/comment-export-api/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "corpus.db") + "?_pragma=busy_timeout(5000)"
	conn, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })

	db := database.Wrap(conn, database.DialectSQLite, zerolog.Nop())
	require.NoError(t, db.RunMigrations())
	return db
}

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func strPtr(s string) *string { return &s }

func seedCorpus(t *testing.T, repos *Repositories) {
	t.Helper()
	ctx := context.Background()

	videos := []*models.Video{
		{ID: "v2", ChannelID: "ch1", ChannelTitle: "Channel", Title: "Second", PublishedAt: ts("2024-02-01T00:00:00Z")},
		{ID: "v1", ChannelID: "ch1", ChannelTitle: "Channel", Title: "First", PublishedAt: ts("2024-01-01T00:00:00Z")},
		{ID: "v3", ChannelID: "ch2", ChannelTitle: "Other", Title: "Third", PublishedAt: ts("2023-06-01T00:00:00Z")},
	}
	n, err := repos.Video.BatchInsert(ctx, videos)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	comments := []*models.Comment{
		{ID: "c1", VideoID: "v1", Author: "@alice", Text: "Great video", PublishedAt: ts("2024-01-02T10:00:00Z"), LikeCount: 10},
		{ID: "c2", VideoID: "v1", Author: "bob", Text: "100% agree_here", PublishedAt: ts("2024-01-02T09:00:00Z"), LikeCount: 3},
		{ID: "c3", VideoID: "v1", Author: "carol", Text: "meh", PublishedAt: ts("2024-01-03T09:00:00Z"), LikeCount: 10},
		{ID: "r1", VideoID: "v1", ParentID: strPtr("c1"), Author: "dave", Text: "reply", PublishedAt: ts("2024-01-04T09:00:00Z")},
		{ID: "c4", VideoID: "v2", Author: "erin", Text: "first!", PublishedAt: ts("2024-02-02T09:00:00Z"), LikeCount: 1},
	}
	n, err = repos.Comment.BatchInsert(ctx, comments)
	require.NoError(t, err)
	require.Equal(t, 5, n)
}

func commentIDs(comments []*models.Comment) []string {
	ids := make([]string, len(comments))
	for i, c := range comments {
		ids[i] = c.ID
	}
	return ids
}

func TestVideoRepo_ListByChannel(t *testing.T) {
	repos := New(newTestDB(t))
	seedCorpus(t, repos)
	ctx := context.Background()

	videos, err := repos.Video.ListByChannel(ctx, "ch1", models.VideoOrder{By: models.VideoOrderPublished})
	require.NoError(t, err)
	require.Len(t, videos, 2)
	assert.Equal(t, "v1", videos[0].ID)
	assert.Equal(t, "v2", videos[1].ID)

	videos, err = repos.Video.ListByChannel(ctx, "ch1", models.VideoOrder{By: models.VideoOrderIngestion})
	require.NoError(t, err)
	require.Len(t, videos, 2)
	assert.Equal(t, "v2", videos[0].ID, "ingestion order follows insert order")

	videos, err = repos.Video.ListByChannel(ctx, "missing", models.VideoOrder{})
	require.NoError(t, err)
	assert.Empty(t, videos)
}

func TestVideoRepo_GetByID(t *testing.T) {
	repos := New(newTestDB(t))
	seedCorpus(t, repos)
	ctx := context.Background()

	video, err := repos.Video.GetByID(ctx, "v1")
	require.NoError(t, err)
	require.NotNil(t, video)
	assert.Equal(t, "First", video.Title)
	assert.True(t, video.PublishedAt.Equal(ts("2024-01-01T00:00:00Z")))

	video, err = repos.Video.GetByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, video)
}

func TestVideoRepo_BatchInsertSkipsExisting(t *testing.T) {
	repos := New(newTestDB(t))
	seedCorpus(t, repos)
	ctx := context.Background()

	n, err := repos.Video.BatchInsert(ctx, []*models.Video{
		{ID: "v1", ChannelID: "ch1", Title: "dup"},
		{ID: "v4", ChannelID: "ch1", Title: "new"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	count, err := repos.Video.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestCommentRepo_QueryOrdering(t *testing.T) {
	repos := New(newTestDB(t))
	seedCorpus(t, repos)
	ctx := context.Background()

	tests := []struct {
		name string
		sort models.CommentSort
		want []string
	}{
		{"default date asc", models.CommentSort{}, []string{"c2", "c1", "c3", "r1"}},
		{"date desc", models.CommentSort{By: models.CommentSortDate, Dir: models.SortDesc}, []string{"r1", "c3", "c1", "c2"}},
		{"likes desc ties by id", models.CommentSort{By: models.CommentSortLikes, Dir: models.SortDesc}, []string{"c1", "c3", "c2", "r1"}},
		{"author asc", models.CommentSort{By: models.CommentSortAuthor}, []string{"c1", "c2", "c3", "r1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			comments, err := repos.Comment.Query(ctx, models.CommentQuery{VideoID: "v1", Sort: tt.sort})
			require.NoError(t, err)
			assert.Equal(t, tt.want, commentIDs(comments))
		})
	}
}

func TestCommentRepo_QueryFilters(t *testing.T) {
	repos := New(newTestDB(t))
	seedCorpus(t, repos)
	ctx := context.Background()

	from := ts("2024-01-02T09:30:00Z")
	to := ts("2024-01-03T12:00:00Z")

	tests := []struct {
		name   string
		filter models.CommentFilter
		top    bool
		want   []string
	}{
		{"keyword matches text case-insensitively", models.CommentFilter{Keyword: "GREAT"}, false, []string{"c1"}},
		{"keyword matches author", models.CommentFilter{Keyword: "carol"}, false, []string{"c3"}},
		{"keyword wildcards are literal", models.CommentFilter{Keyword: "0% agree_"}, false, []string{"c2"}},
		{"underscore alone does not match everything", models.CommentFilter{Keyword: "_"}, false, []string{"c2"}},
		{"date range", models.CommentFilter{DateFrom: &from, DateTo: &to}, false, []string{"c1", "c3"}},
		{"min likes", models.CommentFilter{MinLikes: 5}, false, []string{"c1", "c3"}},
		{"top level only", models.CommentFilter{}, true, []string{"c2", "c1", "c3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := models.CommentQuery{VideoID: "v1", Filter: tt.filter, TopLevelOnly: tt.top}
			comments, err := repos.Comment.Query(ctx, q)
			require.NoError(t, err)
			assert.Equal(t, tt.want, commentIDs(comments))

			count, err := repos.Comment.CountMatching(ctx, q)
			require.NoError(t, err)
			assert.Equal(t, len(tt.want), count)
		})
	}
}

func TestCommentRepo_QueryPaging(t *testing.T) {
	repos := New(newTestDB(t))
	seedCorpus(t, repos)

	comments, err := repos.Comment.Query(context.Background(), models.CommentQuery{VideoID: "v1", Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c3"}, commentIDs(comments))
}

func TestCommentRepo_RepliesAndLookup(t *testing.T) {
	repos := New(newTestDB(t))
	seedCorpus(t, repos)
	ctx := context.Background()

	replies, err := repos.Comment.ListReplies(ctx, "v1", []string{"c1", "c2"})
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, "r1", replies[0].ID)
	assert.True(t, replies[0].IsReply)
	require.NotNil(t, replies[0].ParentID)
	assert.Equal(t, "c1", *replies[0].ParentID)

	comment, err := repos.Comment.GetByID(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, comment)
	assert.Nil(t, comment.ParentID)
	assert.False(t, comment.IsReply)
	assert.Equal(t, "@alice", comment.Author)

	missing, err := repos.Comment.GetByID(ctx, "zzz")
	require.NoError(t, err)
	assert.Nil(t, missing)

	index, err := repos.Comment.GetVideoIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v2", index["c4"])
	assert.Len(t, index, 5)

	replyCount, err := repos.Comment.CountReplies(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, replyCount)
}
