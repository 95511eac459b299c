package models

import (
	"time"
)

// Comment represents a top-level comment or a direct reply on a video
type Comment struct {
	ID                string    `json:"comment_id" db:"comment_id"`
	VideoID           string    `json:"video_id" db:"video_id"`
	ParentID          *string   `json:"parent_comment_id,omitempty" db:"parent_comment_id"`
	Author            string    `json:"author" db:"author"`
	Text              string    `json:"text" db:"text"`
	PublishedAt       time.Time `json:"published_at" db:"published_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
	LikeCount         int64     `json:"like_count" db:"like_count"`
	IsReply           bool      `json:"is_reply" db:"is_reply"`
	ChannelOwnerLiked bool      `json:"channel_owner_liked" db:"channel_owner_liked"`
	Seq               int64     `json:"-" db:"seq"`
}

// IsTopLevel reports whether the comment has no parent
func (c *Comment) IsTopLevel() bool {
	return c.ParentID == nil || *c.ParentID == ""
}

// CommentThread is a top-level comment with its direct replies
type CommentThread struct {
	Comment
	Replies []*Comment `json:"replies"`
}

// CommentNDJSON represents a comment record from NDJSON import
type CommentNDJSON struct {
	ID                string `json:"comment_id"`
	VideoID           string `json:"video_id"`
	ParentID          string `json:"parent_comment_id,omitempty"`
	Author            string `json:"author"`
	Text              string `json:"text"`
	PublishedAt       string `json:"published_at"`
	UpdatedAt         string `json:"updated_at,omitempty"`
	LikeCount         int64  `json:"like_count"`
	ChannelOwnerLiked bool   `json:"channel_owner_liked"`
}

// CommentFilter narrows the comment set of a video
type CommentFilter struct {
	Keyword  string     `json:"keyword,omitempty"` // matches text or author, case-insensitive
	DateFrom *time.Time `json:"date_from,omitempty"`
	DateTo   *time.Time `json:"date_to,omitempty"`
	MinLikes int64      `json:"min_likes,omitempty"`
}

// CommentSortBy is the primary comment sort key
type CommentSortBy string

const (
	CommentSortDate   CommentSortBy = "date"
	CommentSortLikes  CommentSortBy = "likes"
	CommentSortAuthor CommentSortBy = "author"
)

// CommentSort orders a comment sequence. Ties always fall back to comment id.
type CommentSort struct {
	By  CommentSortBy `json:"by,omitempty"`
	Dir SortDir       `json:"dir,omitempty"`
}

// CommentQuery is a filtered, ordered query over one video's comments
type CommentQuery struct {
	VideoID      string
	Filter       CommentFilter
	Sort         CommentSort
	TopLevelOnly bool
	Limit        int
	Offset       int
}

// ValidSortDirs defines allowed sort directions
var ValidSortDirs = map[SortDir]bool{
	SortAsc:  true,
	SortDesc: true,
}

// ValidCommentSorts defines allowed comment sort keys
var ValidCommentSorts = map[CommentSortBy]bool{
	CommentSortDate:   true,
	CommentSortLikes:  true,
	CommentSortAuthor: true,
}

// ThreadPage is one page of top-level comments with their replies attached
type ThreadPage struct {
	VideoID string           `json:"video_id"`
	Threads []*CommentThread `json:"threads"`
	Total   int              `json:"total"` // matching top-level comments
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
}
