package models

import (
	"time"
)

// Video represents a video in the collected corpus
type Video struct {
	ID           string    `json:"video_id" db:"video_id"`
	ChannelID    string    `json:"channel_id" db:"channel_id"`
	ChannelTitle string    `json:"channel_title" db:"channel_title"`
	Title        string    `json:"title" db:"title"`
	Description  string    `json:"description,omitempty" db:"description"`
	PublishedAt  time.Time `json:"published_at" db:"published_at"`
	ViewCount    int64     `json:"view_count" db:"view_count"`
	LikeCount    int64     `json:"like_count" db:"like_count"`
	CommentCount int64     `json:"comment_count" db:"comment_count"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty" db:"thumbnail_url"`
	Seq          int64     `json:"-" db:"seq"` // ingestion order
}

// VideoNDJSON represents a video record from NDJSON import
type VideoNDJSON struct {
	ID           string `json:"video_id"`
	ChannelID    string `json:"channel_id"`
	ChannelTitle string `json:"channel_title"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	PublishedAt  string `json:"published_at"`
	ViewCount    int64  `json:"view_count"`
	LikeCount    int64  `json:"like_count"`
	CommentCount int64  `json:"comment_count"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// VideoOrderBy selects the order videos are walked in for channel exports
type VideoOrderBy string

const (
	VideoOrderPublished VideoOrderBy = "published"
	VideoOrderIngestion VideoOrderBy = "ingestion"
)

// SortDir is a sort direction
type SortDir string

const (
	SortAsc  SortDir = "asc"
	SortDesc SortDir = "desc"
)

// VideoOrder describes the stable order of videos in a channel export
type VideoOrder struct {
	By  VideoOrderBy `json:"by,omitempty"`
	Dir SortDir      `json:"dir,omitempty"`
}

// VideoListParams narrows and orders a video listing
type VideoListParams struct {
	ChannelID string
	SortBy    string // published_at, title, view_count, like_count, comment_count, seq
	Dir       SortDir
	Limit     int
	Offset    int
}

// VideoPage is one page of a video listing
type VideoPage struct {
	Videos []*Video `json:"videos"`
	Limit  int      `json:"limit"`
	Offset int      `json:"offset"`
}
