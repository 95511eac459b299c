package export

import (
	"context"
	"fmt"
	"time"

	"github.com/comment-export-api/internal/models"
	"github.com/rs/zerolog"
)

// Config tunes the engine. Zero values fall back to defaults.
type Config struct {
	Workers            int           // concurrent renders
	Window             int           // items submitted but not yet released in order
	MaxPendingArchives int           // undelivered archive events before submission pauses
	FailureThreshold   int           // consecutive renderer failures that abort a run, 0 disables
	RenderTimeout      time.Duration // per item, 0 disables
}

const (
	defaultWorkers            = 4
	defaultMaxPendingArchives = 2
)

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.Window < c.Workers {
		c.Window = c.Workers * 4
	}
	if c.MaxPendingArchives <= 0 {
		c.MaxPendingArchives = defaultMaxPendingArchives
	}
	if c.FailureThreshold < 0 {
		c.FailureThreshold = 0
	}
	return c
}

// Engine starts export runs against a comment store and a renderer
type Engine struct {
	videos   VideoSource
	comments CommentSource
	renderer Renderer
	cfg      Config
	log      zerolog.Logger
}

// NewEngine creates an Engine
func NewEngine(videos VideoSource, comments CommentSource, renderer Renderer, cfg Config, log zerolog.Logger) *Engine {
	cfg = cfg.withDefaults()
	return &Engine{
		videos:   videos,
		comments: comments,
		renderer: renderer,
		cfg:      cfg,
		log:      log.With().Str("component", "export_engine").Logger(),
	}
}

// Config returns the effective configuration
func (e *Engine) Config() Config {
	return e.cfg
}

// target is one video of a run with either a resolved comment list or a
// query that is run when the walk reaches the video
type target struct {
	video    *models.Video
	comments []*models.Comment
	query    *models.CommentQuery
	expected int
}

func (t *target) load(ctx context.Context, src CommentSource) ([]*models.Comment, error) {
	if t.query == nil {
		return t.comments, nil
	}
	return src.Query(ctx, *t.query)
}

// Start resolves the request and starts a run. Resolution happens before
// Start returns: an unknown comment, video or channel yields a
// *ResolutionError and no run. ctx bounds the whole run, not just the call.
// The caller must read Run.Events until the channel is closed.
func (e *Engine) Start(ctx context.Context, req models.ExportRequest) (*Run, error) {
	if req.Scope == models.ScopeSingleComment {
		req.ArchiveSize = 0
	}
	if req.ArchiveSize < 0 {
		req.ArchiveSize = 0
	}

	targets, err := e.resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	run := newRun(ctx, e, req, targets)
	run.start()
	return run, nil
}

func (e *Engine) resolve(ctx context.Context, req models.ExportRequest) ([]*target, error) {
	if len(req.TargetIDs) == 0 {
		return nil, &ResolutionError{Scope: req.Scope, Err: fmt.Errorf("no target ids")}
	}

	switch req.Scope {
	case models.ScopeSingleComment:
		return e.resolveComments(ctx, req.Scope, req.TargetIDs[:1])
	case models.ScopeComments:
		return e.resolveComments(ctx, req.Scope, req.TargetIDs)
	case models.ScopeVideo:
		return e.resolveVideos(ctx, req)
	case models.ScopeChannel:
		return e.resolveChannels(ctx, req)
	default:
		return nil, &ResolutionError{Scope: req.Scope, Err: fmt.Errorf("unknown scope")}
	}
}

// resolveComments groups explicit comment ids per video, keeping the order
// in which each video first appears
func (e *Engine) resolveComments(ctx context.Context, scope models.Scope, ids []string) ([]*target, error) {
	var targets []*target
	byVideo := make(map[string]*target)
	seen := make(map[string]bool, len(ids))

	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		comment, err := e.comments.GetByID(ctx, id)
		if err != nil {
			return nil, &ResolutionError{Scope: scope, ID: id, Err: err}
		}
		if comment == nil {
			return nil, &ResolutionError{Scope: scope, ID: id}
		}

		t, ok := byVideo[comment.VideoID]
		if !ok {
			video, err := e.videos.GetByID(ctx, comment.VideoID)
			if err != nil {
				return nil, &ResolutionError{Scope: scope, ID: id, Err: err}
			}
			if video == nil {
				return nil, &ResolutionError{Scope: scope, ID: id, Err: fmt.Errorf("video %q not found", comment.VideoID)}
			}
			t = &target{video: video}
			byVideo[video.ID] = t
			targets = append(targets, t)
		}
		t.comments = append(t.comments, comment)
		t.expected++
	}
	return targets, nil
}

func (e *Engine) resolveVideos(ctx context.Context, req models.ExportRequest) ([]*target, error) {
	targets := make([]*target, 0, len(req.TargetIDs))
	seen := make(map[string]bool, len(req.TargetIDs))

	for _, id := range req.TargetIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		video, err := e.videos.GetByID(ctx, id)
		if err != nil {
			return nil, &ResolutionError{Scope: req.Scope, ID: id, Err: err}
		}
		if video == nil {
			return nil, &ResolutionError{Scope: req.Scope, ID: id}
		}

		t, err := e.queryTarget(ctx, video, req)
		if err != nil {
			return nil, &ResolutionError{Scope: req.Scope, ID: id, Err: err}
		}
		targets = append(targets, t)
	}
	return targets, nil
}

func (e *Engine) resolveChannels(ctx context.Context, req models.ExportRequest) ([]*target, error) {
	var targets []*target
	seen := make(map[string]bool)

	for _, channelID := range req.TargetIDs {
		videos, err := e.videos.ListByChannel(ctx, channelID, req.VideoOrder)
		if err != nil {
			return nil, &ResolutionError{Scope: req.Scope, ID: channelID, Err: err}
		}
		if len(videos) == 0 {
			return nil, &ResolutionError{Scope: req.Scope, ID: channelID}
		}

		for _, video := range videos {
			if seen[video.ID] {
				continue
			}
			seen[video.ID] = true

			t, err := e.queryTarget(ctx, video, req)
			if err != nil {
				return nil, &ResolutionError{Scope: req.Scope, ID: channelID, Err: err}
			}
			targets = append(targets, t)
		}
	}
	return targets, nil
}

func (e *Engine) queryTarget(ctx context.Context, video *models.Video, req models.ExportRequest) (*target, error) {
	q := models.CommentQuery{
		VideoID: video.ID,
		Filter:  req.Filter,
		Sort:    req.Sort,
	}
	count, err := e.comments.CountMatching(ctx, q)
	if err != nil {
		return nil, err
	}
	return &target{video: video, query: &q, expected: count}, nil
}
