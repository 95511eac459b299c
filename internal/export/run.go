package export

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/comment-export-api/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var errCancelled = errors.New("export cancelled")

// Run is one export in flight. Its state lives only as long as the Run.
type Run struct {
	id      string
	req     models.ExportRequest
	cfg     Config
	targets []*target

	comments CommentSource
	renderer Renderer
	log      zerolog.Logger

	ctx    context.Context
	cancel context.CancelCauseFunc

	tracker      *Tracker
	ledger       *Ledger
	queue        *eventQueue
	events       chan models.Event
	archiveNames *NameSet

	window  chan struct{}
	jobs    chan job
	results chan outcome
	done    chan struct{}

	mu       sync.Mutex
	status   models.RunStatus
	err      error
	stopped  bool // walk left items unsubmitted
	started  time.Time
	finished time.Time
}

func newRun(ctx context.Context, e *Engine, req models.ExportRequest, targets []*target) *Run {
	total := 0
	for _, t := range targets {
		total += t.expected
	}

	id := uuid.Must(uuid.NewV7()).String()
	runCtx, cancel := context.WithCancelCause(ctx)

	return &Run{
		id:           id,
		req:          req,
		cfg:          e.cfg,
		targets:      targets,
		comments:     e.comments,
		renderer:     e.renderer,
		log:          e.log.With().Str("run_id", id).Logger(),
		ctx:          runCtx,
		cancel:       cancel,
		tracker:      NewTracker(total, len(targets)),
		ledger:       NewLedger(),
		queue:        newEventQueue(),
		events:       make(chan models.Event),
		archiveNames: NewNameSet(),
		window:       make(chan struct{}, e.cfg.Window),
		jobs:         make(chan job, e.cfg.Window),
		results:      make(chan outcome, e.cfg.Window+2),
		done:         make(chan struct{}),
		status:       models.RunStatusRunning,
		started:      time.Now(),
	}
}

// ID returns the run id
func (r *Run) ID() string { return r.id }

// Request returns the request the run was started with
func (r *Run) Request() models.ExportRequest { return r.req }

// Events returns the event stream. It ends with a done or failed event and
// is then closed.
func (r *Run) Events() <-chan models.Event { return r.events }

// Done is closed once the run has finished its work
func (r *Run) Done() <-chan struct{} { return r.done }

// Cancel stops the run at the next item boundary. Completed archives and
// recorded failures are still delivered.
func (r *Run) Cancel() {
	r.cancel(errCancelled)
}

// Abort fails the run with err. Items already in flight are still
// delivered and the terminal event is failed.
func (r *Run) Abort(err error) {
	r.abort(err)
}

// Snapshot returns the current progress
func (r *Run) Snapshot() models.ProgressSnapshot {
	return r.tracker.Snapshot()
}

// Failures returns the failures recorded so far
func (r *Run) Failures() []models.FailureRecord {
	return r.ledger.Records()
}

// Status returns the run status
func (r *Run) Status() models.RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Err returns the error that made the run fail, if any
func (r *Run) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Duration returns how long the run took, or has taken so far
func (r *Run) Duration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished.IsZero() {
		return time.Since(r.started)
	}
	return r.finished.Sub(r.started)
}

func (r *Run) start() {
	r.log.Info().
		Str("scope", string(r.req.Scope)).
		Int("videos", len(r.targets)).
		Int("total", r.tracker.Snapshot().Total).
		Int("archive_size", r.req.ArchiveSize).
		Int("workers", r.cfg.Workers).
		Msg("Export run started")

	go r.queue.pump(r.events)

	var workers sync.WaitGroup
	for i := 0; i < r.cfg.Workers; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			for j := range r.jobs {
				r.results <- r.render(j)
			}
		}()
	}

	go func() {
		r.walk()
		close(r.jobs)
		workers.Wait()
		close(r.results)
	}()

	go r.collect()
}

// abort fails the run with err unless it already failed
func (r *Run) abort(err error) {
	r.mu.Lock()
	if r.err == nil {
		r.err = err
	}
	r.mu.Unlock()
	r.cancel(err)
}

func (r *Run) stop() {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()
}

// walk submits every item of every target in order. It stops submitting at
// the first item boundary after the run context is cancelled.
func (r *Run) walk() {
	var seq uint64
	next := func() uint64 {
		s := seq
		seq++
		return s
	}

	for i, t := range r.targets {
		if r.ctx.Err() != nil {
			r.stop()
			return
		}

		comments, err := t.load(r.ctx, r.comments)
		if err != nil {
			if r.ctx.Err() == nil {
				r.abort(fmt.Errorf("load comments of video %s: %w", t.video.ID, err))
			}
			r.stop()
			return
		}

		r.tracker.BeginVideo(i+1, t.video, t.expected, len(comments))
		r.results <- outcome{seq: next(), marker: &marker{kind: markerVideoStart, video: t.video}}

		for _, c := range comments {
			if err := r.queue.waitRoom(r.ctx, r.cfg.MaxPendingArchives); err != nil {
				r.stop()
				break
			}
			acquired := false
			select {
			case r.window <- struct{}{}:
				acquired = true
			case <-r.ctx.Done():
			}
			if !acquired {
				r.stop()
				break
			}

			r.tracker.Attempt()
			r.jobs <- job{seq: next(), comment: c, video: t.video}
		}

		end := &marker{kind: markerVideoEnd, video: t.video, done: make(chan struct{})}
		r.results <- outcome{seq: next(), marker: end}
		<-end.done
	}
}

// render produces the outcome for one item. The render runs detached from
// run cancellation so an item that was attempted always completes.
func (r *Run) render(j job) outcome {
	out := outcome{seq: j.seq}

	fail := func(err error) outcome {
		out.failure = &RenderFailure{
			CommentID: j.comment.ID,
			VideoID:   j.comment.VideoID,
			Reason:    classify(err),
			Err:       err,
		}
		return out
	}

	if j.comment.VideoID != j.video.ID {
		return fail(ErrInvalidComment)
	}

	ctx := context.WithoutCancel(r.ctx)
	if r.cfg.RenderTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.RenderTimeout)
		defer cancel()
	}

	type result struct {
		data []byte
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		// Panic recovery keeps one bad comment from taking the process down
		defer func() {
			if p := recover(); p != nil {
				r.log.Error().
					Interface("panic", p).
					Str("comment_id", j.comment.ID).
					Msg("Renderer panicked - recovered")
				ch <- result{err: fmt.Errorf("%w: %v", errRenderPanic, p)}
			}
		}()
		data, err := r.renderer.Render(ctx, j.comment, j.video)
		ch <- result{data: data, err: err}
	}()

	var res result
	select {
	case res = <-ch:
	case <-ctx.Done():
		res.err = ctx.Err()
	}

	if res.err != nil {
		return fail(res.err)
	}
	if len(res.data) == 0 {
		return fail(ErrEmptyArtifact)
	}

	out.artifact = &models.RenderedArtifact{
		CommentID:   j.comment.ID,
		VideoID:     j.video.ID,
		DisplayName: BaseName(j.comment, j.video),
		ContentType: r.renderer.ContentType(),
		Data:        res.data,
	}
	return out
}

// collect releases outcomes in submission order into the chunker and the
// ledger, then emits the terminal event
func (r *Run) collect() {
	buf := newReorderBuffer()
	var chunker *Chunker
	consecutive := 0

	emit := func(unit *models.ArchiveUnit) {
		if unit == nil {
			return
		}
		r.tracker.ArchiveEmitted()
		r.log.Debug().
			Str("video_id", unit.VideoID).
			Int("index", unit.Index).
			Int("items", len(unit.Items)).
			Str("name", unit.Name).
			Msg("Archive unit completed")
		r.queue.push(models.Event{Type: models.EventArchive, RunID: r.id, Unit: unit})
	}

	for res := range r.results {
		for _, o := range buf.put(res) {
			switch {
			case o.marker != nil && o.marker.kind == markerVideoStart:
				chunker = NewChunker(o.marker.video, r.req.ArchiveSize, r.renderer.Extension(), r.archiveNames)

			case o.marker != nil:
				if chunker != nil {
					emit(chunker.Flush())
				}
				chunker = nil
				close(o.marker.done)

			case o.artifact != nil:
				<-r.window
				r.tracker.Succeed()
				consecutive = 0
				emit(chunker.Accept(*o.artifact))

			case o.failure != nil:
				<-r.window
				r.tracker.Fail()
				r.ledger.Append(o.failure.Record())
				r.log.Debug().
					Str("comment_id", o.failure.CommentID).
					Str("reason", string(o.failure.Reason)).
					Err(o.failure.Err).
					Msg("Item failed")

				if countsTowardSystemic(o.failure.Reason) {
					consecutive++
					if r.cfg.FailureThreshold > 0 && consecutive == r.cfg.FailureThreshold {
						err := &SystemicError{Consecutive: consecutive, Last: o.failure}
						r.log.Error().Err(err).Msg("Aborting export run")
						r.abort(err)
					}
				}
			}

			snap := r.tracker.Snapshot()
			r.queue.push(models.Event{Type: models.EventProgress, RunID: r.id, Snapshot: &snap})
		}
	}

	r.finish()
}

func (r *Run) finish() {
	r.mu.Lock()
	switch {
	case r.err != nil:
		r.status = models.RunStatusFailed
	case r.stopped:
		r.status = models.RunStatusCancelled
	default:
		r.status = models.RunStatusCompleted
	}
	status, runErr := r.status, r.err
	r.finished = time.Now()
	elapsed := r.finished.Sub(r.started)
	r.mu.Unlock()

	if status == models.RunStatusCompleted {
		r.tracker.Finish()
	}
	r.cancel(nil)

	snap := r.tracker.Snapshot()
	ev := models.Event{
		Type:     models.EventDone,
		RunID:    r.id,
		Snapshot: &snap,
		Failures: r.ledger.Records(),
		Status:   status,
	}
	if runErr != nil {
		ev.Type = models.EventFailed
		ev.Error = runErr.Error()
	}
	r.queue.push(ev)
	r.queue.close()

	r.log.Info().
		Str("status", string(status)).
		Int("attempted", snap.Attempted).
		Int("succeeded", snap.Succeeded).
		Int("failed", snap.Failed).
		Int("archives", snap.Archives).
		Dur("duration", elapsed).
		Msg("Export run finished")

	close(r.done)
}
