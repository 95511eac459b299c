package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/comment-export-api/internal/archive"
	"github.com/comment-export-api/internal/config"
	"github.com/comment-export-api/internal/export"
	"github.com/comment-export-api/internal/models"
	"github.com/comment-export-api/internal/validation"
	"github.com/rs/zerolog"
)

// subscriberBuffer is the per-subscriber event backlog. Progress events are
// dropped when it is full; any other event disconnects the subscriber.
const subscriberBuffer = 64

// runEntry is the registry record of one export run
type runEntry struct {
	mu          sync.RWMutex
	info        models.RunInfo
	run         *export.Run
	subscribers map[chan models.Event]struct{}
	finished    chan struct{}
	release     func() // frees the run slot, idempotent

	// items of archives that could not be written
	lost       []models.FailureRecord
	persistErr error
	// final failure list, set when the run finishes
	failures []models.FailureRecord
}

func (e *runEntry) snapshot() *models.RunInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()

	info := e.info
	if !info.Status.IsFinished() {
		info.Progress = e.run.Snapshot()
	}
	info.Archives = append([]models.ArchiveFile(nil), e.info.Archives...)
	return &info
}

// failureRecords returns the run's failures including lost items. Callers hold e.mu.
func (e *runEntry) failureRecords() []models.FailureRecord {
	if e.info.Status.IsFinished() {
		return append([]models.FailureRecord{}, e.failures...)
	}
	return append(e.run.Failures(), e.lost...)
}

// publish fans an event out to subscribers. Callers hold e.mu.
func (e *runEntry) publish(ev models.Event) {
	for ch := range e.subscribers {
		select {
		case ch <- ev:
		default:
			if ev.Type == models.EventProgress {
				continue
			}
			delete(e.subscribers, ch)
			close(ch)
		}
	}
}

// exportService is the concrete implementation of ExportService
type exportService struct {
	engine *export.Engine
	store  *archive.Store
	cfg    config.ExportConfig
	log    zerolog.Logger

	// runs outlive the requests that start them
	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.RWMutex
	runs map[string]*runEntry
	// Semaphore: limits simultaneous runs
	sem chan struct{}
	wg  sync.WaitGroup

	janitorMu      sync.Mutex
	janitorRunning bool
	janitorCancel  context.CancelFunc
	janitorDone    chan struct{}
}

func newExportService(engine *export.Engine, store *archive.Store, cfg config.ExportConfig, log zerolog.Logger) *exportService {
	maxRuns := cfg.MaxConcurrentRuns
	if maxRuns <= 0 {
		maxRuns = 1
	}

	log.Info().
		Int("max_concurrent_runs", maxRuns).
		Int("render_workers", engine.Config().Workers).
		Int("reorder_window", engine.Config().Window).
		Msg("Initializing export service")

	ctx, cancel := context.WithCancel(context.Background())
	return &exportService{
		engine: engine,
		store:  store,
		cfg:    cfg,
		log:    log.With().Str("service", "export").Logger(),
		ctx:    ctx,
		cancel: cancel,
		runs:   make(map[string]*runEntry),
		sem:    make(chan struct{}, maxRuns),
	}
}

// StartExport validates the request, resolves it and starts a run
func (s *exportService) StartExport(ctx context.Context, req models.ExportRequest) (*models.RunInfo, error) {
	return s.start(ctx, req, "")
}

func (s *exportService) start(ctx context.Context, req models.ExportRequest, retryOf string) (*models.RunInfo, error) {
	if errs := validation.ValidateExportRequest(&req, s.cfg.MaxArchiveSize); len(errs) > 0 {
		return nil, &InvalidRequestError{Errors: errs}
	}
	if s.ctx.Err() != nil {
		return nil, ErrShuttingDown
	}

	// Acquire a run slot without waiting
	select {
	case s.sem <- struct{}{}:
	default:
		return nil, ErrTooManyRuns
	}

	// The run belongs to the service; the caller's context only bounds resolution
	runCtx, stop := context.WithCancel(s.ctx)
	unbind := context.AfterFunc(ctx, stop)
	run, err := s.engine.Start(runCtx, req)
	unbind()
	if err != nil {
		stop()
		<-s.sem
		return nil, err
	}

	entry := &runEntry{
		info: models.RunInfo{
			ID:        run.ID(),
			Status:    models.RunStatusRunning,
			Request:   run.Request(),
			Progress:  run.Snapshot(),
			Archives:  []models.ArchiveFile{},
			CreatedAt: time.Now().UTC(),
			RetryOf:   retryOf,
		},
		run:         run,
		subscribers: make(map[chan models.Event]struct{}),
		finished:    make(chan struct{}),
		release:     sync.OnceFunc(func() { <-s.sem }),
	}

	s.mu.Lock()
	s.runs[run.ID()] = entry
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer entry.release()
		defer stop()
		s.consume(entry)
	}()

	s.log.Info().
		Str("run_id", run.ID()).
		Str("scope", string(req.Scope)).
		Strs("targets", req.TargetIDs).
		Int("archive_size", run.Request().ArchiveSize).
		Int("total", entry.info.Progress.Total).
		Str("retry_of", retryOf).
		Msg("Export run started")

	return entry.snapshot(), nil
}

// consume drains the run's events, persists archives and fans events out
func (s *exportService) consume(entry *runEntry) {
	defer close(entry.finished)

	run := entry.run
	for ev := range run.Events() {
		switch ev.Type {
		case models.EventArchive:
			file, err := s.persist(run, ev.Unit)
			if err != nil {
				lost := lostItems(ev.Unit, err)
				s.log.Error().Err(err).
					Str("run_id", run.ID()).
					Int("lost_items", len(lost)).
					Msg("Failed to persist archive")

				entry.mu.Lock()
				entry.lost = append(entry.lost, lost...)
				if entry.persistErr == nil {
					entry.persistErr = err
				}
				entry.mu.Unlock()
				run.Abort(fmt.Errorf("persist archive: %w", err))
				continue
			}

			entry.mu.Lock()
			file.Index = len(entry.info.Archives) + 1
			file.URL = fmt.Sprintf("/v1/exports/%s/archives/%d", run.ID(), file.Index)
			entry.info.Archives = append(entry.info.Archives, *file)
			entry.publish(models.Event{Type: models.EventArchive, RunID: run.ID(), Archive: file, Snapshot: ev.Snapshot})
			entry.mu.Unlock()

		case models.EventProgress:
			entry.mu.Lock()
			if ev.Snapshot != nil {
				entry.info.Progress = *ev.Snapshot
			}
			entry.publish(ev)
			entry.mu.Unlock()

		case models.EventDone, models.EventFailed:
			s.complete(entry, ev)
		}
	}
}

// persist writes one archive unit to the store
func (s *exportService) persist(run *export.Run, unit *models.ArchiveUnit) (*models.ArchiveFile, error) {
	if unit == nil {
		return nil, errors.New("archive event without unit")
	}

	file := &models.ArchiveFile{
		VideoID:    unit.VideoID,
		VideoTitle: unit.VideoTitle,
		UnitIndex:  unit.Index,
		Name:       unit.Name,
		Items:      len(unit.Items),
	}

	var err error
	if run.Request().Scope == models.ScopeSingleComment && len(unit.Items) == 1 {
		file.Name = unit.Items[0].FileName
		file.Path, file.SizeBytes, err = s.store.WriteArtifact(run.ID(), &unit.Items[0])
	} else {
		file.Path, file.SizeBytes, err = s.store.WriteUnit(run.ID(), unit)
	}
	if err != nil {
		return nil, err
	}
	return file, nil
}

// lostItems records every item of an archive unit that could not be written
func lostItems(unit *models.ArchiveUnit, err error) []models.FailureRecord {
	if unit == nil {
		return nil
	}
	records := make([]models.FailureRecord, 0, len(unit.Items))
	for _, item := range unit.Items {
		records = append(records, models.FailureRecord{
			CommentID: item.CommentID,
			VideoID:   item.VideoID,
			Reason:    models.FailureArchiveWriteFailed,
			Message:   err.Error(),
		})
	}
	return records
}

// withLost folds lost items into a terminal event. Lost items count as
// failed and the run as failed, even when the engine finished cleanly.
func withLost(ev models.Event, lost []models.FailureRecord, persistErr error) models.Event {
	ev.Failures = append(append([]models.FailureRecord{}, ev.Failures...), lost...)
	if ev.Snapshot != nil {
		snap := *ev.Snapshot
		snap.Succeeded -= len(lost)
		snap.Failed += len(lost)
		ev.Snapshot = &snap
	}
	ev.Type = models.EventFailed
	ev.Status = models.RunStatusFailed
	if ev.Error == "" {
		ev.Error = fmt.Sprintf("persist archive: %v", persistErr)
	}
	return ev
}

// complete records the terminal state of a run
func (s *exportService) complete(entry *runEntry, ev models.Event) {
	run := entry.run
	now := time.Now().UTC()

	entry.mu.RLock()
	lost, persistErr := entry.lost, entry.persistErr
	entry.mu.RUnlock()
	if persistErr != nil {
		ev = withLost(ev, lost, persistErr)
	}

	var reportURL string
	if len(ev.Failures) > 0 {
		if _, err := s.store.WriteFailureReport(run.ID(), ev.Failures); err != nil {
			s.log.Error().Err(err).Str("run_id", run.ID()).Msg("Failed to write failure report")
		} else {
			reportURL = fmt.Sprintf("/v1/exports/%s/failures?format=csv", run.ID())
		}
	}

	entry.release()

	entry.mu.Lock()
	defer entry.mu.Unlock()

	entry.info.Status = ev.Status
	if ev.Snapshot != nil {
		entry.info.Progress = *ev.Snapshot
	}
	entry.failures = ev.Failures
	entry.info.FailureCount = len(ev.Failures)
	entry.info.FailureReport = reportURL
	if ev.Error != "" {
		entry.info.Error = ev.Error
	}
	entry.info.CompletedAt = &now

	duration := run.Duration()
	entry.info.DurationMs = duration.Milliseconds()
	if duration.Seconds() > 0 {
		entry.info.ItemsPerSec = float64(entry.info.Progress.Attempted) / duration.Seconds()
	}

	entry.publish(ev)
	for ch := range entry.subscribers {
		close(ch)
	}
	entry.subscribers = nil

	s.log.Info().
		Str("run_id", run.ID()).
		Str("status", string(ev.Status)).
		Int("archives", len(entry.info.Archives)).
		Int("failures", entry.info.FailureCount).
		Int64("duration_ms", entry.info.DurationMs).
		Float64("items_per_sec", entry.info.ItemsPerSec).
		Msg("Export run recorded")
}

func (s *exportService) entry(id string) (*runEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return entry, nil
}

// GetRun returns the current view of a run
func (s *exportService) GetRun(id string) (*models.RunInfo, error) {
	entry, err := s.entry(id)
	if err != nil {
		return nil, err
	}
	return entry.snapshot(), nil
}

// ListRuns returns all known runs, newest first
func (s *exportService) ListRuns() []*models.RunInfo {
	s.mu.RLock()
	runs := make([]*models.RunInfo, 0, len(s.runs))
	for _, entry := range s.runs {
		runs = append(runs, entry.snapshot())
	}
	s.mu.RUnlock()

	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].CreatedAt.After(runs[j].CreatedAt)
		}
		return runs[i].ID > runs[j].ID
	})
	return runs
}

// CancelRun requests cancellation; the run settles asynchronously
func (s *exportService) CancelRun(id string) (*models.RunInfo, error) {
	entry, err := s.entry(id)
	if err != nil {
		return nil, err
	}

	entry.mu.RLock()
	finished := entry.info.Status.IsFinished()
	entry.mu.RUnlock()
	if finished {
		return nil, ErrRunFinished
	}

	entry.run.Cancel()
	s.log.Info().Str("run_id", id).Msg("Export run cancellation requested")
	return entry.snapshot(), nil
}

// RetryFailures starts a new run over the failed comments of a finished run
func (s *exportService) RetryFailures(ctx context.Context, id string) (*models.RunInfo, error) {
	entry, err := s.entry(id)
	if err != nil {
		return nil, err
	}

	entry.mu.RLock()
	finished := entry.info.Status.IsFinished()
	prev := entry.info.Request
	entry.mu.RUnlock()
	if !finished {
		return nil, ErrRunActive
	}

	entry.mu.RLock()
	failures := entry.failureRecords()
	entry.mu.RUnlock()
	if len(failures) == 0 {
		return nil, ErrNothingToRetry
	}

	seen := make(map[string]bool, len(failures))
	ids := make([]string, 0, len(failures))
	for _, f := range failures {
		if !seen[f.CommentID] {
			seen[f.CommentID] = true
			ids = append(ids, f.CommentID)
		}
	}

	req := models.ExportRequest{
		Scope:       models.ScopeComments,
		TargetIDs:   ids,
		ArchiveSize: prev.ArchiveSize,
	}
	if prev.Scope == models.ScopeSingleComment {
		req.Scope = models.ScopeSingleComment
	}
	return s.start(ctx, req, id)
}

// GetFailures returns the failure ledger of a run
func (s *exportService) GetFailures(id string) ([]models.FailureRecord, error) {
	entry, err := s.entry(id)
	if err != nil {
		return nil, err
	}
	entry.mu.RLock()
	defer entry.mu.RUnlock()

	failures := entry.failureRecords()
	if failures == nil {
		failures = []models.FailureRecord{}
	}
	return failures, nil
}

// Subscribe returns a channel of the run's events from now on. The first event
// is a progress snapshot. The channel closes after the terminal event, or at
// once with only the terminal state when the run has already finished.
func (s *exportService) Subscribe(id string) (<-chan models.Event, func(), error) {
	entry, err := s.entry(id)
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan models.Event, subscriberBuffer)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.info.Status.IsFinished() {
		snap := entry.info.Progress
		evType := models.EventDone
		if entry.info.Status == models.RunStatusFailed {
			evType = models.EventFailed
		}
		ch <- models.Event{
			Type:     evType,
			RunID:    id,
			Snapshot: &snap,
			Failures: entry.failureRecords(),
			Status:   entry.info.Status,
			Error:    entry.info.Error,
		}
		close(ch)
		return ch, func() {}, nil
	}

	snap := entry.run.Snapshot()
	ch <- models.Event{Type: models.EventProgress, RunID: id, Snapshot: &snap}
	entry.subscribers[ch] = struct{}{}

	unsubscribe := func() {
		entry.mu.Lock()
		defer entry.mu.Unlock()
		if _, ok := entry.subscribers[ch]; ok {
			delete(entry.subscribers, ch)
			close(ch)
		}
	}
	return ch, unsubscribe, nil
}

// GetArchive returns a persisted archive by its 1-based index within the run
func (s *exportService) GetArchive(id string, index int) (*models.ArchiveFile, error) {
	entry, err := s.entry(id)
	if err != nil {
		return nil, err
	}

	entry.mu.RLock()
	defer entry.mu.RUnlock()

	if index < 1 || index > len(entry.info.Archives) {
		return nil, fmt.Errorf("%w: %s/%d", ErrArchiveNotFound, id, index)
	}
	file := entry.info.Archives[index-1]
	return &file, nil
}

// Shutdown cancels every active run and waits for them to settle
func (s *exportService) Shutdown(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info().Msg("All export runs settled")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
