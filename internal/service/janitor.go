package service

import (
	"context"
	"time"
)

// StartJanitor periodically removes finished runs older than the retention
// period together with their files. It blocks until StopJanitor is called or
// ctx is done.
func (s *exportService) StartJanitor(ctx context.Context) {
	s.janitorMu.Lock()
	if s.janitorRunning {
		s.janitorMu.Unlock()
		return
	}
	s.janitorRunning = true
	ctx, s.janitorCancel = context.WithCancel(ctx)
	s.janitorDone = make(chan struct{})
	done := s.janitorDone
	s.janitorMu.Unlock()

	defer close(done)

	interval := s.cfg.CleanupInterval
	if interval <= 0 {
		interval = time.Hour
	}

	s.log.Info().
		Dur("interval", interval).
		Dur("retention", s.cfg.Retention).
		Msg("Export janitor started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("Export janitor stopping")
			return
		case <-ticker.C:
			s.cleanup(time.Now())
		}
	}
}

// StopJanitor stops the janitor and waits for it to return
func (s *exportService) StopJanitor() {
	s.janitorMu.Lock()
	defer s.janitorMu.Unlock()

	if !s.janitorRunning {
		return
	}

	s.janitorCancel()
	<-s.janitorDone
	s.janitorRunning = false
	s.log.Info().Msg("Export janitor stopped")
}

// cleanup drops every run that finished before now minus the retention period
func (s *exportService) cleanup(now time.Time) int {
	cutoff := now.Add(-s.cfg.Retention)

	var expired []string
	s.mu.RLock()
	for id, entry := range s.runs {
		entry.mu.RLock()
		completed := entry.info.CompletedAt
		entry.mu.RUnlock()
		if completed != nil && completed.Before(cutoff) {
			expired = append(expired, id)
		}
	}
	s.mu.RUnlock()

	removed := 0
	for _, id := range expired {
		if err := s.store.RemoveRun(id); err != nil {
			s.log.Error().Err(err).Str("run_id", id).Msg("Failed to remove export files")
			continue
		}
		s.mu.Lock()
		delete(s.runs, id)
		s.mu.Unlock()
		removed++
	}

	if removed > 0 {
		s.log.Info().Int("removed", removed).Msg("Expired export runs removed")
	}
	return removed
}
