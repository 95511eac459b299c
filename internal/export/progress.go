package export

import (
	"sync"

	"github.com/comment-export-api/internal/models"
)

// Tracker holds the two-level progress counters of a run. All methods are
// safe for concurrent use and never block for longer than a field update.
type Tracker struct {
	mu       sync.Mutex
	s        models.ProgressSnapshot
	finished bool
}

// NewTracker creates a tracker for total items spread over videoCount videos
func NewTracker(total, videoCount int) *Tracker {
	return &Tracker{
		s: models.ProgressSnapshot{
			Total:      total,
			Remaining:  total,
			VideoCount: videoCount,
		},
	}
}

// BeginVideo switches the per-video counters to the index-th video (1-based).
// expected is the item count used for the overall total so far, actual is the
// length of the sequence that is about to be walked.
func (t *Tracker) BeginVideo(index int, video *models.Video, expected, actual int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.s.Total += actual - expected
	if t.s.Total < t.s.Attempted {
		t.s.Total = t.s.Attempted
	}
	t.s.VideoIndex = index
	t.s.VideoID = video.ID
	t.s.VideoTitle = video.Title
	t.s.VideoTotal = actual
	t.s.VideoCompleted = 0
	t.update()
}

// Attempt records that one more item was handed to the renderer
func (t *Tracker) Attempt() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.s.Attempted++
	if t.s.Attempted > t.s.Total {
		t.s.Total = t.s.Attempted
	}
	t.update()
}

// Succeed records a rendered item
func (t *Tracker) Succeed() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.s.Succeeded++
	t.s.VideoCompleted++
	t.update()
}

// Fail records a failed item
func (t *Tracker) Fail() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.s.Failed++
	t.s.VideoCompleted++
	t.update()
}

// ArchiveEmitted records one completed archive unit
func (t *Tracker) ArchiveEmitted() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.s.Archives++
}

// Finish marks a run that walked its whole scope
func (t *Tracker) Finish() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.finished = true
	t.update()
}

// Snapshot returns a copy of the counters
func (t *Tracker) Snapshot() models.ProgressSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.s
}

func (t *Tracker) update() {
	t.s.Remaining = t.s.Total - t.s.Attempted

	switch {
	case t.finished && t.s.Remaining == 0:
		t.s.Percent = 100
	case t.s.Total > 0:
		t.s.Percent = float64(t.s.Succeeded+t.s.Failed) * 100 / float64(t.s.Total)
	default:
		t.s.Percent = 0
	}
}

// Ledger is the append-only failure list of a run
type Ledger struct {
	mu      sync.Mutex
	records []models.FailureRecord
}

// NewLedger creates an empty ledger
func NewLedger() *Ledger {
	return &Ledger{}
}

// Append records one failure
func (l *Ledger) Append(rec models.FailureRecord) {
	l.mu.Lock()
	l.records = append(l.records, rec)
	l.mu.Unlock()
}

// Records returns a copy of all failures in the order they were recorded
func (l *Ledger) Records() []models.FailureRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]models.FailureRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Len returns the number of failures
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.records)
}
