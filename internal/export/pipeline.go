package export

import (
	"context"
	"sync"

	"github.com/comment-export-api/internal/models"
)

type markerKind int

const (
	markerVideoStart markerKind = iota + 1
	markerVideoEnd
)

// marker travels through the reorder buffer between items so video
// boundaries are seen in sequence order
type marker struct {
	kind  markerKind
	video *models.Video
	done  chan struct{}
}

type job struct {
	seq     uint64
	comment *models.Comment
	video   *models.Video
}

// outcome is what the collector releases for one sequence number
type outcome struct {
	seq      uint64
	artifact *models.RenderedArtifact
	failure  *RenderFailure
	marker   *marker
}

// reorderBuffer releases outcomes strictly in sequence order. Its size is
// bounded by the number of sequence numbers handed out but not yet released.
type reorderBuffer struct {
	next    uint64
	pending map[uint64]outcome
}

func newReorderBuffer() *reorderBuffer {
	return &reorderBuffer{pending: make(map[uint64]outcome)}
}

// put stores o and returns every outcome that is now releasable, in order
func (b *reorderBuffer) put(o outcome) []outcome {
	b.pending[o.seq] = o

	var ready []outcome
	for {
		next, ok := b.pending[b.next]
		if !ok {
			return ready
		}
		delete(b.pending, b.next)
		ready = append(ready, next)
		b.next++
	}
}

func (b *reorderBuffer) len() int {
	return len(b.pending)
}

// eventQueue sits between the collector and the consumer. push never blocks.
// Consecutive progress events collapse into the latest one.
type eventQueue struct {
	mu              sync.Mutex
	cond            *sync.Cond
	items           []models.Event
	pendingArchives int
	closed          bool
}

func newEventQueue() *eventQueue {
	q := &eventQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *eventQueue) push(ev models.Event) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	if n := len(q.items); n > 0 && ev.Type == models.EventProgress && q.items[n-1].Type == models.EventProgress {
		q.items[n-1] = ev
	} else {
		q.items = append(q.items, ev)
	}
	if ev.Type == models.EventArchive {
		q.pendingArchives++
	}
	q.cond.Broadcast()
}

// close lets pop drain what is left and then report the end
func (q *eventQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
}

func (q *eventQueue) pop() (models.Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return models.Event{}, false
	}
	ev := q.items[0]
	q.items[0] = models.Event{}
	q.items = q.items[1:]
	return ev, true
}

// delivered is called once the consumer has received an archive event
func (q *eventQueue) delivered() {
	q.mu.Lock()
	q.pendingArchives--
	q.cond.Broadcast()
	q.mu.Unlock()
}

// waitRoom blocks while at least limit archive events are undelivered
func (q *eventQueue) waitRoom(ctx context.Context, limit int) error {
	if limit <= 0 {
		return ctx.Err()
	}

	q.mu.Lock()
	room := q.pendingArchives < limit
	q.mu.Unlock()
	if room {
		return ctx.Err()
	}

	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()
	for q.pendingArchives >= limit && ctx.Err() == nil {
		q.cond.Wait()
	}
	return ctx.Err()
}

// pump forwards queued events to out and closes it after the last one
func (q *eventQueue) pump(out chan<- models.Event) {
	defer close(out)
	for {
		ev, ok := q.pop()
		if !ok {
			return
		}
		out <- ev
		if ev.Type == models.EventArchive {
			q.delivered()
		}
	}
}
