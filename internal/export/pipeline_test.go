package export

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/comment-export-api/internal/models"
)

func TestReorderBuffer_ReleasesInOrder(t *testing.T) {
	buf := newReorderBuffer()

	var released []uint64
	for _, seq := range []uint64{2, 0, 3, 1, 5, 4} {
		for _, o := range buf.put(outcome{seq: seq}) {
			released = append(released, o.seq)
		}
	}

	want := []uint64{0, 1, 2, 3, 4, 5}
	if len(released) != len(want) {
		t.Fatalf("released %v, want %v", released, want)
	}
	for i := range want {
		if released[i] != want[i] {
			t.Fatalf("released %v, want %v", released, want)
		}
	}
	if buf.len() != 0 {
		t.Errorf("buffer still holds %d outcomes", buf.len())
	}
}

func TestReorderBuffer_HoldsGaps(t *testing.T) {
	buf := newReorderBuffer()
	if got := buf.put(outcome{seq: 1}); len(got) != 0 {
		t.Errorf("released %d outcomes before seq 0", len(got))
	}
	if buf.len() != 1 {
		t.Errorf("len() = %d, want 1", buf.len())
	}
	if got := buf.put(outcome{seq: 0}); len(got) != 2 {
		t.Errorf("released %d outcomes, want 2", len(got))
	}
}

func TestEventQueue_CoalescesProgress(t *testing.T) {
	q := newEventQueue()
	for i := 1; i <= 3; i++ {
		q.push(models.Event{Type: models.EventProgress, Snapshot: &models.ProgressSnapshot{Attempted: i}})
	}
	q.push(models.Event{Type: models.EventArchive})
	q.push(models.Event{Type: models.EventProgress, Snapshot: &models.ProgressSnapshot{Attempted: 4}})
	q.close()

	var got []models.Event
	for {
		ev, ok := q.pop()
		if !ok {
			break
		}
		got = append(got, ev)
	}

	if len(got) != 3 {
		t.Fatalf("got %d events, want 3", len(got))
	}
	if got[0].Snapshot.Attempted != 3 {
		t.Errorf("coalesced progress = %d, want latest (3)", got[0].Snapshot.Attempted)
	}
	if got[1].Type != models.EventArchive || got[2].Snapshot.Attempted != 4 {
		t.Errorf("unexpected order: %+v", got)
	}
}

func TestEventQueue_WaitRoom(t *testing.T) {
	q := newEventQueue()
	q.push(models.Event{Type: models.EventArchive})
	q.push(models.Event{Type: models.EventArchive})

	ctx := context.Background()
	if err := q.waitRoom(ctx, 3); err != nil {
		t.Fatalf("waitRoom() with room = %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	returned := make(chan struct{})
	go func() {
		defer wg.Done()
		q.waitRoom(ctx, 2)
		close(returned)
	}()

	select {
	case <-returned:
		t.Fatal("waitRoom returned while archives are pending")
	case <-time.After(50 * time.Millisecond):
	}

	q.pop()
	q.delivered()
	wg.Wait()
}

func TestEventQueue_WaitRoomCancelled(t *testing.T) {
	q := newEventQueue()
	q.push(models.Event{Type: models.EventArchive})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	if err := q.waitRoom(ctx, 1); err == nil {
		t.Error("waitRoom() = nil after cancel, want error")
	}
}

func TestEventQueue_PumpClosesOutput(t *testing.T) {
	q := newEventQueue()
	out := make(chan models.Event)
	go q.pump(out)

	q.push(models.Event{Type: models.EventArchive})
	q.push(models.Event{Type: models.EventDone})
	q.close()

	var types []models.EventType
	for ev := range out {
		types = append(types, ev.Type)
	}
	if len(types) != 2 || types[1] != models.EventDone {
		t.Errorf("pumped %v", types)
	}

	q.mu.Lock()
	pending := q.pendingArchives
	q.mu.Unlock()
	if pending != 0 {
		t.Errorf("pendingArchives = %d after delivery, want 0", pending)
	}
}

func TestTracker_Counters(t *testing.T) {
	tr := NewTracker(5, 2)
	tr.BeginVideo(1, &models.Video{ID: "v1", Title: "One"}, 3, 3)
	for i := 0; i < 3; i++ {
		tr.Attempt()
	}
	tr.Succeed()
	tr.Fail()

	s := tr.Snapshot()
	if s.Attempted != 3 || s.Succeeded != 1 || s.Failed != 1 || s.Remaining != 2 {
		t.Errorf("snapshot = %+v", s)
	}
	if s.VideoIndex != 1 || s.VideoTotal != 3 || s.VideoCompleted != 2 {
		t.Errorf("video counters = %+v", s)
	}
	if s.Percent != 40 {
		t.Errorf("Percent = %v, want 40", s.Percent)
	}

	tr.Succeed()
	tr.BeginVideo(2, &models.Video{ID: "v2"}, 2, 1)
	s = tr.Snapshot()
	if s.Total != 4 {
		t.Errorf("Total = %d after reconciling, want 4", s.Total)
	}
	if s.VideoCompleted != 0 || s.VideoID != "v2" {
		t.Errorf("video counters not reset: %+v", s)
	}

	tr.Attempt()
	tr.Succeed()
	tr.Finish()
	s = tr.Snapshot()
	if s.Attempted != s.Total || s.Succeeded+s.Failed != s.Attempted || s.Percent != 100 {
		t.Errorf("final snapshot = %+v", s)
	}
}

func TestTracker_ConcurrentUpdates(t *testing.T) {
	tr := NewTracker(1000, 1)
	ledger := NewLedger()

	var wg sync.WaitGroup
	for w := 0; w < 10; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				tr.Attempt()
				if i%10 == 0 {
					tr.Fail()
					ledger.Append(models.FailureRecord{CommentID: "x"})
				} else {
					tr.Succeed()
				}
				s := tr.Snapshot()
				if s.Succeeded+s.Failed > s.Attempted || s.Attempted > s.Total {
					t.Errorf("invariant broken: %+v", s)
				}
			}
		}()
	}
	wg.Wait()

	s := tr.Snapshot()
	if s.Attempted != 1000 || s.Succeeded != 900 || s.Failed != 100 {
		t.Errorf("lost updates: %+v", s)
	}
	if ledger.Len() != 100 {
		t.Errorf("ledger has %d records, want 100", ledger.Len())
	}
}

func TestLedger_RecordsIsCopy(t *testing.T) {
	l := NewLedger()
	l.Append(models.FailureRecord{CommentID: "c1"})
	recs := l.Records()
	recs[0].CommentID = "changed"
	if l.Records()[0].CommentID != "c1" {
		t.Error("Records() exposed internal state")
	}
}
