package mocks

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/comment-export-api/internal/export"
	"github.com/comment-export-api/internal/models"
)

var _ export.Renderer = (*MockRenderer)(nil)

// MockRenderer renders "<comment id>:<text>" as the artifact payload.
// Per-comment failures, panics and delays are configurable.
type MockRenderer struct {
	mu       sync.Mutex
	FailIDs  map[string]error
	PanicIDs map[string]bool
	Delays   map[string]time.Duration
	// RenderFunc replaces the default behaviour when set
	RenderFunc func(ctx context.Context, comment *models.Comment, video *models.Video) ([]byte, error)

	calls    atomic.Int64
	rendered []string
}

func NewMockRenderer() *MockRenderer {
	return &MockRenderer{
		FailIDs:  make(map[string]error),
		PanicIDs: make(map[string]bool),
		Delays:   make(map[string]time.Duration),
	}
}

// Fail makes the renderer fail the given comments with err
func (m *MockRenderer) Fail(err error, ids ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		m.FailIDs[id] = err
	}
}

func (m *MockRenderer) Render(ctx context.Context, comment *models.Comment, video *models.Video) ([]byte, error) {
	m.calls.Add(1)

	if m.RenderFunc != nil {
		return m.RenderFunc(ctx, comment, video)
	}

	m.mu.Lock()
	delay := m.Delays[comment.ID]
	failErr, fail := m.FailIDs[comment.ID]
	shouldPanic := m.PanicIDs[comment.ID]
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if shouldPanic {
		panic("render exploded for " + comment.ID)
	}
	if fail {
		return nil, failErr
	}

	m.mu.Lock()
	m.rendered = append(m.rendered, comment.ID)
	m.mu.Unlock()

	return []byte(fmt.Sprintf("%s:%s", comment.ID, comment.Text)), nil
}

func (m *MockRenderer) Extension() string   { return "txt" }
func (m *MockRenderer) ContentType() string { return "text/plain; charset=utf-8" }

// Calls returns how many times Render was invoked
func (m *MockRenderer) Calls() int {
	return int(m.calls.Load())
}

// Rendered returns the ids rendered successfully, in completion order
func (m *MockRenderer) Rendered() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.rendered))
	copy(out, m.rendered)
	return out
}
