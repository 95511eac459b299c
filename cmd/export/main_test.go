package main

import (
	"errors"
	"testing"
	"time"

	"github.com/comment-export-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// settlingRuns reports a run as running for a fixed number of reads
type settlingRuns struct {
	reads   int
	running int
	err     error
}

func (s *settlingRuns) GetRun(id string) (*models.RunInfo, error) {
	s.reads++
	if s.err != nil {
		return nil, s.err
	}
	if s.reads <= s.running {
		return &models.RunInfo{ID: id, Status: models.RunStatusRunning}, nil
	}
	return &models.RunInfo{ID: id, Status: models.RunStatusCompleted}, nil
}

func TestAwaitRun_WaitsForFinish(t *testing.T) {
	runs := &settlingRuns{running: 3}

	info, err := awaitRun(runs, "run-1", time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, info.Status)
	assert.Equal(t, 4, runs.reads)
}

func TestAwaitRun_Error(t *testing.T) {
	notFound := errors.New("not found")

	_, err := awaitRun(&settlingRuns{err: notFound}, "run-1", time.Millisecond)
	assert.ErrorIs(t, err, notFound)
}

func TestParseDay(t *testing.T) {
	from, err := parseDay("2024-01-31", false)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), *from)

	to, err := parseDay("2024-01-31", true)
	require.NoError(t, err)
	// a comment in the last second of the day is still inside the range
	last := time.Date(2024, 1, 31, 23, 59, 59, 500_000_000, time.UTC)
	assert.False(t, last.After(*to))
	assert.True(t, to.Before(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)))

	none, err := parseDay("", true)
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = parseDay("31/01/2024", false)
	assert.Error(t, err)
}
