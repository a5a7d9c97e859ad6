package tasks

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerEvery(t *testing.T) {
	s := NewScheduler()
	var runs atomic.Int32
	require.NoError(t, s.Every(time.Hour, "rebuild", func() { runs.Add(1) }))
	assert.Equal(t, 1, s.cron.Len())

	s.cron.RunAll()
	assert.EqualValues(t, 1, runs.Load())

	assert.Error(t, s.Every(100*time.Millisecond, "too fast", func() {}))
}

func TestSchedulerStop(t *testing.T) {
	s := NewScheduler()
	require.NoError(t, s.Every(time.Hour, "idle", func() {}))

	done := make(chan struct{})
	go func() {
		s.Start()
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	s.Stop()
	s.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.Zero(t, s.cron.Len())
}
