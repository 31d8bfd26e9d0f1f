package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	calls []time.Duration
	err   error
	done  chan struct{}
}

func newRecorder() *recorder {
	return &recorder{done: make(chan struct{}, 10)}
}

func (r *recorder) record(d time.Duration) (int, error) {
	r.mu.Lock()
	r.calls = append(r.calls, d)
	r.mu.Unlock()
	r.done <- struct{}{}
	return 1, r.err
}

func (r *recorder) Cleanup(_ context.Context, maxAge time.Duration) (int, error) {
	return r.record(maxAge)
}

func (r *recorder) ResetStaleStreaks(_ context.Context, inactiveFor time.Duration) (int, error) {
	return r.record(inactiveFor)
}

func (r *recorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}
}

func TestNew_RegistersJobs(t *testing.T) {
	s, err := New(newRecorder(), newRecorder(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())
}

func startScheduler(t *testing.T, sessions SessionCleaner, users StreakResetter) *Scheduler {
	t.Helper()
	s, err := New(sessions, users, nil)
	require.NoError(t, err)
	s.Start()
	t.Cleanup(s.Stop)
	return s
}

func TestRunNow(t *testing.T) {
	sessions, users := newRecorder(), newRecorder()
	s := startScheduler(t, sessions, users)

	require.NoError(t, s.RunNow(TagSessionCleanup))
	sessions.wait(t)
	require.NoError(t, s.RunNow(TagStreakReset))
	users.wait(t)

	assert.Equal(t, []time.Duration{SessionMaxAge}, sessions.calls)
	assert.Equal(t, []time.Duration{StreakInactivity}, users.calls)
}

func TestRunNow_UnknownTag(t *testing.T) {
	s := startScheduler(t, newRecorder(), newRecorder())
	assert.Error(t, s.RunNow("nope"))
}

func TestJobErrorsAreLogged(t *testing.T) {
	sessions := newRecorder()
	sessions.err = errors.New("redis down")
	s := startScheduler(t, sessions, newRecorder())

	require.NoError(t, s.RunNow(TagSessionCleanup))
	sessions.wait(t)
}

func TestStart_DoesNotRunImmediately(t *testing.T) {
	sessions, users := newRecorder(), newRecorder()
	startScheduler(t, sessions, users)

	select {
	case <-sessions.done:
		t.Fatal("hourly job ran at start")
	case <-users.done:
		t.Fatal("daily job ran at start")
	case <-time.After(200 * time.Millisecond):
	}
}
