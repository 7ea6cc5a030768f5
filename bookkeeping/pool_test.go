package bookkeeping_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solver_gateway/bookkeeping"
	"solver_gateway/logger"
)

type recorder struct {
	mu       sync.Mutex
	statuses map[string]int
}

func (r *recorder) observe(_ string, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.statuses == nil {
		r.statuses = map[string]int{}
	}
	r.statuses[status]++
}

func (r *recorder) count(status string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statuses[status]
}

func TestPoolRunsSubmittedTasks(t *testing.T) {
	rec := &recorder{}
	p := bookkeeping.New(10, 2, time.Second, logger.Discard(), rec.observe)

	var mu sync.Mutex
	ran := 0
	for i := 0; i < 5; i++ {
		ok := p.Submit(bookkeeping.Task{Name: "bump", Run: func(context.Context) error {
			mu.Lock()
			ran++
			mu.Unlock()
			return nil
		}})
		require.True(t, ok)
	}
	p.Shutdown()

	assert.Equal(t, 5, ran)
	assert.Equal(t, 5, rec.count("ok"))
	assert.Equal(t, bookkeeping.Stats{Submitted: 5, Completed: 5}, p.Stats())
}

func TestPoolSwallowsFailures(t *testing.T) {
	rec := &recorder{}
	p := bookkeeping.New(10, 1, time.Second, logger.Discard(), rec.observe)

	p.Submit(bookkeeping.Task{Name: "usage", Attrs: []any{"account_id", "a"}, Run: func(context.Context) error {
		return errors.New("store down")
	}})
	p.Submit(bookkeeping.Task{Name: "panics", Run: func(context.Context) error {
		panic("boom")
	}})
	p.Shutdown()

	assert.Equal(t, 2, rec.count("failed"))
	assert.Equal(t, int64(2), p.Stats().Failed)
}

func TestPoolDropsWhenQueueFull(t *testing.T) {
	rec := &recorder{}
	p := bookkeeping.New(1, 1, time.Second, logger.Discard(), rec.observe)

	release := make(chan struct{})
	started := make(chan struct{})
	require.True(t, p.Submit(bookkeeping.Task{Name: "slow", Run: func(context.Context) error {
		close(started)
		<-release
		return nil
	}}))
	<-started

	// One slot in the queue, the worker is busy.
	require.True(t, p.Submit(bookkeeping.Task{Name: "queued", Run: func(context.Context) error { return nil }}))
	assert.False(t, p.Submit(bookkeeping.Task{Name: "overflow", Run: func(context.Context) error { return nil }}))

	close(release)
	p.Shutdown()

	assert.Equal(t, 1, rec.count("dropped"))
	assert.Equal(t, 2, rec.count("ok"))
}

func TestPoolSubmitNeverBlocks(t *testing.T) {
	p := bookkeeping.New(1, 1, time.Second, logger.Discard(), nil)
	block := make(chan struct{})
	defer func() {
		close(block)
		p.Shutdown()
	}()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			p.Submit(bookkeeping.Task{Name: "t", Run: func(context.Context) error {
				<-block
				return nil
			}})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Submit blocked on a full queue")
	}
}

func TestPoolTaskTimeout(t *testing.T) {
	p := bookkeeping.New(1, 1, 20*time.Millisecond, logger.Discard(), nil)

	var got error
	p.Submit(bookkeeping.Task{Name: "slow", Run: func(ctx context.Context) error {
		<-ctx.Done()
		got = ctx.Err()
		return got
	}})
	p.Shutdown()

	assert.ErrorIs(t, got, context.DeadlineExceeded)
}

func TestPoolRejectsAfterShutdown(t *testing.T) {
	p := bookkeeping.New(1, 1, time.Second, logger.Discard(), nil)
	p.Shutdown()
	p.Shutdown()

	assert.False(t, p.Submit(bookkeeping.Task{Name: "late", Run: func(context.Context) error { return nil }}))
	assert.Equal(t, int64(1), p.Stats().Dropped)
}
