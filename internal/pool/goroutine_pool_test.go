package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestPool_RunsTasks(t *testing.T) {
	p := New(Config{MaxWorkers: 3, QueueSize: 10}, zaptest.NewLogger(t))

	var (
		mu    sync.Mutex
		names []string
		wg    sync.WaitGroup
	)
	p.OnDone = func(name string, err error, _ time.Duration) {
		mu.Lock()
		names = append(names, name)
		mu.Unlock()
		wg.Done()
	}

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		wg.Add(1)
		require.NoError(t, p.Submit(context.Background(), "turn", func(context.Context) error {
			ran.Add(1)
			return nil
		}))
	}
	wg.Wait()

	assert.Equal(t, int32(5), ran.Load())
	assert.Len(t, names, 5)
	require.NoError(t, p.Close(context.Background()))

	stats := p.Stats()
	assert.Equal(t, int64(5), stats.Submitted)
	assert.Equal(t, int64(5), stats.Completed)
	assert.Zero(t, stats.Workers)
}

func TestPool_PanicBecomesError(t *testing.T) {
	p := New(Config{MaxWorkers: 1, QueueSize: 1}, zaptest.NewLogger(t))
	got := make(chan error, 1)
	p.OnDone = func(_ string, err error, _ time.Duration) { got <- err }

	require.NoError(t, p.Submit(context.Background(), "boom", func(context.Context) error {
		panic("bad state")
	}))

	err := <-got
	var pe *PanicError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "boom", pe.Task)
	assert.Equal(t, "bad state", pe.Value)
	require.NoError(t, p.Close(context.Background()))
	assert.Equal(t, int64(1), p.Stats().Panicked)
}

func TestPool_TrySubmitFull(t *testing.T) {
	p := New(Config{MaxWorkers: 1, QueueSize: 1}, nil)
	release := make(chan struct{})
	started := make(chan struct{})

	require.NoError(t, p.Submit(context.Background(), "block", func(context.Context) error {
		close(started)
		<-release
		return nil
	}))
	<-started
	require.NoError(t, p.TrySubmit(context.Background(), "queued", func(context.Context) error { return nil }))
	assert.ErrorIs(t, p.TrySubmit(context.Background(), "dropped", func(context.Context) error { return nil }), ErrPoolFull)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Submit(ctx, "waits", func(context.Context) error { return nil }), context.DeadlineExceeded)

	close(release)
	require.NoError(t, p.Close(context.Background()))
	assert.Equal(t, int64(2), p.Stats().Rejected)
}

func TestPool_Closed(t *testing.T) {
	p := New(Config{}, nil)
	require.NoError(t, p.Close(context.Background()))
	require.NoError(t, p.Close(context.Background()))
	assert.ErrorIs(t, p.Submit(context.Background(), "x", func(context.Context) error { return nil }), ErrPoolClosed)
	assert.ErrorIs(t, p.TrySubmit(context.Background(), "x", func(context.Context) error { return nil }), ErrPoolClosed)
}

func TestPool_CancelledContextSkipsTask(t *testing.T) {
	p := New(Config{MaxWorkers: 1}, nil)
	got := make(chan error, 1)
	p.OnDone = func(_ string, err error, _ time.Duration) { got <- err }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Submit 在上下文已取消时可能直接返回，也可能入队后被跳过
	if err := p.Submit(ctx, "late", func(context.Context) error { t.Error("task must not run"); return nil }); err == nil {
		assert.ErrorIs(t, <-got, context.Canceled)
	}
	require.NoError(t, p.Close(context.Background()))
}

func TestBufferPool(t *testing.T) {
	bp := NewBufferPool(64, 128)
	b := bp.Get()
	b.WriteString("hello")
	bp.Put(b)

	b2 := bp.Get()
	assert.Zero(t, b2.Len())

	big := bp.Get()
	big.Grow(1024)
	bp.Put(big) // dropped
	bp.Put(nil)
	assert.GreaterOrEqual(t, bp.HitRate(), 0.0)
}
