package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeUserSource struct {
	ids []int64
	err error
}

func (f *fakeUserSource) ListUserIDs(_ context.Context) ([]int64, error) {
	return f.ids, f.err
}

type fakeProcessor struct {
	mu         sync.Mutex
	processed  []int64
	delay      time.Duration
	failFor    map[int64]error
	concurrent atomic.Int32
	maxSeen    atomic.Int32
}

func (f *fakeProcessor) ProcessUser(_ context.Context, userID int64) error {
	cur := f.concurrent.Add(1)
	for {
		max := f.maxSeen.Load()
		if cur <= max || f.maxSeen.CompareAndSwap(max, cur) {
			break
		}
	}
	defer f.concurrent.Add(-1)

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.processed = append(f.processed, userID)
	f.mu.Unlock()

	if err, ok := f.failFor[userID]; ok {
		return err
	}
	return nil
}

func (f *fakeProcessor) processedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.processed)
}

func TestRunOnce_ProcessesAllUsers(t *testing.T) {
	users := &fakeUserSource{ids: []int64{1, 2, 3, 4, 5}}
	proc := &fakeProcessor{}
	s := NewScheduler(users, proc, time.Minute, 2, zap.NewNop())

	s.RunOnce(context.Background())

	assert.Equal(t, 5, proc.processedCount())
}

func TestRunOnce_PerUserFailureDoesNotAbortBatch(t *testing.T) {
	users := &fakeUserSource{ids: []int64{1, 2, 3}}
	proc := &fakeProcessor{failFor: map[int64]error{2: errors.New("db down")}}
	s := NewScheduler(users, proc, time.Minute, 50, zap.NewNop())

	s.RunOnce(context.Background())

	// 用户 2 失败，但 1 和 3 仍被处理
	assert.Equal(t, 3, proc.processedCount())
}

func TestRunOnce_BatchSizeBoundsConcurrency(t *testing.T) {
	ids := make([]int64, 20)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	users := &fakeUserSource{ids: ids}
	proc := &fakeProcessor{delay: 10 * time.Millisecond}
	s := NewScheduler(users, proc, time.Minute, 5, zap.NewNop())

	s.RunOnce(context.Background())

	assert.Equal(t, 20, proc.processedCount())
	assert.LessOrEqual(t, proc.maxSeen.Load(), int32(5))
}

func TestRunOnce_OverlappingFiringSkipped(t *testing.T) {
	users := &fakeUserSource{ids: []int64{1}}
	proc := &fakeProcessor{delay: 100 * time.Millisecond}
	s := NewScheduler(users, proc, time.Minute, 50, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.RunOnce(context.Background())
		}()
	}
	wg.Wait()

	// 至多一次真正执行，其余触发被跳过；任何时刻只有一个并发批次
	assert.Equal(t, 1, proc.processedCount())
	assert.Equal(t, int32(1), proc.maxSeen.Load())
	assert.False(t, s.IsRunning())
}

func TestRunOnce_EnumerationFailure(t *testing.T) {
	users := &fakeUserSource{err: errors.New("db down")}
	proc := &fakeProcessor{}
	s := NewScheduler(users, proc, time.Minute, 50, zap.NewNop())

	s.RunOnce(context.Background())

	assert.Equal(t, 0, proc.processedCount())
	assert.False(t, s.IsRunning())
}

func TestStart_StopsOnContextCancel(t *testing.T) {
	users := &fakeUserSource{ids: []int64{1}}
	proc := &fakeProcessor{}
	s := NewScheduler(users, proc, 10*time.Millisecond, 50, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Start(ctx)
	}()

	time.Sleep(35 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after context cancel")
	}

	assert.GreaterOrEqual(t, proc.processedCount(), 1)
}
