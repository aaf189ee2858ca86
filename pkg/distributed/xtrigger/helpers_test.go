package xtrigger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xtrigger/pkg/observability/xlog"
)

var testEpoch = time.Date(2026, 3, 1, 10, 7, 30, 0, time.UTC)

var errConnRefused = errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")

// recordingListener 记录触发顺序，fail/panic 中的任务分别返回错误或 panic。
type recordingListener struct {
	mu        sync.Mutex
	triggered []string
	fail      map[string]bool
	panicOn   map[string]bool
}

func (l *recordingListener) TaskTriggered(_ context.Context, taskID string) error {
	l.mu.Lock()
	l.triggered = append(l.triggered, taskID)
	l.mu.Unlock()
	if l.panicOn[taskID] {
		panic("listener exploded on " + taskID)
	}
	if l.fail[taskID] {
		return errors.New("downstream rejected " + taskID)
	}
	return nil
}

func (l *recordingListener) tasks() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.triggered...)
}

// scriptedStore 按脚本让 ClaimDue 依次失败或成功，脚本用完后始终成功。
type scriptedStore struct {
	*MemoryStore

	mu     sync.Mutex
	script []error
	claims int
	broken error
}

func newScriptedStore(script ...error) *scriptedStore {
	return &scriptedStore{MemoryStore: NewMemoryStore(), script: script}
}

func (s *scriptedStore) ClaimDue(ctx context.Context, key string, maxScore int64) (Claim, error) {
	s.mu.Lock()
	s.claims++
	err := s.broken
	if err == nil && len(s.script) > 0 {
		err, s.script = s.script[0], s.script[1:]
	}
	s.mu.Unlock()
	if err != nil {
		return Claim{}, err
	}
	return s.MemoryStore.ClaimDue(ctx, key, maxScore)
}

func (s *scriptedStore) claimCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.claims
}

// brokenStore 所有操作都失败。
type brokenStore struct{ err error }

func (b brokenStore) Add(context.Context, string, string, int64) error { return b.err }
func (b brokenStore) Remove(context.Context, string, string) error     { return b.err }
func (b brokenStore) Clear(context.Context, string) error              { return b.err }
func (b brokenStore) ClaimDue(context.Context, string, int64) (Claim, error) {
	return Claim{}, b.err
}
func (b brokenStore) Entries(context.Context, string) ([]Entry, error) { return nil, b.err }
func (b brokenStore) Ping(context.Context) error                      { return b.err }

func newTestScheduler(t *testing.T, store Store, l Listener, fc *clockwork.FakeClock, opts ...Option) *Scheduler {
	t.Helper()
	base := []Option{WithClock(fc), WithLogger(xlog.Discard()), WithPollingDelay(100 * time.Millisecond)}
	s, err := New(store, l, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})
	return s
}

// waitSleeping 等待 n 个轮询循环进入休眠，即本轮认领和触发已经完成。
func waitSleeping(t *testing.T, fc *clockwork.FakeClock, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, fc.BlockUntilContext(ctx, n), "pollers did not go to sleep")
}

// step 等待休眠后推进时钟，唤醒循环执行下一轮。
func step(t *testing.T, fc *clockwork.FakeClock, d time.Duration) {
	t.Helper()
	waitSleeping(t, fc, 1)
	fc.Advance(d)
}

func waitDone(t *testing.T, s *Scheduler) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("polling loop did not exit")
	}
}
