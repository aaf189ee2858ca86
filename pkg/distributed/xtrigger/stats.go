package xtrigger

import (
	"sync"
	"sync/atomic"
	"time"
)

// Stats 调度器运行统计，并发安全。
// 跨越多次 Start/Stop 累计。
type Stats struct {
	ticks            atomic.Int64
	triggered        atomic.Int64
	races            atomic.Int64
	storeFailures    atomic.Int64
	listenerFailures atomic.Int64
	// 当前连续连接失败次数，成功一次即清零
	consecutiveFailures atomic.Int64

	mu              sync.RWMutex
	lastTriggerTime time.Time
	lastTaskID      string
	lastError       error
}

func newStats() *Stats {
	return &Stats{}
}

// Ticks 认领尝试次数，含失败。
func (s *Stats) Ticks() int64 { return s.ticks.Load() }

// Triggered 监听器被调用的次数，含监听器失败。
func (s *Stats) Triggered() int64 { return s.triggered.Load() }

// Races 认领竞争失败次数。
func (s *Stats) Races() int64 { return s.races.Load() }

// StoreFailures 轮询循环中的存储失败总次数。
func (s *Stats) StoreFailures() int64 { return s.storeFailures.Load() }

// ListenerFailures 监听器返回错误或 panic 的次数。
func (s *Stats) ListenerFailures() int64 { return s.listenerFailures.Load() }

// ConsecutiveFailures 当前连续连接失败次数。
func (s *Stats) ConsecutiveFailures() int64 { return s.consecutiveFailures.Load() }

// LastTriggerTime 最近一次触发的时间，未触发过为零值。
func (s *Stats) LastTriggerTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastTriggerTime
}

// LastTaskID 最近一次触发的任务。
func (s *Stats) LastTaskID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastTaskID
}

// LastError 最近一次存储或监听器错误。
func (s *Stats) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

func (s *Stats) recordClaim(outcome ClaimOutcome) {
	s.ticks.Add(1)
	s.consecutiveFailures.Store(0)
	if outcome == ClaimRaced {
		s.races.Add(1)
	}
}

// resetLoop 新循环的重试计数从零开始，累计计数保留。
func (s *Stats) resetLoop() {
	s.consecutiveFailures.Store(0)
}

func (s *Stats) recordStoreFailure(err error) {
	s.ticks.Add(1)
	s.storeFailures.Add(1)
	s.consecutiveFailures.Add(1)
	s.setLastError(err)
}

func (s *Stats) recordTrigger(taskID string, at time.Time, err error) {
	s.triggered.Add(1)
	s.mu.Lock()
	s.lastTriggerTime = at
	s.lastTaskID = taskID
	if err != nil {
		s.lastError = err
	}
	s.mu.Unlock()
	if err != nil {
		s.listenerFailures.Add(1)
	}
}

func (s *Stats) setLastError(err error) {
	s.mu.Lock()
	s.lastError = err
	s.mu.Unlock()
}
