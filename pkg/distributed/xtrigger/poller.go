package xtrigger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/omeyang/xtrigger/pkg/observability/xlog"
)

// poller 一次 Start 对应的轮询循环。
// retries 只在循环 goroutine 内读写；exitErr 在 close(done) 之前写入。
type poller struct {
	s *Scheduler

	state    atomic.Int32
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	exitErr  error
	retries  int
}

func newPoller(s *Scheduler) *poller {
	p := &poller{
		s:      s,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	p.state.Store(int32(StatusRunning))
	return p
}

func (p *poller) status() Status {
	return Status(p.state.Load())
}

func (p *poller) requestStop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
}

func (p *poller) stopRequested() bool {
	select {
	case <-p.stopCh:
		return true
	default:
		return false
	}
}

func (p *poller) exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *poller) err() error {
	if p.exited() {
		return p.exitErr
	}
	return nil
}

// run 循环直到收到停止请求或连续连接失败达到上限：
//   - 触发了任务：立即进入下一轮，尽快消化积压
//   - 无到期任务或竞争失败：休眠 PollingDelay
//   - 存储失败：按 FailureBackoff 休眠，达到上限则永久退出
func (p *poller) run() {
	ctx := context.Background()
	opts := p.s.opts
	for {
		if p.stopRequested() {
			p.finish(ctx, StatusStoppedByRequest, nil)
			return
		}

		outcome, err := p.s.tick(ctx)
		var wait time.Duration
		switch {
		case err != nil:
			p.retries++
			p.s.log.Warn(ctx, fmt.Sprintf("store unavailable (attempt %d/%d)", p.retries, opts.maxRetries),
				xlog.Err(err), slog.Int("attempt", p.retries), slog.Int("max_retries", opts.maxRetries))
			if p.retries >= opts.maxRetries {
				p.s.log.Error(ctx, "connection retries exhausted, polling stopped",
					xlog.Err(err), slog.Int("max_retries", opts.maxRetries))
				p.finish(ctx, StatusStoppedByRetryExhaustion, fmt.Errorf("%w: %w", ErrRetryExhausted, err))
				return
			}
			wait = opts.failureBackoff.NextDelay(p.retries)
		case outcome == ClaimAcquired:
			p.retries = 0
			continue
		default:
			p.retries = 0
			wait = opts.pollingDelay
		}

		if !p.sleep(wait) {
			p.finish(ctx, StatusStoppedByRequest, nil)
			return
		}
	}
}

// sleep 返回 false 表示休眠期间收到停止请求。
func (p *poller) sleep(d time.Duration) bool {
	if d <= 0 {
		return !p.stopRequested()
	}
	t := p.s.opts.clock.NewTimer(d)
	defer t.Stop()
	select {
	case <-p.stopCh:
		return false
	case <-t.Chan():
		return true
	}
}

func (p *poller) finish(ctx context.Context, status Status, err error) {
	p.exitErr = err
	p.state.Store(int32(status))
	p.s.metrics.recordLoopStop(ctx, status)
	if status == StatusStoppedByRequest {
		p.s.log.Info(ctx, "scheduler stopped")
	}
	close(p.done)
}
