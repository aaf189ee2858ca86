package xtrigger

import (
	"context"
	"fmt"
	"time"
)

// HealthStatus 健康状态。
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck 健康检查结果。
type HealthCheck struct {
	Status           HealthStatus   `json:"status"`
	LoopStatus       string         `json:"loop_status"`
	Triggered        int64          `json:"triggered"`
	Races            int64          `json:"races"`
	StoreFailures    int64          `json:"store_failures"`
	ListenerFailures int64          `json:"listener_failures"`
	LastTriggerTime  time.Time      `json:"last_trigger_time,omitempty"`
	LastError        string         `json:"last_error,omitempty"`
	Message          string         `json:"message,omitempty"`
	CheckTime        time.Time      `json:"check_time"`
	Details          map[string]any `json:"details,omitempty"`
}

// HealthChecker 可接入 Kubernetes 探针或监控系统。
type HealthChecker interface {
	Check(ctx context.Context) *HealthCheck
}

// HealthCheckOption 健康检查选项。
type HealthCheckOption func(*healthCheckOptions)

type healthCheckOptions struct {
	degradedThreshold float64
	minTriggers       int64
	checkStore        bool
}

func defaultHealthCheckOptions() *healthCheckOptions {
	return &healthCheckOptions{degradedThreshold: 0.5, minTriggers: 10}
}

// WithDegradedThreshold 监听器失败率超过该值时为 degraded，范围 [0, 1]，默认 0.5。
func WithDegradedThreshold(threshold float64) HealthCheckOption {
	return func(o *healthCheckOptions) {
		if threshold >= 0 && threshold <= 1 {
			o.degradedThreshold = threshold
		}
	}
}

// WithMinTriggers 触发次数低于该值时不计算失败率，默认 10。
func WithMinTriggers(n int64) HealthCheckOption {
	return func(o *healthCheckOptions) {
		if n >= 0 {
			o.minTriggers = n
		}
	}
}

// WithCheckStore 存储实现了 Pinger 时探测连通性。
func WithCheckStore() HealthCheckOption {
	return func(o *healthCheckOptions) {
		o.checkStore = true
	}
}

type schedulerHealthChecker struct {
	s    *Scheduler
	opts *healthCheckOptions
}

// NewHealthChecker 创建健康检查器。
//
//	checker := xtrigger.NewHealthChecker(sched, xtrigger.WithCheckStore())
//	if r := checker.Check(ctx); r.Status != xtrigger.HealthStatusHealthy {
//	    log.Printf("scheduler %s: %s", r.Status, r.Message)
//	}
func NewHealthChecker(s *Scheduler, opts ...HealthCheckOption) HealthChecker {
	o := defaultHealthCheckOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &schedulerHealthChecker{s: s, opts: o}
}

// Check 依次判断：循环状态、连续连接失败、监听器失败率、存储连通性。
func (c *schedulerHealthChecker) Check(ctx context.Context) *HealthCheck {
	stats := c.s.Stats()
	status := c.s.Status()
	r := &HealthCheck{
		Status:           HealthStatusHealthy,
		LoopStatus:       status.String(),
		Triggered:        stats.Triggered(),
		Races:            stats.Races(),
		StoreFailures:    stats.StoreFailures(),
		ListenerFailures: stats.ListenerFailures(),
		LastTriggerTime:  stats.LastTriggerTime(),
		CheckTime:        c.s.opts.clock.Now(),
		Details: map[string]any{
			"scheduler":            c.s.Name(),
			"key":                  c.s.Key(),
			"ticks":                stats.Ticks(),
			"consecutive_failures": stats.ConsecutiveFailures(),
		},
	}
	if err := stats.LastError(); err != nil {
		r.LastError = err.Error()
	}

	switch status {
	case StatusRunning:
	case StatusStoppedByRetryExhaustion:
		r.Status = HealthStatusUnhealthy
		r.Message = fmt.Sprintf("polling stopped after %d consecutive store failures", c.s.opts.maxRetries)
		return r
	default:
		r.Status = HealthStatusUnhealthy
		r.Message = "scheduler is not running"
		return r
	}

	if n := stats.ConsecutiveFailures(); n > 0 {
		r.Status = HealthStatusDegraded
		r.Message = fmt.Sprintf("store unavailable (attempt %d/%d)", n, c.s.opts.maxRetries)
	} else if r.Triggered >= c.opts.minTriggers && r.Triggered > 0 {
		rate := float64(r.ListenerFailures) / float64(r.Triggered)
		if rate > c.opts.degradedThreshold {
			r.Status = HealthStatusDegraded
			r.Message = fmt.Sprintf("high listener failure rate: %.1f%% (threshold: %.1f%%)",
				rate*100, c.opts.degradedThreshold*100)
		}
	}

	c.checkStore(ctx, r)
	return r
}

func (c *schedulerHealthChecker) checkStore(ctx context.Context, r *HealthCheck) {
	if !c.opts.checkStore {
		return
	}
	p, ok := c.s.store.(Pinger)
	if !ok {
		return
	}
	if err := p.Ping(ctx); err != nil {
		r.Status = HealthStatusUnhealthy
		r.Message = fmt.Sprintf("store ping failed: %v", err)
		r.Details["store_healthy"] = false
		return
	}
	r.Details["store_healthy"] = true
}
