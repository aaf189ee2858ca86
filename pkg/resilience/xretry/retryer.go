package xretry

import (
	"context"
	"math"
	"time"

	retry "github.com/avast/retry-go/v5"
)

// Retryer 组合 RetryPolicy 与 BackoffPolicy 执行重试。
type Retryer struct {
	retryPolicy   RetryPolicy
	backoffPolicy BackoffPolicy
	onRetry       func(attempt int, err error)
}

// RetryerOption Retryer 选项，nil 参数被忽略。
type RetryerOption func(*Retryer)

func WithRetryPolicy(p RetryPolicy) RetryerOption {
	return func(r *Retryer) {
		if p != nil {
			r.retryPolicy = p
		}
	}
}

func WithBackoffPolicy(p BackoffPolicy) RetryerOption {
	return func(r *Retryer) {
		if p != nil {
			r.backoffPolicy = p
		}
	}
}

// WithOnRetry 每次失败且即将重试时回调，attempt 从 1 开始。
func WithOnRetry(f func(attempt int, err error)) RetryerOption {
	return func(r *Retryer) {
		if f != nil {
			r.onRetry = f
		}
	}
}

// NewRetryer 默认 FixedRetry(3) + ExponentialBackoff。
func NewRetryer(opts ...RetryerOption) *Retryer {
	r := &Retryer{
		retryPolicy:   NewFixedRetry(3),
		backoffPolicy: NewExponentialBackoff(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Do 执行 fn 直到成功、策略放弃或 ctx 结束，返回最后一次错误。
func (r *Retryer) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if r == nil {
		return ErrNilRetryer
	}
	if fn == nil {
		return ErrNilFunc
	}
	return retry.New(r.options(ctx)...).Do(func() error {
		return fn(ctx)
	})
}

// DoWithResult 带返回值的 Do。
func DoWithResult[T any](ctx context.Context, r *Retryer, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if r == nil {
		return zero, ErrNilRetryer
	}
	if fn == nil {
		return zero, ErrNilFunc
	}
	return retry.NewWithData[T](r.options(ctx)...).Do(func() (T, error) {
		return fn(ctx)
	})
}

func (r *Retryer) options(ctx context.Context) []retry.Option {
	policy, backoff := r.retryPolicy, r.backoffPolicy
	opts := []retry.Option{retry.Context(ctx), retry.LastErrorOnly(true)}

	if n := policy.MaxAttempts(); n > 0 {
		opts = append(opts, retry.Attempts(uint(n)))
	} else {
		opts = append(opts, retry.UntilSucceeded())
	}

	failures := 0
	opts = append(opts,
		retry.RetryIf(func(err error) bool {
			failures++
			return IsRecoverable(err) && policy.ShouldRetry(ctx, failures, err)
		}),
		// retry-go v5 的 n 从 1 开始
		retry.DelayType(func(n uint, _ error, _ retry.DelayContext) time.Duration {
			return backoff.NextDelay(int(min(n, math.MaxInt32)))
		}),
	)
	if r.onRetry != nil {
		// OnRetry 的 n 从 0 开始
		opts = append(opts, retry.OnRetry(func(n uint, err error) {
			r.onRetry(int(min(n, math.MaxInt32))+1, err)
		}))
	}
	return opts
}
