// Package xretry 提供重试策略和退避策略，底层基于 [avast/retry-go/v5]。
//
//   - RetryPolicy 决定失败后是否继续尝试
//   - BackoffPolicy 决定下一次尝试前等待多久
//
// BackoffPolicy 也可以脱离 Retryer 单独使用，例如 xtrigger 轮询循环
// 用它计算连接失败后的休眠时间，而重试预算由循环自己维护。
//
//	r := xretry.NewRetryer(
//	    xretry.WithRetryPolicy(xretry.NewFixedRetry(5)),
//	    xretry.WithBackoffPolicy(xretry.NewExponentialBackoff()),
//	)
//	err := r.Do(ctx, func(ctx context.Context) error {
//	    return client.Ping(ctx).Err()
//	})
//
// [avast/retry-go/v5]: https://github.com/avast/retry-go
package xretry
