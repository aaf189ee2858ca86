// Package xrun 基于 errgroup 管理多个长期运行的服务。
//
// 任一服务返回错误或收到退出信号时，其余服务的 ctx 被取消；
// 因信号退出时 RunServices 返回 *SignalError，可用 errors.Is(err, ErrSignal) 判断。
//
//	err := xrun.RunServices(ctx, []xrun.Option{xrun.WithName("xtriggerctl")},
//	    xrun.Named("scheduler", sched),
//	    xrun.Named("config-watcher", xrun.ServiceFunc(watcher.Run)),
//	)
package xrun
