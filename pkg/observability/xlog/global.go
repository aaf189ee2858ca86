package xlog

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

var (
	globalLogger atomic.Pointer[LoggerWithLevel]
	globalOnce   sync.Once
)

// Default 返回全局默认 Logger
//
// 首次调用时创建 stderr、Info 级别、text 格式的 Logger。并发安全。
func Default() LoggerWithLevel {
	if l := globalLogger.Load(); l != nil {
		return *l
	}
	globalOnce.Do(func() {
		if globalLogger.Load() != nil {
			return
		}
		// 默认参数不会失败
		logger, _, _ := New().Build()
		globalLogger.CompareAndSwap(nil, &logger)
	})
	return *globalLogger.Load()
}

// SetDefault 替换全局默认 Logger，nil 被忽略
func SetDefault(logger LoggerWithLevel) {
	if logger == nil {
		return
	}
	globalLogger.Store(&logger)
}

// Discard 返回丢弃所有输出的 Logger，用于测试和显式关闭日志。
func Discard() LoggerWithLevel {
	levelVar := new(slog.LevelVar)
	return &xlogger{
		handler:  slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: levelVar}),
		levelVar: levelVar,
	}
}
