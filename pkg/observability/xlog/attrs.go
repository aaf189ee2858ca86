package xlog

import (
	"log/slog"
	"time"
)

// 常用属性 Key
const (
	// KeyError 错误字段
	KeyError = "error"
	// KeyDuration 耗时字段
	KeyDuration = "duration"
	// KeyCount 计数字段
	KeyCount = "count"
	// KeyComponent 组件名称字段
	KeyComponent = "component"
	// KeyTaskID 任务标识字段
	KeyTaskID = "task_id"
)

// Err 创建错误属性。err 为 nil 时返回空属性（slog 会忽略）。
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Duration 创建耗时属性，输出人类可读格式（如 "1.5s"）
func Duration(d time.Duration) slog.Attr {
	return slog.String(KeyDuration, d.String())
}

// Count 创建计数属性
func Count(n int64) slog.Attr {
	return slog.Int64(KeyCount, n)
}

// Component 创建组件名称属性
func Component(name string) slog.Attr {
	return slog.String(KeyComponent, name)
}

// TaskID 创建任务标识属性
func TaskID(id string) slog.Attr {
	return slog.String(KeyTaskID, id)
}
