package xtrigger

import (
	"context"
	"fmt"
	"runtime/debug"
)

// Listener 任务触发回调。
//
// 在轮询 goroutine 中同步执行，执行期间不会认领下一个任务。
// ctx 不随 Stop 取消，监听器需要自行控制耗时。
// 返回错误或 panic 都不会让任务重新入队。
type Listener interface {
	TaskTriggered(ctx context.Context, taskID string) error
}

// ListenerFunc 函数适配为 Listener。
type ListenerFunc func(ctx context.Context, taskID string) error

func (f ListenerFunc) TaskTriggered(ctx context.Context, taskID string) error {
	return f(ctx, taskID)
}

// ListenerPanic 监听器 panic 时的错误，携带调用栈。
type ListenerPanic struct {
	Value any
	Stack []byte
}

func (p *ListenerPanic) Error() string {
	return fmt.Sprintf("panic: %v", p.Value)
}

// invokeListener 调用监听器，错误和 panic 统一包装为 ErrListenerFailed。
func invokeListener(ctx context.Context, l Listener, taskID string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %w", ErrListenerFailed, &ListenerPanic{Value: r, Stack: debug.Stack()})
		}
	}()
	if err := l.TaskTriggered(ctx, taskID); err != nil {
		return fmt.Errorf("%w: %w", ErrListenerFailed, err)
	}
	return nil
}
