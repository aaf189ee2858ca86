package xtrigger

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument 参数非法（空任务 ID、零值时间、无效 cron 表达式），不会访问存储。
	ErrInvalidArgument = errors.New("xtrigger: invalid argument")

	// ErrRaceDetected 本次认领被其他实例抢先提交。
	// 只出现在日志和统计中，不影响轮询循环。
	ErrRaceDetected = errors.New("xtrigger: claim lost to a concurrent poller")

	// ErrStoreUnavailable 包装所有存储层错误。
	// 变更类 API 直接返回；轮询循环中计为一次连接失败。
	ErrStoreUnavailable = errors.New("xtrigger: store unavailable")

	// ErrRetryExhausted 连续连接失败次数达到上限，轮询循环永久停止。
	ErrRetryExhausted = errors.New("xtrigger: connection retries exhausted")

	// ErrListenerFailed 监听器返回错误或 panic，仅记录，任务不会重新入队。
	ErrListenerFailed = errors.New("xtrigger: listener failed")

	// ErrAlreadyStarted 轮询循环仍在运行时再次 Start。
	ErrAlreadyStarted = errors.New("xtrigger: scheduler already started")

	ErrNilStore    = errors.New("xtrigger: nil store")
	ErrNilListener = errors.New("xtrigger: nil listener")
	ErrNilClient   = errors.New("xtrigger: nil client")
)

// IsStoreUnavailable 判断是否为存储连接类错误。
func IsStoreUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// IsInvalidArgument 判断是否为参数错误。
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// storeError 统一包装为 ErrStoreUnavailable，已包装的错误原样返回。
func storeError(op string, err error) error {
	if err == nil || errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}
