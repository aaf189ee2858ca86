package xretry

import (
	"errors"

	retry "github.com/avast/retry-go/v5"
)

var (
	ErrNilRetryer = errors.New("xretry: nil retryer")
	ErrNilFunc    = errors.New("xretry: nil function")
)

// RetryableError 自带可重试判定的错误。
type RetryableError interface {
	error
	Retryable() bool
}

// PermanentError 不应重试的错误。
type PermanentError struct {
	Err error
}

func NewPermanentError(err error) *PermanentError { return &PermanentError{Err: err} }

func (e *PermanentError) Error() string {
	if e.Err == nil {
		return "permanent error"
	}
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error { return e.Err }

func (e *PermanentError) Retryable() bool { return false }

// IsRetryable nil 不需要重试；实现 RetryableError 的按其判定；其余默认可重试。
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var re RetryableError
	if errors.As(err, &re) {
		return re.Retryable()
	}
	return true
}

// Unrecoverable 标记错误立即终止重试，不经过 RetryPolicy。
func Unrecoverable(err error) error { return retry.Unrecoverable(err) }

// IsRecoverable 是否未被 Unrecoverable 标记。
func IsRecoverable(err error) bool { return retry.IsRecoverable(err) }
