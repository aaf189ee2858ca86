package xrun

import (
	"errors"
	"fmt"
	"os"
)

var (
	// ErrSignal 因系统信号退出，配合 errors.Is 使用。
	ErrSignal = errors.New("received signal")

	ErrNilService = errors.New("xrun: nil service")
)

// SignalError 携带触发退出的信号。
type SignalError struct {
	Signal os.Signal
}

func (e *SignalError) Error() string {
	if e.Signal == nil {
		return "received signal <nil>"
	}
	return fmt.Sprintf("received signal %s", e.Signal)
}

func (e *SignalError) Unwrap() error { return ErrSignal }
