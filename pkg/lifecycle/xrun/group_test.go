package xrun

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/omeyang/xtrigger/pkg/observability/xlog"
)

func quiet() []Option {
	return []Option{WithLogger(xlog.Discard()), WithName("test")}
}

func TestGroup_Empty(t *testing.T) {
	g, _ := NewGroup(context.Background(), quiet()...)
	if err := g.Wait(); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
}

func TestGroup_ServiceErrorCancelsOthers(t *testing.T) {
	want := errors.New("boom")
	var stopped atomic.Bool

	g, ctx := NewGroup(context.Background(), quiet()...)
	g.Go(Named("waiter", ServiceFunc(func(ctx context.Context) error {
		<-ctx.Done()
		stopped.Store(true)
		return ctx.Err()
	})))
	g.Go(ServiceFunc(func(context.Context) error { return want }))

	if err := g.Wait(); !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
	if !stopped.Load() {
		t.Error("waiter was not cancelled")
	}
	if ctx.Err() == nil {
		t.Error("group context not cancelled")
	}
}

func TestGroup_CancelCause(t *testing.T) {
	cause := errors.New("shutdown requested")
	g, _ := NewGroup(context.Background(), quiet()...)
	g.Go(ServiceFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	}))
	g.Cancel(cause)
	if err := g.Wait(); !errors.Is(err, cause) {
		t.Errorf("expected cause %v, got %v", cause, err)
	}
}

func TestGroup_CancelWithoutCause(t *testing.T) {
	g, _ := NewGroup(context.Background(), quiet()...)
	g.Go(ServiceFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	g.Cancel(nil)
	if err := g.Wait(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestGroup_NilService(t *testing.T) {
	g, _ := NewGroup(context.Background(), quiet()...)
	g.Go(nil)
	if err := g.Wait(); !errors.Is(err, ErrNilService) {
		t.Errorf("expected ErrNilService, got %v", err)
	}
	if Named("x", nil) != nil {
		t.Error("Named(nil) should be nil")
	}
}

func TestRunServices_ReturnsWhenServicesFinish(t *testing.T) {
	var ran atomic.Int32
	svc := ServiceFunc(func(context.Context) error {
		ran.Add(1)
		return nil
	})

	done := make(chan error, 1)
	go func() { done <- RunServices(context.Background(), quiet(), svc, Named("b", svc)) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("RunServices did not return")
	}
	if ran.Load() != 2 {
		t.Errorf("expected 2 runs, got %d", ran.Load())
	}
}

func TestRunServices_Signal(t *testing.T) {
	sigs := make(chan os.Signal, 1)
	ctx := context.WithValue(context.Background(), injectedSignalsKey{}, (<-chan os.Signal)(sigs))

	done := make(chan error, 1)
	go func() {
		done <- RunServices(ctx, append(quiet(), WithSignals(syscall.SIGUSR1)),
			ServiceFunc(func(ctx context.Context) error {
				<-ctx.Done()
				return nil
			}))
	}()
	sigs <- syscall.SIGTERM

	select {
	case err := <-done:
		if !errors.Is(err, ErrSignal) {
			t.Fatalf("expected ErrSignal, got %v", err)
		}
		var sigErr *SignalError
		if !errors.As(err, &sigErr) || sigErr.Signal != syscall.SIGTERM {
			t.Errorf("unexpected signal error %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("RunServices did not return after signal")
	}
}

func TestRunServices_ParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- RunServices(ctx, append(quiet(), WithoutSignalHandler()),
			ServiceFunc(func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			}))
	}()
	cancel()
	if err := <-done; err != nil {
		t.Errorf("expected nil on parent cancel, got %v", err)
	}
}

func TestSignalError(t *testing.T) {
	if (&SignalError{}).Error() != "received signal <nil>" {
		t.Error("unexpected nil signal text")
	}
	if len(DefaultSignals()) != 4 {
		t.Error("expected 4 default signals")
	}
}
