package xrun

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/omeyang/xtrigger/pkg/observability/xlog"
)

// Service 阻塞运行直到 ctx 取消或出错。
type Service interface {
	Run(ctx context.Context) error
}

// ServiceFunc 函数适配为 Service。
type ServiceFunc func(ctx context.Context) error

func (f ServiceFunc) Run(ctx context.Context) error { return f(ctx) }

type namedService struct {
	name string
	Service
}

// Named 给服务命名，Group 用该名称记录启停日志。
func Named(name string, svc Service) Service {
	if svc == nil {
		return nil
	}
	return namedService{name: name, Service: svc}
}

// Group 一组共享取消信号的服务。
// Go 可并发调用，Wait 只应调用一次。
type Group struct {
	eg       *errgroup.Group
	ctx      context.Context
	causeCtx context.Context
	cancel   context.CancelCauseFunc
	opts     *groupOptions
}

// NewGroup 返回的 ctx 在任一服务出错或 Cancel 时取消。
func NewGroup(ctx context.Context, opts ...Option) (*Group, context.Context) {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if o.logger == nil {
		o.logger = xlog.Default()
	}
	causeCtx, cancel := context.WithCancelCause(ctx)
	eg, egCtx := errgroup.WithContext(causeCtx)
	return &Group{eg: eg, ctx: egCtx, causeCtx: causeCtx, cancel: cancel, opts: o}, egCtx
}

// Go 启动服务，nil 服务以 ErrNilService 结束整个 Group。
func (g *Group) Go(svc Service) {
	g.goService(svc, nil)
}

func (g *Group) goService(svc Service, done func()) {
	g.eg.Go(func() error {
		if done != nil {
			defer done()
		}
		if svc == nil {
			return ErrNilService
		}
		name := "anonymous"
		if ns, ok := svc.(namedService); ok {
			name = ns.name
		}
		log := g.opts.logger.With(xlog.Component(g.opts.name), slog.String("service", name))
		log.Debug(g.ctx, "service starting")
		err := svc.Run(g.ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Warn(g.ctx, "service exited with error", xlog.Err(err))
		} else {
			log.Debug(g.ctx, "service stopped")
		}
		return err
	})
}

// Cancel 以 cause 取消所有服务，Wait 将返回 cause。
func (g *Group) Cancel(cause error) {
	g.cancel(cause)
}

// Wait 等待全部服务结束。
// Group 被 Cancel 时返回显式 cause，普通取消返回 nil；
// 服务自身返回的 context.Canceled 原样返回。
func (g *Group) Wait() error {
	defer g.cancel(nil)
	err := g.eg.Wait()

	if g.causeCtx.Err() != nil && (err == nil || errors.Is(err, context.Canceled)) {
		if cause := context.Cause(g.causeCtx); cause != nil && !errors.Is(cause, context.Canceled) {
			return cause
		}
		return nil
	}
	return err
}

// RunServices 运行服务并监听退出信号，直到全部服务结束。
// 所有服务正常返回后信号监听随之退出。
func RunServices(ctx context.Context, opts []Option, services ...Service) error {
	g, _ := NewGroup(ctx, opts...)
	if !g.opts.noSignalHandler {
		g.Go(Named("signal", ServiceFunc(g.waitSignal)))
	}
	var pending sync.WaitGroup
	pending.Add(len(services))
	for _, svc := range services {
		g.goService(svc, pending.Done)
	}
	go func() {
		pending.Wait()
		g.cancel(nil)
	}()
	return g.Wait()
}

func (g *Group) waitSignal(ctx context.Context) error {
	signals := g.opts.signals
	if len(signals) == 0 {
		signals = DefaultSignals()
	}
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, signals...)
	defer signal.Stop(ch)

	var sig os.Signal
	select {
	case sig = <-ch:
	case sig = <-injectedSignals(ctx):
	case <-ctx.Done():
		return nil
	}
	g.opts.logger.Info(ctx, "received signal", xlog.Component(g.opts.name), slog.String("signal", sig.String()))
	g.cancel(&SignalError{Signal: sig})
	return nil
}

type injectedSignalsKey struct{}

// injectedSignals 测试通过 ctx 注入信号，避免向进程发送真实信号。
func injectedSignals(ctx context.Context) <-chan os.Signal {
	c, _ := ctx.Value(injectedSignalsKey{}).(<-chan os.Signal)
	return c
}
