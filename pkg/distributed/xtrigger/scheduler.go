package xtrigger

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/omeyang/xtrigger/pkg/observability/xlog"
	"github.com/omeyang/xtrigger/pkg/resilience/xretry"
)

// Scheduler 分布式至多一次任务触发调度器。
//
// 变更类方法在调用方 goroutine 中直接访问存储，不持有进程内锁；
// 轮询循环由 Start 启动的独立 goroutine 执行。
type Scheduler struct {
	store    Store
	listener Listener
	opts     *options
	key      string
	instance string

	log     xlog.Logger
	stats   *Stats
	metrics *metrics
	tracer  trace.Tracer

	// mu 只保护 loop 的切换
	mu   sync.Mutex
	loop *poller
}

// New 创建调度器，配置在创建后不可变。
func New(store Store, listener Listener, opts ...Option) (*Scheduler, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if listener == nil {
		return nil, ErrNilListener
	}
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if o.failureBackoff == nil {
		o.failureBackoff = xretry.NewFixedBackoff(o.pollingDelay)
	}
	if o.tracerProvider == nil {
		o.tracerProvider = otel.GetTracerProvider()
	}
	logger := o.logger
	if logger == nil {
		logger = xlog.Default()
	}

	m, err := newMetrics(o.meterProvider, o.name)
	if err != nil {
		return nil, err
	}

	instance := uuid.NewString()
	return &Scheduler{
		store:    store,
		listener: listener,
		opts:     o,
		key:      o.keyPrefix + o.name,
		instance: instance,
		log: logger.With(
			xlog.Component("xtrigger"),
			slog.String("scheduler", o.name),
			slog.String("instance", instance),
		),
		stats:   newStats(),
		metrics: m,
		tracer:  o.tracerProvider.Tracer(instrumentationName, trace.WithInstrumentationVersion(instrumentationVersion)),
	}, nil
}

// Name 调度器名称。
func (s *Scheduler) Name() string { return s.opts.name }

// Key 存储中的集合 key：前缀 + 名称。
func (s *Scheduler) Key() string { return s.key }

// Stats 运行统计。
func (s *Scheduler) Stats() *Stats { return s.stats }

// ScheduleAt 安排 taskID 在 triggerAt 之后触发，已存在则覆盖触发时间。
// 过去的时间立即到期。
func (s *Scheduler) ScheduleAt(ctx context.Context, taskID string, triggerAt time.Time) error {
	if taskID == "" {
		return invalidArgument("empty task id")
	}
	if triggerAt.IsZero() {
		return invalidArgument("zero trigger time for task %q", taskID)
	}
	if err := s.store.Add(ctx, s.key, taskID, scoreOf(triggerAt)); err != nil {
		return storeError("schedule", err)
	}
	s.log.Debug(ctx, "task scheduled", xlog.TaskID(taskID), slog.Time("trigger_at", triggerAt))
	return nil
}

// RunNow 以当前时间调度，下一轮询周期即到期。
func (s *Scheduler) RunNow(ctx context.Context, taskID string) error {
	return s.ScheduleAt(ctx, taskID, s.opts.clock.Now())
}

// ScheduleCron 按标准 cron 表达式（5 段或 @hourly 等描述符）计算下一次激活时间并调度。
// 只调度一次，周期性任务需要在监听器中再次调用。
func (s *Scheduler) ScheduleCron(ctx context.Context, taskID, spec string) (time.Time, error) {
	if taskID == "" {
		return time.Time{}, invalidArgument("empty task id")
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return time.Time{}, invalidArgument("cron spec %q: %v", spec, err)
	}
	next := sched.Next(s.opts.clock.Now())
	if next.IsZero() {
		return time.Time{}, invalidArgument("cron spec %q never fires", spec)
	}
	if err := s.ScheduleAt(ctx, taskID, next); err != nil {
		return time.Time{}, err
	}
	return next, nil
}

// Unschedule 取消任务，不存在时返回 nil。
func (s *Scheduler) Unschedule(ctx context.Context, taskID string) error {
	if taskID == "" {
		return invalidArgument("empty task id")
	}
	if err := s.store.Remove(ctx, s.key, taskID); err != nil {
		return storeError("unschedule", err)
	}
	s.log.Debug(ctx, "task unscheduled", xlog.TaskID(taskID))
	return nil
}

// UnscheduleAll 清空本调度器名称下的全部任务，同名实例共同受影响。
func (s *Scheduler) UnscheduleAll(ctx context.Context) error {
	if err := s.store.Clear(ctx, s.key); err != nil {
		return storeError("unschedule all", err)
	}
	s.log.Info(ctx, "all tasks unscheduled")
	return nil
}

// Pending 按触发顺序返回待触发任务。
func (s *Scheduler) Pending(ctx context.Context) ([]Entry, error) {
	entries, err := s.store.Entries(ctx, s.key)
	if err != nil {
		return nil, storeError("pending", err)
	}
	return entries, nil
}

// Start 启动轮询循环。
// 循环仍在运行时返回 ErrAlreadyStarted；已停止的调度器可再次启动，重试计数从零开始。
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loop != nil && !s.loop.exited() {
		return ErrAlreadyStarted
	}
	s.stats.resetLoop()
	s.loop = newPoller(s)
	go s.loop.run()
	s.log.Info(context.Background(), "scheduler started",
		slog.Duration("polling_delay", s.opts.pollingDelay),
		slog.Int("max_retries", s.opts.maxRetries),
	)
	return nil
}

// Stop 请求停止并等待循环在下一个迭代边界退出，ctx 结束时提前返回 ctx.Err()。
// 不会中断进行中的存储调用或监听器。未启动或已停止时直接返回 nil。
func (s *Scheduler) Stop(ctx context.Context) error {
	p := s.current()
	if p == nil {
		return nil
	}
	p.requestStop()
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run 以服务形式运行：启动后阻塞到 ctx 结束或循环自行终止。
// ctx 结束时停止循环并返回 nil；重试耗尽时返回 ErrRetryExhausted。
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	p := s.current()
	select {
	case <-ctx.Done():
		p.requestStop()
		<-p.done
	case <-p.done:
	}
	return p.err()
}

// Status 当前轮询循环的状态。
func (s *Scheduler) Status() Status {
	if p := s.current(); p != nil {
		return p.status()
	}
	return StatusIdle
}

// Done 当前循环退出时关闭。从未启动时返回 nil，读取会一直阻塞。
func (s *Scheduler) Done() <-chan struct{} {
	if p := s.current(); p != nil {
		return p.done
	}
	return nil
}

// Err 当前循环因重试耗尽退出时返回包装了最后一次存储错误的 ErrRetryExhausted，否则为 nil。
func (s *Scheduler) Err() error {
	if p := s.current(); p != nil {
		return p.err()
	}
	return nil
}

func (s *Scheduler) current() *poller {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loop
}

// tick 执行一次认领，成功时同步调用监听器。
// ctx 与 Stop 无关，只受 StoreTimeout 约束。
func (s *Scheduler) tick(ctx context.Context) (ClaimOutcome, error) {
	start := s.opts.clock.Now()
	callCtx, cancel := s.storeContext(ctx)
	claim, err := s.store.ClaimDue(callCtx, s.key, scoreOf(start))
	cancel()
	s.metrics.recordClaim(ctx, claim.Outcome, err, s.opts.clock.Since(start))

	if err != nil {
		err = storeError("claim", err)
		s.stats.recordStoreFailure(err)
		return ClaimNone, err
	}
	s.stats.recordClaim(claim.Outcome)

	switch claim.Outcome {
	case ClaimAcquired:
		s.dispatch(ctx, claim.TaskID)
	case ClaimRaced:
		s.log.Warn(ctx, "claim lost to a concurrent poller", xlog.TaskID(claim.TaskID), xlog.Err(ErrRaceDetected))
	}
	return claim.Outcome, nil
}

func (s *Scheduler) dispatch(ctx context.Context, taskID string) {
	ctx, span := s.tracer.Start(ctx, "xtrigger.trigger",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String(attrScheduler, s.opts.name),
			attribute.String(xlog.KeyTaskID, taskID),
		),
	)
	defer span.End()

	start := s.opts.clock.Now()
	err := invokeListener(ctx, s.listener, taskID)
	elapsed := s.opts.clock.Since(start)

	s.stats.recordTrigger(taskID, start, err)
	s.metrics.recordTrigger(ctx, err, elapsed)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "listener failed")
		attrs := []slog.Attr{xlog.TaskID(taskID), xlog.Err(err), xlog.Duration(elapsed)}
		var p *ListenerPanic
		if errors.As(err, &p) {
			attrs = append(attrs, slog.String("stack", string(p.Stack)))
		}
		s.log.Error(ctx, "task listener failed", attrs...)
		return
	}
	s.log.Debug(ctx, "task triggered", xlog.TaskID(taskID), xlog.Duration(elapsed))
}

func (s *Scheduler) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.storeTimeout > 0 {
		return context.WithTimeout(ctx, s.opts.storeTimeout)
	}
	return ctx, func() {}
}
