package xtrigger

import (
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/omeyang/xtrigger/pkg/observability/xlog"
	"github.com/omeyang/xtrigger/pkg/resilience/xretry"
)

// 默认配置。
const (
	DefaultName                          = "scheduler"
	DefaultKeyPrefix                     = "redis-scheduler."
	DefaultPollingDelay                  = 10 * time.Second
	DefaultMaxRetriesOnConnectionFailure = 1
)

// Option 调度器配置选项，非法值被忽略并保留默认值。
type Option func(*options)

type options struct {
	name           string
	keyPrefix      string
	pollingDelay   time.Duration
	maxRetries     int
	clock          Clock
	logger         xlog.Logger
	failureBackoff xretry.BackoffPolicy
	storeTimeout   time.Duration
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
}

func defaultOptions() *options {
	return &options{
		name:         DefaultName,
		keyPrefix:    DefaultKeyPrefix,
		pollingDelay: DefaultPollingDelay,
		maxRetries:   DefaultMaxRetriesOnConnectionFailure,
		clock:        clockwork.NewRealClock(),
	}
}

// WithName 调度器名称，决定存储中的集合：同名实例共享任务，不同名互相隔离。
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithKeyPrefix 集合 key 的前缀，默认 "redis-scheduler."。
func WithKeyPrefix(prefix string) Option {
	return func(o *options) {
		o.keyPrefix = prefix
	}
}

// WithPollingDelay 无到期任务或认领竞争失败后的休眠时间，默认 10s。
func WithPollingDelay(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.pollingDelay = d
		}
	}
}

// WithMaxRetriesOnConnectionFailure 连续连接失败多少次后停止轮询，默认 1，即首次失败即停止。
func WithMaxRetriesOnConnectionFailure(n int) Option {
	return func(o *options) {
		if n >= 1 {
			o.maxRetries = n
		}
	}
}

func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithLogger 默认使用 xlog.Default()。
func WithLogger(l xlog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithFailureBackoff 连接失败后的休眠策略，attempt 为当前连续失败次数。
// 未设置时固定休眠 PollingDelay。
func WithFailureBackoff(b xretry.BackoffPolicy) Option {
	return func(o *options) {
		if b != nil {
			o.failureBackoff = b
		}
	}
}

// WithStoreTimeout 轮询循环中单次存储调用的超时，默认不限。
// 超时计为一次连接失败。
func WithStoreTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.storeTimeout = d
		}
	}
}

// WithMeterProvider 启用 OpenTelemetry 指标，未设置时不采集。
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		o.meterProvider = mp
	}
}

// WithTracerProvider 每次触发生成一个 span，默认使用 otel 全局 TracerProvider。
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		if tp != nil {
			o.tracerProvider = tp
		}
	}
}
