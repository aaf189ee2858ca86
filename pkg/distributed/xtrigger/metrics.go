package xtrigger

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/omeyang/xtrigger/pkg/distributed/xtrigger"

const instrumentationVersion = "0.1.0"

const (
	metricNameClaimTotal       = "xtrigger.claim.total"
	metricNameClaimDuration    = "xtrigger.claim.duration"
	metricNameTriggerTotal     = "xtrigger.trigger.total"
	metricNameListenerDuration = "xtrigger.listener.duration"
	metricNameLoopStopTotal    = "xtrigger.loop.stop.total"

	attrScheduler = "scheduler"
	attrOutcome   = "outcome"
	attrResult    = "result"
	attrReason    = "reason"

	outcomeError = "error"
)

// durationBuckets 秒。
var durationBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30}

// metrics 调度器指标，nil 接收者的方法均为空操作。
type metrics struct {
	scheduler        attribute.KeyValue
	claimTotal       metric.Int64Counter
	claimDuration    metric.Float64Histogram
	triggerTotal     metric.Int64Counter
	listenerDuration metric.Float64Histogram
	loopStopTotal    metric.Int64Counter
}

// newMetrics mp 为 nil 时返回 nil，不采集。
func newMetrics(mp metric.MeterProvider, name string) (*metrics, error) {
	if mp == nil {
		return nil, nil
	}
	meter := mp.Meter(instrumentationName, metric.WithInstrumentationVersion(instrumentationVersion))
	m := &metrics{scheduler: attribute.String(attrScheduler, name)}

	var err error
	if m.claimTotal, err = meter.Int64Counter(metricNameClaimTotal,
		metric.WithDescription("到期任务认领次数，按结果区分"), metric.WithUnit("{claim}")); err != nil {
		return nil, err
	}
	if m.claimDuration, err = meter.Float64Histogram(metricNameClaimDuration,
		metric.WithDescription("单次认领的存储耗时"), metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...)); err != nil {
		return nil, err
	}
	if m.triggerTotal, err = meter.Int64Counter(metricNameTriggerTotal,
		metric.WithDescription("监听器调用次数"), metric.WithUnit("{trigger}")); err != nil {
		return nil, err
	}
	if m.listenerDuration, err = meter.Float64Histogram(metricNameListenerDuration,
		metric.WithDescription("监听器执行耗时"), metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...)); err != nil {
		return nil, err
	}
	if m.loopStopTotal, err = meter.Int64Counter(metricNameLoopStopTotal,
		metric.WithDescription("轮询循环退出次数"), metric.WithUnit("{stop}")); err != nil {
		return nil, err
	}
	return m, nil
}

// recordClaim err 非 nil 时 outcome 记为 error。
func (m *metrics) recordClaim(ctx context.Context, outcome ClaimOutcome, err error, d time.Duration) {
	if m == nil {
		return
	}
	label := outcome.String()
	if err != nil {
		label = outcomeError
	}
	attrs := metric.WithAttributes(m.scheduler, attribute.String(attrOutcome, label))
	m.claimTotal.Add(ctx, 1, attrs)
	m.claimDuration.Record(ctx, d.Seconds(), attrs)
}

func (m *metrics) recordTrigger(ctx context.Context, err error, d time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	attrs := metric.WithAttributes(m.scheduler, attribute.String(attrResult, result))
	m.triggerTotal.Add(ctx, 1, attrs)
	m.listenerDuration.Record(ctx, d.Seconds(), attrs)
}

func (m *metrics) recordLoopStop(ctx context.Context, status Status) {
	if m == nil {
		return
	}
	m.loopStopTotal.Add(ctx, 1, metric.WithAttributes(m.scheduler, attribute.String(attrReason, status.String())))
}
