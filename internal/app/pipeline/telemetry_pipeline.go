package pipeline

import (
	"context"
	"time"

	"github.com/Eric-Butcher/RealTimeRobot/internal/adapters/observability"
	"github.com/Eric-Butcher/RealTimeRobot/internal/ports"
)

// RunTelemetry drains q into sink in batches until ctx is done, then flushes
// what is left once. A failed batch is logged and discarded; telemetry is
// advisory and is never replayed.
func RunTelemetry(ctx context.Context, q ports.EventQueue, sink ports.EventSink, pol ports.Policy, obs ports.Observability) {
	sleep := pol.IdleSleep
	if sleep <= 0 {
		sleep = 5 * time.Millisecond
	}
	idle := time.NewTimer(sleep)
	defer idle.Stop()

	for {
		if drainOnce(q, sink, pol, obs) {
			continue
		}
		select {
		case <-ctx.Done():
			for drainOnce(q, sink, pol, obs) {
			}
			return
		case <-idle.C:
			idle.Reset(sleep)
		}
	}
}

// drainOnce writes one batch and reports whether anything was dequeued.
func drainOnce(q ports.EventQueue, sink ports.EventSink, pol ports.Policy, obs ports.Observability) bool {
	batch := q.DequeueBatch(pol.MaxBatchSize)
	obs.SetGauge(observability.TelemetryQueueLen, float64(q.Len()))
	if len(batch) == 0 {
		return false
	}

	start := time.Now()
	if err := sink.WriteBatch(batch); err != nil {
		obs.IncCounter(observability.TelemetryFailures, 1)
		obs.LogError("telemetry_sink_write_failed", err,
			ports.Field{Key: "sink", Value: sink.Name()},
			ports.Field{Key: "events", Value: len(batch)},
		)
		return true
	}
	obs.ObserveLatency(observability.SinkLatency, time.Since(start).Seconds())
	obs.IncCounter(observability.TelemetryWritten, float64(len(batch)))
	return true
}
