package pipeline

import (
	"sync/atomic"

	"github.com/Eric-Butcher/RealTimeRobot/internal/adapters/observability"
	"github.com/Eric-Butcher/RealTimeRobot/internal/domain"
	"github.com/Eric-Butcher/RealTimeRobot/internal/ports"
)

// Publisher stamps and enqueues telemetry events. Publish never blocks; when
// the queue is full the event is dropped and counted. A nil Publisher
// discards everything.
type Publisher struct {
	q   ports.EventQueue
	clk ports.Clock
	obs ports.Observability
	seq atomic.Uint64
}

func NewPublisher(q ports.EventQueue, clk ports.Clock, obs ports.Observability) *Publisher {
	return &Publisher{q: q, clk: clk, obs: obs}
}

func (p *Publisher) Publish(e domain.Event) {
	if p == nil {
		return
	}
	e.Seq = p.seq.Add(1)
	if e.Time.IsZero() {
		e.Time = p.clk.Now()
	}
	if !p.q.Enqueue(&e) {
		p.obs.IncCounter(observability.TelemetryDropped, 1)
		return
	}
	p.obs.SetGauge(observability.TelemetryQueueLen, float64(p.q.Len()))
}
