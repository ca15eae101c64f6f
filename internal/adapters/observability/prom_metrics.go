package observability

import (
	"github.com/Eric-Butcher/RealTimeRobot/internal/ports"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Metric names shared by both roles.
const (
	LinkTransitions   = "realtimerobot_link_transitions_total"
	LinkState         = "realtimerobot_link_state"
	ConnectFailures   = "realtimerobot_connect_failures_total"
	ResolveFailures   = "realtimerobot_resolve_failures_total"
	LinkDrops         = "realtimerobot_link_drops_total"
	ChannelUpdates    = "realtimerobot_channel_updates_total"
	DecodeErrors      = "realtimerobot_decode_errors_total"
	PollCycles        = "realtimerobot_poll_cycles_total"
	StaleStops        = "realtimerobot_stale_stops_total"
	Motor1Drive       = "realtimerobot_motor1_drive"
	Motor2Drive       = "realtimerobot_motor2_drive"
	SamplesPublished  = "realtimerobot_samples_published_total"
	CentralsRejected  = "realtimerobot_centrals_rejected_total"
	TelemetryQueueLen = "realtimerobot_telemetry_queue_length"
	TelemetryDropped  = "realtimerobot_telemetry_dropped_total"
	TelemetryWritten  = "realtimerobot_telemetry_written_total"
	TelemetryFailures = "realtimerobot_telemetry_sink_failures_total"
	PollLatency       = "realtimerobot_poll_latency_seconds"
	SinkLatency       = "realtimerobot_telemetry_sink_latency_seconds"
)

type PromObs struct {
	log      *zap.Logger
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

var _ ports.Observability = (*PromObs)(nil)

// NewPromObs registers every metric on reg. A nil logger discards log output.
func NewPromObs(reg prometheus.Registerer, logger *zap.Logger) *PromObs {
	if logger == nil {
		logger = zap.NewNop()
	}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
	}

	p := &PromObs{
		log: logger,
		counters: map[string]prometheus.Counter{
			LinkTransitions:   counter(LinkTransitions, "Link state machine transitions."),
			ConnectFailures:   counter(ConnectFailures, "Failed connection attempts."),
			ResolveFailures:   counter(ResolveFailures, "Channel resolution or subscription failures."),
			LinkDrops:         counter(LinkDrops, "Links lost while operating."),
			ChannelUpdates:    counter(ChannelUpdates, "Channel updates merged into the mirror."),
			DecodeErrors:      counter(DecodeErrors, "Channel payloads that failed to decode."),
			PollCycles:        counter(PollCycles, "Admitted poll cycles."),
			StaleStops:        counter(StaleStops, "Cycles forced to stop because input went stale."),
			SamplesPublished:  counter(SamplesPublished, "Input samples published by the controller."),
			CentralsRejected:  counter(CentralsRejected, "Centrals disconnected by the allow-list."),
			TelemetryDropped:  counter(TelemetryDropped, "Telemetry events dropped because the queue was full."),
			TelemetryWritten:  counter(TelemetryWritten, "Telemetry events written to the sink."),
			TelemetryFailures: counter(TelemetryFailures, "Telemetry batches the sink rejected."),
		},
		gauges: map[string]prometheus.Gauge{
			LinkState:         gauge(LinkState, "Current link state (0=SCANNING .. 4=DISCONNECTING)."),
			Motor1Drive:       gauge(Motor1Drive, "Signed drive last written to motor 1."),
			Motor2Drive:       gauge(Motor2Drive, "Signed drive last written to motor 2."),
			TelemetryQueueLen: gauge(TelemetryQueueLen, "Events buffered in the telemetry queue."),
		},
	}
	pollLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    PollLatency,
		Help:    "Time spent refreshing the mirror and writing the command.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
	})
	sinkLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    SinkLatency,
		Help:    "Latency of a telemetry batch write.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})
	p.histos = map[string]prometheus.Observer{
		PollLatency: pollLatency,
		SinkLatency: sinkLatency,
	}

	for _, c := range p.counters {
		reg.MustRegister(c)
	}
	for _, g := range p.gauges {
		reg.MustRegister(g)
	}
	reg.MustRegister(pollLatency, sinkLatency)
	return p
}

// Logger exposes the underlying zap logger for components that log directly.
func (p *PromObs) Logger() *zap.Logger { return p.log }

func (p *PromObs) LogDebug(msg string, fields ...ports.Field) {
	p.log.Debug(msg, zapFields(fields)...)
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.log.Info(msg, zapFields(fields)...)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	p.log.Error(msg, append(zapFields(fields), zap.Error(err))...)
}

// LogCritical logs at error level with a critical marker; it never exits the process.
func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	p.log.Error(msg, append(zapFields(fields), zap.Error(err), zap.Bool("critical", true))...)
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func zapFields(fields []ports.Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields)+2)
	for _, f := range fields {
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}
