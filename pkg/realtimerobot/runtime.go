package realtimerobot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Eric-Butcher/RealTimeRobot/internal/adapters/clock"
	"github.com/Eric-Butcher/RealTimeRobot/internal/adapters/observability"
	"github.com/Eric-Butcher/RealTimeRobot/internal/adapters/queue"
	"github.com/Eric-Butcher/RealTimeRobot/internal/adapters/sink"
	"github.com/Eric-Butcher/RealTimeRobot/internal/app/indicator"
	"github.com/Eric-Butcher/RealTimeRobot/internal/app/pipeline"
	"github.com/Eric-Butcher/RealTimeRobot/internal/ports"
)

// Option customizes the dependencies used by a Receiver or Controller.
// Options that do not apply to a role are ignored by it.
type Option func(*overrides)

type overrides struct {
	radio      ports.Radio
	pwm        ports.PWM
	clock      ports.Clock
	obs        ports.Observability
	sink       ports.EventSink
	peripheral ports.Peripheral
	sampler    ports.InputSampler
	linkLED    ports.Indicator
	powerLED   ports.Indicator

	gatherer  prometheus.Gatherer
	noMetrics bool
}

// WithRadio injects the consumer's wireless stack instead of BlueZ.
func WithRadio(r Radio) Option {
	return func(o *overrides) { o.radio = r }
}

// WithPWM injects the motor output instead of the serial motor board.
func WithPWM(p PWM) Option {
	return func(o *overrides) { o.pwm = p }
}

func WithClock(c Clock) Option {
	return func(o *overrides) { o.clock = c }
}

// WithObservability plugs in a custom metrics and logging backend. The
// metrics endpoint then only serves /healthz.
func WithObservability(obs Observability) Option {
	return func(o *overrides) { o.obs = obs }
}

// WithEventSink sends telemetry events to s instead of TimescaleDB.
func WithEventSink(s EventSink) Option {
	return func(o *overrides) { o.sink = s }
}

// WithPeripheral injects the input source's advertising side.
func WithPeripheral(p Peripheral) Option {
	return func(o *overrides) { o.peripheral = p }
}

// WithSampler injects the input source's physical inputs instead of GPIO.
func WithSampler(s InputSampler) Option {
	return func(o *overrides) { o.sampler = s }
}

// WithIndicators sets the link and power lights. Either may be nil.
func WithIndicators(link, power Indicator) Option {
	return func(o *overrides) {
		o.linkLED = link
		o.powerLED = power
	}
}

// withGatherer serves /metrics from g when observability is injected.
func withGatherer(g prometheus.Gatherer) Option {
	return func(o *overrides) { o.gatherer = g }
}

func withoutMetricsServer() Option {
	return func(o *overrides) { o.noMetrics = true }
}

func collectOverrides(opts []Option) overrides {
	var ov overrides
	for _, opt := range opts {
		if opt != nil {
			opt(&ov)
		}
	}
	return ov
}

// runtime is the plumbing shared by both roles: observability, the
// telemetry queue and sink, and the metrics endpoint.
type runtime struct {
	cfg      *Config
	role     string
	obs      ports.Observability
	gatherer prometheus.Gatherer
	clock    ports.Clock
	powerLED ports.Indicator

	queue      *queue.MemQueue
	events     *pipeline.Publisher
	sink       ports.EventSink
	db         *sql.DB
	noMetrics  bool
	metricsSrv *http.Server
	cancelBg   context.CancelFunc
	bgDone     chan struct{}
}

func newRuntime(cfg *Config, role string, ov overrides) (*runtime, error) {
	rt := &runtime{
		cfg:       cfg,
		role:      role,
		obs:       ov.obs,
		gatherer:  ov.gatherer,
		clock:     ov.clock,
		powerLED:  ov.powerLED,
		noMetrics: ov.noMetrics,
	}
	if rt.obs == nil {
		logger, err := observability.NewLogger(cfg.Logging.Level, cfg.Logging.Format, nil)
		if err != nil {
			return nil, err
		}
		reg := prometheus.NewRegistry()
		rt.obs = observability.NewPromObs(reg, logger.With(zap.String("role", role)))
		rt.gatherer = reg
	}
	if rt.clock == nil {
		rt.clock = clock.System{}
	}

	rt.sink = ov.sink
	if rt.sink == nil && cfg.Telemetry.ConnString != "" {
		db, err := sink.OpenTimescale(cfg.Telemetry.ConnString)
		if err != nil {
			return nil, fmt.Errorf("telemetry: %w", err)
		}
		rt.db = db
		rt.sink = sink.NewTimescaleSink(db, cfg.Telemetry.Table, role)
	}
	// Without a sink events are not collected at all.
	if rt.sink != nil {
		rt.queue = queue.NewMemQueue(cfg.Telemetry.Policy.MaxQueueLen)
		rt.events = pipeline.NewPublisher(rt.queue, rt.clock, rt.obs)
	}
	return rt, nil
}

// start launches the metrics endpoint and the telemetry drain.
func (rt *runtime) start(ctx context.Context) {
	if !rt.noMetrics && rt.cfg.Metrics.Addr != "" {
		rt.startMetrics()
	}
	bgCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	rt.cancelBg = cancel
	rt.bgDone = make(chan struct{})
	go func() {
		defer close(rt.bgDone)
		if rt.sink != nil {
			pipeline.RunTelemetry(bgCtx, rt.queue, rt.sink, rt.cfg.Telemetry.Policy, rt.obs)
		}
	}()
}

func (rt *runtime) startMetrics() {
	mux := http.NewServeMux()
	if rt.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(rt.gatherer, promhttp.HandlerOpts{}))
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	rt.metricsSrv = &http.Server{
		Addr:              rt.cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := rt.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rt.obs.LogError("metrics server exited", err, ports.Field{Key: "addr", Value: rt.cfg.Metrics.Addr})
		}
	}()
}

// fatal is entered when the radio cannot be initialized: it logs, blinks the
// power light until ctx is done and returns err.
func (rt *runtime) fatal(ctx context.Context, err error) error {
	rt.obs.LogCritical("radio init failed", err, ports.Field{Key: "role", Value: rt.role})
	indicator.FatalLoop(ctx, rt.powerLED, rt.clock, rt.cfg.Indicator.FatalPeriod)
	return err
}

// stop flushes telemetry and releases the shared resources.
func (rt *runtime) stop() error {
	var errs []error

	if rt.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rt.metricsSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
		cancel()
	}

	if rt.cancelBg != nil {
		rt.cancelBg()
		<-rt.bgDone
	}

	if rt.db != nil {
		if err := rt.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
