package realtimerobot

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Eric-Butcher/RealTimeRobot/internal/adapters/observability"
	"github.com/Eric-Butcher/RealTimeRobot/internal/adapters/pwm"
	"github.com/Eric-Butcher/RealTimeRobot/internal/adapters/simradio"
	"github.com/Eric-Butcher/RealTimeRobot/internal/domain"
)

// SimControllerAddress is the address the simulated controller advertises from.
const SimControllerAddress = "F4:12:FA:6D:71:2D"

// sweepSamples is how many samples each stick position is held for.
const sweepSamples = 10

// RunSimulation runs both roles in one process over an in-memory radio until
// ctx is done. The simulated thumb stick sweeps through the forward, neutral
// and reverse bands. Motor writes go to an in-memory recorder unless WithPWM
// is given; the controller's central allow-list is ignored.
func RunSimulation(ctx context.Context, cfg *Config, opts ...Option) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	ov := collectOverrides(opts)

	shared := append([]Option(nil), opts...)
	if ov.obs == nil {
		logger, err := observability.NewLogger(cfg.Logging.Level, cfg.Logging.Format, nil)
		if err != nil {
			return err
		}
		reg := prometheus.NewRegistry()
		shared = append(shared,
			WithObservability(observability.NewPromObs(reg, logger.With(zap.String("role", "sim")))),
			withGatherer(reg))
	}

	radio := simradio.NewRadio()
	dev := radio.AddDevice(domain.Advertisement{
		Address:   SimControllerAddress,
		LocalName: cfg.Controller.Peripheral.LocalName,
		Services:  []string{cfg.Controller.Peripheral.ServiceUUID},
	}, domain.DefaultChannels())

	receiverOpts := append(append([]Option(nil), shared...), WithRadio(radio))
	if ov.pwm == nil {
		rec := pwm.NewRecorder()
		rec.Limit = 1024
		receiverOpts = append(receiverOpts, WithPWM(rec))
	}
	receiver, err := NewReceiver(cfg, receiverOpts...)
	if err != nil {
		return err
	}

	ctrlCfg := *cfg
	ctrlCfg.Controller.CentralAddress = ""
	controllerOpts := append(append([]Option(nil), shared...),
		WithPeripheral(dev.Peripheral()),
		WithSampler(&sweepSampler{}),
		withoutMetricsServer())
	controller, err := NewController(&ctrlCfg, controllerOpts...)
	if err != nil {
		_ = receiver.close()
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return controller.Run(gctx) })
	g.Go(func() error { return receiver.Run(gctx) })
	return g.Wait()
}

// sweepSampler holds the stick forward, centered, back and centered again.
type sweepSampler struct {
	mu sync.Mutex
	n  int
}

func (s *sweepSampler) Sample() (domain.ControllerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	positions := [...]int32{500, domain.AxisMiddle, 3200, domain.AxisMiddle}
	state := domain.NeutralState()
	state.ThumbStickY = positions[(s.n/sweepSamples)%len(positions)]
	s.n++
	return state, nil
}

func (s *sweepSampler) Close() error { return nil }
