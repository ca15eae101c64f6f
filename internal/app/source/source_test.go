package source

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Eric-Butcher/RealTimeRobot/internal/adapters/clock"
	"github.com/Eric-Butcher/RealTimeRobot/internal/adapters/observability"
	"github.com/Eric-Butcher/RealTimeRobot/internal/adapters/simradio"
	"github.com/Eric-Butcher/RealTimeRobot/internal/domain"
	"github.com/Eric-Butcher/RealTimeRobot/internal/ports"
)

type fixedSampler struct {
	state domain.ControllerState
	calls atomic.Int64
}

func (f *fixedSampler) Sample() (domain.ControllerState, error) {
	f.calls.Add(1)
	return f.state, nil
}

func (f *fixedSampler) Close() error { return nil }

type led struct {
	mu sync.Mutex
	on bool
}

func (l *led) Set(on bool) error {
	l.mu.Lock()
	l.on = on
	l.mu.Unlock()
	return nil
}

func (l *led) get() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.on
}

type counterObs struct {
	observability.Nop
	mu       sync.Mutex
	counters map[string]float64
}

func (c *counterObs) IncCounter(name string, v float64) {
	c.mu.Lock()
	c.counters[name] += v
	c.mu.Unlock()
}

func (c *counterObs) get(name string) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters[name]
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type rig struct {
	radio   *simradio.Radio
	dev     *simradio.Device
	sampler *fixedSampler
	led     *led
	obs     *counterObs
	cancel  context.CancelFunc
	done    chan error
}

func startSource(t *testing.T, opts Options) *rig {
	t.Helper()
	chans := domain.DefaultChannels()
	radio := simradio.NewRadio()
	dev := radio.AddDevice(domain.Advertisement{
		Address:   "F4:12:FA:6D:71:2D",
		LocalName: domain.ControllerLocalName,
		Services:  []string{domain.ControllerServiceUUID},
	}, chans)

	state := domain.NeutralState()
	state.ThumbStickY = 3200
	state.YellowButton = domain.ButtonPressed
	r := &rig{
		radio:   radio,
		dev:     dev,
		sampler: &fixedSampler{state: state},
		led:     &led{},
		obs:     &counterObs{counters: map[string]float64{}},
		done:    make(chan error, 1),
	}

	src, err := New(Deps{
		Peripheral: dev.Peripheral(),
		Sampler:    r.sampler,
		Channels:   chans,
		Clock:      clock.NewFake(time.Unix(0, 0)),
		Obs:        r.obs,
		LinkLED:    r.led,
	}, opts)
	if err != nil {
		t.Fatalf("new source: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	go func() { r.done <- src.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-r.done:
		case <-time.After(2 * time.Second):
			t.Errorf("source did not stop")
		}
	})
	return r
}

func subscribeAll(t *testing.T, peer ports.Peer) {
	t.Helper()
	for _, ch := range domain.DefaultChannels() {
		if err := peer.Channel(ch.UUID).Subscribe(); err != nil {
			t.Fatalf("subscribe %s: %v", ch.ID, err)
		}
	}
}

func TestSourceStreamsSamplesToCentral(t *testing.T) {
	r := startSource(t, Options{})

	peer, err := r.radio.Connect(context.Background(), domain.Advertisement{Address: r.dev.Address()})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	subscribeAll(t, peer)
	waitFor(t, "link led", r.led.get)

	yUUID := domain.DefaultChannels()[1].UUID
	yellowUUID := domain.DefaultChannels()[3].UUID
	waitFor(t, "y axis notification", func() bool { return peer.Channel(yUUID).Updated() })
	waitFor(t, "yellow notification", func() bool { return peer.Channel(yellowUUID).Updated() })

	y, err := domain.DefaultChannels()[1].Decode(peer.Channel(yUUID).Value())
	if err != nil || y != 3200 {
		t.Fatalf("expected y=3200, got %d err=%v", y, err)
	}
	if v := peer.Channel(yellowUUID).Value(); len(v) != 1 || v[0] != domain.ButtonPressed {
		t.Fatalf("expected yellow pressed, got %v", v)
	}

	r.dev.DropLink()
	waitFor(t, "link led off", func() bool { return !r.led.get() })
	if r.obs.get(observability.SamplesPublished) == 0 {
		t.Fatalf("expected published samples to be counted")
	}
}

func TestSourceReadvertisesAfterDisconnect(t *testing.T) {
	r := startSource(t, Options{})

	adv := domain.Advertisement{Address: r.dev.Address()}
	if _, err := r.radio.Connect(context.Background(), adv); err != nil {
		t.Fatalf("connect: %v", err)
	}
	waitFor(t, "first session", r.led.get)
	r.dev.DropLink()
	waitFor(t, "first session end", func() bool { return !r.led.get() })

	if err := r.radio.StartScan(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	waitFor(t, "re-advertisement", func() bool {
		got, ok := r.radio.Available()
		return ok && got.Address == adv.Address
	})
	if _, err := r.radio.Connect(context.Background(), adv); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	waitFor(t, "second session", r.led.get)
}

func TestSourceRejectsUnlistedCentral(t *testing.T) {
	r := startSource(t, Options{CentralAddress: "f4:12:fa:6d:71:2d"})

	if _, err := r.radio.Connect(context.Background(), domain.Advertisement{Address: r.dev.Address()}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	waitFor(t, "rejection", func() bool { return r.obs.get(observability.CentralsRejected) == 1 })
	if r.dev.Connected() {
		t.Fatalf("rejected central should be disconnected")
	}
	if r.led.get() {
		t.Fatalf("link led must stay off for a rejected central")
	}
	if r.sampler.calls.Load() != 0 {
		t.Fatalf("no samples may be taken for a rejected central")
	}
}
