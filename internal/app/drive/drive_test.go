package drive

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Eric-Butcher/RealTimeRobot/internal/adapters/clock"
	"github.com/Eric-Butcher/RealTimeRobot/internal/adapters/pwm"
	"github.com/Eric-Butcher/RealTimeRobot/internal/domain"
)

func TestSplitAtMostOnePinNonZero(t *testing.T) {
	for v := -300; v <= 300; v++ {
		d := Split(v, 70, 255)
		if d.Forward != 0 && d.Reverse != 0 {
			t.Fatalf("drive %d produced two non-zero pins: %+v", v, d)
		}
		switch {
		case v == 0:
			if d != (domain.PinDuty{}) {
				t.Fatalf("zero drive must zero both pins, got %+v", d)
			}
		case v > 0:
			if d.Forward < 70 || d.Reverse != 0 {
				t.Fatalf("forward drive %d gave %+v", v, d)
			}
		case v < 0:
			if d.Reverse < 70 || d.Forward != 0 {
				t.Fatalf("reverse drive %d gave %+v", v, d)
			}
		}
	}
}

func TestSplitFloorAndCap(t *testing.T) {
	if d := Split(1, 70, 255); d.Forward != 70 {
		t.Fatalf("expected floor 70, got %+v", d)
	}
	if d := Split(-400, 70, 255); d.Reverse != 255 {
		t.Fatalf("expected cap 255, got %+v", d)
	}
	if d := Split(128, 70, 255); d.Forward != 128 {
		t.Fatalf("expected pass-through 128, got %+v", d)
	}
}

func newStage(t *testing.T) (*Stage, *pwm.Recorder) {
	t.Helper()
	rec := pwm.NewRecorder()
	s, err := NewStage(Config{}, rec)
	if err != nil {
		t.Fatalf("new stage: %v", err)
	}
	return s, rec
}

func TestApplyWritesZeroPinFirst(t *testing.T) {
	s, rec := newStage(t)

	if err := s.Apply(domain.ActuatorCommand{Motor1: 255, Motor2: -255}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	want := []pwm.Write{
		{Pin: 6, Duty: 0}, {Pin: 7, Duty: 255},
		{Pin: 4, Duty: 0}, {Pin: 5, Duty: 255},
	}
	got := rec.Writes()
	if len(got) != len(want) {
		t.Fatalf("expected %d writes, got %+v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("write %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestReversalNeverDrivesBothPins(t *testing.T) {
	s, rec := newStage(t)
	cmds := []domain.ActuatorCommand{{Motor1: 255, Motor2: 255}, {Motor1: -255, Motor2: -255}, {}, {Motor1: 100, Motor2: -1}}
	for _, cmd := range cmds {
		if err := s.Apply(cmd); err != nil {
			t.Fatalf("apply: %v", err)
		}
		if rec.Duty(7) != 0 && rec.Duty(6) != 0 {
			t.Fatalf("motor1 pins both live after %+v", cmd)
		}
		if rec.Duty(4) != 0 && rec.Duty(5) != 0 {
			t.Fatalf("motor2 pins both live after %+v", cmd)
		}
	}
}

func TestStopZeroesAllPinsEvenOnError(t *testing.T) {
	s, rec := newStage(t)
	_ = s.Apply(domain.ActuatorCommand{Motor1: 255, Motor2: 255})
	rec.Reset()
	rec.FailPin = 6
	rec.Err = errors.New("bus fault")

	if err := s.Stop(); err == nil {
		t.Fatalf("expected the pin failure to surface")
	}
	if len(rec.Writes()) != 4 {
		t.Fatalf("every pin must be attempted, got %+v", rec.Writes())
	}
	for _, pin := range []int{7, 4, 5} {
		if rec.Duty(pin) != 0 {
			t.Fatalf("pin %d not zeroed", pin)
		}
	}
}

func TestSelfTestRampsEachPin(t *testing.T) {
	s, rec := newStage(t)
	clk := clock.NewFake(time.Unix(0, 0))

	if err := s.SelfTest(context.Background(), clk); err != nil {
		t.Fatalf("self test: %v", err)
	}
	for _, pin := range []int{7, 6, 4, 5} {
		if rec.Duty(pin) != 0 {
			t.Fatalf("pin %d should end at zero", pin)
		}
	}
	peak := 0
	for _, w := range rec.Writes() {
		if w.Pin == 7 && int(w.Duty) > peak {
			peak = int(w.Duty)
		}
	}
	if peak != 255 {
		t.Fatalf("expected ramp to reach 255, got %d", peak)
	}
	steps := 4 * 2 * (255 - 70 + 1)
	if elapsed := clk.Now().Sub(time.Unix(0, 0)); elapsed != time.Duration(steps)*75*time.Millisecond {
		t.Fatalf("unexpected self test duration %s", elapsed)
	}
}

func TestSelfTestCancelledStops(t *testing.T) {
	s, rec := newStage(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.SelfTest(ctx, clock.NewFake(time.Unix(0, 0))); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	for _, pin := range []int{7, 6, 4, 5} {
		if rec.Duty(pin) != 0 {
			t.Fatalf("pin %d should be zero after cancel", pin)
		}
	}
}

func TestConfigRejectsSharedPins(t *testing.T) {
	cfg := Config{Motor1: MotorPins{Forward: 3, Reverse: 3}}
	if _, err := NewStage(cfg, pwm.NewRecorder()); err == nil {
		t.Fatalf("expected shared pin error")
	}
}

func TestZeroFloorPassesSmallDrives(t *testing.T) {
	floor := 0
	rec := pwm.NewRecorder()
	s, err := NewStage(Config{DutyFloor: &floor}, rec)
	if err != nil {
		t.Fatalf("new stage: %v", err)
	}
	if err := s.Apply(domain.ActuatorCommand{Motor1: 5, Motor2: -5}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if rec.Duty(7) != 5 || rec.Duty(5) != 5 {
		t.Fatalf("expected unfloored duty 5, got 7=%d 5=%d", rec.Duty(7), rec.Duty(5))
	}
}
