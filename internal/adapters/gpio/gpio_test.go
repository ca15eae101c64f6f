package gpio

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Eric-Butcher/RealTimeRobot/internal/domain"
)

type fakeLines struct {
	vals   []int
	err    error
	closed bool
}

func (f *fakeLines) Values(out []int) error {
	if f.err != nil {
		return f.err
	}
	copy(out, f.vals)
	return nil
}

func (f *fakeLines) Close() error {
	f.closed = true
	return nil
}

type fakeLine struct {
	values []int
	closed bool
}

func (f *fakeLine) SetValue(v int) error {
	f.values = append(f.values, v)
	return nil
}

func (f *fakeLine) Close() error {
	f.closed = true
	return nil
}

func writeAxis(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestSampleMapsButtonsAndAxes(t *testing.T) {
	dir := t.TempDir()
	b := &Board{
		buttons: &fakeLines{vals: []int{1, 0, 1, 1, 0}},
		axisX:   writeAxis(t, dir, "in_voltage0_raw", "123\n"),
		axisY:   writeAxis(t, dir, "in_voltage1_raw", "9000\n"),
	}

	state, err := b.Sample()
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if state.ThumbStickX != 123 {
		t.Fatalf("expected x=123, got %d", state.ThumbStickX)
	}
	if state.ThumbStickY != domain.AxisMax {
		t.Fatalf("expected y clamped to %d, got %d", domain.AxisMax, state.ThumbStickY)
	}
	if state.ThumbStickButton != domain.ButtonReleased || state.YellowButton != domain.ButtonPressed {
		t.Fatalf("unexpected buttons: %+v", state)
	}
	if state.BlueButton != domain.ButtonPressed || state.RedButton != domain.ButtonReleased {
		t.Fatalf("unexpected buttons: %+v", state)
	}
}

func TestSampleWithoutAxesStaysCentered(t *testing.T) {
	b := &Board{buttons: &fakeLines{vals: []int{1, 1, 1, 1, 1}}}
	state, err := b.Sample()
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if state != domain.NeutralState() {
		t.Fatalf("expected neutral state, got %+v", state)
	}
}

func TestSampleBadAxisKeepsMiddle(t *testing.T) {
	dir := t.TempDir()
	b := &Board{
		buttons: &fakeLines{vals: []int{1, 1, 1, 1, 1}},
		axisX:   writeAxis(t, dir, "x", "garbage"),
		axisY:   filepath.Join(dir, "missing"),
	}
	state, err := b.Sample()
	if err == nil {
		t.Fatalf("expected axis errors")
	}
	if state.ThumbStickX != domain.AxisMiddle || state.ThumbStickY != domain.AxisMiddle {
		t.Fatalf("failed axes must read as middle, got %+v", state)
	}
}

func TestSampleButtonError(t *testing.T) {
	boom := errors.New("line busy")
	b := &Board{buttons: &fakeLines{err: boom}}
	if _, err := b.Sample(); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped line error, got %v", err)
	}
}

func TestLEDSetAndClose(t *testing.T) {
	line := &fakeLine{}
	led := &LED{line: line}
	_ = led.Set(true)
	_ = led.Set(false)
	_ = led.Set(true)
	if err := led.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	want := []int{1, 0, 1, 0}
	if len(line.values) != len(want) {
		t.Fatalf("expected %v, got %v", want, line.values)
	}
	for i := range want {
		if line.values[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, line.values)
		}
	}
	if !line.closed {
		t.Fatalf("line not released")
	}
}

func TestBoardCloseReleasesLines(t *testing.T) {
	buttons := &fakeLines{}
	link, power := &fakeLine{}, &fakeLine{}
	b := &Board{buttons: buttons, link: &LED{line: link}, power: &LED{line: power}}
	if err := b.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !buttons.closed || !link.closed || !power.closed {
		t.Fatalf("every line must be closed")
	}
}

func TestConfigDefaultsAndValidate(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.Chip != "gpiochip0" || cfg.BluetoothLED != 7 || cfg.PowerLED != 8 || cfg.ThumbStickButton != 2 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default wiring should validate: %v", err)
	}
	cfg.RedButton = cfg.PowerLED
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected shared line error")
	}
}
