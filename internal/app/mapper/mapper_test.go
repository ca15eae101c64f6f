package mapper

import (
	"testing"

	"github.com/Eric-Butcher/RealTimeRobot/internal/domain"
)

func withY(v int32) domain.ControllerState {
	s := domain.NeutralState()
	s.ThumbStickY = v
	return s
}

func TestThreeBandMapping(t *testing.T) {
	m, err := New(Config{})
	if err != nil {
		t.Fatalf("new mapper: %v", err)
	}

	cases := []struct {
		name string
		y    int32
		want int
	}{
		{"above high is full reverse", 3200, -255},
		{"below low is full forward", 500, 255},
		{"dead zone stops", 2000, 0},
		{"high threshold itself stops", 3000, 0},
		{"low threshold itself stops", 1000, 0},
		{"axis max", domain.AxisMax, -255},
		{"axis min", domain.AxisMin, 255},
	}
	for _, tc := range cases {
		cmd := m.Map(withY(tc.y))
		if cmd.Motor1 != tc.want || cmd.Motor2 != tc.want {
			t.Fatalf("%s: expected %d on both motors, got %+v", tc.name, tc.want, cmd)
		}
	}
}

func TestNeutralStateStopsIdempotently(t *testing.T) {
	m, _ := New(Config{})
	for i := 0; i < 10; i++ {
		if cmd := m.Map(domain.NeutralState()); !cmd.IsStopped() {
			t.Fatalf("neutral state must map to stopped, got %+v", cmd)
		}
	}
}

func TestButtonsDoNotAffectDrive(t *testing.T) {
	m, _ := New(Config{})
	s := domain.NeutralState()
	s.RedButton = domain.ButtonPressed
	s.ThumbStickButton = domain.ButtonPressed
	if cmd := m.Map(s); !cmd.IsStopped() {
		t.Fatalf("buttons must not drive the motors, got %+v", cmd)
	}
}

func TestXAxisMapping(t *testing.T) {
	m, err := New(Config{Axis: "thumb_stick_x_axis"})
	if err != nil {
		t.Fatalf("new mapper: %v", err)
	}
	s := domain.NeutralState()
	s.ThumbStickX = 3500
	if cmd := m.Map(s); cmd.Motor1 != -255 {
		t.Fatalf("expected reverse from x axis, got %+v", cmd)
	}
}

func TestProportionalMapping(t *testing.T) {
	m, err := New(Config{Mode: ModeProportional, DutyFloor: 70})
	if err != nil {
		t.Fatalf("new mapper: %v", err)
	}
	if cmd := m.Map(withY(2000)); !cmd.IsStopped() {
		t.Fatalf("dead zone should stop, got %+v", cmd)
	}
	if cmd := m.Map(withY(999)); cmd.Motor1 != 70 {
		t.Fatalf("just below low threshold should sit at the floor, got %+v", cmd)
	}
	if cmd := m.Map(withY(domain.AxisMin)); cmd.Motor1 != 255 {
		t.Fatalf("axis min should be full forward, got %+v", cmd)
	}
	if cmd := m.Map(withY(domain.AxisMax)); cmd.Motor1 != -255 {
		t.Fatalf("axis max should be full reverse, got %+v", cmd)
	}
	mid := m.Map(withY(500)).Motor1
	if mid <= 70 || mid >= 255 {
		t.Fatalf("half travel should be between floor and max, got %d", mid)
	}
}

func TestConfigValidate(t *testing.T) {
	bad := []Config{
		{Mode: "exponential"},
		{Axis: "red_button"},
		{Axis: "nope"},
		{LowThreshold: 3000, HighThreshold: 1000},
		{LowThreshold: 10, HighThreshold: 5000},
		{DutyMax: 300},
		{DutyFloor: 200, DutyMax: 100},
		{Mode: ModeProportional, LowThreshold: domain.AxisMin, HighThreshold: 3000},
		{Mode: ModeProportional, LowThreshold: 1000, HighThreshold: domain.AxisMax},
	}
	for i, c := range bad {
		if _, err := New(c); err == nil {
			t.Fatalf("case %d: expected validation error for %+v", i, c)
		}
	}
}

func TestProportionalOutOfRangeAxis(t *testing.T) {
	cases := []struct {
		name      string
		low, high int32
		y         int32
		want      int
	}{
		{"far above axis max", 1000, 3000, 5000, -255},
		{"negative reading", 1000, 3000, -1, 255},
		{"most negative reading", 1000, 3000, -2147483648, 255},
		{"largest reading", 1000, 3000, 2147483647, -255},
		{"high threshold at axis max", 1000, domain.AxisMax, 5000, -255},
		{"low threshold at axis min", domain.AxisMin, 3000, -1, 255},
		{"both edges, inside dead zone", domain.AxisMin, domain.AxisMax, 2000, 0},
	}
	for _, tc := range cases {
		// Edge thresholds are rejected by New; build directly to cover the
		// zero-travel guard as well.
		m := &Mapper{
			cfg: Config{
				Mode:          ModeProportional,
				LowThreshold:  tc.low,
				HighThreshold: tc.high,
				DutyFloor:     70,
				DutyMax:       domain.DutyMax,
			},
			axis: domain.ThumbStickYAxis,
		}
		cmd := m.Map(withY(tc.y))
		if cmd.Motor1 != tc.want || cmd.Motor2 != tc.want {
			t.Fatalf("%s: expected %d on both motors, got %+v", tc.name, tc.want, cmd)
		}
	}
}
