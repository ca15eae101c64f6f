package pwm

import "testing"

func TestRecorderLimitKeepsRecentWrites(t *testing.T) {
	rec := NewRecorder()
	rec.Limit = 4
	for i := 0; i < 20; i++ {
		_ = rec.SetDuty(7, uint8(i))
	}
	writes := rec.Writes()
	if len(writes) > 2*rec.Limit {
		t.Fatalf("expected at most %d writes, got %d", 2*rec.Limit, len(writes))
	}
	if last := writes[len(writes)-1]; last.Duty != 19 {
		t.Fatalf("expected newest write kept, got %+v", last)
	}
	if rec.Duty(7) != 19 {
		t.Fatalf("expected duty 19, got %d", rec.Duty(7))
	}
}
