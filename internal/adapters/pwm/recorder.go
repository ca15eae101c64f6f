// Package pwm holds the motor output adapters.
package pwm

import (
	"sync"

	"github.com/Eric-Butcher/RealTimeRobot/internal/ports"
)

// Write is one recorded SetDuty call.
type Write struct {
	Pin  int
	Duty uint8
}

// Recorder keeps every write in memory along with the last duty per pin.
type Recorder struct {
	mu     sync.Mutex
	writes []Write
	duty   map[int]uint8
	// FailPin, when non-negative, makes writes to that pin fail with Err.
	FailPin int
	Err     error
	// Limit, when positive, keeps only the most recent writes.
	Limit int
}

var _ ports.PWM = (*Recorder)(nil)

func NewRecorder() *Recorder {
	return &Recorder{duty: make(map[int]uint8), FailPin: -1}
}

func (r *Recorder) SetDuty(pin int, duty uint8) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = append(r.writes, Write{Pin: pin, Duty: duty})
	if r.Limit > 0 && len(r.writes) > 2*r.Limit {
		r.writes = append(r.writes[:0], r.writes[len(r.writes)-r.Limit:]...)
	}
	if pin == r.FailPin && r.Err != nil {
		return r.Err
	}
	r.duty[pin] = duty
	return nil
}

func (r *Recorder) Close() error { return nil }

// Duty returns the last duty written to pin.
func (r *Recorder) Duty(pin int) uint8 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.duty[pin]
}

// Writes returns a copy of the write log.
func (r *Recorder) Writes() []Write {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Write, len(r.writes))
	copy(out, r.writes)
	return out
}

// Reset clears the write log but keeps pin state.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.writes = nil
	r.mu.Unlock()
}
