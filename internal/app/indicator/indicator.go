// Package indicator drives status lights.
package indicator

import (
	"context"
	"time"

	"github.com/Eric-Butcher/RealTimeRobot/internal/ports"
)

// DefaultFatalPeriod is the half-period of the fatal blink.
const DefaultFatalPeriod = 200 * time.Millisecond

// FatalLoop blinks led until ctx is done, then leaves it off.
// It is entered when the radio cannot be initialized.
func FatalLoop(ctx context.Context, led ports.Indicator, clk ports.Clock, period time.Duration) {
	if led == nil {
		<-ctx.Done()
		return
	}
	if period <= 0 {
		period = DefaultFatalPeriod
	}
	on := false
	for ctx.Err() == nil {
		on = !on
		_ = led.Set(on)
		clk.Sleep(period)
	}
	_ = led.Set(false)
}

// Set switches led if it is present.
func Set(led ports.Indicator, on bool) {
	if led != nil {
		_ = led.Set(on)
	}
}
