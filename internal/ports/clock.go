package ports

import "time"

// Clock supplies monotonic time to the control loops.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}
