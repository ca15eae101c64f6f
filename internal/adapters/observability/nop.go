package observability

import "github.com/Eric-Butcher/RealTimeRobot/internal/ports"

// Nop discards everything. Tests and library callers without metrics use it.
type Nop struct{}

var _ ports.Observability = Nop{}

func (Nop) LogDebug(string, ...ports.Field)           {}
func (Nop) LogInfo(string, ...ports.Field)            {}
func (Nop) LogError(string, error, ...ports.Field)    {}
func (Nop) LogCritical(string, error, ...ports.Field) {}
func (Nop) IncCounter(string, float64)                {}
func (Nop) ObserveLatency(string, float64)            {}
func (Nop) SetGauge(string, float64)                  {}
