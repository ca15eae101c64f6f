// Package mirror keeps the consumer's copy of the controller state.
package mirror

import (
	"time"

	"github.com/Eric-Butcher/RealTimeRobot/internal/app/registry"
	"github.com/Eric-Butcher/RealTimeRobot/internal/domain"
	"github.com/Eric-Butcher/RealTimeRobot/internal/ports"
)

// Result summarizes one Refresh.
type Result struct {
	Updated      int
	DecodeErrors int
}

// Mirror merges per-channel updates into a ControllerState. A channel with no
// update keeps its previous value, however old.
type Mirror struct {
	bindings   []registry.Binding
	state      domain.ControllerState
	lastUpdate time.Time
	obs        ports.Observability
}

// New seeds the mirror with the neutral state at now.
func New(bindings []registry.Binding, now time.Time, obs ports.Observability) *Mirror {
	return &Mirror{
		bindings:   bindings,
		state:      domain.NeutralState(),
		lastUpdate: now,
		obs:        obs,
	}
}

// Refresh reads every channel whose updated flag is set, decodes it into the
// matching field and clears the flag. A payload that does not decode leaves
// the field untouched; its flag is still cleared.
func (m *Mirror) Refresh(now time.Time) Result {
	var res Result
	for _, b := range m.bindings {
		if !b.Handle.Updated() {
			continue
		}
		v, err := b.Channel.Decode(b.Handle.Value())
		b.Handle.ClearUpdated()
		if err != nil {
			res.DecodeErrors++
			if m.obs != nil {
				m.obs.LogError("decode channel", err, ports.Field{Key: "channel", Value: b.Channel.ID.String()})
			}
			continue
		}
		m.state.Set(b.Channel.ID, v)
		res.Updated++
	}
	if res.Updated > 0 {
		m.lastUpdate = now
	}
	return res
}

// State returns a copy of the mirrored state.
func (m *Mirror) State() domain.ControllerState { return m.state }

// Stale reports whether no channel has updated for at least after.
// A zero or negative after disables the check.
func (m *Mirror) Stale(now time.Time, after time.Duration) bool {
	if after <= 0 {
		return false
	}
	return now.Sub(m.lastUpdate) >= after
}
