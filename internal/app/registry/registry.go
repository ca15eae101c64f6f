// Package registry binds the configured channel set to a connected peer.
package registry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Eric-Butcher/RealTimeRobot/internal/domain"
	"github.com/Eric-Butcher/RealTimeRobot/internal/ports"
)

var (
	ErrNotFound        = errors.New("channel not found")
	ErrNotSubscribable = errors.New("channel not subscribable")
	ErrSubscribeFailed = errors.New("subscribe failed")
)

// ResolveError identifies the channel that aborted an Attach.
type ResolveError struct {
	Index   int
	Channel domain.Channel
	Err     error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("channel %d (%s %s): %v", e.Index, e.Channel.ID, e.Channel.UUID, e.Err)
}

func (e *ResolveError) Unwrap() error { return e.Err }

// Resolve looks up ch on peer. A missing attribute is ErrNotFound.
func Resolve(peer ports.Peer, ch domain.Channel) (ports.RemoteChannel, error) {
	h := peer.Channel(ch.UUID)
	if h == nil {
		return nil, ErrNotFound
	}
	return h, nil
}

// Subscribe enables notifications on h.
func Subscribe(h ports.RemoteChannel) error {
	if !h.CanSubscribe() {
		return ErrNotSubscribable
	}
	if err := h.Subscribe(); err != nil {
		return fmt.Errorf("%w: %v", ErrSubscribeFailed, err)
	}
	return nil
}

// Binding is one channel paired with its subscribed remote handle.
type Binding struct {
	Channel domain.Channel
	Handle  ports.RemoteChannel
}

// Set is the ordered, fixed channel set of a deployment.
type Set struct {
	channels []domain.Channel
	obs      ports.Observability
}

// NewSet validates chans: at least one, unique IDs, unique well-formed UUIDs.
func NewSet(chans []domain.Channel, obs ports.Observability) (*Set, error) {
	if len(chans) == 0 {
		return nil, errors.New("channel set is empty")
	}
	ids := make(map[domain.ChannelID]bool, len(chans))
	uuids := make(map[string]bool, len(chans))
	for i, ch := range chans {
		if !ValidUUID(ch.UUID) {
			return nil, fmt.Errorf("channel %d (%s): malformed uuid %q", i, ch.ID, ch.UUID)
		}
		if ch.Width.Size() == 0 {
			return nil, fmt.Errorf("channel %d (%s): unsupported width %q", i, ch.ID, ch.Width)
		}
		key := strings.ToLower(ch.UUID)
		if uuids[key] {
			return nil, fmt.Errorf("channel %d (%s): duplicate uuid %s", i, ch.ID, ch.UUID)
		}
		if ids[ch.ID] {
			return nil, fmt.Errorf("channel %d: duplicate channel %s", i, ch.ID)
		}
		uuids[key] = true
		ids[ch.ID] = true
	}
	out := make([]domain.Channel, len(chans))
	copy(out, chans)
	return &Set{channels: out, obs: obs}, nil
}

// Channels returns the set in subscription order.
func (s *Set) Channels() []domain.Channel {
	out := make([]domain.Channel, len(s.channels))
	copy(out, s.channels)
	return out
}

func (s *Set) Len() int { return len(s.channels) }

// Attach resolves every channel in order, then clears and subscribes every
// channel in order. It succeeds only if all of them succeed. On the first failure any
// handle already subscribed is unsubscribed and a *ResolveError is returned.
func (s *Set) Attach(peer ports.Peer) ([]Binding, error) {
	bindings := make([]Binding, 0, len(s.channels))
	for i, ch := range s.channels {
		h, err := Resolve(peer, ch)
		if err != nil {
			s.report("resolve", i, ch, err)
			return nil, &ResolveError{Index: i, Channel: ch, Err: err}
		}
		s.report("resolve", i, ch, nil)
		bindings = append(bindings, Binding{Channel: ch, Handle: h})
	}

	for i, b := range bindings {
		// A flag raised during an earlier session must not reach a fresh mirror.
		b.Handle.ClearUpdated()
		if err := Subscribe(b.Handle); err != nil {
			s.report("subscribe", i, b.Channel, err)
			Release(bindings[:i])
			return nil, &ResolveError{Index: i, Channel: b.Channel, Err: err}
		}
		s.report("subscribe", i, b.Channel, nil)
	}
	return bindings, nil
}

// Release unsubscribes every binding, ignoring errors.
func Release(bindings []Binding) {
	for _, b := range bindings {
		_ = b.Handle.Unsubscribe()
	}
}

func (s *Set) report(step string, i int, ch domain.Channel, err error) {
	if s.obs == nil {
		return
	}
	fields := []ports.Field{
		{Key: "step", Value: step},
		{Key: "index", Value: i},
		{Key: "channel", Value: ch.ID.String()},
		{Key: "uuid", Value: ch.UUID},
	}
	if err != nil {
		s.obs.LogError("channel "+step+" failed", err, fields...)
		return
	}
	s.obs.LogInfo("channel "+step+" ok", fields...)
}

// ValidUUID reports whether s is a 128-bit UUID in canonical 8-4-4-4-12 form.
func ValidUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
