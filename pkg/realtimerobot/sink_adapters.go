package realtimerobot

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Eric-Butcher/RealTimeRobot/internal/domain"
)

// ErrChannelSinkClosed is returned when a channel sink is written to after being closed.
var ErrChannelSinkClosed = errors.New("realtimerobot: channel sink closed")

// NewCallbackSink adapts an EventBatchSink into an EventSink. With kinds
// given, fn only sees events of those kinds and is not called for a batch
// that has none.
func NewCallbackSink(name string, fn EventBatchSink, kinds ...EventKind) EventSink {
	if name == "" {
		name = "callback"
	}
	return &callbackSink{name: name, fn: fn, kinds: newKindSet(kinds)}
}

// NewChannelSink exposes batches via a channel; it returns the sink, the read-only channel,
// and a close function that the caller should invoke during shutdown. Kinds
// filter the events the same way as NewCallbackSink.
func NewChannelSink(name string, buffer int, kinds ...EventKind) (EventSink, <-chan []Event, func()) {
	if name == "" {
		name = "channel"
	}
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan []Event, buffer)
	s := &channelSink{
		name:   name,
		kinds:  newKindSet(kinds),
		ch:     ch,
		closed: make(chan struct{}),
	}
	return s, ch, func() { s.close() }
}

type callbackSink struct {
	name  string
	fn    EventBatchSink
	kinds kindSet
}

func (s *callbackSink) WriteBatch(events []*domain.Event) error {
	if s.fn == nil {
		return fmt.Errorf("callback sink %q: nil handler", s.name)
	}
	batch := s.kinds.convert(events)
	if len(batch) == 0 {
		return nil
	}
	return s.fn(batch)
}

func (s *callbackSink) Name() string { return s.name }

type channelSink struct {
	name   string
	kinds  kindSet
	ch     chan []Event
	closed chan struct{}
	mu     sync.RWMutex
	once   sync.Once
}

// WriteBatch blocks until the reader takes the batch or the sink is closed.
func (s *channelSink) WriteBatch(events []*domain.Event) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	select {
	case <-s.closed:
		return ErrChannelSinkClosed
	default:
	}
	batch := s.kinds.convert(events)
	if len(batch) == 0 {
		return nil
	}

	select {
	case <-s.closed:
		return ErrChannelSinkClosed
	case s.ch <- batch:
		return nil
	}
}

func (s *channelSink) Name() string { return s.name }

func (s *channelSink) close() {
	s.once.Do(func() {
		close(s.closed)
		// Writers holding the read lock leave once closed is observed.
		s.mu.Lock()
		close(s.ch)
		s.mu.Unlock()
	})
}

// kindSet selects events by kind; an empty set keeps everything.
type kindSet map[domain.EventKind]struct{}

func newKindSet(kinds []EventKind) kindSet {
	if len(kinds) == 0 {
		return nil
	}
	set := make(kindSet, len(kinds))
	for _, k := range kinds {
		set[k] = struct{}{}
	}
	return set
}

func (k kindSet) convert(events []*domain.Event) []Event {
	out := make([]Event, 0, len(events))
	for _, e := range events {
		if e == nil {
			continue
		}
		if k != nil {
			if _, ok := k[e.Kind]; !ok {
				continue
			}
		}
		out = append(out, eventFromDomain(e))
	}
	return out
}
