package realtimerobot

import (
	"errors"
	"testing"
	"time"

	"github.com/Eric-Butcher/RealTimeRobot/internal/domain"
)

func TestNewCallbackSink(t *testing.T) {
	var received []Event
	sink := NewCallbackSink("cb", func(batch []Event) error {
		received = append(received, batch...)
		return nil
	})

	input := Event{
		Seq:    42,
		Time:   time.Unix(1, 0),
		Kind:   string(domain.EventTick),
		State:  "OPERATING",
		Peer:   "f4:12:fa:6d:71:2d",
		Values: map[string]float64{"thumb_stick_y_axis": 3200},
	}

	if err := sink.WriteBatch([]*PipelineEvent{input.toDomain()}); err != nil {
		t.Fatalf("WriteBatch returned error: %v", err)
	}
	if len(received) != 1 {
		t.Fatalf("expected 1 batch entry, got %d", len(received))
	}
	got := received[0]
	if got.Seq != input.Seq || got.Kind != input.Kind || got.Peer != input.Peer {
		t.Fatalf("mismatched event payload: %+v vs %+v", got, input)
	}
	if got.Values["thumb_stick_y_axis"] != 3200 {
		t.Fatalf("expected values to be copied, got %v", got.Values)
	}
	input.Values["thumb_stick_y_axis"] = 0
	if got.Values["thumb_stick_y_axis"] != 3200 {
		t.Fatalf("delivered values must not alias the source map")
	}
}

func TestNewCallbackSinkNilHandler(t *testing.T) {
	sink := NewCallbackSink("", nil)
	if err := sink.WriteBatch([]*PipelineEvent{Event{Kind: "fault"}.toDomain()}); err == nil {
		t.Fatalf("expected error when callback is nil")
	}
	if sink.Name() != "callback" {
		t.Fatalf("expected default name, got %q", sink.Name())
	}
}

func TestNewChannelSink(t *testing.T) {
	sink, ch, closeFn := NewChannelSink("chan", 1)
	defer closeFn()

	input := Event{Kind: string(domain.EventTransition), State: "RESOLVING", Seq: 7}
	errCh := make(chan error, 1)

	go func() {
		errCh <- sink.WriteBatch([]*PipelineEvent{input.toDomain()})
	}()

	var batch []Event
	select {
	case batch = <-ch:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel batch")
	}

	if err := <-errCh; err != nil {
		t.Fatalf("WriteBatch returned error: %v", err)
	}
	if len(batch) != 1 || batch[0].State != input.State {
		t.Fatalf("unexpected batch data: %+v", batch)
	}

	closeFn()
	if err := sink.WriteBatch([]*PipelineEvent{input.toDomain()}); !errors.Is(err, ErrChannelSinkClosed) {
		t.Fatalf("expected ErrChannelSinkClosed, got %v", err)
	}
}

func TestSinksFilterByKind(t *testing.T) {
	batch := []*PipelineEvent{
		Event{Seq: 1, Kind: string(EventTick)}.toDomain(),
		Event{Seq: 2, Kind: string(EventTransition), State: "OPERATING"}.toDomain(),
		Event{Seq: 3, Kind: string(EventFault)}.toDomain(),
	}

	var calls int
	var got []Event
	cb := NewCallbackSink("link", func(events []Event) error {
		calls++
		got = append(got, events...)
		return nil
	}, EventTransition, EventFault)
	if err := cb.WriteBatch(batch); err != nil {
		t.Fatalf("WriteBatch returned error: %v", err)
	}
	if len(got) != 2 || got[0].Seq != 2 || got[1].Seq != 3 {
		t.Fatalf("expected transition and fault in order, got %+v", got)
	}
	if err := cb.WriteBatch(batch[:1]); err != nil {
		t.Fatalf("WriteBatch returned error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("a batch with no wanted kinds must not reach the callback, calls=%d", calls)
	}

	sink, ch, closeFn := NewChannelSink("ticks", 1, EventTick)
	defer closeFn()
	if err := sink.WriteBatch(batch); err != nil {
		t.Fatalf("WriteBatch returned error: %v", err)
	}
	if ticks := <-ch; len(ticks) != 1 || ticks[0].Seq != 1 {
		t.Fatalf("expected only the tick, got %+v", ticks)
	}
}
