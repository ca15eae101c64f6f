package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/Eric-Butcher/RealTimeRobot/internal/adapters/observability"
	"github.com/Eric-Butcher/RealTimeRobot/internal/adapters/simradio"
	"github.com/Eric-Butcher/RealTimeRobot/internal/domain"
	"github.com/Eric-Butcher/RealTimeRobot/internal/ports"
)

type recordingObs struct {
	observability.Nop
	infos  int
	errors []error
}

func (r *recordingObs) LogInfo(string, ...ports.Field) { r.infos++ }
func (r *recordingObs) LogError(_ string, err error, _ ...ports.Field) {
	r.errors = append(r.errors, err)
}

func connect(t *testing.T, chans []domain.Channel) (*simradio.Device, ports.Peer) {
	t.Helper()
	radio := simradio.NewRadio()
	adv := domain.Advertisement{Address: "f4:12:fa:6d:71:2d", Services: []string{domain.ControllerServiceUUID}}
	dev := radio.AddDevice(adv, chans)
	peer, err := radio.Connect(context.Background(), adv)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	return dev, peer
}

func TestAttachSubscribesEveryChannel(t *testing.T) {
	chans := domain.DefaultChannels()
	obs := &recordingObs{}
	set, err := NewSet(chans, obs)
	if err != nil {
		t.Fatalf("new set: %v", err)
	}
	dev, peer := connect(t, chans)

	bindings, err := set.Attach(peer)
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if len(bindings) != len(chans) {
		t.Fatalf("expected %d bindings, got %d", len(chans), len(bindings))
	}
	for i, b := range bindings {
		if b.Channel.ID != chans[i].ID {
			t.Fatalf("binding %d out of order: %s", i, b.Channel.ID)
		}
		if !dev.Handle(b.Channel.UUID).Subscribed() {
			t.Fatalf("channel %s not subscribed", b.Channel.ID)
		}
	}
	if obs.infos != 2*len(chans) || len(obs.errors) != 0 {
		t.Fatalf("expected one record per resolve and subscribe, got infos=%d errors=%d", obs.infos, len(obs.errors))
	}
}

func TestAttachMissingChannelIsNotFound(t *testing.T) {
	chans := domain.DefaultChannels()
	set, _ := NewSet(chans, nil)
	dev, peer := connect(t, chans)
	dev.RemoveChannel(chans[4].UUID)

	_, err := set.Attach(peer)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	var re *ResolveError
	if !errors.As(err, &re) || re.Index != 4 || re.Channel.ID != domain.RedButton {
		t.Fatalf("expected resolve error at index 4, got %+v", re)
	}
	for _, ch := range chans {
		if h := dev.Handle(ch.UUID); h != nil && h.Subscribed() {
			t.Fatalf("no channel may be subscribed when resolution fails, %s is", ch.ID)
		}
	}
}

func TestAttachLastSubscribeFailureReleasesOthers(t *testing.T) {
	chans := domain.DefaultChannels()
	set, _ := NewSet(chans, nil)
	dev, peer := connect(t, chans)
	dev.Handle(chans[6].UUID).FailSubscribe(errors.New("att error 0x0e"))

	_, err := set.Attach(peer)
	if !errors.Is(err, ErrSubscribeFailed) {
		t.Fatalf("expected ErrSubscribeFailed, got %v", err)
	}
	for _, ch := range chans[:6] {
		if dev.Handle(ch.UUID).Subscribed() {
			t.Fatalf("channel %s should have been unsubscribed", ch.ID)
		}
	}
}

func TestAttachNotSubscribable(t *testing.T) {
	chans := domain.DefaultChannels()
	set, _ := NewSet(chans, nil)
	dev, peer := connect(t, chans)
	dev.Handle(chans[0].UUID).SetSubscribable(false)

	_, err := set.Attach(peer)
	if !errors.Is(err, ErrNotSubscribable) {
		t.Fatalf("expected ErrNotSubscribable, got %v", err)
	}
}

func TestNewSetRejectsBadChannels(t *testing.T) {
	good := domain.DefaultChannels()

	dupUUID := domain.DefaultChannels()
	dupUUID[1].UUID = dupUUID[0].UUID
	if _, err := NewSet(dupUUID, nil); err == nil {
		t.Fatalf("expected duplicate uuid error")
	}

	dupID := domain.DefaultChannels()
	dupID[1].ID = dupID[0].ID
	if _, err := NewSet(dupID, nil); err == nil {
		t.Fatalf("expected duplicate id error")
	}

	bad := domain.DefaultChannels()
	bad[2].UUID = "not-a-uuid"
	if _, err := NewSet(bad, nil); err == nil {
		t.Fatalf("expected malformed uuid error")
	}

	if _, err := NewSet(nil, nil); err == nil {
		t.Fatalf("expected empty set error")
	}

	if _, err := NewSet(good, nil); err != nil {
		t.Fatalf("default set should be valid: %v", err)
	}
}

func TestAttachClearsLeftoverUpdates(t *testing.T) {
	dev, peer := connect(t, domain.DefaultChannels())
	set, err := NewSet(domain.DefaultChannels(), nil)
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	bindings, err := set.Attach(peer)
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	dev.Send(domain.ThumbStickYAxis, 3500)
	Release(bindings)

	y := dev.Handle(domain.DefaultChannels()[domain.ThumbStickYAxis].UUID)
	if !y.Updated() {
		t.Fatalf("expected the unread update to survive unsubscribe")
	}

	bindings, err = set.Attach(peer)
	if err != nil {
		t.Fatalf("second attach: %v", err)
	}
	for _, b := range bindings {
		if b.Handle.Updated() {
			t.Fatalf("channel %s still flagged after attach", b.Channel.ID)
		}
	}
}
