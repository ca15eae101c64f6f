package sink

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/Eric-Butcher/RealTimeRobot/internal/domain"
)

func TestTimescaleSinkWriteBatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	sink := NewTimescaleSink(db, "events", "bot")
	ts := time.Now()

	events := []*domain.Event{
		{
			Seq:    1,
			Time:   ts,
			Kind:   domain.EventTransition,
			State:  "OPERATING",
			Peer:   "f4:12:fa:6d:71:2d",
			Detail: "RESOLVING -> OPERATING",
		},
		{
			Seq:    2,
			Time:   ts,
			Kind:   domain.EventTick,
			State:  "OPERATING",
			Values: map[string]float64{"motor1": -255},
		},
	}

	expectedQuery := regexp.QuoteMeta("INSERT INTO events (role, ts, seq, kind, state, peer, detail, values) VALUES ($1,$2,$3,$4,$5,$6,$7,$8),($9,$10,$11,$12,$13,$14,$15,$16) ON CONFLICT (role, ts, seq) DO NOTHING")
	mock.ExpectExec(expectedQuery).
		WithArgs(
			"bot", ts, uint64(1), "transition", "OPERATING", "f4:12:fa:6d:71:2d", "RESOLVING -> OPERATING", sqlmock.AnyArg(),
			"bot", ts, uint64(2), "tick", "OPERATING", "", "", sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(2, 2))

	if err := sink.WriteBatch(events); err != nil {
		t.Fatalf("write batch: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTimescaleSinkWriteBatchPropagatesError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO events").WillReturnError(errors.New("connection reset"))

	sink := NewTimescaleSink(db, "events", "controller")
	err = sink.WriteBatch([]*domain.Event{{Seq: 1, Kind: domain.EventFault}})
	if err == nil {
		t.Fatalf("expected error from sink")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTimescaleSinkWriteBatchNoEvents(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	sink := NewTimescaleSink(db, "events", "bot")
	if err := sink.WriteBatch(nil); err != nil {
		t.Fatalf("expected nil error for empty batch, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTimescaleSinkName(t *testing.T) {
	db, _, _ := sqlmock.New()
	defer db.Close()

	sink := NewTimescaleSink(db, "events", "bot")
	if sink.Name() != "timescaledb" {
		t.Fatalf("expected sink name timescaledb, got %s", sink.Name())
	}
}
