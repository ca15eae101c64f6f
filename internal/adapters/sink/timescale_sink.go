package sink

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Eric-Butcher/RealTimeRobot/internal/domain"
	"github.com/Eric-Butcher/RealTimeRobot/internal/ports"
	_ "github.com/lib/pq"
)

// TimescaleSink writes telemetry events into a (hyper)table keyed by (role, ts, seq).
type TimescaleSink struct {
	db        *sql.DB
	tableName string
	role      string
}

// OpenTimescale opens a postgres connection pool through lib/pq.
func OpenTimescale(connString string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, fmt.Errorf("open timescale: %w", err)
	}
	return db, nil
}

func NewTimescaleSink(db *sql.DB, table, role string) *TimescaleSink {
	return &TimescaleSink{db: db, tableName: table, role: role}
}

func (t *TimescaleSink) Name() string { return "timescaledb" }

func (t *TimescaleSink) WriteBatch(events []*domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(t.tableName)
	b.WriteString(" (role, ts, seq, kind, state, peer, detail, values) VALUES ")

	args := make([]any, 0, len(events)*8)
	for i, e := range events {
		if i > 0 {
			b.WriteString(",")
		}
		n := len(args)
		b.WriteString(fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d)",
			n+1, n+2, n+3, n+4, n+5, n+6, n+7, n+8))
		vals, err := json.Marshal(e.Values)
		if err != nil {
			return fmt.Errorf("marshal values: %w", err)
		}

		args = append(args,
			t.role,
			e.Time,
			e.Seq,
			string(e.Kind),
			e.State,
			e.Peer,
			e.Detail,
			vals,
		)
	}

	// Replayed sequence numbers after a restart are ignored.
	b.WriteString(" ON CONFLICT (role, ts, seq) DO NOTHING")

	_, err := t.db.Exec(b.String(), args...)
	return err
}

var _ ports.EventSink = (*TimescaleSink)(nil)
