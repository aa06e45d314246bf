package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/driftline/matchmaker/internal/database"
	"github.com/driftline/matchmaker/internal/matchmaking"
	"github.com/driftline/matchmaker/internal/model"
)

const lobbySchema = `
CREATE TABLE IF NOT EXISTS lobby_participants (
	id           TEXT PRIMARY KEY,
	last_seen_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS lobby_waiting_slot (
	slot           SMALLINT PRIMARY KEY CHECK (slot = 1),
	participant_id TEXT,
	since          TIMESTAMPTZ
);

INSERT INTO lobby_waiting_slot (slot) VALUES (1) ON CONFLICT DO NOTHING;
`

type slotRow struct {
	ParticipantID sql.NullString `db:"participant_id"`
	Since         sql.NullTime   `db:"since"`
}

func (r slotRow) toModel() model.WaitingSlot {
	if !r.ParticipantID.Valid || r.ParticipantID.String == "" {
		return model.WaitingSlot{}
	}
	return model.WaitingSlot{ParticipantID: r.ParticipantID.String, Since: r.Since.Time}
}

// postgresLobby stores the registry and the slot in two tables. Every action
// runs in one transaction that first locks the singleton slot row, which
// serializes lobby mutations across processes.
type postgresLobby struct {
	db       *database.DB
	timeouts matchmaking.Timeouts
	opts     lobbyOptions
}

func NewPostgresLobbyRepository(db *database.DB, timeouts matchmaking.Timeouts, opts ...LobbyOption) LobbyRepository {
	return &postgresLobby{db: db, timeouts: timeouts, opts: newLobbyOptions(opts)}
}

// EnsureLobbySchema creates the lobby tables if they are missing.
func EnsureLobbySchema(ctx context.Context, db *database.DB) error {
	_, err := db.ExecContext(ctx, lobbySchema)
	return err
}

func (l *postgresLobby) lockSlot(ctx context.Context, q database.DBTX) (model.WaitingSlot, error) {
	var row slotRow
	err := q.GetContext(ctx, &row, `
		SELECT participant_id, since FROM lobby_waiting_slot
		WHERE slot = 1
		FOR UPDATE
	`)
	if err != nil {
		return model.WaitingSlot{}, err
	}
	return row.toModel(), nil
}

func (l *postgresLobby) writeSlot(ctx context.Context, q database.DBTX, slot model.WaitingSlot) error {
	var id sql.NullString
	var since sql.NullTime
	if !slot.Empty() {
		id = sql.NullString{String: slot.ParticipantID, Valid: true}
		since = sql.NullTime{Time: slot.Since, Valid: true}
	}
	_, err := q.ExecContext(ctx, `
		UPDATE lobby_waiting_slot SET participant_id = $1, since = $2
		WHERE slot = 1
	`, id, since)
	return err
}

// sweep must run with the slot row locked.
func (l *postgresLobby) sweep(ctx context.Context, q database.DBTX, slot model.WaitingSlot, now time.Time) (model.WaitingSlot, model.SweepResult, error) {
	var result model.SweepResult

	res, err := q.ExecContext(ctx, `
		DELETE FROM lobby_participants WHERE last_seen_at < $1
	`, now.Add(-l.timeouts.Presence))
	if err != nil {
		return slot, result, err
	}
	result.ExpiredParticipants, _ = res.RowsAffected()

	if slot.Empty() {
		return slot, result, nil
	}

	var registered bool
	if err := q.GetContext(ctx, &registered, `
		SELECT EXISTS (SELECT 1 FROM lobby_participants WHERE id = $1)
	`, slot.ParticipantID); err != nil {
		return slot, result, err
	}

	if matchmaking.Stale(slot, now, l.timeouts.Waiting) || !registered {
		result.ExpiredWaiter = slot.ParticipantID
		if err := l.writeSlot(ctx, q, model.WaitingSlot{}); err != nil {
			return slot, result, err
		}
		return model.WaitingSlot{}, result, nil
	}
	return slot, result, nil
}

func (l *postgresLobby) touch(ctx context.Context, q database.DBTX, id string, now time.Time) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO lobby_participants (id, last_seen_at) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET last_seen_at = EXCLUDED.last_seen_at
	`, id, now)
	return err
}

func (l *postgresLobby) count(ctx context.Context, q database.DBTX) (int, error) {
	var n int
	err := q.GetContext(ctx, &n, `SELECT COUNT(*) FROM lobby_participants`)
	return n, err
}

// inTx locks the slot, sweeps, then hands the surviving slot to fn. The
// sweep is reported only once the transaction has committed.
func (l *postgresLobby) inTx(ctx context.Context, now time.Time, fn func(tx *sqlx.Tx, slot model.WaitingSlot) error) error {
	var swept model.SweepResult
	err := l.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		slot, err := l.lockSlot(ctx, tx)
		if err != nil {
			return err
		}
		slot, swept, err = l.sweep(ctx, tx, slot, now)
		if err != nil {
			return err
		}
		return fn(tx, slot)
	})
	if err != nil {
		return err
	}
	l.opts.report(swept)
	return nil
}

func (l *postgresLobby) Stats(ctx context.Context, now time.Time) (int, error) {
	now = now.Truncate(time.Microsecond)
	var n int
	err := l.inTx(ctx, now, func(tx *sqlx.Tx, _ model.WaitingSlot) error {
		var err error
		n, err = l.count(ctx, tx)
		return err
	})
	return n, err
}

func (l *postgresLobby) Heartbeat(ctx context.Context, id string, now time.Time) (int, error) {
	now = now.Truncate(time.Microsecond)
	var n int
	err := l.inTx(ctx, now, func(tx *sqlx.Tx, slot model.WaitingSlot) error {
		if err := l.touch(ctx, tx, id, now); err != nil {
			return err
		}
		if slot.HeldBy(id) {
			if err := l.writeSlot(ctx, tx, matchmaking.Refresh(slot, id, now)); err != nil {
				return err
			}
		}
		var err error
		n, err = l.count(ctx, tx)
		return err
	})
	return n, err
}

func (l *postgresLobby) Join(ctx context.Context, id string, now time.Time) (model.MatchOutcome, error) {
	now = now.Truncate(time.Microsecond)
	var outcome model.MatchOutcome
	err := l.inTx(ctx, now, func(tx *sqlx.Tx, slot model.WaitingSlot) error {
		if err := l.touch(ctx, tx, id, now); err != nil {
			return err
		}
		var next model.WaitingSlot
		next, outcome = matchmaking.Decide(slot, id, now, l.timeouts.Waiting)
		return l.writeSlot(ctx, tx, next)
	})
	if err != nil {
		return model.MatchOutcome{}, err
	}
	return outcome, nil
}

func (l *postgresLobby) Leave(ctx context.Context, id string, now time.Time) error {
	now = now.Truncate(time.Microsecond)
	return l.inTx(ctx, now, func(tx *sqlx.Tx, slot model.WaitingSlot) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM lobby_participants WHERE id = $1`, id); err != nil {
			return err
		}
		if slot.HeldBy(id) {
			return l.writeSlot(ctx, tx, model.WaitingSlot{})
		}
		return nil
	})
}

func (l *postgresLobby) Sweep(ctx context.Context, now time.Time) (model.SweepResult, error) {
	now = now.Truncate(time.Microsecond)
	var result model.SweepResult
	err := l.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		slot, err := l.lockSlot(ctx, tx)
		if err != nil {
			return err
		}
		_, result, err = l.sweep(ctx, tx, slot, now)
		return err
	})
	if err != nil {
		return model.SweepResult{}, err
	}
	l.opts.report(result)
	return result, nil
}

func (l *postgresLobby) Ping(ctx context.Context) error {
	return l.db.Ping(ctx)
}

func (l *postgresLobby) Backend() string {
	return "postgres"
}
