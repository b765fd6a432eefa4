package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/susu3304/sessionbook/internal/booking"
)

const eventColumns = `seq, id, session_id, kind, actor_id, escrowed, refunded, paid, at`

// AppendEvent relies on the writer lock for gapless sequence numbers.
func (t *pgTx) AppendEvent(ctx context.Context, e booking.Event) (booking.Event, error) {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO session_events (seq, id, session_id, kind, actor_id, escrowed, refunded, paid, at)
		 SELECT COALESCE(MAX(seq), 0) + 1, $1::text, $2::bigint, $3::text, $4::text,
		        $5::bigint, $6::bigint, $7::bigint, $8::timestamptz
		 FROM session_events
		 RETURNING seq`,
		e.ID, int64(e.SessionID), string(e.Kind), string(e.Actor),
		int64(e.Escrowed), int64(e.Refunded), int64(e.Paid), e.At,
	).Scan(&e.Seq)
	if err != nil {
		return booking.Event{}, fmt.Errorf("insert event: %w", err)
	}
	return e, nil
}

func (t *pgTx) EventsSince(ctx context.Context, afterSeq int64, limit int) ([]booking.Event, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := t.tx.Query(ctx,
		`SELECT `+eventColumns+` FROM session_events WHERE seq > $1 ORDER BY seq LIMIT $2`,
		afterSeq, limit,
	)
	if err != nil {
		return nil, err
	}
	return scanEvents(rows)
}

func (t *pgTx) SessionEvents(ctx context.Context, id booking.SessionID) ([]booking.Event, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+eventColumns+` FROM session_events WHERE session_id = $1 ORDER BY seq`,
		int64(id),
	)
	if err != nil {
		return nil, err
	}
	return scanEvents(rows)
}

func scanEvents(rows pgx.Rows) ([]booking.Event, error) {
	defer rows.Close()
	var out []booking.Event
	for rows.Next() {
		var (
			e                        booking.Event
			sessionID                int64
			kind, actor              string
			escrowed, refunded, paid int64
		)
		if err := rows.Scan(&e.Seq, &e.ID, &sessionID, &kind, &actor, &escrowed, &refunded, &paid, &e.At); err != nil {
			return nil, err
		}
		e.SessionID = booking.SessionID(sessionID)
		e.Kind = booking.EventKind(kind)
		e.Actor = booking.Identity(actor)
		e.Escrowed = booking.Amount(escrowed)
		e.Refunded = booking.Amount(refunded)
		e.Paid = booking.Amount(paid)
		out = append(out, e)
	}
	return out, rows.Err()
}
