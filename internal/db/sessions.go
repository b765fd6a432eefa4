package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/susu3304/sessionbook/internal/booking"
)

func (t *pgTx) NextSessionID(ctx context.Context) (booking.SessionID, error) {
	var id int64
	if err := t.tx.QueryRow(ctx, `SELECT COALESCE(MAX(id), 0) + 1 FROM sessions`).Scan(&id); err != nil {
		return 0, fmt.Errorf("next session id: %w", err)
	}
	return booking.SessionID(id), nil
}

func (t *pgTx) InsertSession(ctx context.Context, s booking.Session) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO sessions (id, counselor_id, user_id, start_time, duration_ns, fee, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		int64(s.ID), string(s.Counselor), string(s.User), s.StartTime, int64(s.Duration), int64(s.Fee), string(s.Status),
	)
	if err != nil {
		return fmt.Errorf("insert session %d: %w", s.ID, err)
	}
	return nil
}

func (t *pgTx) Session(ctx context.Context, id booking.SessionID) (booking.Session, error) {
	var (
		s          booking.Session
		sid        int64
		counselor  string
		user       string
		durationNS int64
		fee        int64
		status     string
	)
	err := t.tx.QueryRow(ctx,
		`SELECT id, counselor_id, user_id, start_time, duration_ns, fee, status
		 FROM sessions WHERE id = $1`,
		int64(id),
	).Scan(&sid, &counselor, &user, &s.StartTime, &durationNS, &fee, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return booking.Session{}, booking.ErrSessionNotFound
		}
		return booking.Session{}, fmt.Errorf("get session %d: %w", id, err)
	}
	s.ID = booking.SessionID(sid)
	s.Counselor = booking.Identity(counselor)
	s.User = booking.Identity(user)
	s.Duration = time.Duration(durationNS)
	s.Fee = booking.Amount(fee)
	s.Status = booking.Status(status)
	return s, nil
}

// UpdateSession writes the mutable fields of a session.
func (t *pgTx) UpdateSession(ctx context.Context, s booking.Session) error {
	ct, err := t.tx.Exec(ctx,
		`UPDATE sessions SET user_id = $2, status = $3, updated_at = CURRENT_TIMESTAMP WHERE id = $1`,
		int64(s.ID), string(s.User), string(s.Status),
	)
	if err != nil {
		return fmt.Errorf("update session %d: %w", s.ID, err)
	}
	if ct.RowsAffected() == 0 {
		return booking.ErrSessionNotFound
	}
	return nil
}

func (t *pgTx) AppendPartyIndex(ctx context.Context, role booking.Role, party booking.Identity, id booking.SessionID) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO party_sessions (role, party_id, session_id) VALUES ($1, $2, $3)`,
		string(role), string(party), int64(id),
	)
	if err != nil {
		return fmt.Errorf("append %s index for %s: %w", role, party, err)
	}
	return nil
}

func (t *pgTx) PartyIndex(ctx context.Context, role booking.Role, party booking.Identity) ([]booking.SessionID, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT session_id FROM party_sessions WHERE role = $1 AND party_id = $2 ORDER BY seq`,
		string(role), string(party),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []booking.SessionID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, booking.SessionID(id))
	}
	return ids, rows.Err()
}
