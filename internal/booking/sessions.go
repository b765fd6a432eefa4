package booking

import (
	"context"
	"math"
	"time"
)

// DurationOf converts n whole units into a Duration. Non-positive counts and
// counts that would overflow int64 nanoseconds are ErrInvalidDuration.
func DurationOf(n int64, unit time.Duration) (time.Duration, error) {
	if unit <= 0 || n <= 0 || n > math.MaxInt64/int64(unit) {
		return 0, ErrInvalidDuration
	}
	return time.Duration(n) * unit, nil
}

// Sessions owns session records and the party indices.
type Sessions struct{}

func (Sessions) Create(ctx context.Context, tx Tx, counselor Identity, start time.Time, duration time.Duration, fee Amount, now time.Time) (Session, error) {
	if !start.After(now) {
		return Session{}, ErrStartTimeInPast
	}
	if duration <= 0 {
		return Session{}, ErrInvalidDuration
	}
	if fee < 0 {
		return Session{}, ErrInvalidFee
	}
	id, err := tx.NextSessionID(ctx)
	if err != nil {
		return Session{}, err
	}
	s := Session{
		ID:        id,
		Counselor: counselor,
		User:      None,
		StartTime: start,
		Duration:  duration,
		Fee:       fee,
		Status:    StatusOffered,
	}
	if err := tx.InsertSession(ctx, s); err != nil {
		return Session{}, err
	}
	return s, nil
}

func (Sessions) Get(ctx context.Context, tx Tx, id SessionID) (Session, error) {
	return tx.Session(ctx, id)
}

func (Sessions) AppendToPartyIndex(ctx context.Context, tx Tx, role Role, party Identity, id SessionID) error {
	return tx.AppendPartyIndex(ctx, role, party, id)
}

// ListForParty returns the index in booking order. It is never pruned, so it
// can include sessions that were later cancelled or resolved.
func (Sessions) ListForParty(ctx context.Context, tx Tx, role Role, party Identity) ([]SessionID, error) {
	ids, err := tx.PartyIndex(ctx, role, party)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []SessionID{}
	}
	return ids, nil
}
