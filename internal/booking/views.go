package booking

import (
	"context"
	"time"
)

// SessionView is the public projection of a session.
type SessionView struct {
	ID        SessionID     `json:"id"`
	Counselor Identity      `json:"counselor"`
	StartTime time.Time     `json:"start_time"`
	Duration  time.Duration `json:"duration"`
	Fee       Amount        `json:"fee"`
	Status    Status        `json:"status"`
}

// SessionDetails is what the two participants of a session may see.
type SessionDetails struct {
	SessionView
	User    Identity  `json:"user"`
	Escrow  Amount    `json:"escrow"`
	EndTime time.Time `json:"end_time"`
}

func viewOf(s Session) SessionView {
	return SessionView{
		ID:        s.ID,
		Counselor: s.Counselor,
		StartTime: s.StartTime,
		Duration:  s.Duration,
		Fee:       s.Fee,
		Status:    s.Status,
	}
}

func (e *Engine) GetSession(ctx context.Context, id SessionID) (SessionView, error) {
	var v SessionView
	err := e.store.View(ctx, func(tx Tx) error {
		s, err := e.sessions.Get(ctx, tx, id)
		if err != nil {
			return err
		}
		v = viewOf(s)
		return nil
	})
	return v, err
}

func (e *Engine) GetSessionDetails(ctx context.Context, caller Identity, id SessionID) (SessionDetails, error) {
	var d SessionDetails
	err := e.store.View(ctx, func(tx Tx) error {
		s, err := e.participantSession(ctx, tx, caller, id)
		if err != nil {
			return err
		}
		var held Amount
		if s.User != None {
			held, err = e.ledger.Held(ctx, tx, EscrowKey{Session: id, Payer: s.User})
			if err != nil {
				return err
			}
		}
		d = SessionDetails{SessionView: viewOf(s), User: s.User, Escrow: held, EndTime: s.EndTime()}
		return nil
	})
	return d, err
}

// SessionHistory returns the events of a session in order, for its participants.
// A user whose booking was cancelled by the counselor keeps access through the
// booked event.
func (e *Engine) SessionHistory(ctx context.Context, caller Identity, id SessionID) ([]Event, error) {
	if caller == None {
		return nil, ErrInvalidIdentity
	}
	var out []Event
	err := e.store.View(ctx, func(tx Tx) error {
		s, err := e.sessions.Get(ctx, tx, id)
		if err != nil {
			return err
		}
		events, err := tx.SessionEvents(ctx, id)
		if err != nil {
			return err
		}
		allowed := caller == s.Counselor || caller == s.User
		for _, ev := range events {
			if ev.Kind == EventBooked && ev.Actor == caller {
				allowed = true
			}
		}
		if !allowed {
			return ErrNotAuthorized
		}
		out = events
		return nil
	})
	return out, err
}

// MyBookedSessions lists the sessions the caller booked as a user.
func (e *Engine) MyBookedSessions(ctx context.Context, caller Identity) ([]SessionID, error) {
	if caller == None {
		return nil, ErrInvalidIdentity
	}
	return e.listForParty(ctx, RoleUser, caller)
}

// CounselorBookedSessions lists the sessions of counselor that were booked.
func (e *Engine) CounselorBookedSessions(ctx context.Context, counselor Identity) ([]SessionID, error) {
	return e.listForParty(ctx, RoleCounselor, counselor)
}

func (e *Engine) Balance(ctx context.Context, party Identity) (Amount, error) {
	var b Amount
	err := e.store.View(ctx, func(tx Tx) error {
		var err error
		b, err = tx.Balance(ctx, party)
		return err
	})
	return b, err
}

// EventsSince returns up to limit events with a sequence number above afterSeq.
func (e *Engine) EventsSince(ctx context.Context, afterSeq int64, limit int) ([]Event, error) {
	var out []Event
	err := e.store.View(ctx, func(tx Tx) error {
		var err error
		out, err = tx.EventsSince(ctx, afterSeq, limit)
		return err
	})
	return out, err
}

func (e *Engine) listForParty(ctx context.Context, role Role, party Identity) ([]SessionID, error) {
	var ids []SessionID
	err := e.store.View(ctx, func(tx Tx) error {
		var err error
		ids, err = e.sessions.ListForParty(ctx, tx, role, party)
		return err
	})
	return ids, err
}

func (e *Engine) participantSession(ctx context.Context, tx Tx, caller Identity, id SessionID) (Session, error) {
	if caller == None {
		return Session{}, ErrInvalidIdentity
	}
	s, err := e.sessions.Get(ctx, tx, id)
	if err != nil {
		return Session{}, err
	}
	if caller != s.Counselor && caller != s.User {
		return Session{}, ErrNotAuthorized
	}
	return s, nil
}
