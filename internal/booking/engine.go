package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Engine drives the session state machine:
//
//	Offered -> Booked -> Completed | Cancelled | NoShow
//	Offered -> Cancelled
//
// Every method runs as one unit of work on the store, so a failed
// precondition leaves sessions, escrow and balances untouched.
type Engine struct {
	store    Store
	registry Registry
	clock    Clock
	policy   Policy
	ledger   *Ledger
	sessions Sessions
	newID    func() string
}

func NewEngine(store Store, registry Registry, clock Clock, policy Policy) *Engine {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Engine{
		store:    store,
		registry: registry,
		clock:    clock,
		policy:   policy,
		ledger:   NewLedger(nil),
		newID:    uuid.NewString,
	}
}

// WithTransferer replaces how released funds reach their recipient.
func (e *Engine) WithTransferer(t Transferer) *Engine {
	e.ledger = NewLedger(t)
	return e
}

func (e *Engine) Policy() Policy {
	return e.policy
}

// Offer creates a new session owned by the calling counselor.
func (e *Engine) Offer(ctx context.Context, caller Identity, start time.Time, duration time.Duration, fee Amount) (Event, error) {
	if caller == None {
		return Event{}, ErrInvalidIdentity
	}
	ok, err := e.registry.IsRegisteredCounselor(ctx, caller)
	if err != nil {
		return Event{}, fmt.Errorf("check counselor registry: %w", err)
	}
	if !ok {
		return Event{}, ErrNotRegisteredCounselor
	}

	now := e.clock.Now()
	var ev Event
	err = e.store.Update(ctx, func(tx Tx) error {
		s, err := e.sessions.Create(ctx, tx, caller, start, duration, fee, now)
		if err != nil {
			return err
		}
		ev, err = e.record(ctx, tx, Event{SessionID: s.ID, Kind: EventOffered, Actor: caller, At: now})
		return err
	})
	return ev, err
}

// Book reserves an offered session for the caller and escrows the payment.
func (e *Engine) Book(ctx context.Context, caller Identity, id SessionID, payment Amount) (Event, error) {
	if caller == None {
		return Event{}, ErrInvalidIdentity
	}
	ok, err := e.registry.IsRegisteredUser(ctx, caller)
	if err != nil {
		return Event{}, fmt.Errorf("check user registry: %w", err)
	}
	if !ok {
		return Event{}, ErrNotRegisteredUser
	}

	now := e.clock.Now()
	var ev Event
	err = e.store.Update(ctx, func(tx Tx) error {
		s, err := e.sessions.Get(ctx, tx, id)
		if err != nil {
			return err
		}
		if s.Status != StatusOffered {
			return ErrSessionNotAvailable
		}
		if !now.Before(s.StartTime) {
			return ErrSessionAlreadyStarted
		}
		if payment != s.Fee {
			return ErrIncorrectPayment
		}

		s.User = caller
		s.Status = StatusBooked
		if err := tx.UpdateSession(ctx, s); err != nil {
			return err
		}
		if err := e.ledger.Deposit(ctx, tx, EscrowKey{Session: id, Payer: caller}, s.Fee); err != nil {
			return err
		}
		if err := e.sessions.AppendToPartyIndex(ctx, tx, RoleUser, caller, id); err != nil {
			return err
		}
		if err := e.sessions.AppendToPartyIndex(ctx, tx, RoleCounselor, s.Counselor, id); err != nil {
			return err
		}
		ev, err = e.record(ctx, tx, Event{SessionID: id, Kind: EventBooked, Actor: caller, Escrowed: s.Fee, At: now})
		return err
	})
	return ev, err
}

// CancelByUser cancels a booked session on behalf of the user who booked it.
// The fee is split between refund and penalty by the policy.
func (e *Engine) CancelByUser(ctx context.Context, caller Identity, id SessionID) (Event, error) {
	if caller == None {
		return Event{}, ErrInvalidIdentity
	}
	now := e.clock.Now()
	var ev Event
	err := e.store.Update(ctx, func(tx Tx) error {
		s, err := e.sessions.Get(ctx, tx, id)
		if err != nil {
			return err
		}
		if s.Status != StatusBooked {
			return ErrSessionNotBooked
		}
		if caller != s.User {
			return ErrNotBooker
		}

		refund, penalty := e.policy.Split(s.Fee, s.StartTime, now)
		if err := e.releaseIfHeld(ctx, tx, s,
			Share{To: s.User, Amount: refund},
			Share{To: s.Counselor, Amount: penalty},
		); err != nil {
			return err
		}

		s.Status = StatusCancelled
		if err := tx.UpdateSession(ctx, s); err != nil {
			return err
		}
		ev, err = e.record(ctx, tx, Event{SessionID: id, Kind: EventCancelled, Actor: caller, Refunded: refund, Paid: penalty, At: now})
		return err
	})
	return ev, err
}

// CancelByCounselor withdraws an offered session or cancels a booked one.
// A booked user is refunded in full and the session is un-booked.
func (e *Engine) CancelByCounselor(ctx context.Context, caller Identity, id SessionID) (Event, error) {
	if caller == None {
		return Event{}, ErrInvalidIdentity
	}
	now := e.clock.Now()
	var ev Event
	err := e.store.Update(ctx, func(tx Tx) error {
		s, err := e.sessions.Get(ctx, tx, id)
		if err != nil {
			return err
		}
		if s.Status != StatusOffered && s.Status != StatusBooked {
			return ErrCannotCancelSession
		}
		if caller != s.Counselor {
			return ErrNotCounselor
		}

		var refunded Amount
		if s.Status == StatusBooked {
			if err := e.releaseIfHeld(ctx, tx, s, Share{To: s.User, Amount: s.Fee}); err != nil {
				return err
			}
			refunded = s.Fee
			s.User = None
		}

		s.Status = StatusCancelled
		if err := tx.UpdateSession(ctx, s); err != nil {
			return err
		}
		ev, err = e.record(ctx, tx, Event{SessionID: id, Kind: EventCancelled, Actor: caller, Refunded: refunded, At: now})
		return err
	})
	return ev, err
}

// Complete pays the full escrow to the counselor once the session is over.
func (e *Engine) Complete(ctx context.Context, caller Identity, id SessionID) (Event, error) {
	if caller == None {
		return Event{}, ErrInvalidIdentity
	}
	now := e.clock.Now()
	var ev Event
	err := e.store.Update(ctx, func(tx Tx) error {
		s, err := e.sessions.Get(ctx, tx, id)
		if err != nil {
			return err
		}
		if s.Status != StatusBooked {
			return ErrSessionNotBooked
		}
		if caller != s.Counselor {
			return ErrNotCounselor
		}
		if now.Before(s.EndTime()) {
			return ErrSessionNotEnded
		}

		key := EscrowKey{Session: id, Payer: s.User}
		held, err := e.ledger.Held(ctx, tx, key)
		if err != nil {
			return err
		}
		if held == 0 {
			return ErrNoFunds
		}
		if err := e.ledger.Release(ctx, tx, key, Share{To: s.Counselor, Amount: held}); err != nil {
			return err
		}

		s.Status = StatusCompleted
		if err := tx.UpdateSession(ctx, s); err != nil {
			return err
		}
		ev, err = e.record(ctx, tx, Event{SessionID: id, Kind: EventCompleted, Actor: caller, Paid: held, At: now})
		return err
	})
	return ev, err
}

// MarkNoShow resolves a session one party did not attend. The full escrow
// goes to whoever showed up.
func (e *Engine) MarkNoShow(ctx context.Context, caller Identity, id SessionID, counselorWasNoShow bool) (Event, error) {
	if caller == None {
		return Event{}, ErrInvalidIdentity
	}
	now := e.clock.Now()
	var ev Event
	err := e.store.Update(ctx, func(tx Tx) error {
		s, err := e.sessions.Get(ctx, tx, id)
		if err != nil {
			return err
		}
		if s.Status != StatusBooked {
			return ErrSessionNotBooked
		}
		if caller != s.Counselor {
			return ErrNotCounselor
		}
		if now.Before(s.EndTime()) {
			return ErrSessionNotEnded
		}

		out := Event{SessionID: id, Kind: EventNoShow, Actor: caller, At: now}
		to := s.Counselor
		if counselorWasNoShow {
			to = s.User
			out.Refunded = s.Fee
		} else {
			out.Paid = s.Fee
		}
		if err := e.releaseIfHeld(ctx, tx, s, Share{To: to, Amount: s.Fee}); err != nil {
			return err
		}

		s.Status = StatusNoShow
		if err := tx.UpdateSession(ctx, s); err != nil {
			return err
		}
		ev, err = e.record(ctx, tx, out)
		return err
	})
	return ev, err
}

// releaseIfHeld releases the booking's escrow. Free sessions never held
// anything, so there is nothing to move for them.
func (e *Engine) releaseIfHeld(ctx context.Context, tx Tx, s Session, shares ...Share) error {
	if s.Fee == 0 {
		return nil
	}
	return e.ledger.Release(ctx, tx, EscrowKey{Session: s.ID, Payer: s.User}, shares...)
}

func (e *Engine) record(ctx context.Context, tx Tx, ev Event) (Event, error) {
	ev.ID = e.newID()
	stored, err := tx.AppendEvent(ctx, ev)
	if err != nil {
		return Event{}, fmt.Errorf("append event: %w", err)
	}
	return stored, nil
}
