package booking_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/susu3304/sessionbook/internal/booking"
	"github.com/susu3304/sessionbook/internal/memstore"
)

const (
	counselor = booking.Identity("counselor")
	alice     = booking.Identity("alice")
	bob       = booking.Identity("bob")

	oneUnit = booking.Amount(1_000_000)
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	ctx   context.Context
	eng   *booking.Engine
	clock *booking.FixedClock
	store *memstore.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	reg := memstore.NewRegistry()
	require.NoError(t, reg.RegisterCounselor(ctx, counselor))
	require.NoError(t, reg.RegisterUser(ctx, alice))
	require.NoError(t, reg.RegisterUser(ctx, bob))

	clock := &booking.FixedClock{T: t0}
	store := memstore.New()
	return &fixture{
		ctx:   ctx,
		eng:   booking.NewEngine(store, reg, clock, booking.DefaultPolicy()),
		clock: clock,
		store: store,
	}
}

func (f *fixture) offer(t *testing.T, startIn, duration time.Duration, fee booking.Amount) booking.SessionID {
	t.Helper()
	ev, err := f.eng.Offer(f.ctx, counselor, f.clock.Now().Add(startIn), duration, fee)
	require.NoError(t, err)
	return ev.SessionID
}

func (f *fixture) booked(t *testing.T, fee booking.Amount) booking.SessionID {
	t.Helper()
	id := f.offer(t, 2*time.Hour, 30*time.Minute, fee)
	_, err := f.eng.Book(f.ctx, alice, id, fee)
	require.NoError(t, err)
	return id
}

func (f *fixture) details(t *testing.T, id booking.SessionID) booking.SessionDetails {
	t.Helper()
	d, err := f.eng.GetSessionDetails(f.ctx, counselor, id)
	require.NoError(t, err)
	return d
}

func (f *fixture) balance(t *testing.T, who booking.Identity) booking.Amount {
	t.Helper()
	b, err := f.eng.Balance(f.ctx, who)
	require.NoError(t, err)
	return b
}

// requireEscrowMatchesStatus checks that escrow is held exactly while booked.
func (f *fixture) requireEscrowMatchesStatus(t *testing.T, id booking.SessionID) {
	t.Helper()
	d := f.details(t, id)
	if d.Status == booking.StatusBooked {
		assert.Equal(t, d.Fee, d.Escrow, "booked session must hold its fee")
	} else {
		assert.Zero(t, d.Escrow, "%s session must hold nothing", d.Status)
	}
}

func TestOffer_AssignsSequentialIDs(t *testing.T) {
	f := newFixture(t)

	first := f.offer(t, time.Hour, time.Hour, oneUnit)
	second := f.offer(t, time.Hour, time.Hour, oneUnit)

	assert.Equal(t, booking.SessionID(1), first)
	assert.Equal(t, booking.SessionID(2), second)

	v, err := f.eng.GetSession(f.ctx, first)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusOffered, v.Status)
	assert.Equal(t, counselor, v.Counselor)
	assert.Equal(t, oneUnit, v.Fee)
	assert.Equal(t, t0.Add(time.Hour), v.StartTime)
}

func TestOffer_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		caller   booking.Identity
		start    time.Time
		duration time.Duration
		fee      booking.Amount
		wantErr  error
	}{
		{"start in the past", counselor, t0.Add(-time.Minute), time.Hour, 1, booking.ErrStartTimeInPast},
		{"start now", counselor, t0, time.Hour, 1, booking.ErrStartTimeInPast},
		{"zero duration", counselor, t0.Add(time.Hour), 0, 1, booking.ErrInvalidDuration},
		{"negative duration", counselor, t0.Add(time.Hour), -time.Minute, 1, booking.ErrInvalidDuration},
		{"negative fee", counselor, t0.Add(time.Hour), time.Hour, -1, booking.ErrInvalidFee},
		{"user is not a counselor", alice, t0.Add(time.Hour), time.Hour, 1, booking.ErrNotRegisteredCounselor},
		{"empty identity", booking.None, t0.Add(time.Hour), time.Hour, 1, booking.ErrInvalidIdentity},
	}

	f := newFixture(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.eng.Offer(f.ctx, tt.caller, tt.start, tt.duration, tt.fee)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	// Rejected offers must not consume ids.
	assert.Equal(t, booking.SessionID(1), f.offer(t, time.Hour, time.Hour, 1))
}

func TestBook_EscrowsFeeAndIndexesBothParties(t *testing.T) {
	f := newFixture(t)
	id := f.offer(t, time.Hour, 30*time.Minute, oneUnit)

	ev, err := f.eng.Book(f.ctx, alice, id, oneUnit)
	require.NoError(t, err)
	assert.Equal(t, booking.EventBooked, ev.Kind)
	assert.Equal(t, oneUnit, ev.Escrowed)

	d := f.details(t, id)
	assert.Equal(t, booking.StatusBooked, d.Status)
	assert.Equal(t, alice, d.User)
	assert.Equal(t, oneUnit, d.Escrow)

	mine, err := f.eng.MyBookedSessions(f.ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, []booking.SessionID{id}, mine)

	theirs, err := f.eng.CounselorBookedSessions(f.ctx, counselor)
	require.NoError(t, err)
	assert.Equal(t, []booking.SessionID{id}, theirs)
}

func TestBook_SecondBookingFailsWithoutDoubleEscrow(t *testing.T) {
	for _, who := range []booking.Identity{alice, bob} {
		t.Run(string(who), func(t *testing.T) {
			f := newFixture(t)
			id := f.booked(t, oneUnit)

			_, err := f.eng.Book(f.ctx, who, id, oneUnit)
			assert.ErrorIs(t, err, booking.ErrSessionNotAvailable)

			d := f.details(t, id)
			assert.Equal(t, alice, d.User)
			assert.Equal(t, oneUnit, d.Escrow)

			bobs, err := f.eng.MyBookedSessions(f.ctx, bob)
			require.NoError(t, err)
			assert.Empty(t, bobs)
		})
	}
}

func TestBook_IncorrectPaymentLeavesSessionOffered(t *testing.T) {
	f := newFixture(t)
	id := f.offer(t, time.Hour, time.Hour, oneUnit)

	for _, payment := range []booking.Amount{0, oneUnit - 1, oneUnit + 1} {
		_, err := f.eng.Book(f.ctx, alice, id, payment)
		assert.ErrorIs(t, err, booking.ErrIncorrectPayment)
	}

	d := f.details(t, id)
	assert.Equal(t, booking.StatusOffered, d.Status)
	assert.Equal(t, booking.None, d.User)
	assert.Zero(t, d.Escrow)

	mine, err := f.eng.MyBookedSessions(f.ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, mine)

	events, err := f.eng.EventsSince(f.ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, booking.EventOffered, events[0].Kind)
}

func TestBook_Rejects(t *testing.T) {
	f := newFixture(t)
	id := f.offer(t, time.Hour, time.Hour, oneUnit)

	_, err := f.eng.Book(f.ctx, alice, 99, oneUnit)
	assert.ErrorIs(t, err, booking.ErrSessionNotFound)

	_, err = f.eng.Book(f.ctx, counselor, id, oneUnit)
	assert.ErrorIs(t, err, booking.ErrNotRegisteredUser)

	f.clock.Advance(time.Hour)
	_, err = f.eng.Book(f.ctx, alice, id, oneUnit)
	assert.ErrorIs(t, err, booking.ErrSessionAlreadyStarted)

	cancelled := f.offer(t, time.Hour, time.Hour, oneUnit)
	_, err = f.eng.CancelByCounselor(f.ctx, counselor, cancelled)
	require.NoError(t, err)
	_, err = f.eng.Book(f.ctx, alice, cancelled, oneUnit)
	assert.ErrorIs(t, err, booking.ErrSessionNotAvailable)
}

func TestCancelByUser_FullRefundOutsideWindow(t *testing.T) {
	for _, before := range []time.Duration{2 * time.Hour, time.Hour} {
		t.Run(before.String(), func(t *testing.T) {
			f := newFixture(t)
			id := f.offer(t, 3*time.Hour, 30*time.Minute, oneUnit)
			_, err := f.eng.Book(f.ctx, alice, id, oneUnit)
			require.NoError(t, err)

			f.clock.T = t0.Add(3 * time.Hour).Add(-before)
			ev, err := f.eng.CancelByUser(f.ctx, alice, id)
			require.NoError(t, err)

			assert.Equal(t, oneUnit, ev.Refunded)
			assert.Zero(t, ev.Paid)
			assert.Equal(t, oneUnit, f.balance(t, alice))
			assert.Zero(t, f.balance(t, counselor))
			f.requireEscrowMatchesStatus(t, id)
		})
	}
}

func TestCancelByUser_LateCancellationSplitsFee(t *testing.T) {
	f := newFixture(t)
	id := f.offer(t, 3600*time.Second, 1800*time.Second, oneUnit)
	_, err := f.eng.Book(f.ctx, alice, id, oneUnit)
	require.NoError(t, err)

	f.clock.T = t0.Add(3600*time.Second - 10*time.Second)
	ev, err := f.eng.CancelByUser(f.ctx, alice, id)
	require.NoError(t, err)

	assert.Equal(t, oneUnit/2, ev.Refunded)
	assert.Equal(t, oneUnit/2, ev.Paid)
	assert.Equal(t, oneUnit/2, f.balance(t, alice))
	assert.Equal(t, oneUnit/2, f.balance(t, counselor))

	d := f.details(t, id)
	assert.Equal(t, booking.StatusCancelled, d.Status)
	assert.Zero(t, d.Escrow)
}

func TestCancelByUser_Rejects(t *testing.T) {
	f := newFixture(t)
	offered := f.offer(t, time.Hour, time.Hour, oneUnit)
	id := f.booked(t, oneUnit)

	_, err := f.eng.CancelByUser(f.ctx, alice, 42)
	assert.ErrorIs(t, err, booking.ErrSessionNotFound)

	_, err = f.eng.CancelByUser(f.ctx, alice, offered)
	assert.ErrorIs(t, err, booking.ErrSessionNotBooked)

	_, err = f.eng.CancelByUser(f.ctx, bob, id)
	assert.ErrorIs(t, err, booking.ErrNotBooker)

	_, err = f.eng.CancelByUser(f.ctx, counselor, id)
	assert.ErrorIs(t, err, booking.ErrNotBooker)

	_, err = f.eng.CancelByUser(f.ctx, alice, id)
	require.NoError(t, err)
	_, err = f.eng.CancelByUser(f.ctx, alice, id)
	assert.ErrorIs(t, err, booking.ErrSessionNotBooked)
	assert.Equal(t, oneUnit, f.balance(t, alice), "second cancel must not pay again")
}

func TestCancelByCounselor_OfferedSessionMovesNothing(t *testing.T) {
	f := newFixture(t)
	id := f.offer(t, time.Hour, time.Hour, oneUnit)

	ev, err := f.eng.CancelByCounselor(f.ctx, counselor, id)
	require.NoError(t, err)
	assert.Zero(t, ev.Refunded)

	d := f.details(t, id)
	assert.Equal(t, booking.StatusCancelled, d.Status)
	assert.Equal(t, booking.None, d.User)
	assert.Zero(t, d.Escrow)
	assert.Zero(t, f.balance(t, counselor))
}

func TestCancelByCounselor_BookedSessionRefundsUser(t *testing.T) {
	f := newFixture(t)
	id := f.booked(t, oneUnit)
	f.clock.T = t0.Add(2*time.Hour - time.Minute)

	ev, err := f.eng.CancelByCounselor(f.ctx, counselor, id)
	require.NoError(t, err)
	assert.Equal(t, oneUnit, ev.Refunded)
	assert.Equal(t, oneUnit, f.balance(t, alice))
	assert.Zero(t, f.balance(t, counselor))

	d := f.details(t, id)
	assert.Equal(t, booking.StatusCancelled, d.Status)
	assert.Equal(t, booking.None, d.User)

	// Party indices are append-only.
	mine, err := f.eng.MyBookedSessions(f.ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, []booking.SessionID{id}, mine)
}

func TestCancelByCounselor_Rejects(t *testing.T) {
	f := newFixture(t)
	id := f.booked(t, oneUnit)

	_, err := f.eng.CancelByCounselor(f.ctx, counselor, 7)
	assert.ErrorIs(t, err, booking.ErrSessionNotFound)

	_, err = f.eng.CancelByCounselor(f.ctx, alice, id)
	assert.ErrorIs(t, err, booking.ErrNotCounselor)

	f.clock.Advance(3 * time.Hour)
	_, err = f.eng.Complete(f.ctx, counselor, id)
	require.NoError(t, err)

	_, err = f.eng.CancelByCounselor(f.ctx, counselor, id)
	assert.ErrorIs(t, err, booking.ErrCannotCancelSession)
}

func TestComplete_PaysCounselorOnce(t *testing.T) {
	f := newFixture(t)
	id := f.booked(t, oneUnit)

	f.clock.T = t0.Add(2*time.Hour + 29*time.Minute)
	_, err := f.eng.Complete(f.ctx, counselor, id)
	assert.ErrorIs(t, err, booking.ErrSessionNotEnded)

	f.clock.T = t0.Add(2*time.Hour + 30*time.Minute)
	_, err = f.eng.Complete(f.ctx, alice, id)
	assert.ErrorIs(t, err, booking.ErrNotCounselor)

	ev, err := f.eng.Complete(f.ctx, counselor, id)
	require.NoError(t, err)
	assert.Equal(t, oneUnit, ev.Paid)
	assert.Equal(t, oneUnit, f.balance(t, counselor))
	f.requireEscrowMatchesStatus(t, id)

	_, err = f.eng.Complete(f.ctx, counselor, id)
	assert.ErrorIs(t, err, booking.ErrSessionNotBooked)
	assert.Equal(t, oneUnit, f.balance(t, counselor))
}

func TestComplete_FreeSessionHasNoFunds(t *testing.T) {
	f := newFixture(t)
	id := f.booked(t, 0)
	f.clock.Advance(3 * time.Hour)

	_, err := f.eng.Complete(f.ctx, counselor, id)
	assert.ErrorIs(t, err, booking.ErrNoFunds)
	assert.Equal(t, booking.KindInvariant, booking.KindOf(err))
	assert.Equal(t, booking.StatusBooked, f.details(t, id).Status)

	// The other resolutions still work for a free session.
	_, err = f.eng.MarkNoShow(f.ctx, counselor, id, false)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusNoShow, f.details(t, id).Status)
}

func TestMarkNoShow(t *testing.T) {
	tests := []struct {
		name               string
		counselorWasNoShow bool
		wantAlice          booking.Amount
		wantCounselor      booking.Amount
	}{
		{"user absent", false, 0, oneUnit},
		{"counselor absent", true, oneUnit, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			id := f.booked(t, oneUnit)

			_, err := f.eng.MarkNoShow(f.ctx, counselor, id, tt.counselorWasNoShow)
			assert.ErrorIs(t, err, booking.ErrSessionNotEnded)

			f.clock.Advance(3 * time.Hour)
			_, err = f.eng.MarkNoShow(f.ctx, alice, id, tt.counselorWasNoShow)
			assert.ErrorIs(t, err, booking.ErrNotCounselor)

			_, err = f.eng.MarkNoShow(f.ctx, counselor, id, tt.counselorWasNoShow)
			require.NoError(t, err)

			assert.Equal(t, tt.wantAlice, f.balance(t, alice))
			assert.Equal(t, tt.wantCounselor, f.balance(t, counselor))
			assert.Equal(t, booking.StatusNoShow, f.details(t, id).Status)
			f.requireEscrowMatchesStatus(t, id)

			_, err = f.eng.MarkNoShow(f.ctx, counselor, id, tt.counselorWasNoShow)
			assert.ErrorIs(t, err, booking.ErrSessionNotBooked)
		})
	}
}

type rejectingTransferer struct {
	reject booking.Identity
}

func (r rejectingTransferer) Transfer(ctx context.Context, tx booking.Tx, to booking.Identity, amount booking.Amount) error {
	if to == r.reject {
		return errors.New("recipient cannot accept funds")
	}
	return tx.Credit(ctx, to, amount)
}

func TestRelease_TransferFailureRollsBackEverything(t *testing.T) {
	f := newFixture(t)
	id := f.booked(t, oneUnit)
	f.eng.WithTransferer(rejectingTransferer{reject: counselor})

	// Late cancellation: alice is credited first, then the counselor transfer fails.
	f.clock.T = t0.Add(2*time.Hour - time.Minute)
	_, err := f.eng.CancelByUser(f.ctx, alice, id)
	require.Error(t, err)

	d := f.details(t, id)
	assert.Equal(t, booking.StatusBooked, d.Status)
	assert.Equal(t, oneUnit, d.Escrow)
	assert.Zero(t, f.balance(t, alice))
	assert.Zero(t, f.balance(t, counselor))

	events, err := f.eng.EventsSince(f.ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, events, 2, "only offered and booked events")

	// With a working transferer the same cancellation goes through.
	f.eng.WithTransferer(nil)
	_, err = f.eng.CancelByUser(f.ctx, alice, id)
	require.NoError(t, err)
	assert.Equal(t, oneUnit/2, f.balance(t, alice))
}

func TestFundsAreConserved(t *testing.T) {
	f := newFixture(t)
	var ids []booking.SessionID
	for i := 0; i < 4; i++ {
		ids = append(ids, f.booked(t, oneUnit+booking.Amount(i)*333))
	}
	total := booking.Amount(0)
	for _, id := range ids {
		total += f.details(t, id).Fee
	}

	f.clock.T = t0.Add(2*time.Hour - time.Minute)
	_, err := f.eng.CancelByUser(f.ctx, alice, ids[0])
	require.NoError(t, err)
	_, err = f.eng.CancelByCounselor(f.ctx, counselor, ids[1])
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	_, err = f.eng.Complete(f.ctx, counselor, ids[2])
	require.NoError(t, err)
	_, err = f.eng.MarkNoShow(f.ctx, counselor, ids[3], true)
	require.NoError(t, err)

	for _, id := range ids {
		f.requireEscrowMatchesStatus(t, id)
	}
	assert.Equal(t, total, f.balance(t, alice)+f.balance(t, counselor))
}
