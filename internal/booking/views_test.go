package booking_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/susu3304/sessionbook/internal/booking"
)

func TestGetSessionDetails_OnlyParticipants(t *testing.T) {
	f := newFixture(t)
	id := f.booked(t, oneUnit)

	d, err := f.eng.GetSessionDetails(f.ctx, alice, id)
	require.NoError(t, err)
	assert.Equal(t, alice, d.User)
	assert.Equal(t, t0.Add(2*time.Hour+30*time.Minute), d.EndTime)

	_, err = f.eng.GetSessionDetails(f.ctx, bob, id)
	assert.ErrorIs(t, err, booking.ErrNotAuthorized)
	assert.Equal(t, booking.KindUnauthorized, booking.KindOf(err))

	_, err = f.eng.GetSessionDetails(f.ctx, booking.None, id)
	assert.ErrorIs(t, err, booking.ErrInvalidIdentity)

	_, err = f.eng.GetSessionDetails(f.ctx, alice, 1000)
	assert.ErrorIs(t, err, booking.ErrSessionNotFound)

	v, err := f.eng.GetSession(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusBooked, v.Status)
}

func TestGetSessionDetails_UnbookedSessionHidesFromUsers(t *testing.T) {
	f := newFixture(t)
	id := f.offer(t, time.Hour, time.Hour, oneUnit)

	_, err := f.eng.GetSessionDetails(f.ctx, alice, id)
	assert.ErrorIs(t, err, booking.ErrNotAuthorized)

	d, err := f.eng.GetSessionDetails(f.ctx, counselor, id)
	require.NoError(t, err)
	assert.Equal(t, booking.None, d.User)
}

func TestSessionHistory(t *testing.T) {
	f := newFixture(t)
	id := f.booked(t, oneUnit)
	f.clock.Advance(time.Hour)
	_, err := f.eng.CancelByCounselor(f.ctx, counselor, id)
	require.NoError(t, err)

	// alice is no longer the session's user but booked it once.
	events, err := f.eng.SessionHistory(f.ctx, alice, id)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, []booking.EventKind{booking.EventOffered, booking.EventBooked, booking.EventCancelled},
		[]booking.EventKind{events[0].Kind, events[1].Kind, events[2].Kind})
	assert.Equal(t, oneUnit, events[2].Refunded)
	assert.Equal(t, counselor, events[2].Actor)
	for i, ev := range events {
		assert.Equal(t, int64(i+1), ev.Seq)
		assert.NotEmpty(t, ev.ID)
	}

	_, err = f.eng.SessionHistory(f.ctx, bob, id)
	assert.ErrorIs(t, err, booking.ErrNotAuthorized)
}

func TestEventsSince_Pages(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 5; i++ {
		f.offer(t, time.Hour, time.Hour, 1)
	}

	page, err := f.eng.EventsSince(f.ctx, 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(2), page[1].Seq)

	page, err = f.eng.EventsSince(f.ctx, page[1].Seq, 10)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, int64(3), page[0].Seq)
	assert.Equal(t, booking.SessionID(5), page[2].SessionID)

	page, err = f.eng.EventsSince(f.ctx, 5, 10)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestPartyIndices_KeepBookingOrder(t *testing.T) {
	f := newFixture(t)
	first := f.booked(t, 1)
	second := f.offer(t, time.Hour, time.Hour, 2)
	_, err := f.eng.Book(f.ctx, bob, second, 2)
	require.NoError(t, err)
	third := f.booked(t, 3)

	mine, err := f.eng.MyBookedSessions(f.ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, []booking.SessionID{first, third}, mine)

	theirs, err := f.eng.CounselorBookedSessions(f.ctx, counselor)
	require.NoError(t, err)
	assert.Equal(t, []booking.SessionID{first, second, third}, theirs)

	none, err := f.eng.CounselorBookedSessions(f.ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}
