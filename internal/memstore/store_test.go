package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/susu3304/sessionbook/internal/booking"
)

func TestUpdate_FailedUnitLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	s := New()
	boom := errors.New("boom")

	err := s.Update(ctx, func(tx booking.Tx) error {
		id, err := tx.NextSessionID(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.InsertSession(ctx, booking.Session{ID: id, Counselor: "c", Status: booking.StatusOffered}))
		require.NoError(t, tx.AppendPartyIndex(ctx, booking.RoleUser, "u", id))
		require.NoError(t, tx.SetEscrow(ctx, booking.EscrowKey{Session: id, Payer: "u"}, 10))
		require.NoError(t, tx.Credit(ctx, "c", 10))
		_, err = tx.AppendEvent(ctx, booking.Event{SessionID: id, Kind: booking.EventOffered})
		require.NoError(t, err)

		// Reads inside the unit see its own writes.
		got, err := tx.Session(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, booking.Identity("c"), got.Counselor)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	require.NoError(t, s.View(ctx, func(tx booking.Tx) error {
		_, err := tx.Session(ctx, 1)
		assert.ErrorIs(t, err, booking.ErrSessionNotFound)

		ids, err := tx.PartyIndex(ctx, booking.RoleUser, "u")
		require.NoError(t, err)
		assert.Empty(t, ids)

		held, err := tx.Escrow(ctx, booking.EscrowKey{Session: 1, Payer: "u"})
		require.NoError(t, err)
		assert.Zero(t, held)

		bal, err := tx.Balance(ctx, "c")
		require.NoError(t, err)
		assert.Zero(t, bal)

		events, err := tx.EventsSince(ctx, 0, 0)
		require.NoError(t, err)
		assert.Empty(t, events)
		return nil
	}))

	// The id counter was not advanced either.
	require.NoError(t, s.Update(ctx, func(tx booking.Tx) error {
		id, err := tx.NextSessionID(ctx)
		require.NoError(t, err)
		assert.Equal(t, booking.SessionID(1), id)
		return nil
	}))
}

func TestUpdate_CommitsAndAccumulates(t *testing.T) {
	ctx := context.Background()
	s := New()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		require.NoError(t, s.Update(ctx, func(tx booking.Tx) error {
			id, err := tx.NextSessionID(ctx)
			if err != nil {
				return err
			}
			if err := tx.InsertSession(ctx, booking.Session{ID: id, StartTime: start, Status: booking.StatusOffered}); err != nil {
				return err
			}
			if err := tx.AppendPartyIndex(ctx, booking.RoleCounselor, "c", id); err != nil {
				return err
			}
			if err := tx.Credit(ctx, "c", 5); err != nil {
				return err
			}
			_, err = tx.AppendEvent(ctx, booking.Event{SessionID: id, Kind: booking.EventOffered})
			return err
		}))
	}

	require.NoError(t, s.View(ctx, func(tx booking.Tx) error {
		ids, err := tx.PartyIndex(ctx, booking.RoleCounselor, "c")
		require.NoError(t, err)
		assert.Equal(t, []booking.SessionID{1, 2}, ids)

		bal, err := tx.Balance(ctx, "c")
		require.NoError(t, err)
		assert.Equal(t, booking.Amount(10), bal)

		events, err := tx.SessionEvents(ctx, 2)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, int64(2), events[0].Seq)
		return nil
	}))
}

func TestUpdateSession_UnknownID(t *testing.T) {
	ctx := context.Background()
	s := New()
	err := s.Update(ctx, func(tx booking.Tx) error {
		return tx.UpdateSession(ctx, booking.Session{ID: 9})
	})
	assert.ErrorIs(t, err, booking.ErrSessionNotFound)
}

func TestUpdate_CancelledContextDiscardsWrites(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := New()
	err := s.Update(ctx, func(tx booking.Tx) error {
		cancel()
		return tx.Credit(ctx, "c", 1)
	})
	assert.ErrorIs(t, err, context.Canceled)

	require.NoError(t, s.View(context.Background(), func(tx booking.Tx) error {
		bal, err := tx.Balance(context.Background(), "c")
		require.NoError(t, err)
		assert.Zero(t, bal)
		return nil
	}))
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()

	require.NoError(t, r.RegisterUser(ctx, "u"))
	require.NoError(t, r.RegisterCounselor(ctx, "c"))
	assert.ErrorIs(t, r.RegisterUser(ctx, booking.None), booking.ErrInvalidIdentity)

	ok, err := r.IsRegisteredUser(ctx, "u")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.IsRegisteredCounselor(ctx, "u")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = r.IsRegisteredCounselor(ctx, "c")
	require.NoError(t, err)
	assert.True(t, ok)
}
