package booking_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/susu3304/sessionbook/internal/booking"
	"github.com/susu3304/sessionbook/internal/memstore"
)

func TestLedger_DepositAndRelease(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	ledger := booking.NewLedger(nil)
	key := booking.EscrowKey{Session: 1, Payer: alice}

	require.NoError(t, store.Update(ctx, func(tx booking.Tx) error {
		return ledger.Deposit(ctx, tx, key, 100)
	}))

	err := store.Update(ctx, func(tx booking.Tx) error {
		return ledger.Deposit(ctx, tx, key, 100)
	})
	assert.ErrorIs(t, err, booking.ErrAlreadyEscrowed)

	err = store.Update(ctx, func(tx booking.Tx) error {
		return ledger.Release(ctx, tx, key, booking.Share{To: alice, Amount: 60}, booking.Share{To: counselor, Amount: 30})
	})
	assert.ErrorIs(t, err, booking.ErrShareMismatch)

	require.NoError(t, store.Update(ctx, func(tx booking.Tx) error {
		return ledger.Release(ctx, tx, key,
			booking.Share{To: alice, Amount: 70},
			booking.Share{To: counselor, Amount: 30},
			booking.Share{To: bob, Amount: 0},
		)
	}))

	err = store.Update(ctx, func(tx booking.Tx) error {
		return ledger.Release(ctx, tx, key, booking.Share{To: alice, Amount: 100})
	})
	assert.ErrorIs(t, err, booking.ErrNothingEscrowed)

	require.NoError(t, store.View(ctx, func(tx booking.Tx) error {
		held, err := ledger.Held(ctx, tx, key)
		require.NoError(t, err)
		assert.Zero(t, held)

		a, err := tx.Balance(ctx, alice)
		require.NoError(t, err)
		c, err := tx.Balance(ctx, counselor)
		require.NoError(t, err)
		assert.Equal(t, booking.Amount(70), a)
		assert.Equal(t, booking.Amount(30), c)
		return nil
	}))
}

func TestLedger_RedepositAfterRelease(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	ledger := booking.NewLedger(booking.CreditTransferer{})
	key := booking.EscrowKey{Session: 3, Payer: bob}

	require.NoError(t, store.Update(ctx, func(tx booking.Tx) error {
		if err := ledger.Deposit(ctx, tx, key, 5); err != nil {
			return err
		}
		if err := ledger.Release(ctx, tx, key, booking.Share{To: bob, Amount: 5}); err != nil {
			return err
		}
		return ledger.Deposit(ctx, tx, key, 8)
	}))

	require.NoError(t, store.View(ctx, func(tx booking.Tx) error {
		held, err := ledger.Held(ctx, tx, key)
		require.NoError(t, err)
		assert.Equal(t, booking.Amount(8), held)
		return nil
	}))
}

func TestLedger_RejectsNegativeAmounts(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	ledger := booking.NewLedger(nil)
	key := booking.EscrowKey{Session: 1, Payer: alice}

	err := store.Update(ctx, func(tx booking.Tx) error {
		return ledger.Deposit(ctx, tx, key, -1)
	})
	assert.ErrorIs(t, err, booking.ErrNegativeTransfer)

	err = store.Update(ctx, func(tx booking.Tx) error {
		if err := ledger.Deposit(ctx, tx, key, 10); err != nil {
			return err
		}
		return ledger.Release(ctx, tx, key, booking.Share{To: alice, Amount: 20}, booking.Share{To: bob, Amount: -10})
	})
	assert.ErrorIs(t, err, booking.ErrNegativeTransfer)
}
