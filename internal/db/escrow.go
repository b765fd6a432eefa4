package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/susu3304/sessionbook/internal/booking"
)

func (t *pgTx) Escrow(ctx context.Context, key booking.EscrowKey) (booking.Amount, error) {
	var amount int64
	err := t.tx.QueryRow(ctx,
		`SELECT amount FROM escrow WHERE session_id = $1 AND payer_id = $2`,
		int64(key.Session), string(key.Payer),
	).Scan(&amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get escrow: %w", err)
	}
	return booking.Amount(amount), nil
}

func (t *pgTx) SetEscrow(ctx context.Context, key booking.EscrowKey, amount booking.Amount) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO escrow (session_id, payer_id, amount)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (session_id, payer_id) DO UPDATE SET amount = EXCLUDED.amount`,
		int64(key.Session), string(key.Payer), int64(amount),
	)
	if err != nil {
		return fmt.Errorf("set escrow: %w", err)
	}
	return nil
}

// Credit adds amount to a party's custodial balance.
func (t *pgTx) Credit(ctx context.Context, party booking.Identity, amount booking.Amount) error {
	if amount < 0 {
		return booking.ErrNegativeTransfer
	}
	_, err := t.tx.Exec(ctx,
		`INSERT INTO balances (party_id, amount)
		 VALUES ($1, $2)
		 ON CONFLICT (party_id) DO UPDATE SET amount = balances.amount + EXCLUDED.amount`,
		string(party), int64(amount),
	)
	if err != nil {
		return fmt.Errorf("credit %s: %w", party, err)
	}
	return nil
}

func (t *pgTx) Balance(ctx context.Context, party booking.Identity) (booking.Amount, error) {
	var amount int64
	err := t.tx.QueryRow(ctx, `SELECT amount FROM balances WHERE party_id = $1`, string(party)).Scan(&amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return booking.Amount(amount), nil
}
