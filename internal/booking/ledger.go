package booking

import (
	"context"
	"fmt"
)

// Transferer hands released funds to a recipient inside the unit of work.
// An error aborts the whole operation.
type Transferer interface {
	Transfer(ctx context.Context, tx Tx, to Identity, amount Amount) error
}

// CreditTransferer credits the recipient's custodial balance.
type CreditTransferer struct{}

func (CreditTransferer) Transfer(ctx context.Context, tx Tx, to Identity, amount Amount) error {
	return tx.Credit(ctx, to, amount)
}

// Ledger holds escrowed funds keyed by (session, payer). Every entry is
// released at most once.
type Ledger struct {
	transfer Transferer
}

func NewLedger(t Transferer) *Ledger {
	if t == nil {
		t = CreditTransferer{}
	}
	return &Ledger{transfer: t}
}

func (l *Ledger) Held(ctx context.Context, tx Tx, key EscrowKey) (Amount, error) {
	return tx.Escrow(ctx, key)
}

// Deposit records amount as held for key.
func (l *Ledger) Deposit(ctx context.Context, tx Tx, key EscrowKey, amount Amount) error {
	if amount < 0 {
		return ErrNegativeTransfer
	}
	held, err := tx.Escrow(ctx, key)
	if err != nil {
		return fmt.Errorf("read escrow: %w", err)
	}
	if held != 0 {
		return ErrAlreadyEscrowed
	}
	return tx.SetEscrow(ctx, key, amount)
}

// Release pays the held amount out according to shares and zeroes the entry.
// Shares must add up to exactly the held amount; zero shares are skipped.
func (l *Ledger) Release(ctx context.Context, tx Tx, key EscrowKey, shares ...Share) error {
	held, err := tx.Escrow(ctx, key)
	if err != nil {
		return fmt.Errorf("read escrow: %w", err)
	}
	if held == 0 {
		return ErrNothingEscrowed
	}

	var total Amount
	for _, s := range shares {
		if s.Amount < 0 {
			return ErrNegativeTransfer
		}
		total += s.Amount
	}
	if total != held {
		return fmt.Errorf("%w: held %d, shares %d", ErrShareMismatch, held, total)
	}

	if err := tx.SetEscrow(ctx, key, 0); err != nil {
		return err
	}
	for _, s := range shares {
		if s.Amount == 0 {
			continue
		}
		if err := l.transfer.Transfer(ctx, tx, s.To, s.Amount); err != nil {
			return fmt.Errorf("transfer %d to %s: %w", s.Amount, s.To, err)
		}
	}
	return nil
}
