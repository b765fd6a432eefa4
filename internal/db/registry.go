package db

import (
	"context"

	"github.com/susu3304/sessionbook/internal/booking"
)

func (db *DB) RegisterUser(ctx context.Context, id booking.Identity) error {
	return db.register(ctx, "registered_users", id)
}

func (db *DB) RegisterCounselor(ctx context.Context, id booking.Identity) error {
	return db.register(ctx, "registered_counselors", id)
}

func (db *DB) IsRegisteredUser(ctx context.Context, id booking.Identity) (bool, error) {
	return db.isRegistered(ctx, "registered_users", id)
}

func (db *DB) IsRegisteredCounselor(ctx context.Context, id booking.Identity) (bool, error) {
	return db.isRegistered(ctx, "registered_counselors", id)
}

// table is always one of the two registry tables above, never caller input.
func (db *DB) register(ctx context.Context, table string, id booking.Identity) error {
	if id == booking.None {
		return booking.ErrInvalidIdentity
	}
	_, err := db.pool.Exec(ctx,
		"INSERT INTO "+table+" (identity) VALUES ($1) ON CONFLICT (identity) DO NOTHING",
		string(id),
	)
	return err
}

func (db *DB) isRegistered(ctx context.Context, table string, id booking.Identity) (bool, error) {
	var exists bool
	err := db.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM "+table+" WHERE identity = $1)",
		string(id),
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}
