package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/susu3304/sessionbook/internal/booking"
)

// writerLockKey is the advisory lock every writing unit of work holds, so
// all state changes are serialized across processes.
const writerLockKey int64 = 0x5e5510b0

type DB struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

func (db *DB) Close() {
	db.pool.Close()
}

func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// RunMigrations runs database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS registered_users (
			identity TEXT PRIMARY KEY,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS registered_counselors (
			identity TEXT PRIMARY KEY,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS sessions (
			id BIGINT PRIMARY KEY,
			counselor_id TEXT NOT NULL,
			user_id TEXT NOT NULL DEFAULT '',
			start_time TIMESTAMPTZ NOT NULL,
			duration_ns BIGINT NOT NULL CHECK (duration_ns > 0),
			fee BIGINT NOT NULL CHECK (fee >= 0),
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS party_sessions (
			seq BIGSERIAL PRIMARY KEY,
			role TEXT NOT NULL,
			party_id TEXT NOT NULL,
			session_id BIGINT NOT NULL REFERENCES sessions(id)
		);
		CREATE INDEX IF NOT EXISTS idx_party_sessions_party ON party_sessions(role, party_id, seq);

		CREATE TABLE IF NOT EXISTS escrow (
			session_id BIGINT NOT NULL REFERENCES sessions(id),
			payer_id TEXT NOT NULL,
			amount BIGINT NOT NULL CHECK (amount >= 0),
			PRIMARY KEY (session_id, payer_id)
		);

		CREATE TABLE IF NOT EXISTS balances (
			party_id TEXT PRIMARY KEY,
			amount BIGINT NOT NULL CHECK (amount >= 0)
		);

		CREATE TABLE IF NOT EXISTS session_events (
			seq BIGINT PRIMARY KEY,
			id TEXT NOT NULL UNIQUE,
			session_id BIGINT NOT NULL REFERENCES sessions(id),
			kind TEXT NOT NULL,
			actor_id TEXT NOT NULL,
			escrowed BIGINT NOT NULL DEFAULT 0,
			refunded BIGINT NOT NULL DEFAULT 0,
			paid BIGINT NOT NULL DEFAULT 0,
			at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_session_events_session ON session_events(session_id, seq);
	`)
	return err
}

// Update runs fn in a transaction holding the writer lock. The transaction
// is committed only if fn returns nil.
func (db *DB) Update(ctx context.Context, fn func(tx booking.Tx) error) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, writerLockKey); err != nil {
		return fmt.Errorf("acquire writer lock: %w", err)
	}
	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// View runs fn against a read-only snapshot.
func (db *DB) View(ctx context.Context, fn func(tx booking.Tx) error) error {
	tx, err := db.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	return fn(&pgTx{tx: tx})
}

// pgTx implements booking.Tx on top of a pgx transaction.
type pgTx struct {
	tx pgx.Tx
}
