package booking

import (
	"context"
	"time"
)

// Store runs units of work. Update must serialize all writers and apply
// either every write made through the Tx or none of them: if fn returns an
// error nothing it did is observable afterwards.
type Store interface {
	Update(ctx context.Context, fn func(tx Tx) error) error
	View(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the storage seen by one unit of work.
type Tx interface {
	NextSessionID(ctx context.Context) (SessionID, error)
	InsertSession(ctx context.Context, s Session) error
	// Session returns ErrSessionNotFound for unknown ids.
	Session(ctx context.Context, id SessionID) (Session, error)
	UpdateSession(ctx context.Context, s Session) error

	AppendPartyIndex(ctx context.Context, role Role, party Identity, id SessionID) error
	PartyIndex(ctx context.Context, role Role, party Identity) ([]SessionID, error)

	// Escrow returns 0 for entries that were never written.
	Escrow(ctx context.Context, key EscrowKey) (Amount, error)
	SetEscrow(ctx context.Context, key EscrowKey, amount Amount) error

	Credit(ctx context.Context, party Identity, amount Amount) error
	Balance(ctx context.Context, party Identity) (Amount, error)

	// AppendEvent assigns the next sequence number and returns the stored event.
	AppendEvent(ctx context.Context, e Event) (Event, error)
	EventsSince(ctx context.Context, afterSeq int64, limit int) ([]Event, error)
	SessionEvents(ctx context.Context, id SessionID) ([]Event, error)
}

// Registry answers membership questions about identities.
type Registry interface {
	IsRegisteredUser(ctx context.Context, id Identity) (bool, error)
	IsRegisteredCounselor(ctx context.Context, id Identity) (bool, error)
}

// Directory is a Registry that also accepts self-registration.
type Directory interface {
	Registry
	RegisterUser(ctx context.Context, id Identity) error
	RegisterCounselor(ctx context.Context, id Identity) error
}

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock returns whatever time it was last set to.
type FixedClock struct {
	T time.Time
}

func (c *FixedClock) Now() time.Time { return c.T }

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) { c.T = c.T.Add(d) }
