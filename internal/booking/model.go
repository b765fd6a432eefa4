package booking

import "time"

// Identity is the asserted identity of a caller (a Discord user ID when
// coming through the bot or an OAuth-issued token).
type Identity string

// None marks a session nobody has booked.
const None Identity = ""

// SessionID is assigned from 1 upwards without gaps.
type SessionID int64

// Amount is a quantity of funds in minor units.
type Amount int64

type Status string

const (
	StatusOffered   Status = "offered"
	StatusBooked    Status = "booked"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
)

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Role selects which party index a listing refers to.
type Role string

const (
	RoleUser      Role = "user"
	RoleCounselor Role = "counselor"
)

type Session struct {
	ID        SessionID
	Counselor Identity
	User      Identity
	StartTime time.Time
	Duration  time.Duration
	Fee       Amount
	Status    Status
}

// EndTime is when the session is over and may be resolved.
func (s Session) EndTime() time.Time {
	return s.StartTime.Add(s.Duration)
}

// EscrowKey identifies one escrow entry.
type EscrowKey struct {
	Session SessionID
	Payer   Identity
}

// Share is one recipient's part of a release.
type Share struct {
	To     Identity
	Amount Amount
}

type EventKind string

const (
	EventOffered   EventKind = "offered"
	EventBooked    EventKind = "booked"
	EventCancelled EventKind = "cancelled"
	EventCompleted EventKind = "completed"
	EventNoShow    EventKind = "no_show"
)

// Event is the durable audit record appended by every state change.
// Seq is assigned by the store on append.
type Event struct {
	Seq       int64
	ID        string
	SessionID SessionID
	Kind      EventKind
	Actor     Identity
	Escrowed  Amount // moved into custody
	Refunded  Amount // moved to the user
	Paid      Amount // moved to the counselor
	At        time.Time
}
