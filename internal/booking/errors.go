package booking

import "errors"

// Kind groups errors by how a caller should react to them.
type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindUnauthorized Kind = "unauthorized"
	KindInvalid      Kind = "invalid"
	KindInvariant    Kind = "invariant"
)

// Error is a domain error with a stable machine-readable code.
type Error struct {
	Code    string
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches by code so wrapped copies still compare equal.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Code: code, Kind: kind, Message: message}
}

var (
	ErrSessionNotFound = newError(KindNotFound, "SESSION_NOT_FOUND", "session not found")

	ErrSessionNotAvailable   = newError(KindConflict, "SESSION_NOT_AVAILABLE", "session is not available for booking")
	ErrSessionAlreadyStarted = newError(KindConflict, "SESSION_ALREADY_STARTED", "session has already started")
	ErrSessionNotBooked      = newError(KindConflict, "SESSION_NOT_BOOKED", "session is not booked")
	ErrCannotCancelSession   = newError(KindConflict, "CANNOT_CANCEL_SESSION", "session can no longer be cancelled")
	ErrSessionNotEnded       = newError(KindConflict, "SESSION_NOT_ENDED", "session has not ended yet")

	ErrNotCounselor           = newError(KindUnauthorized, "NOT_COUNSELOR", "caller is not the counselor of this session")
	ErrNotBooker              = newError(KindUnauthorized, "NOT_BOOKER", "caller did not book this session")
	ErrNotAuthorized          = newError(KindUnauthorized, "NOT_AUTHORIZED", "caller is not a participant of this session")
	ErrNotRegisteredUser      = newError(KindUnauthorized, "NOT_REGISTERED_USER", "caller is not a registered user")
	ErrNotRegisteredCounselor = newError(KindUnauthorized, "NOT_REGISTERED_COUNSELOR", "caller is not a registered counselor")

	ErrStartTimeInPast  = newError(KindInvalid, "START_TIME_IN_PAST", "start time must be in the future")
	ErrInvalidDuration  = newError(KindInvalid, "INVALID_DURATION", "duration must be positive")
	ErrInvalidFee       = newError(KindInvalid, "INVALID_FEE", "fee must not be negative")
	ErrIncorrectPayment = newError(KindInvalid, "INCORRECT_PAYMENT", "payment must equal the session fee")
	ErrInvalidIdentity  = newError(KindInvalid, "INVALID_IDENTITY", "caller identity is required")

	ErrAlreadyEscrowed  = newError(KindInvariant, "ALREADY_ESCROWED", "funds already escrowed for this session")
	ErrNothingEscrowed  = newError(KindInvariant, "NOTHING_ESCROWED", "no funds escrowed for this session")
	ErrNoFunds          = newError(KindInvariant, "NO_FUNDS", "no funds to release")
	ErrShareMismatch    = newError(KindInvariant, "SHARE_MISMATCH", "release shares do not add up to the escrowed amount")
	ErrNegativeTransfer = newError(KindInvariant, "NEGATIVE_TRANSFER", "transfer amount must not be negative")
)

// KindOf returns the kind of the first domain error in err's chain.
// Anything else is reported as an invariant failure.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInvariant
}

// CodeOf returns the code of the first domain error in err's chain, or "INTERNAL".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "INTERNAL"
}
