// Package memstore keeps booking state in process memory. Every unit of work
// runs under one mutex and writes into a staging overlay that is merged only
// when the unit succeeds.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/susu3304/sessionbook/internal/booking"
)

type partyKey struct {
	role  booking.Role
	party booking.Identity
}

type state struct {
	lastID   booking.SessionID
	sessions map[booking.SessionID]booking.Session
	indices  map[partyKey][]booking.SessionID
	escrow   map[booking.EscrowKey]booking.Amount
	balances map[booking.Identity]booking.Amount
	events   []booking.Event
}

type Store struct {
	mu sync.Mutex
	st state
}

func New() *Store {
	return &Store{st: state{
		sessions: make(map[booking.SessionID]booking.Session),
		indices:  make(map[partyKey][]booking.SessionID),
		escrow:   make(map[booking.EscrowKey]booking.Amount),
		balances: make(map[booking.Identity]booking.Amount),
	}}
}

func (s *Store) Update(ctx context.Context, fn func(tx booking.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := newTx(&s.st)
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// View runs fn against committed state. Writes made by fn are discarded.
func (s *Store) View(ctx context.Context, fn func(tx booking.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(newTx(&s.st))
}

type tx struct {
	base     *state
	lastID   booking.SessionID
	sessions map[booking.SessionID]booking.Session
	appended map[partyKey][]booking.SessionID
	escrow   map[booking.EscrowKey]booking.Amount
	credits  map[booking.Identity]booking.Amount
	events   []booking.Event
}

func newTx(base *state) *tx {
	return &tx{
		base:     base,
		lastID:   base.lastID,
		sessions: make(map[booking.SessionID]booking.Session),
		appended: make(map[partyKey][]booking.SessionID),
		escrow:   make(map[booking.EscrowKey]booking.Amount),
		credits:  make(map[booking.Identity]booking.Amount),
	}
}

func (t *tx) commit() {
	t.base.lastID = t.lastID
	for id, s := range t.sessions {
		t.base.sessions[id] = s
	}
	for k, ids := range t.appended {
		t.base.indices[k] = append(t.base.indices[k], ids...)
	}
	for k, v := range t.escrow {
		t.base.escrow[k] = v
	}
	for k, v := range t.credits {
		t.base.balances[k] += v
	}
	t.base.events = append(t.base.events, t.events...)
}

func (t *tx) NextSessionID(ctx context.Context) (booking.SessionID, error) {
	t.lastID++
	return t.lastID, nil
}

func (t *tx) InsertSession(ctx context.Context, s booking.Session) error {
	t.sessions[s.ID] = s
	return nil
}

func (t *tx) Session(ctx context.Context, id booking.SessionID) (booking.Session, error) {
	if s, ok := t.sessions[id]; ok {
		return s, nil
	}
	if s, ok := t.base.sessions[id]; ok {
		return s, nil
	}
	return booking.Session{}, booking.ErrSessionNotFound
}

func (t *tx) UpdateSession(ctx context.Context, s booking.Session) error {
	if _, err := t.Session(ctx, s.ID); err != nil {
		return err
	}
	t.sessions[s.ID] = s
	return nil
}

func (t *tx) AppendPartyIndex(ctx context.Context, role booking.Role, party booking.Identity, id booking.SessionID) error {
	k := partyKey{role: role, party: party}
	t.appended[k] = append(t.appended[k], id)
	return nil
}

func (t *tx) PartyIndex(ctx context.Context, role booking.Role, party booking.Identity) ([]booking.SessionID, error) {
	k := partyKey{role: role, party: party}
	base := t.base.indices[k]
	out := make([]booking.SessionID, 0, len(base)+len(t.appended[k]))
	out = append(out, base...)
	return append(out, t.appended[k]...), nil
}

func (t *tx) Escrow(ctx context.Context, key booking.EscrowKey) (booking.Amount, error) {
	if v, ok := t.escrow[key]; ok {
		return v, nil
	}
	return t.base.escrow[key], nil
}

func (t *tx) SetEscrow(ctx context.Context, key booking.EscrowKey, amount booking.Amount) error {
	t.escrow[key] = amount
	return nil
}

func (t *tx) Credit(ctx context.Context, party booking.Identity, amount booking.Amount) error {
	if amount < 0 {
		return booking.ErrNegativeTransfer
	}
	t.credits[party] += amount
	return nil
}

func (t *tx) Balance(ctx context.Context, party booking.Identity) (booking.Amount, error) {
	return t.base.balances[party] + t.credits[party], nil
}

func (t *tx) AppendEvent(ctx context.Context, e booking.Event) (booking.Event, error) {
	e.Seq = int64(len(t.base.events) + len(t.events) + 1)
	t.events = append(t.events, e)
	return e, nil
}

func (t *tx) EventsSince(ctx context.Context, afterSeq int64, limit int) ([]booking.Event, error) {
	all := t.allEvents()
	i := sort.Search(len(all), func(i int) bool { return all[i].Seq > afterSeq })
	out := all[i:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return append([]booking.Event(nil), out...), nil
}

func (t *tx) SessionEvents(ctx context.Context, id booking.SessionID) ([]booking.Event, error) {
	var out []booking.Event
	for _, e := range t.allEvents() {
		if e.SessionID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

func (t *tx) allEvents() []booking.Event {
	if len(t.events) == 0 {
		return t.base.events
	}
	all := make([]booking.Event, 0, len(t.base.events)+len(t.events))
	all = append(all, t.base.events...)
	return append(all, t.events...)
}
