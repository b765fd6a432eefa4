package memstore

import (
	"context"
	"sync"

	"github.com/susu3304/sessionbook/internal/booking"
)

// Registry is an in-memory membership set for users and counselors.
type Registry struct {
	mu         sync.RWMutex
	users      map[booking.Identity]struct{}
	counselors map[booking.Identity]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		users:      make(map[booking.Identity]struct{}),
		counselors: make(map[booking.Identity]struct{}),
	}
}

func (r *Registry) RegisterUser(ctx context.Context, id booking.Identity) error {
	if id == booking.None {
		return booking.ErrInvalidIdentity
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[id] = struct{}{}
	return nil
}

func (r *Registry) RegisterCounselor(ctx context.Context, id booking.Identity) error {
	if id == booking.None {
		return booking.ErrInvalidIdentity
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counselors[id] = struct{}{}
	return nil
}

func (r *Registry) IsRegisteredUser(ctx context.Context, id booking.Identity) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.users[id]
	return ok, nil
}

func (r *Registry) IsRegisteredCounselor(ctx context.Context, id booking.Identity) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.counselors[id]
	return ok, nil
}
