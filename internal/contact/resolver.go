// Package contact resolves an owner id to a notification address.
// Identity management itself lives outside this system; the default resolver
// just reads the owners table the operator maintains.
package contact

import (
	"context"
	"errors"

	"quiethours/internal/storage"
)

var ErrNotFound = errors.New("contact: no address for owner")

type Resolver interface {
	// Resolve returns the owner's contact address, or ErrNotFound when the
	// owner is unknown or has no address on file.
	Resolve(ctx context.Context, ownerID string) (string, error)
}

// StoreResolver is the default Resolver, backed by the interval store's
// owners table.
type StoreResolver struct {
	store storage.Store
}

func NewStoreResolver(st storage.Store) *StoreResolver {
	return &StoreResolver{store: st}
}

func (r *StoreResolver) Resolve(ctx context.Context, ownerID string) (string, error) {
	addr, err := r.store.ContactAddress(ctx, ownerID)
	if errors.Is(err, storage.ErrNoContact) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return addr, nil
}
