package users

import (
	"context"
)

// Directory resolves a user identity to a sanitized profile. It is consumed
// only by the authentication layer; route handlers never use it to establish
// identity themselves.
type Directory struct {
	store Store
}

// NewDirectory creates a directory over the given store.
func NewDirectory(store Store) *Directory {
	return &Directory{store: store}
}

// Resolve looks up a user by id and strips secret fields before returning.
// Store errors pass through unchanged (not-found stays not-found; the caller
// decides how to classify it).
func (d *Directory) Resolve(ctx context.Context, userID string) (SanitizedUser, error) {
	user, err := d.store.GetByID(ctx, userID)
	if err != nil {
		return SanitizedUser{}, err
	}
	return user.Sanitize(), nil
}
