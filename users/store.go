package users

import "context"

// Store is the persistence interface for user records. The Mongo
// implementation is the only one in production; tests substitute fakes.
type Store interface {
	// GetByID finds a user by its hex object id.
	GetByID(ctx context.Context, id string) (User, error)

	// GetByEmail finds a user by email.
	GetByEmail(ctx context.Context, email string) (User, error)

	// Create inserts a new user and returns it with its assigned id.
	// A duplicate email yields an already-exists error.
	Create(ctx context.Context, user User) (User, error)

	// Update replaces the stored fields of an existing user, keyed by email.
	Update(ctx context.Context, user User) error

	// DeleteByEmail removes the user with the given email.
	DeleteByEmail(ctx context.Context, email string) error
}
