package services

import (
	"context"

	"github.com/jjudge-oj/authserver/types"
)

// UserRepository defines persistence operations for users.
//
// Create must be an atomic insert-if-absent: when the username or email is
// already taken it returns store.ErrDuplicate and stores nothing, even under
// concurrent calls. Lookups return store.ErrNotFound for missing users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
}

// EventPublisher receives notifications about account changes.
type EventPublisher interface {
	UserRegistered(ctx context.Context, user types.User) error
}

type noopPublisher struct{}

func (noopPublisher) UserRegistered(context.Context, types.User) error { return nil }
