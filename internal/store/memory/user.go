// Package memory provides a process-local user store for development and
// tests. Data does not survive a restart.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jjudge-oj/authserver/internal/store"
	"github.com/jjudge-oj/authserver/types"
)

// UserRepository keeps users in maps indexed by id, username and email.
type UserRepository struct {
	mu         sync.RWMutex
	nextID     int
	byID       map[int]types.User
	byUsername map[string]int
	byEmail    map[string]int
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		nextID:     1,
		byID:       make(map[int]types.User),
		byUsername: make(map[string]int),
		byEmail:    make(map[string]int),
	}
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	if err := ctx.Err(); err != nil {
		return types.User{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return clone(user), nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	return r.getByIndex(ctx, func() (int, bool) {
		id, ok := r.byEmail[email]
		return id, ok
	})
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (types.User, error) {
	return r.getByIndex(ctx, func() (int, bool) {
		id, ok := r.byUsername[username]
		return id, ok
	})
}

// Create checks both unique keys and inserts under one lock.
func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	if err := ctx.Err(); err != nil {
		return types.User{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byUsername[user.Username]; taken {
		return types.User{}, store.ErrDuplicate
	}
	if _, taken := r.byEmail[user.Email]; taken {
		return types.User{}, store.ErrDuplicate
	}

	now := time.Now().UTC()
	user.ID = r.nextID
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Role == "" {
		user.Role = types.DefaultRole
	}
	user = clone(user)

	r.nextID++
	r.byID[user.ID] = user
	r.byUsername[user.Username] = user.ID
	r.byEmail[user.Email] = user.ID
	return clone(user), nil
}

// Len returns the number of stored users.
func (r *UserRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

func (r *UserRepository) getByIndex(ctx context.Context, lookup func() (int, bool)) (types.User, error) {
	if err := ctx.Err(); err != nil {
		return types.User{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := lookup()
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return clone(r.byID[id]), nil
}

// clone detaches the hash slice so callers cannot mutate stored state.
func clone(user types.User) types.User {
	user.PasswordHash = append([]byte(nil), user.PasswordHash...)
	return user
}
