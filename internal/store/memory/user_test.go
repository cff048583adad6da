package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jjudge-oj/authserver/internal/store"
	"github.com/jjudge-oj/authserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_CreateAndGet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := NewUserRepository()

	created, err := repo.Create(ctx, types.User{
		Username:     "alice",
		Email:        "alice@x.com",
		PasswordHash: []byte("hash"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, created.ID)
	assert.Equal(t, types.DefaultRole, created.Role)
	assert.False(t, created.CreatedAt.IsZero())

	byID, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, byID)

	byEmail, err := repo.GetByEmail(ctx, "alice@x.com")
	require.NoError(t, err)
	assert.Equal(t, created, byEmail)

	byUsername, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, created, byUsername)

	second, err := repo.Create(ctx, types.User{Username: "bob", Email: "bob@x.com", Role: "admin"})
	require.NoError(t, err)
	assert.Equal(t, 2, second.ID)
	assert.Equal(t, "admin", second.Role)
}

func TestUserRepository_NotFound(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := NewUserRepository()

	_, err := repo.GetByID(ctx, 1)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = repo.GetByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = repo.GetByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUserRepository_Duplicate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := NewUserRepository()

	_, err := repo.Create(ctx, types.User{Username: "alice", Email: "alice@x.com"})
	require.NoError(t, err)

	_, err = repo.Create(ctx, types.User{Username: "alice", Email: "other@x.com"})
	assert.ErrorIs(t, err, store.ErrDuplicate)
	_, err = repo.Create(ctx, types.User{Username: "other", Email: "alice@x.com"})
	assert.ErrorIs(t, err, store.ErrDuplicate)
	assert.Equal(t, 1, repo.Len())
}

func TestUserRepository_ConcurrentCreateSameEmail(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := NewUserRepository()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.Create(ctx, types.User{
				Username: fmt.Sprintf("user%d", i),
				Email:    "same@x.com",
			})
			if err == nil {
				wins.Add(1)
				return
			}
			assert.ErrorIs(t, err, store.ErrDuplicate)
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, wins.Load())
	assert.Equal(t, 1, repo.Len())
}

func TestUserRepository_ReturnsCopies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := NewUserRepository()

	created, err := repo.Create(ctx, types.User{Username: "a", Email: "a@x.com", PasswordHash: []byte("hash")})
	require.NoError(t, err)
	created.PasswordHash[0] = 'X'

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("hash"), got.PasswordHash)
}

func TestUserRepository_CanceledContext(t *testing.T) {
	t.Parallel()
	repo := NewUserRepository()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.Create(ctx, types.User{Username: "a", Email: "a@x.com"})
	assert.ErrorIs(t, err, context.Canceled)
	_, err = repo.GetByEmail(ctx, "a@x.com")
	assert.ErrorIs(t, err, context.Canceled)
}
