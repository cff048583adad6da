package store_test

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jjudge-oj/authserver/internal/db"
	"github.com/jjudge-oj/authserver/internal/store"
	"github.com/jjudge-oj/authserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestUserRepository_CreateAndGet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := store.NewUserRepository(openTestDB(t))

	created, err := repo.Create(ctx, types.User{
		Username:     "alice",
		Email:        "alice@x.com",
		PasswordHash: []byte("$2a$04$hash"),
	})
	require.NoError(t, err)
	assert.Positive(t, created.ID)
	assert.Equal(t, types.DefaultRole, created.Role)

	for name, lookup := range map[string]func() (types.User, error){
		"id":       func() (types.User, error) { return repo.GetByID(ctx, created.ID) },
		"email":    func() (types.User, error) { return repo.GetByEmail(ctx, "alice@x.com") },
		"username": func() (types.User, error) { return repo.GetByUsername(ctx, "alice") },
	} {
		got, err := lookup()
		require.NoError(t, err, name)
		assert.Equal(t, created.ID, got.ID, name)
		assert.Equal(t, "alice", got.Username, name)
		assert.Equal(t, "alice@x.com", got.Email, name)
		assert.Equal(t, "user", got.Role, name)
		assert.Equal(t, []byte("$2a$04$hash"), got.PasswordHash, name)
		assert.WithinDuration(t, created.CreatedAt, got.CreatedAt, time.Second, name)
	}
}

func TestUserRepository_NotFound(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := store.NewUserRepository(openTestDB(t))

	_, err := repo.GetByID(ctx, 99)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = repo.GetByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUserRepository_Duplicate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := store.NewUserRepository(openTestDB(t))

	_, err := repo.Create(ctx, types.User{Username: "alice", Email: "alice@x.com", PasswordHash: []byte("h")})
	require.NoError(t, err)

	_, err = repo.Create(ctx, types.User{Username: "alice", Email: "new@x.com", PasswordHash: []byte("h")})
	assert.ErrorIs(t, err, store.ErrDuplicate)
	_, err = repo.Create(ctx, types.User{Username: "new", Email: "alice@x.com", PasswordHash: []byte("h")})
	assert.ErrorIs(t, err, store.ErrDuplicate)
}

func TestUserRepository_ConcurrentCreateSameEmail(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := store.NewUserRepository(openTestDB(t))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.Create(ctx, types.User{
				Username:     fmt.Sprintf("user%d", i),
				Email:        "same@x.com",
				PasswordHash: []byte("h"),
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
}
