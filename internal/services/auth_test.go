package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jjudge-oj/authserver/config"
	"github.com/jjudge-oj/authserver/internal/auth"
	"github.com/jjudge-oj/authserver/internal/store/memory"
	"github.com/jjudge-oj/authserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret"

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:  testSecret,
		TokenTTL:   15 * time.Minute,
		BcryptCost: bcrypt.MinCost,
	}
}

func newTestService(t *testing.T, users UserRepository, opts ...AuthOption) *AuthService {
	t.Helper()
	svc, err := NewAuthService(users, testAuthConfig(), opts...)
	require.NoError(t, err)
	return svc
}

type failingRepo struct {
	err error
}

func (r failingRepo) GetByID(context.Context, int) (types.User, error) { return types.User{}, r.err }
func (r failingRepo) GetByEmail(context.Context, string) (types.User, error) { return types.User{}, r.err }
func (r failingRepo) Create(context.Context, types.User) (types.User, error) { return types.User{}, r.err }

type recordingPublisher struct {
	mu    sync.Mutex
	users []types.User
	err   error
}

func (p *recordingPublisher) UserRegistered(_ context.Context, user types.User) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users = append(p.users, user)
	return p.err
}

func TestAuthService_Scenario(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newTestService(t, memory.NewUserRepository())

	user, err := svc.Register(ctx, RegisterRequest{Username: "alice", Email: "alice@x.com", Password: "secret123"})
	require.NoError(t, err)
	assert.Positive(t, user.ID)
	assert.Equal(t, "user", user.Role)
	assert.NotEqual(t, []byte("secret123"), user.PasswordHash)

	token, err := svc.Login(ctx, LoginRequest{Email: "alice@x.com", Password: "secret123"})
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	profile, err := svc.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, types.Profile{Username: "alice", Email: "alice@x.com", Role: "user"}, profile)
}

func TestAuthService_RegisterMissingFields(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := memory.NewUserRepository()
	svc := newTestService(t, repo)

	tests := []struct {
		req   RegisterRequest
		field string
	}{
		{RegisterRequest{Email: "a@x.com", Password: "p"}, "username"},
		{RegisterRequest{Username: "   ", Email: "a@x.com", Password: "p"}, "username"},
		{RegisterRequest{Username: "a", Password: "p"}, "email"},
		{RegisterRequest{Username: "a", Email: "a@x.com"}, "password"},
		{RegisterRequest{}, "username"},
	}
	for _, tt := range tests {
		_, err := svc.Register(ctx, tt.req)
		require.ErrorIs(t, err, ErrMissingField)

		var fieldErr *MissingFieldError
		require.ErrorAs(t, err, &fieldErr)
		assert.Equal(t, tt.field, fieldErr.Field)
	}
	assert.Equal(t, 0, repo.Len())
}

func TestAuthService_RegisterTrimsIdentifiers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newTestService(t, memory.NewUserRepository())

	user, err := svc.Register(ctx, RegisterRequest{Username: " alice ", Email: " alice@x.com\n", Password: " pw "})
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "alice@x.com", user.Email)

	_, err = svc.Login(ctx, LoginRequest{Email: "alice@x.com", Password: "pw"})
	assert.ErrorIs(t, err, ErrInvalidCredentials, "passwords are not trimmed")
	_, err = svc.Login(ctx, LoginRequest{Email: "alice@x.com", Password: " pw "})
	assert.NoError(t, err)
}

func TestAuthService_RegisterDuplicate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newTestService(t, memory.NewUserRepository())

	_, err := svc.Register(ctx, RegisterRequest{Username: "alice", Email: "alice@x.com", Password: "secret123"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterRequest{Username: "alice2", Email: "alice@x.com", Password: "other"})
	assert.ErrorIs(t, err, ErrDuplicateUser)
	_, err = svc.Register(ctx, RegisterRequest{Username: "alice", Email: "alice2@x.com", Password: "other"})
	assert.ErrorIs(t, err, ErrDuplicateUser)
}

func TestAuthService_RegisterConcurrentSameEmail(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := memory.NewUserRepository()
	svc := newTestService(t, repo)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Register(ctx, RegisterRequest{
				Username: fmt.Sprintf("user%d", i),
				Email:    "race@x.com",
				Password: "secret123",
			})
			if err == nil {
				wins.Add(1)
				return
			}
			assert.ErrorIs(t, err, ErrDuplicateUser)
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, wins.Load())
	assert.Equal(t, 1, repo.Len())
}

func TestAuthService_RegisterPasswordTooLong(t *testing.T) {
	t.Parallel()
	svc := newTestService(t, memory.NewUserRepository())

	_, err := svc.Register(context.Background(), RegisterRequest{
		Username: "a",
		Email:    "a@x.com",
		Password: strings.Repeat("p", 73),
	})
	assert.ErrorIs(t, err, ErrPasswordTooLong)
}

func TestAuthService_RegisterPublishesEvent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	pub := &recordingPublisher{}
	svc := newTestService(t, memory.NewUserRepository(), WithEvents(pub))

	user, err := svc.Register(ctx, RegisterRequest{Username: "alice", Email: "alice@x.com", Password: "secret123"})
	require.NoError(t, err)
	require.Len(t, pub.users, 1)
	assert.Equal(t, user.ID, pub.users[0].ID)

	_, err = svc.Register(ctx, RegisterRequest{Username: "alice", Email: "alice@x.com", Password: "secret123"})
	require.ErrorIs(t, err, ErrDuplicateUser)
	assert.Len(t, pub.users, 1)
}

func TestAuthService_RegisterSurvivesEventFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := memory.NewUserRepository()
	svc := newTestService(t, repo, WithEvents(&recordingPublisher{err: errors.New("broker down")}))

	_, err := svc.Register(ctx, RegisterRequest{Username: "alice", Email: "alice@x.com", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, 1, repo.Len())
}

func TestAuthService_LoginMissingFields(t *testing.T) {
	t.Parallel()
	svc := newTestService(t, memory.NewUserRepository())

	_, err := svc.Login(context.Background(), LoginRequest{Password: "x"})
	assert.ErrorIs(t, err, ErrMissingField)
	_, err = svc.Login(context.Background(), LoginRequest{Email: "a@x.com"})
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestAuthService_LoginFailuresIndistinguishable(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newTestService(t, memory.NewUserRepository())

	_, err := svc.Register(ctx, RegisterRequest{Username: "real", Email: "real@example.com", Password: "rightpass"})
	require.NoError(t, err)

	tokenA, errUnknown := svc.Login(ctx, LoginRequest{Email: "nobody@example.com", Password: "whatever"})
	tokenB, errWrong := svc.Login(ctx, LoginRequest{Email: "real@example.com", Password: "wrongpass"})

	assert.Empty(t, tokenA)
	assert.Empty(t, tokenB)
	assert.Equal(t, errUnknown, errWrong)
	assert.Equal(t, errUnknown.Error(), errWrong.Error())
	assert.ErrorIs(t, errUnknown, ErrInvalidCredentials)
}

func TestAuthService_LoginTokenBindsUser(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	svc := newTestService(t, memory.NewUserRepository(), WithClock(func() time.Time { return now }))

	user, err := svc.Register(ctx, RegisterRequest{Username: "alice", Email: "alice@x.com", Password: "secret123"})
	require.NoError(t, err)
	token, err := svc.Login(ctx, LoginRequest{Email: "alice@x.com", Password: "secret123"})
	require.NoError(t, err)

	verifier, err := auth.NewTokenVerifier([]byte(testSecret))
	require.NoError(t, err)
	id, err := verifier.Verify(token, now)
	require.NoError(t, err)
	assert.Equal(t, user.ID, id)

	_, err = verifier.Verify(token, now.Add(15*time.Minute+time.Second))
	assert.True(t, auth.IsTokenError(err, auth.Expired))
}

func TestAuthService_AuthenticateRejects(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }
	repo := memory.NewUserRepository()
	svc := newTestService(t, repo, WithClock(clock))

	_, err := svc.Register(ctx, RegisterRequest{Username: "alice", Email: "alice@x.com", Password: "secret123"})
	require.NoError(t, err)
	valid, err := svc.Login(ctx, LoginRequest{Email: "alice@x.com", Password: "secret123"})
	require.NoError(t, err)

	foreign, err := auth.NewTokenIssuer([]byte("other-secret"))
	require.NoError(t, err)
	forged, err := foreign.Issue(1, now, time.Hour)
	require.NoError(t, err)

	ours, err := auth.NewTokenIssuer([]byte(testSecret))
	require.NoError(t, err)
	expired, err := ours.Issue(1, now.Add(-time.Hour), time.Minute)
	require.NoError(t, err)
	stale, err := ours.Issue(999, now, time.Hour)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"empty":      "",
		"garbage":    "not.a.jwt",
		"forged":     forged,
		"expired":    expired,
		"stale user": stale,
		"truncated":  valid[:len(valid)-2],
	} {
		_, err := svc.Authenticate(ctx, token)
		assert.Equal(t, ErrUnauthorized, err, name)
	}
}

func TestAuthService_StoreUnavailable(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dbErr := errors.New("connection refused")
	svc := newTestService(t, failingRepo{err: dbErr})

	_, err := svc.Register(ctx, RegisterRequest{Username: "a", Email: "a@x.com", Password: "p"})
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, dbErr)

	_, err = svc.Login(ctx, LoginRequest{Email: "a@x.com", Password: "p"})
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	issuer, err := auth.NewTokenIssuer([]byte(testSecret))
	require.NoError(t, err)
	token, err := issuer.Issue(1, time.Now(), time.Hour)
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, token)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestNewAuthService_InvalidConfig(t *testing.T) {
	t.Parallel()
	repo := memory.NewUserRepository()

	cfg := testAuthConfig()
	cfg.JWTSecret = ""
	_, err := NewAuthService(repo, cfg)
	assert.Error(t, err)

	cfg = testAuthConfig()
	cfg.BcryptCost = 100
	_, err = NewAuthService(repo, cfg)
	assert.Error(t, err)

	_, err = NewAuthService(nil, testAuthConfig())
	assert.Error(t, err)
}
