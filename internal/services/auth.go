package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jjudge-oj/authserver/config"
	"github.com/jjudge-oj/authserver/internal/auth"
	"github.com/jjudge-oj/authserver/internal/store"
	"github.com/jjudge-oj/authserver/types"
	"go.uber.org/zap"
)

// RegisterRequest is the validated input of AuthService.Register.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate trims identifiers and checks every field is present.
func (r *RegisterRequest) Validate() error {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.TrimSpace(r.Email)
	switch {
	case r.Username == "":
		return &MissingFieldError{Field: "username"}
	case r.Email == "":
		return &MissingFieldError{Field: "email"}
	case r.Password == "":
		return &MissingFieldError{Field: "password"}
	}
	return nil
}

// LoginRequest is the validated input of AuthService.Login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate trims the email and checks both fields are present.
func (r *LoginRequest) Validate() error {
	r.Email = strings.TrimSpace(r.Email)
	switch {
	case r.Email == "":
		return &MissingFieldError{Field: "email"}
	case r.Password == "":
		return &MissingFieldError{Field: "password"}
	}
	return nil
}

// AuthService implements registration, login and token authentication on
// top of a UserRepository. It holds no per-request state.
type AuthService struct {
	users    UserRepository
	hasher   *auth.PasswordHasher
	issuer   *auth.TokenIssuer
	verifier *auth.TokenVerifier
	tokenTTL time.Duration
	events   EventPublisher
	logger   *zap.Logger
	now      func() time.Time

	// dummyHash is verified against when the email is unknown so that login
	// latency does not reveal whether an account exists.
	dummyHash []byte
}

// AuthOption customises an AuthService.
type AuthOption func(*AuthService)

// WithEvents publishes account events through p.
func WithEvents(p EventPublisher) AuthOption {
	return func(s *AuthService) {
		if p != nil {
			s.events = p
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) AuthOption {
	return func(s *AuthService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source used for issuing and verifying tokens.
func WithClock(now func() time.Time) AuthOption {
	return func(s *AuthService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewAuthService builds the hasher, issuer and verifier from cfg.
func NewAuthService(users UserRepository, cfg config.AuthConfig, opts ...AuthOption) (*AuthService, error) {
	if users == nil {
		return nil, errors.New("user repository is required")
	}
	hasher, err := auth.NewPasswordHasher(cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	issuer, err := auth.NewTokenIssuer([]byte(cfg.JWTSecret))
	if err != nil {
		return nil, err
	}
	verifier, err := auth.NewTokenVerifier([]byte(cfg.JWTSecret))
	if err != nil {
		return nil, err
	}
	dummyHash, err := hasher.Hash("correct horse battery staple")
	if err != nil {
		return nil, err
	}

	s := &AuthService{
		users:     users,
		hasher:    hasher,
		issuer:    issuer,
		verifier:  verifier,
		tokenTTL:  cfg.TokenTTL,
		events:    noopPublisher{},
		logger:    zap.NewNop(),
		now:       time.Now,
		dummyHash: dummyHash,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register creates an account with the default role.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (types.User, error) {
	if err := req.Validate(); err != nil {
		return types.User{}, err
	}

	hashed, err := s.hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return types.User{}, ErrPasswordTooLong
		}
		return types.User{}, fmt.Errorf("register: %w", err)
	}

	user, err := s.users.Create(ctx, types.User{
		Username:     req.Username,
		Email:        req.Email,
		Role:         types.DefaultRole,
		PasswordHash: hashed,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return types.User{}, ErrDuplicateUser
		}
		s.logger.Error("create user failed", zap.Error(err))
		return types.User{}, storeUnavailable("register", err)
	}

	s.logger.Info("user registered", zap.Int("user_id", user.ID))
	if err := s.events.UserRegistered(ctx, user); err != nil {
		s.logger.Warn("publish registration event failed", zap.Int("user_id", user.ID), zap.Error(err))
	}
	return user, nil
}

// Login checks the credentials and returns a signed access token.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.hasher.Verify(req.Password, s.dummyHash)
			return "", ErrInvalidCredentials
		}
		s.logger.Error("lookup user by email failed", zap.Error(err))
		return "", storeUnavailable("login", err)
	}

	if !s.hasher.Verify(req.Password, user.PasswordHash) {
		return "", ErrInvalidCredentials
	}

	token, err := s.issuer.Issue(user.ID, s.now(), s.tokenTTL)
	if err != nil {
		return "", fmt.Errorf("login: issue token: %w", err)
	}
	return token, nil
}

// Authenticate resolves a bearer token to the profile of its user. Token
// failures and deleted users are all reported as ErrUnauthorized.
func (s *AuthService) Authenticate(ctx context.Context, token string) (types.Profile, error) {
	userID, err := s.verifier.Verify(token, s.now())
	if err != nil {
		s.logger.Debug("token rejected", zap.Error(err))
		return types.Profile{}, ErrUnauthorized
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Profile{}, ErrUnauthorized
		}
		s.logger.Error("lookup user by id failed", zap.Int("user_id", userID), zap.Error(err))
		return types.Profile{}, storeUnavailable("authenticate", err)
	}
	return user.Profile(), nil
}
