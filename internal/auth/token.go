package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenErrorKind classifies why a bearer token was rejected.
type TokenErrorKind int

const (
	// Malformed tokens cannot be parsed into the expected claim shape.
	Malformed TokenErrorKind = iota + 1
	// InvalidSignature tokens were not signed with our key and algorithm.
	InvalidSignature
	// Expired tokens carry an exp claim at or before the verification time.
	Expired
)

func (k TokenErrorKind) String() string {
	switch k {
	case Malformed:
		return "malformed"
	case InvalidSignature:
		return "invalid signature"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

// TokenError is returned by TokenVerifier.Verify.
type TokenError struct {
	Kind TokenErrorKind
	Err  error
}

func (e *TokenError) Error() string {
	if e.Err == nil {
		return "token " + e.Kind.String()
	}
	return fmt.Sprintf("token %s: %v", e.Kind, e.Err)
}

func (e *TokenError) Unwrap() error {
	return e.Err
}

// IsTokenError reports whether err is a TokenError of the given kind.
func IsTokenError(err error, kind TokenErrorKind) bool {
	var tokenErr *TokenError
	return errors.As(err, &tokenErr) && tokenErr.Kind == kind
}

var signingMethod = jwt.SigningMethodHS256

// TokenIssuer signs access tokens with the process secret.
type TokenIssuer struct {
	secret []byte
}

// NewTokenIssuer returns an issuer signing with secret.
func NewTokenIssuer(secret []byte) (*TokenIssuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("token secret is required")
	}
	return &TokenIssuer{secret: secret}, nil
}

// Issue builds {sub, iat, exp} for userID and signs it. A non-positive ttl
// produces a token without an exp claim. exp is rounded up to a whole second
// so the token stays valid for at least ttl.
func (i *TokenIssuer) Issue(userID int, now time.Time, ttl time.Duration) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:  strconv.Itoa(userID),
		IssuedAt: jwt.NewNumericDate(now),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(ceilSecond(now.Add(ttl)))
	}
	token := jwt.NewWithClaims(signingMethod, claims)
	return token.SignedString(i.secret)
}

func ceilSecond(t time.Time) time.Time {
	return t.Add(time.Second - time.Nanosecond).Truncate(time.Second)
}

// TokenVerifier checks tokens produced by a TokenIssuer sharing the same secret.
type TokenVerifier struct {
	secret []byte
}

// NewTokenVerifier returns a verifier for tokens signed with secret.
func NewTokenVerifier(secret []byte) (*TokenVerifier, error) {
	if len(secret) == 0 {
		return nil, errors.New("token secret is required")
	}
	return &TokenVerifier{secret: secret}, nil
}

// Verify checks the signature and expiry of tokenString as of now and returns
// the user id bound to it. Failures are always *TokenError.
func (v *TokenVerifier) Verify(tokenString string, now time.Time) (int, error) {
	claims := jwt.RegisteredClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	token, err := parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return v.secret, nil
	})
	if err != nil {
		return 0, classify(err)
	}
	if !token.Valid {
		return 0, &TokenError{Kind: InvalidSignature}
	}

	userID, err := strconv.Atoi(strings.TrimSpace(claims.Subject))
	if err != nil || userID < 1 {
		return 0, &TokenError{Kind: Malformed, Err: errors.New("invalid subject")}
	}
	return userID, nil
}

func classify(err error) *TokenError {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return &TokenError{Kind: InvalidSignature, Err: err}
	case errors.Is(err, jwt.ErrTokenExpired):
		return &TokenError{Kind: Expired, Err: err}
	default:
		return &TokenError{Kind: Malformed, Err: err}
	}
}
