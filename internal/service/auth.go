// Package service contains application services for authentication, uploads and videos.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	pkgcrypto "github.com/and161185/vsp-server/internal/crypto"
	"github.com/and161185/vsp-server/internal/errs"
	"github.com/and161185/vsp-server/internal/limiter"
	"github.com/and161185/vsp-server/internal/model"
	"github.com/and161185/vsp-server/internal/repository"
	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
)

// AuthService defines authentication operations.
type AuthService interface {
	// Register creates a new user with secure password hashing.
	Register(ctx context.Context, username, password string) (userID string, err error)
	// Login applies rate-limiting and authenticates the user.
	Login(ctx context.Context, username, password, peer string) (model.Tokens, model.User, error)
	// Authenticate verifies an access token and returns the principal it names.
	Authenticate(token string) (principal string, err error)
}

// AuthServiceImpl issues HS256 access tokens whose subject is the user id.
type AuthServiceImpl struct {
	users        repository.UserRepository
	signKey      []byte
	accessTTL    time.Duration
	lim          limiter.Limiter
	autoRegister bool
}

// NewAuthService constructs AuthService with required dependencies.
// With autoRegister set, a login for an unknown username creates the account.
func NewAuthService(users repository.UserRepository, signKey []byte, accessTTL time.Duration, lim limiter.Limiter, autoRegister bool) *AuthServiceImpl {
	return &AuthServiceImpl{users: users, signKey: signKey, accessTTL: accessTTL, lim: lim, autoRegister: autoRegister}
}

// Register creates a new user record.
func (s *AuthServiceImpl) Register(ctx context.Context, username, password string) (string, error) {
	if username == "" || password == "" {
		return "", fmt.Errorf("%w: empty username/password", errs.ErrValidation)
	}
	uid, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	hash, err := pkgcrypto.HashPassword([]byte(password))
	if err != nil {
		return "", err
	}
	u := &model.User{
		ID:        uid,
		Username:  username,
		PwdHash:   hash,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		return "", err
	}
	return uid.String(), nil
}

// Login authenticates with rate limiting by (username, peer address).
func (s *AuthServiceImpl) Login(ctx context.Context, username, password, peer string) (model.Tokens, model.User, error) {
	if username == "" || password == "" {
		return model.Tokens{}, model.User{}, errs.ErrUnauthorized
	}
	ipHash := limiter.HashIP(peer)

	allowed, _, err := s.lim.Allow(ctx, username, ipHash)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	if !allowed {
		return model.Tokens{}, model.User{}, errs.ErrRateLimited
	}

	if s.autoRegister {
		if _, err := s.Register(ctx, username, password); err != nil && !errors.Is(err, errs.ErrAlreadyExists) {
			return model.Tokens{}, model.User{}, err
		}
	}

	u, err := s.users.GetByUsername(ctx, username)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return model.Tokens{}, model.User{}, err
	}
	if err != nil || !pkgcrypto.VerifyPassword([]byte(password), u.PwdHash) {
		if blocked, _, ferr := s.lim.Failure(ctx, username, ipHash); ferr == nil && blocked {
			return model.Tokens{}, model.User{}, errs.ErrRateLimited
		}
		// unknown user and wrong password look the same
		return model.Tokens{}, model.User{}, errs.ErrUnauthorized
	}

	// best-effort reset
	_ = s.lim.Success(ctx, username, ipHash)

	access, exp, err := s.issueAccessToken(u.ID)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	return model.Tokens{AccessToken: access, ExpiresAt: exp}, *u, nil
}

// issueAccessToken creates a signed HS256 JWT for the given subject.
func (s *AuthServiceImpl) issueAccessToken(userID uuid.UUID) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(s.accessTTL)
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.signKey)
	return signed, exp, err
}

// Authenticate verifies signature and expiry and returns the subject.
func (s *AuthServiceImpl) Authenticate(token string) (string, error) {
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.signKey, nil
	}, jwt.WithLeeway(30*time.Second), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return "", errs.ErrUnauthorized
	}
	if _, err := uuid.FromString(claims.Subject); err != nil {
		return "", errs.ErrUnauthorized
	}
	return claims.Subject, nil
}
