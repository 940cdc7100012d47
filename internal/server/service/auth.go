package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Dominux/Pentaract/internal/server/database"
)

// AuthUser is the authenticated identity attached to a request.
type AuthUser struct {
	ID    uuid.UUID
	Email string
}

type accessClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// AuthService handles registration, login and access-token validation.
type AuthService struct {
	users     *database.UsersRepository
	secretKey []byte
	expiry    time.Duration
}

// NewAuthService creates an auth service signing HS256 tokens with
// secretKey, valid for expiry.
func NewAuthService(users *database.UsersRepository, secretKey string, expiry time.Duration) *AuthService {
	return &AuthService{
		users:     users,
		secretKey: []byte(secretKey),
		expiry:    expiry,
	}
}

// Register creates a user with a bcrypt-hashed password. A taken email
// surfaces as database.ErrAlreadyExists.
func (s *AuthService) Register(ctx context.Context, email, password string) (*database.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	return s.users.Create(ctx, email, string(hash))
}

// Login verifies the credentials and issues an access token. Unknown
// emails and wrong passwords are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	return s.generateToken(AuthUser{ID: user.ID, Email: user.Email})
}

func (s *AuthService) generateToken(user AuthUser) (string, error) {
	now := time.Now()
	claims := accessClaims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Authenticate resolves a bearer token to its user. Any parsing or
// validation failure maps to ErrNotAuthenticated.
func (s *AuthService) Authenticate(tokenString string) (AuthUser, error) {
	claims := &accessClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return s.secretKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil || !token.Valid {
		return AuthUser{}, ErrNotAuthenticated
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return AuthUser{}, ErrNotAuthenticated
	}
	return AuthUser{ID: id, Email: claims.Email}, nil
}

// EnsureSuperuser creates the configured superuser account if it does
// not exist yet. Called once at startup.
func (s *AuthService) EnsureSuperuser(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}

	_, err := s.Register(ctx, email, password)
	if errors.Is(err, database.ErrAlreadyExists) {
		return nil
	}
	return err
}
