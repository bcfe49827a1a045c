// Package auth issues and verifies credentials and bearer tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/chat2test/internal/domain"
	"github.com/ashureev/chat2test/internal/store"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLen = 6
	// bcrypt ignores input past 72 bytes.
	maxPasswordBytes = 72
	issuer           = "chat2test"
)

// Service handles signup, login and token verification.
type Service struct {
	repo   store.Repository
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewService creates an auth service signing tokens with secret.
func NewService(repo store.Repository, secret string, ttl time.Duration) *Service {
	return &Service{
		repo:   repo,
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Token is the login response.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Signup registers a new user.
func (s *Service) Signup(ctx context.Context, email, password string) (*domain.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < minPasswordLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters", domain.ErrValidation, minPasswordLen)
	}
	if len(password) > maxPasswordBytes {
		return nil, fmt.Errorf("%w: password cannot be longer than %d bytes", domain.ErrValidation, maxPasswordBytes)
	}

	existing, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: email already registered", domain.ErrConflict)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{Email: email, HashedPassword: string(hash)}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	slog.Info("User registered", "user_id", user.ID)
	return user, nil
}

// Login checks credentials and returns a signed token.
func (s *Service) Login(ctx context.Context, email, password string) (*Token, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthorized)
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)) != nil {
		return nil, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthorized)
	}

	signed, err := s.Issue(user.ID)
	if err != nil {
		return nil, err
	}
	return &Token{
		AccessToken: signed,
		TokenType:   "bearer",
		ExpiresIn:   int64(s.ttl.Seconds()),
	}, nil
}

// Issue signs a token whose subject is userID.
func (s *Service) Issue(userID int64) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify validates a token and returns its subject user ID.
func (s *Service) Verify(token string) (int64, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		if err == nil {
			err = errors.New("invalid token")
		}
		return 0, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return 0, fmt.Errorf("%w: malformed subject", domain.ErrUnauthorized)
	}
	return userID, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: invalid email address", domain.ErrValidation)
	}
	return email, nil
}
