package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rl1809/cropchain/internal/core/domain"
	"github.com/rl1809/cropchain/internal/port"
)

const minPasswordLength = 6

type UserService struct {
	users  port.UserRepository
	hasher port.PasswordHasher
	tokens port.TokenIssuer
	logger zerolog.Logger
}

func NewUserService(users port.UserRepository, hasher port.PasswordHasher, tokens port.TokenIssuer, logger zerolog.Logger) *UserService {
	return &UserService{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		logger: logger.With().Str("component", "user_service").Logger(),
	}
}

// Register stores a new user. Buyers get an empty cart.
func (s *UserService) Register(ctx context.Context, reg domain.Registration) (domain.User, error) {
	reg.Username = strings.TrimSpace(reg.Username)
	reg.Email = strings.TrimSpace(strings.ToLower(reg.Email))
	if reg.Username == "" || len(reg.Password) < minPasswordLength {
		return domain.User{}, domain.ErrInvalidRegistration
	}
	if _, err := mail.ParseAddress(reg.Email); err != nil {
		return domain.User{}, domain.ErrInvalidRegistration
	}

	for _, login := range []string{reg.Username, reg.Email} {
		existing, err := s.users.GetUserByLogin(ctx, login)
		if err != nil {
			return domain.User{}, fmt.Errorf("lookup user: %w", err)
		}
		if existing != nil {
			return domain.User{}, domain.ErrUserExists
		}
	}

	hash, err := s.hasher.Hash(reg.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.CreateUser(ctx, domain.User{
		Username:     reg.Username,
		Email:        reg.Email,
		PasswordHash: hash,
		IsSeller:     reg.IsSeller,
	})
	if err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info().Int64("user_id", user.ID).Bool("is_seller", user.IsSeller).Msg("user registered")
	return user, nil
}

// Login checks the credentials and issues a bearer token. login may be the
// username or the email.
func (s *UserService) Login(ctx context.Context, login, password string) (string, error) {
	user, err := s.users.GetUserByLogin(ctx, strings.TrimSpace(login))
	if err != nil {
		return "", fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		return "", domain.ErrInvalidCredentials
	}
	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return "", domain.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}

func (s *UserService) Get(ctx context.Context, userID int64) (domain.User, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return domain.User{}, domain.ErrUserNotFound
	}
	return *user, nil
}
