package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"parkinglot/internal/domain"
	"parkinglot/internal/pkg/validator"
)

// Service contains all business logic for authentication
type Service struct {
	users  UserRepository
	tokens TokenIssuer
}

func NewService(users UserRepository, tokens TokenIssuer) *Service {
	return &Service{users: users, tokens: tokens}
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (*domain.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validator.Check(req, ErrValidation); err != nil {
		return nil, err
	}

	exists, err := s.users.Exists(ctx, req.Username, req.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrUserExists
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	log.Printf("auth: user registered id=%d username=%q", user.ID, user.Username)
	return user, nil
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if err := validator.Check(req, ErrValidation); err != nil {
		return nil, err
	}

	user, err := s.users.GetByLogin(ctx, strings.TrimSpace(req.Login))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := CheckPassword(req.Password, user.PasswordHash); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Username, user.Role())
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	return &LoginResult{
		User:        user,
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.tokens.TTL().Seconds()),
	}, nil
}

func (s *Service) Me(ctx context.Context, userID int64) (*domain.User, error) {
	return s.users.GetByID(ctx, userID)
}

func (s *Service) ListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []domain.User{}
	}
	return users, nil
}

// EnsureAdmin makes sure the bootstrap administrator exists. An existing user
// with that username is promoted; its password is left untouched.
func (s *Service) EnsureAdmin(ctx context.Context, username, email, password string) (*domain.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	switch {
	case err == nil:
		if !user.IsAdmin {
			if err := s.users.PromoteToAdmin(ctx, user.ID); err != nil {
				return nil, err
			}
			user.IsAdmin = true
			log.Printf("auth: promoted existing user to admin id=%d username=%q", user.ID, username)
		}
		return user, nil
	case !errors.Is(err, ErrUserNotFound):
		return nil, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	user = &domain.User{
		Username:     username,
		Email:        strings.ToLower(email),
		PasswordHash: hash,
		IsAdmin:      true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create admin: %w", err)
	}
	log.Printf("auth: admin created id=%d username=%q", user.ID, username)
	return user, nil
}
