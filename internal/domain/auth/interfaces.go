package auth

import (
	"context"
	"time"

	"parkinglot/internal/domain"
)

type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByLogin(ctx context.Context, login string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	Exists(ctx context.Context, username, email string) (bool, error)
	PromoteToAdmin(ctx context.Context, id int64) error
	List(ctx context.Context) ([]domain.User, error)
}

// TokenIssuer signs access tokens for authenticated users.
type TokenIssuer interface {
	GenerateToken(userID int64, username, role string) (string, error)
	TTL() time.Duration
}
