package ports

import (
	"context"

	"github.com/99minutos/bug-tracker/internal/core/domain"
)

// UserRepository defines persistence operations for user accounts.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	// Update persists name, email, password hash and updated_at.
	Update(ctx context.Context, user *domain.User) error
}
