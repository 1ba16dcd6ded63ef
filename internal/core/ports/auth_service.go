package ports

import (
	"context"

	"github.com/handyfix/marketplace-engine/internal/core/domain"
)

// RegisterInput carries a new account. AsProvider creates a provider profile
// and sets the identity-side provider flag.
type RegisterInput struct {
	Email      string
	Password   string
	Name       string
	AsProvider bool
}

type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*domain.User, error)
	Login(ctx context.Context, email, password string) (string, *domain.User, error)
}
