package users

import (
	"context"

	"github.com/dmitrijs2005/market/internal/server/models"
)

type Repository interface {
	// Create inserts user and fills in its ID. A taken username or email
	// yields common.ErrDuplicateUsername or common.ErrDuplicateEmail.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	AddRole(ctx context.Context, userID string, role string) error
	Roles(ctx context.Context, userID string) ([]string, error)
}
