// Package refreshtokens declares the server-side repository contract for
// managing refresh tokens in persistent storage.
package refreshtokens

import (
	"context"

	"github.com/dmitrijs2005/market/internal/server/models"
)

// Repository defines operations for issuing, retrieving, rotating and
// revoking refresh tokens.
type Repository interface {
	// Create stores a new refresh token row.
	Create(ctx context.Context, token *models.RefreshToken) error

	// Find looks up a refresh token by its token string.
	// Implementations return common.ErrorNotFound when the token is absent.
	Find(ctx context.Context, token string) (*models.RefreshToken, error)

	// FindForUpdate is Find that also locks the row until the surrounding
	// transaction ends. It must run on a transaction handle.
	FindForUpdate(ctx context.Context, token string) (*models.RefreshToken, error)

	// Delete removes a refresh token by its token string. Deleting a
	// non-existent token is not an error.
	Delete(ctx context.Context, token string) error

	// DeleteAllForUser removes every refresh token of userID and returns
	// how many were removed.
	DeleteAllForUser(ctx context.Context, userID string) (int64, error)

	// Revoke marks a token as unusable without removing it.
	Revoke(ctx context.Context, token string) error
}
