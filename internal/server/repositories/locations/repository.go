// Package locations stores shipment addresses, deduplicated per user.
package locations

import (
	"context"

	"github.com/dmitrijs2005/market/internal/server/models"
)

type Repository interface {
	// FindByLookupKey returns the user's location with the given key, or
	// common.ErrorNotFound.
	FindByLookupKey(ctx context.Context, userID, lookupKey string) (*models.Location, error)
	// Create inserts loc and fills in its ID. If an identical address was
	// stored for the user in the meantime, that row's ID is returned.
	Create(ctx context.Context, loc *models.Location) (*models.Location, error)
}
