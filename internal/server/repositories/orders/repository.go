// Package orders stores customer orders and their payment and tracking state.
package orders

import (
	"context"

	"github.com/dmitrijs2005/market/internal/server/models"
)

type Repository interface {
	// FindByID returns the order without items, or common.ErrorNotFound.
	FindByID(ctx context.Context, id int64) (*models.Order, error)
	// Items returns the order lines joined with their products.
	Items(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	// MarkPaid moves an UNPAID order to PAID, attaching the shipment
	// location and, when promotion is non-nil, the promotion code. It
	// reports false when the order was not UNPAID at update time.
	MarkPaid(ctx context.Context, orderID int64, locationID *int64, promotion *string) (bool, error)
	// UpdateTrackingStatus sets the tracking state, or returns
	// common.ErrorNotFound for an unknown order.
	UpdateTrackingStatus(ctx context.Context, orderID int64, status models.TrackingStatus) error
}
