package services

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/market/internal/common"
	"github.com/dmitrijs2005/market/internal/dbx"
	"github.com/dmitrijs2005/market/internal/logging"
	"github.com/dmitrijs2005/market/internal/server/models"
	"github.com/dmitrijs2005/market/internal/server/repositories/repomanager"
)

// errConfirmationLost rolls back a confirmation whose conditional update
// found the order already PAID.
var errConfirmationLost = errors.New("order confirmed concurrently")

// OrderService owns the payment and tracking state of orders.
type OrderService struct {
	tx          dbx.Transactor
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
}

func NewOrderService(tx dbx.Transactor, m repomanager.RepositoryManager, logger logging.Logger) *OrderService {
	return &OrderService{
		tx:          tx,
		repomanager: m,
		logger:      logger.With("module", "orders"),
	}
}

// ApplyPaymentConfirmation marks an UNPAID order PAID, resolving the
// shipment address to a location of the order's owner and recording the
// promotion code when one is given. It is idempotent: a PAID order is left
// untouched and the call reports false. Only one of several concurrent
// calls for the same order reports true.
func (s *OrderService) ApplyPaymentConfirmation(ctx context.Context, orderID int64, address *models.Address, promotion *string) (bool, error) {
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		order, err := s.repomanager.Orders(tx).FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrOrderNotFound
			}
			return err
		}
		if order.IsPaid() {
			return errConfirmationLost
		}

		var locationID *int64
		if address != nil {
			loc, err := s.resolveLocation(ctx, tx, order.UserID, *address)
			if err != nil {
				return err
			}
			locationID = &loc.ID
		}

		changed, err := s.repomanager.Orders(tx).MarkPaid(ctx, orderID, locationID, promotion)
		if err != nil {
			return err
		}
		if !changed {
			return errConfirmationLost
		}
		return nil
	})

	switch {
	case errors.Is(err, errConfirmationLost):
		s.logger.Debug(ctx, "order already paid", "order_id", orderID)
		return false, nil
	case err != nil:
		return false, err
	}

	s.logger.Info(ctx, "order paid", "order_id", orderID)
	return true, nil
}

func (s *OrderService) resolveLocation(ctx context.Context, tx dbx.DBTX, userID string, address models.Address) (*models.Location, error) {
	repo := s.repomanager.Locations(tx)
	key := address.LookupKey()

	loc, err := repo.FindByLookupKey(ctx, userID, key)
	if err == nil {
		return loc, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}

	return repo.Create(ctx, &models.Location{UserID: userID, Address: address, LookupKey: key})
}

// UpdateTrackingStatus sets the shipping progress of an order.
func (s *OrderService) UpdateTrackingStatus(ctx context.Context, orderID int64, status string) error {
	ts, ok := models.ParseTrackingStatus(status)
	if !ok {
		return common.ErrInvalidInput
	}

	if err := s.repomanager.Orders(s.tx.Conn()).UpdateTrackingStatus(ctx, orderID, ts); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrOrderNotFound
		}
		return err
	}

	s.logger.Info(ctx, "tracking status updated", "order_id", orderID, "status", ts)
	return nil
}
