package services

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/market/internal/common"
	"github.com/dmitrijs2005/market/internal/dbx"
	"github.com/dmitrijs2005/market/internal/logging"
	"github.com/dmitrijs2005/market/internal/server/archive"
	"github.com/dmitrijs2005/market/internal/server/auth"
	"github.com/dmitrijs2005/market/internal/server/payment"
	"github.com/dmitrijs2005/market/internal/server/repositories/repomanager"
)

// PaymentService connects callers and processor webhooks to the order
// state machine.
type PaymentService struct {
	tx          dbx.Transactor
	repomanager repomanager.RepositoryManager
	provider    payment.Provider
	orders      *OrderService
	archive     archive.Archive
	logger      logging.Logger
}

func NewPaymentService(tx dbx.Transactor, m repomanager.RepositoryManager, provider payment.Provider,
	orders *OrderService, a archive.Archive, logger logging.Logger) *PaymentService {
	if a == nil {
		a = archive.NopArchive{}
	}
	return &PaymentService{
		tx:          tx,
		repomanager: m,
		provider:    provider,
		orders:      orders,
		archive:     a,
		logger:      logger.With("module", "payment", "provider", provider.Name()),
	}
}

// CreatePayment opens a checkout session for one of the caller's orders.
// Orders of other users look missing unless the caller is an admin.
func (s *PaymentService) CreatePayment(ctx context.Context, principal auth.Principal, orderID int64) (string, error) {
	repo := s.repomanager.Orders(s.tx.Conn())

	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrOrderNotFound
		}
		return "", err
	}
	if order.UserID != principal.UserID && !principal.HasRole(common.RoleAdmin) {
		return "", common.ErrOrderNotFound
	}
	if order.IsPaid() {
		return "", common.ErrAlreadyPaid
	}

	order.Items, err = repo.Items(ctx, orderID)
	if err != nil {
		return "", err
	}

	return s.provider.CreatePayment(ctx, order)
}

// HandleWebhook verifies and applies a processor notification. Unknown or
// malformed order references are logged and acknowledged so the processor
// stops redelivering them; store failures are returned so it retries.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, headers http.Header) error {
	ev, err := s.provider.VerifyAndParseWebhook(payload, headers)
	if err != nil {
		s.logger.Warn(ctx, "webhook rejected", "error", err)
		return err
	}

	if err := s.archive.Store(ctx, ev.ID, payload); err != nil {
		s.logger.Warn(ctx, "webhook archive failed", "event_id", ev.ID, "error", err)
	}

	if !ev.Actionable {
		s.logger.Debug(ctx, "webhook ignored", "event_id", ev.ID, "type", ev.Type)
		return nil
	}

	orderID, err := strconv.ParseInt(ev.OrderRef, 10, 64)
	if err != nil {
		s.logger.Warn(ctx, "webhook with invalid order reference", "event_id", ev.ID, "order_ref", ev.OrderRef)
		return nil
	}

	applied, err := s.orders.ApplyPaymentConfirmation(ctx, orderID, ev.Address, ev.PromotionCode)
	if err != nil {
		if errors.Is(err, common.ErrOrderNotFound) {
			s.logger.Warn(ctx, "webhook for unknown order", "event_id", ev.ID, "order_id", orderID)
			return nil
		}
		s.logger.Error(ctx, "payment confirmation failed", "event_id", ev.ID, "order_id", orderID, "error", err)
		return err
	}

	s.logger.Info(ctx, "webhook processed", "event_id", ev.ID, "order_id", orderID, "applied", applied)
	return nil
}

// ConfirmPayment reports whether the processor considers the payment
// intent succeeded.
func (s *PaymentService) ConfirmPayment(ctx context.Context, paymentIntentID string) (bool, error) {
	return s.provider.ConfirmPayment(ctx, paymentIntentID)
}
