package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/market/internal/common"
	"github.com/dmitrijs2005/market/internal/dbx"
	"github.com/dmitrijs2005/market/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) FindByID(ctx context.Context, id int64) (*models.Order, error) {
	query := `
		SELECT id, user_id, payment_status, tracking_status, shipment_location_id,
		       promotion_code, shipping_cost, order_date
		FROM orders
		WHERE id = $1
	`

	o := &models.Order{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&o.ID, &o.UserID, &o.PaymentStatus, &o.TrackingStatus, &o.ShipmentLocationID,
		&o.PromotionCode, &o.ShippingCost, &o.OrderDate,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return o, nil
}

func (r *PostgresRepository) Items(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	query := `
		SELECT p.id, p.name, p.net_price, p.vat_rate, op.quantity
		FROM order_products op
		JOIN products p ON p.id = op.product_id
		WHERE op.order_id = $1
		ORDER BY p.id
	`

	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	items := []models.OrderItem{}
	for rows.Next() {
		var it models.OrderItem
		if err := rows.Scan(&it.ProductID, &it.ProductName, &it.NetPrice, &it.VATRate, &it.Quantity); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return items, nil
}

// MarkPaid only touches rows still UNPAID, so of two concurrent
// confirmations exactly one sees a changed row.
func (r *PostgresRepository) MarkPaid(ctx context.Context, orderID int64, locationID *int64, promotion *string) (bool, error) {
	query := `
		UPDATE orders
		SET payment_status = 'PAID',
		    shipment_location_id = COALESCE($2, shipment_location_id),
		    promotion_code = COALESCE($3, promotion_code)
		WHERE id = $1 AND payment_status = 'UNPAID'
	`

	res, err := r.db.ExecContext(ctx, query, orderID, locationID, promotion)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return n == 1, nil
}

func (r *PostgresRepository) UpdateTrackingStatus(ctx context.Context, orderID int64, status models.TrackingStatus) error {
	query := `
		UPDATE orders
		SET tracking_status = $2
		WHERE id = $1
	`

	res, err := r.db.ExecContext(ctx, query, orderID, string(status))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}

	return nil
}
