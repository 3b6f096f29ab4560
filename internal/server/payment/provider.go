// Package payment adapts external payment processors to the order flow.
// A Provider never writes to the store: it creates checkout sessions and
// turns authenticated webhook deliveries into VerifiedEvents.
package payment

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/market/internal/server/models"
)

// SignatureHeader carries the processor's webhook signature.
const SignatureHeader = "Stripe-Signature"

// Provider is a payment processor capability.
type Provider interface {
	// Name identifies the processor, e.g. for logging.
	Name() string

	// CreatePayment opens a hosted checkout session for order and returns
	// its redirect URL. order.Items must be loaded.
	CreatePayment(ctx context.Context, order *models.Order) (string, error)

	// ConfirmPayment reports whether the payment intent has succeeded.
	ConfirmPayment(ctx context.Context, paymentIntentID string) (bool, error)

	// VerifyAndParseWebhook authenticates payload against the signature in
	// headers before looking at its content.
	VerifyAndParseWebhook(payload []byte, headers http.Header) (*VerifiedEvent, error)
}

// VerifiedEvent is an authenticated processor notification.
type VerifiedEvent struct {
	ID   string
	Type string

	// Actionable is set for completed checkouts; other events only get
	// acknowledged.
	Actionable bool

	// OrderRef is the raw order correlation id from the session metadata.
	// It is not validated here.
	OrderRef      string
	Address       *models.Address
	PromotionCode *string
}

// LineItem is one checkout line in minor currency units.
type LineItem struct {
	Name      string
	UnitPrice int64
	Quantity  int64
}

// ShippingLineName names the extra line carrying the shipping cost.
const ShippingLineName = "Shipping"

// TaxInclusive returns net plus vatRate percent, rounded half up to the
// minor unit.
func TaxInclusive(net, vatRate int64) int64 {
	return net + (net*vatRate+50)/100
}

// LineItems builds the checkout lines of order: one per order line at the
// tax-inclusive unit price, plus a shipping line when shipping is charged.
func LineItems(order *models.Order) []LineItem {
	items := make([]LineItem, 0, len(order.Items)+1)
	for _, it := range order.Items {
		items = append(items, LineItem{
			Name:      it.ProductName,
			UnitPrice: TaxInclusive(it.NetPrice, it.VATRate),
			Quantity:  it.Quantity,
		})
	}
	if order.ShippingCost > 0 {
		items = append(items, LineItem{Name: ShippingLineName, UnitPrice: order.ShippingCost, Quantity: 1})
	}
	return items
}
