package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/market/internal/common"
	"github.com/dmitrijs2005/market/internal/logging"
	"github.com/dmitrijs2005/market/internal/server/models"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"
)

const (
	eventCheckoutCompleted = "checkout.session.completed"
	metadataOrderID        = "order_id"
	defaultTimeout         = 10 * time.Second
)

// StripeConfig configures StripeProvider.
type StripeConfig struct {
	APIKey            string
	WebhookSecret     string
	Currency          string
	FrontendURL       string
	ShippingCountries []string
	Timeout           time.Duration

	// BackendURL overrides the Stripe API base URL. Empty means Stripe.
	BackendURL string
	HTTPClient *http.Client
}

// StripeProvider implements Provider with Stripe Checkout.
type StripeProvider struct {
	client *client.API
	cfg    StripeConfig
	logger logging.Logger
}

// NewStripeProvider builds a provider with its own Stripe client. The
// client never retries on its own: a failed call surfaces as
// common.ErrGatewayError and the caller decides.
func NewStripeProvider(cfg StripeConfig, logger logging.Logger) *StripeProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	backendConfig := func() *stripe.BackendConfig {
		c := &stripe.BackendConfig{
			HTTPClient:        httpClient,
			MaxNetworkRetries: stripe.Int64(0),
			LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
		}
		if cfg.BackendURL != "" {
			c.URL = stripe.String(cfg.BackendURL)
		}
		return c
	}

	sc := &client.API{}
	sc.Init(cfg.APIKey, &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendConfig()),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendConfig()),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendConfig()),
	})

	return &StripeProvider{
		client: sc,
		cfg:    cfg,
		logger: logger.With("module", "payment", "provider", "stripe"),
	}
}

func (p *StripeProvider) Name() string {
	return "stripe"
}

func (p *StripeProvider) CreatePayment(ctx context.Context, order *models.Order) (string, error) {
	if order.IsPaid() {
		return "", common.ErrAlreadyPaid
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(p.returnURL("success", order.ID)),
		CancelURL:  stripe.String(p.returnURL("cancel", order.ID)),
		ShippingAddressCollection: &stripe.CheckoutSessionShippingAddressCollectionParams{
			AllowedCountries: stripe.StringSlice(p.cfg.ShippingCountries),
		},
	}
	for _, it := range LineItems(order) {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(p.cfg.Currency),
				UnitAmount: stripe.Int64(it.UnitPrice),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(it.Name),
				},
			},
			Quantity: stripe.Int64(it.Quantity),
		})
	}
	params.AddMetadata(metadataOrderID, strconv.FormatInt(order.ID, 10))
	params.Context = ctx

	session, err := p.client.CheckoutSessions.New(params)
	if err != nil {
		p.logger.Error(ctx, "checkout session creation failed", "order_id", order.ID, "error", err)
		return "", mapStripeError(err)
	}

	p.logger.Info(ctx, "checkout session created", "order_id", order.ID, "session_id", session.ID)
	return session.URL, nil
}

func (p *StripeProvider) returnURL(outcome string, orderID int64) string {
	return fmt.Sprintf("%s/checkout/%s/%d", strings.TrimRight(p.cfg.FrontendURL, "/"), outcome, orderID)
}

func (p *StripeProvider) ConfirmPayment(ctx context.Context, paymentIntentID string) (bool, error) {
	if paymentIntentID == "" {
		return false, common.ErrInvalidInput
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	pi, err := p.client.PaymentIntents.Get(paymentIntentID, &stripe.PaymentIntentParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return false, mapStripeError(err)
	}

	return pi.Status == stripe.PaymentIntentStatusSucceeded, nil
}

// sessionDiscounts picks the applied discounts out of a checkout session
// object; only the promotion code id is used.
type sessionDiscounts struct {
	Discounts []struct {
		PromotionCode *stripe.PromotionCode `json:"promotion_code"`
	} `json:"discounts"`
}

func (p *StripeProvider) VerifyAndParseWebhook(payload []byte, headers http.Header) (*VerifiedEvent, error) {
	sig := headers.Get(SignatureHeader)
	if sig == "" {
		return nil, common.ErrMissingSignature
	}

	event, err := webhook.ConstructEventWithOptions(payload, sig, p.cfg.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrSignatureInvalid, err)
	}

	ev := &VerifiedEvent{ID: event.ID, Type: string(event.Type)}
	if ev.Type != eventCheckoutCompleted || event.Data == nil {
		return ev, nil
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		p.logger.Warn(context.Background(), "unreadable checkout session", "event_id", event.ID, "error", err)
		return ev, nil
	}

	ev.Actionable = true
	ev.OrderRef = session.Metadata[metadataOrderID]

	if cd := session.CustomerDetails; cd != nil && cd.Address != nil {
		ev.Address = &models.Address{
			Line1:      cd.Address.Line1,
			Line2:      cd.Address.Line2,
			City:       cd.Address.City,
			PostalCode: cd.Address.PostalCode,
			Country:    cd.Address.Country,
		}
	}

	var d sessionDiscounts
	if err := json.Unmarshal(event.Data.Raw, &d); err == nil && len(d.Discounts) > 0 {
		if pc := d.Discounts[0].PromotionCode; pc != nil && pc.ID != "" {
			ev.PromotionCode = &pc.ID
		}
	}

	return ev, nil
}

// mapStripeError converts stripe-go errors into common.ErrGatewayError
// so processor types do not leak past this package.
func mapStripeError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return fmt.Errorf("%w: stripe %s (status %d): %s",
			common.ErrGatewayError, stripeErr.Type, stripeErr.HTTPStatusCode, stripeErr.Msg)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: timeout", common.ErrGatewayError)
	}
	return fmt.Errorf("%w: %v", common.ErrGatewayError, err)
}
