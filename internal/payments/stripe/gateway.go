package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	stripeapi "github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/alopez/store-backend/internal/payments"
	"github.com/alopez/store-backend/pkg/db/models"
	"github.com/alopez/store-backend/pkg/enums"
	"github.com/alopez/store-backend/pkg/logger"
)

const (
	signatureHeader  = "Stripe-Signature"
	orderIDMetadata  = "order_id"
	minorUnitsFactor = 100

	msgProviderFailure  = "Payment method used: Stripe"
	msgSignatureInvalid = "Signature verification failed, please check webhook secret."
	msgEventUndecodable = "Could not deserialize Stripe event. Check the SDK and API version."
)

type settings interface {
	SigningSecret() string
	Currency() string
}

type GatewayParams struct {
	Settings   settings
	Sessions   SessionCreator
	WebsiteURL string
	Logger     *logger.Logger
}

// Gateway implements payments.Gateway on Stripe Checkout.
type Gateway struct {
	sessions      SessionCreator
	signingSecret string
	currency      string
	websiteURL    string
	logg          *logger.Logger
}

var _ payments.Gateway = (*Gateway)(nil)

func NewGateway(params GatewayParams) (*Gateway, error) {
	if params.Settings == nil {
		return nil, fmt.Errorf("stripe settings required")
	}
	if strings.TrimSpace(params.Settings.SigningSecret()) == "" {
		return nil, fmt.Errorf("stripe signing secret required")
	}
	if strings.TrimSpace(params.WebsiteURL) == "" {
		return nil, fmt.Errorf("website url required")
	}
	sessions := params.Sessions
	if sessions == nil {
		sessions = NewSessionCreator()
	}
	return &Gateway{
		sessions:      sessions,
		signingSecret: params.Settings.SigningSecret(),
		currency:      params.Settings.Currency(),
		websiteURL:    strings.TrimRight(params.WebsiteURL, "/"),
		logg:          params.Logger,
	}, nil
}

// CreateCheckoutSession opens a payment-mode Checkout Session tagged with the order id.
func (g *Gateway) CreateCheckoutSession(ctx context.Context, order *models.Order) (*payments.CheckoutSession, error) {
	params := g.sessionParams(order)
	sess, err := g.sessions.New(ctx, params)
	if err != nil {
		if g.logg != nil {
			g.logg.Error(g.logg.WithOrderID(ctx, order.ID), "stripe.checkout_session_failed", err)
		}
		return nil, payments.NewError(err, msgProviderFailure)
	}
	return &payments.CheckoutSession{CheckoutURL: sess.URL}, nil
}

func (g *Gateway) sessionParams(order *models.Order) *stripeapi.CheckoutSessionParams {
	orderID := strconv.FormatInt(order.ID, 10)
	params := &stripeapi.CheckoutSessionParams{
		Mode:       stripeapi.String(string(stripeapi.CheckoutSessionModePayment)),
		SuccessURL: stripeapi.String(g.websiteURL + "/checkout-success?orderId=" + orderID),
		CancelURL:  stripeapi.String(g.websiteURL + "/checkout-cancel"),
		PaymentIntentData: &stripeapi.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{orderIDMetadata: orderID},
		},
	}
	for _, item := range order.Items {
		params.LineItems = append(params.LineItems, g.lineItem(item))
	}
	return params
}

func (g *Gateway) lineItem(item models.OrderItem) *stripeapi.CheckoutSessionLineItemParams {
	product := &stripeapi.CheckoutSessionLineItemPriceDataProductDataParams{}
	if item.Product != nil {
		product.Name = stripeapi.String(item.Product.Name)
		if desc := strings.TrimSpace(item.Product.Description); desc != "" {
			product.Description = stripeapi.String(desc)
		}
	} else {
		product.Name = stripeapi.String("Product " + strconv.FormatInt(item.ProductID, 10))
	}
	return &stripeapi.CheckoutSessionLineItemParams{
		Quantity: stripeapi.Int64(int64(item.Quantity)),
		PriceData: &stripeapi.CheckoutSessionLineItemPriceDataParams{
			Currency:    stripeapi.String(g.currency),
			UnitAmount:  stripeapi.Int64(toMinorUnits(item.UnitPrice)),
			ProductData: product,
		},
	}
}

func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(minorUnitsFactor)).Round(0).IntPart()
}

// ParseWebhookRequest verifies the Stripe signature and maps payment intent
// outcomes onto order statuses.
func (g *Gateway) ParseWebhookRequest(ctx context.Context, headers http.Header, payload []byte) (*payments.PaymentResult, error) {
	event, err := webhook.ConstructEventWithOptions(payload, headers.Get(signatureHeader), g.signingSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		if isSignatureError(err) {
			return nil, payments.NewError(err, msgSignatureInvalid)
		}
		return nil, payments.NewError(err, msgEventUndecodable)
	}
	if event.APIVersion != "" && event.APIVersion != stripeapi.APIVersion && g.logg != nil {
		g.logg.Warn(g.logg.WithFields(ctx, map[string]any{
			"event_id":        event.ID,
			"event_version":   event.APIVersion,
			"sdk_api_version": stripeapi.APIVersion,
		}), "stripe.api_version_mismatch")
	}

	var status enums.OrderStatus
	switch event.Type {
	case stripeapi.EventTypePaymentIntentSucceeded:
		status = enums.OrderStatusPaid
	case stripeapi.EventTypePaymentIntentPaymentFailed:
		status = enums.OrderStatusFailed
	default:
		if g.logg != nil {
			g.logg.Debug(g.logg.WithFields(ctx, map[string]any{"event_id": event.ID, "event_type": string(event.Type)}), "stripe.event_ignored")
		}
		return nil, nil
	}

	orderID, err := extractOrderID(event)
	if err != nil {
		return nil, payments.NewError(err, msgEventUndecodable)
	}
	return &payments.PaymentResult{EventID: event.ID, OrderID: orderID, Status: status}, nil
}

// isSignatureError reports failures of the signature header itself; anything
// else from ConstructEventWithOptions is a payload decode problem.
func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld)
}

func extractOrderID(event stripeapi.Event) (int64, error) {
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return 0, fmt.Errorf("event %s has no data object", event.ID)
	}
	var intent stripeapi.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return 0, fmt.Errorf("decode payment intent: %w", err)
	}
	raw, ok := intent.Metadata[orderIDMetadata]
	if !ok {
		return 0, fmt.Errorf("payment intent %s missing %s metadata", intent.ID, orderIDMetadata)
	}
	orderID, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || orderID <= 0 {
		return 0, fmt.Errorf("payment intent %s has invalid order id %q", intent.ID, raw)
	}
	return orderID, nil
}
