package payments

import (
	"context"
	"net/http"

	"github.com/alopez/store-backend/pkg/db/models"
	"github.com/alopez/store-backend/pkg/enums"
	pkgerrors "github.com/alopez/store-backend/pkg/errors"
)

// Gateway is the payment provider used by checkout and webhook reconciliation.
type Gateway interface {
	// CreateCheckoutSession registers a hosted payment page for a persisted order.
	// Errors carry pkgerrors.CodePayment.
	CreateCheckoutSession(ctx context.Context, order *models.Order) (*CheckoutSession, error)
	// ParseWebhookRequest verifies and decodes a provider callback. A nil result
	// with a nil error means the event type is not relevant to orders.
	ParseWebhookRequest(ctx context.Context, headers http.Header, payload []byte) (*PaymentResult, error)
}

type CheckoutSession struct {
	CheckoutURL string
}

// PaymentResult is the order outcome reported by the provider.
type PaymentResult struct {
	EventID string
	OrderID int64
	Status  enums.OrderStatus
}

// NewError wraps a provider failure with the payment error code.
func NewError(cause error, message string) *pkgerrors.Error {
	return pkgerrors.Wrap(pkgerrors.CodePayment, cause, message)
}
