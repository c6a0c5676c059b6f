package controllers

import (
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/alopez/store-backend/api/responses"
	"github.com/alopez/store-backend/api/validators"
	"github.com/alopez/store-backend/internal/checkout"
	pkgerrors "github.com/alopez/store-backend/pkg/errors"
	"github.com/alopez/store-backend/pkg/logger"
)

const (
	checkoutFailurePrefix = "Error creating a checkout session, please try again later. "
	maxWebhookBytes       = 1 << 20
)

type checkoutRequest struct {
	CartID uuid.UUID `json:"cartId" validate:"required"`
}

// Checkout places an order for the caller from the given cart. Bodies are
// bare: `{orderId, checkoutUrl}` on success and `{error}` on failure.
func Checkout(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requireUserID(r)
		if err != nil {
			responses.WriteBareError(r.Context(), logg, w, err)
			return
		}
		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteBareError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Checkout(r.Context(), userID, payload.CartID)
		if err != nil {
			if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodePayment {
				err = pkgerrors.Wrap(pkgerrors.CodePayment, err, checkoutFailurePrefix+typed.Message())
			}
			responses.WriteBareError(r.Context(), logg, w, err)
			return
		}
		responses.WriteBare(w, http.StatusOK, result)
	}
}

// PaymentWebhook hands the raw provider callback to the reconciler.
func PaymentWebhook(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
		if err != nil {
			responses.WriteBareError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}
		if err := svc.HandleWebhookEvent(r.Context(), r.Header, payload); err != nil {
			responses.WriteBareError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
