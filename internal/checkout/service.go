package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/alopez/store-backend/internal/cart"
	"github.com/alopez/store-backend/internal/orders"
	"github.com/alopez/store-backend/internal/payments"
	"github.com/alopez/store-backend/pkg/db"
	"github.com/alopez/store-backend/pkg/db/models"
	pkgerrors "github.com/alopez/store-backend/pkg/errors"
	"github.com/alopez/store-backend/pkg/logger"
	"github.com/alopez/store-backend/pkg/metrics"
	"github.com/alopez/store-backend/pkg/outbox"
)

var (
	ErrCartNotFound = errors.New("cart not found")
	ErrCartEmpty    = errors.New("cart is empty")
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Confirm(ctx context.Context, eventID string) error
	Delete(ctx context.Context, eventID string) error
}

// Service places orders through the payment gateway and reconciles provider callbacks.
type Service interface {
	Checkout(ctx context.Context, customerID int64, cartID uuid.UUID) (*CheckoutResult, error)
	HandleWebhookEvent(ctx context.Context, headers http.Header, payload []byte) error
}

type CheckoutResult struct {
	OrderID     int64  `json:"orderId"`
	CheckoutURL string `json:"checkoutUrl"`
}

type ServiceParams struct {
	DB      txRunner
	Carts   *cart.Repository
	Orders  orders.Repository
	Gateway payments.Gateway
	Outbox  outbox.Emitter
	Guard   eventGuard
	Metrics *metrics.CheckoutMetrics
	Logger  *logger.Logger
}

type service struct {
	tx      txRunner
	carts   *cart.Repository
	orders  orders.Repository
	gateway payments.Gateway
	outbox  outbox.Emitter
	guard   eventGuard
	metrics *metrics.CheckoutMetrics
	logg    *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Guard == nil {
		return nil, fmt.Errorf("idempotency guard required")
	}
	if params.Metrics == nil {
		params.Metrics = metrics.NewCheckoutMetrics(nil)
	}
	return &service{
		tx:      params.DB,
		carts:   params.Carts,
		orders:  params.Orders,
		gateway: params.Gateway,
		outbox:  params.Outbox,
		guard:   params.Guard,
		metrics: params.Metrics,
		logg:    params.Logger,
	}, nil
}

func (s *service) Checkout(ctx context.Context, customerID int64, cartID uuid.UUID) (*CheckoutResult, error) {
	started := time.Now()
	ctx = s.withFields(ctx, map[string]any{"customer_id": customerID, "cart_id": cartID.String()})

	var result *CheckoutResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		carts := s.carts.WithTx(tx)
		ordersRepo := s.orders.WithTx(tx)

		c, err := carts.FindWithItems(ctx, cartID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.Wrap(pkgerrors.CodeValidation, ErrCartNotFound, "Cart not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if c.IsEmpty() {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, ErrCartEmpty, "Cart is empty")
		}

		order := models.NewOrderFromCart(c, customerID)
		if err := ordersRepo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		if err := s.outbox.Emit(ctx, tx, outbox.OrderCreated(order)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue order created event")
		}

		session, gwErr := s.gateway.CreateCheckoutSession(ctx, order)
		if gwErr != nil {
			if err := ordersRepo.Delete(ctx, order.ID); err != nil {
				s.logError(ctx, "checkout.order_cleanup_failed", err)
			}
			s.logError(s.withFields(ctx, map[string]any{"order_id": order.ID}), "checkout.gateway_failed", gwErr)
			return gwErr
		}

		if err := carts.ClearItems(ctx, c.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}

		result = &CheckoutResult{OrderID: order.ID, CheckoutURL: session.CheckoutURL}
		return nil
	})

	s.metrics.ObserveCheckout(checkoutOutcome(err), time.Since(started))
	if err != nil {
		return nil, err
	}
	s.logInfo(s.withFields(ctx, map[string]any{"order_id": result.OrderID}), "checkout.session_created")
	return result, nil
}

func checkoutOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, ErrCartNotFound):
		return metrics.OutcomeCartNotFound
	case errors.Is(err, ErrCartEmpty):
		return metrics.OutcomeCartEmpty
	case pkgerrors.IsCode(err, pkgerrors.CodePayment):
		return metrics.OutcomeGatewayFailed
	default:
		return metrics.OutcomeError
	}
}

func (s *service) HandleWebhookEvent(ctx context.Context, headers http.Header, payload []byte) error {
	result, err := s.gateway.ParseWebhookRequest(ctx, headers, payload)
	if err != nil {
		s.metrics.IncWebhook(metrics.WebhookRejected)
		s.logWarn(ctx, "webhook.rejected", err)
		return err
	}
	if result == nil {
		s.metrics.IncWebhook(metrics.WebhookIgnored)
		return nil
	}

	ctx = s.withFields(ctx, map[string]any{
		"provider_event_id": result.EventID,
		"order_id":          result.OrderID,
		"status":            string(result.Status),
	})

	duplicate, err := s.guard.CheckAndMark(ctx, result.EventID)
	if err != nil {
		s.metrics.IncWebhook(metrics.WebhookError)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check webhook idempotency")
	}
	if duplicate {
		s.metrics.IncWebhook(metrics.WebhookDuplicate)
		s.logInfo(ctx, "webhook.duplicate_ignored")
		return nil
	}

	applied, err := s.applyPaymentResult(ctx, result)
	if err != nil {
		if delErr := s.guard.Delete(ctx, result.EventID); delErr != nil {
			s.logError(ctx, "webhook.idempotency_release_failed", delErr)
		}
		s.metrics.IncWebhook(metrics.WebhookError)
		s.logError(ctx, "webhook.apply_failed", err)
		return err
	}
	// Committed. A failed confirm leaves the short processing marker in place.
	if err := s.guard.Confirm(ctx, result.EventID); err != nil {
		s.logError(ctx, "webhook.idempotency_confirm_failed", err)
	}
	if !applied {
		s.metrics.IncWebhook(metrics.WebhookIgnored)
		return nil
	}
	s.metrics.IncWebhook(metrics.WebhookProcessed)
	s.logInfo(ctx, "webhook.order_status_updated")
	return nil
}

// applyPaymentResult reports whether the order status changed.
func (s *service) applyPaymentResult(ctx context.Context, result *payments.PaymentResult) (bool, error) {
	applied := false
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.orders.WithTx(tx)

		order, err := ordersRepo.FindByID(ctx, result.OrderID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("order %d referenced by payment provider not found", result.OrderID))
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		previous := order.Status
		if previous == result.Status {
			return nil
		}
		if !previous.CanTransitionTo(result.Status) {
			s.logWarn(s.withFields(ctx, map[string]any{"current_status": string(previous)}), "webhook.status_regression_ignored", nil)
			return nil
		}

		if err := ordersRepo.UpdateStatus(ctx, order.ID, result.Status); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		order.Status = result.Status

		if event, ok := outbox.OrderSettled(order, previous, result.EventID); ok {
			if err := s.outbox.Emit(ctx, tx, event); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue order settled event")
			}
		}
		applied = true
		return nil
	})
	return applied, err
}

func (s *service) withFields(ctx context.Context, fields map[string]any) context.Context {
	if s.logg == nil {
		return ctx
	}
	return s.logg.WithFields(ctx, fields)
}

func (s *service) logInfo(ctx context.Context, msg string) {
	if s.logg != nil {
		s.logg.Info(ctx, msg)
	}
}

func (s *service) logWarn(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	if err != nil {
		ctx = s.logg.WithFields(ctx, pkgerrors.Dump(err).Fields())
	}
	s.logg.Warn(ctx, msg)
}

func (s *service) logError(ctx context.Context, msg string, err error) {
	if s.logg != nil {
		s.logg.Error(ctx, msg, err)
	}
}
