package outbox

import (
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/alopez/store-backend/pkg/db/models"
	"github.com/alopez/store-backend/pkg/enums"
)

// OrderLine is the item snapshot carried on order.created.
type OrderLine struct {
	ProductID  int64           `json:"productId"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

// OrderCreatedEvent is emitted when checkout persists a PENDING order.
type OrderCreatedEvent struct {
	OrderID    int64             `json:"orderId"`
	CustomerID int64             `json:"customerId"`
	Status     enums.OrderStatus `json:"status"`
	TotalPrice decimal.Decimal   `json:"totalPrice"`
	Items      []OrderLine       `json:"items"`
}

// OrderSettledEvent is emitted when a payment webhook moves an order to PAID or FAILED.
type OrderSettledEvent struct {
	OrderID         int64             `json:"orderId"`
	CustomerID      int64             `json:"customerId"`
	PreviousStatus  enums.OrderStatus `json:"previousStatus"`
	Status          enums.OrderStatus `json:"status"`
	ProviderEventID string            `json:"providerEventId,omitempty"`
}

// OrderCreated builds the order.created event for a persisted order.
func OrderCreated(order *models.Order) DomainEvent {
	lines := make([]OrderLine, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, OrderLine{
			ProductID:  item.ProductID,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			TotalPrice: item.TotalPrice,
		})
	}
	return DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   strconv.FormatInt(order.ID, 10),
		Actor:         &ActorRef{UserID: order.CustomerID, Source: "checkout"},
		Data: OrderCreatedEvent{
			OrderID:    order.ID,
			CustomerID: order.CustomerID,
			Status:     order.Status,
			TotalPrice: order.TotalPrice,
			Items:      lines,
		},
	}
}

// OrderSettled builds the order.paid or order.failed event from the order's
// current status. ok is false while the order is still PENDING.
func OrderSettled(order *models.Order, previous enums.OrderStatus, providerEventID string) (DomainEvent, bool) {
	eventType, ok := enums.EventForOrderStatus(order.Status)
	if !ok {
		return DomainEvent{}, false
	}
	return DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   strconv.FormatInt(order.ID, 10),
		Actor:         &ActorRef{Source: "payment_webhook"},
		Data: OrderSettledEvent{
			OrderID:         order.ID,
			CustomerID:      order.CustomerID,
			PreviousStatus:  previous,
			Status:          order.Status,
			ProviderEventID: providerEventID,
		},
	}, true
}
