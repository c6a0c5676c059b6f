package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/alopez/store-backend/pkg/enums"
)

// Order is a checkout snapshot of a cart, owned by a customer.
type Order struct {
	ID         int64             `gorm:"column:id;primaryKey;autoIncrement"`
	CustomerID int64             `gorm:"column:customer_id;not null;index"`
	Status     enums.OrderStatus `gorm:"column:status;type:varchar(20);not null;default:'PENDING'"`
	TotalPrice decimal.Decimal   `gorm:"column:total_price;type:numeric(10,2);not null"`
	CreatedAt  time.Time         `gorm:"column:created_at;autoCreateTime"`
	Items      []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Customer   *User             `gorm:"foreignKey:CustomerID"`
}

// IsPlacedBy reports whether the order belongs to customerID.
func (o *Order) IsPlacedBy(customerID int64) bool {
	return o.CustomerID == customerID
}

// NewOrderFromCart builds a PENDING order with item snapshots copied from the cart.
// The cart must be loaded with items and products.
func NewOrderFromCart(cart *Cart, customerID int64) *Order {
	order := &Order{
		CustomerID: customerID,
		Status:     enums.OrderStatusPending,
		TotalPrice: cart.TotalPrice(),
		Items:      make([]OrderItem, 0, len(cart.Items)),
	}
	for i := range cart.Items {
		item := cart.Items[i]
		unit := decimal.Zero
		if item.Product != nil {
			unit = item.Product.Price
		}
		order.Items = append(order.Items, OrderItem{
			ProductID:  item.ProductID,
			Product:    item.Product,
			UnitPrice:  unit,
			Quantity:   item.Quantity,
			TotalPrice: item.TotalPrice(),
		})
	}
	return order
}
