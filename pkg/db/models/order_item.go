package models

import "github.com/shopspring/decimal"

// OrderItem captures the product, price and quantity at checkout time.
type OrderItem struct {
	ID         int64           `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID    int64           `gorm:"column:order_id;not null;index"`
	ProductID  int64           `gorm:"column:product_id;not null"`
	UnitPrice  decimal.Decimal `gorm:"column:unit_price;type:numeric(10,2);not null"`
	Quantity   int             `gorm:"column:quantity;not null"`
	TotalPrice decimal.Decimal `gorm:"column:total_price;type:numeric(10,2);not null"`
	Product    *Product        `gorm:"foreignKey:ProductID"`
}
