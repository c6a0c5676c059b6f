package orders

import (
	"time"

	"github.com/alopez/store-backend/pkg/db/models"
	"github.com/alopez/store-backend/pkg/enums"
	"github.com/alopez/store-backend/pkg/types"
)

type OrderDTO struct {
	ID         int64             `json:"id"`
	Status     enums.OrderStatus `json:"status"`
	CreatedAt  time.Time         `json:"createdAt"`
	Items      []OrderItemDTO    `json:"items"`
	TotalPrice types.Money       `json:"totalPrice"`
}

type OrderItemDTO struct {
	Product    OrderProductDTO `json:"product"`
	Quantity   int             `json:"quantity"`
	TotalPrice types.Money     `json:"totalPrice"`
}

// OrderProductDTO reports the price captured at checkout, not the live catalog price.
type OrderProductDTO struct {
	ID    int64       `json:"id"`
	Name  string      `json:"name"`
	Price types.Money `json:"price"`
}

func FromModel(o *models.Order) OrderDTO {
	items := make([]OrderItemDTO, 0, len(o.Items))
	for _, item := range o.Items {
		product := OrderProductDTO{ID: item.ProductID, Price: types.NewMoney(item.UnitPrice)}
		if item.Product != nil {
			product.Name = item.Product.Name
		}
		items = append(items, OrderItemDTO{
			Product:    product,
			Quantity:   item.Quantity,
			TotalPrice: types.NewMoney(item.TotalPrice),
		})
	}
	return OrderDTO{
		ID:         o.ID,
		Status:     o.Status,
		CreatedAt:  o.CreatedAt,
		Items:      items,
		TotalPrice: types.NewMoney(o.TotalPrice),
	}
}
