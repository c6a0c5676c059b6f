package cart

import (
	"github.com/google/uuid"

	"github.com/alopez/store-backend/pkg/db/models"
	"github.com/alopez/store-backend/pkg/types"
)

type CartDTO struct {
	ID         uuid.UUID     `json:"id"`
	Items      []CartItemDTO `json:"items"`
	TotalPrice types.Money   `json:"totalPrice"`
}

type CartItemDTO struct {
	Product    CartProductDTO `json:"product"`
	Quantity   int            `json:"quantity"`
	TotalPrice types.Money    `json:"totalPrice"`
}

type CartProductDTO struct {
	ID    int64       `json:"id"`
	Name  string      `json:"name"`
	Price types.Money `json:"price"`
}

func cartFromModel(c *models.Cart) CartDTO {
	items := make([]CartItemDTO, 0, len(c.Items))
	for i := range c.Items {
		items = append(items, itemFromModel(&c.Items[i]))
	}
	return CartDTO{
		ID:         c.ID,
		Items:      items,
		TotalPrice: types.NewMoney(c.TotalPrice()),
	}
}

func itemFromModel(item *models.CartItem) CartItemDTO {
	dto := CartItemDTO{
		Quantity:   item.Quantity,
		TotalPrice: types.NewMoney(item.TotalPrice()),
	}
	if item.Product != nil {
		dto.Product = CartProductDTO{
			ID:    item.Product.ID,
			Name:  item.Product.Name,
			Price: types.NewMoney(item.Product.Price),
		}
	} else {
		dto.Product.ID = item.ProductID
	}
	return dto
}
