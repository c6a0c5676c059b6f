package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/alopez/store-backend/pkg/db"
	"github.com/alopez/store-backend/pkg/db/models"
	pkgerrors "github.com/alopez/store-backend/pkg/errors"
	"github.com/alopez/store-backend/pkg/logger"
)

const (
	MaxItemQuantity = 100

	msgCartNotFound          = "Cart not found"
	msgProductNotFound       = "Product not found"
	msgProductNotFoundInCart = "Product not found in the cart"
)

// Service exposes anonymous cart operations.
type Service interface {
	CreateCart(ctx context.Context) (*CartDTO, error)
	GetCart(ctx context.Context, cartID uuid.UUID) (*CartDTO, error)
	AddItem(ctx context.Context, cartID uuid.UUID, productID int64) (*CartItemDTO, error)
	UpdateItem(ctx context.Context, cartID uuid.UUID, productID int64, quantity int) (*CartItemDTO, error)
	RemoveItem(ctx context.Context, cartID uuid.UUID, productID int64) error
	ClearCart(ctx context.Context, cartID uuid.UUID) error
}

type repository interface {
	Create(ctx context.Context, cart *models.Cart) error
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	FindWithItems(ctx context.Context, id uuid.UUID) (*models.Cart, error)
	FindItem(ctx context.Context, cartID uuid.UUID, productID int64) (*models.CartItem, error)
	CreateItem(ctx context.Context, item *models.CartItem) error
	IncrementItem(ctx context.Context, cartID uuid.UUID, productID int64, delta int) error
	UpdateItemQuantity(ctx context.Context, cartID uuid.UUID, productID int64, quantity int) error
	DeleteItem(ctx context.Context, cartID uuid.UUID, productID int64) error
	ClearItems(ctx context.Context, cartID uuid.UUID) error
}

type productLookup interface {
	FindByID(ctx context.Context, id int64) (*models.Product, error)
}

type ServiceParams struct {
	Repo     repository
	Products productLookup
	Logger   *logger.Logger
}

type service struct {
	repo     repository
	products productLookup
	logg     *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("product lookup required")
	}
	return &service{repo: params.Repo, products: params.Products, logg: params.Logger}, nil
}

func (s *service) CreateCart(ctx context.Context) (*CartDTO, error) {
	cart := &models.Cart{}
	if err := s.repo.Create(ctx, cart); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create cart")
	}
	dto := cartFromModel(cart)
	return &dto, nil
}

func (s *service) GetCart(ctx context.Context, cartID uuid.UUID) (*CartDTO, error) {
	cart, err := s.repo.FindWithItems(ctx, cartID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, msgCartNotFound)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	dto := cartFromModel(cart)
	return &dto, nil
}

// AddItem inserts the product with quantity 1 or increments an existing line.
func (s *service) AddItem(ctx context.Context, cartID uuid.UUID, productID int64) (*CartItemDTO, error) {
	if err := s.ensureCart(ctx, cartID); err != nil {
		return nil, err
	}
	if _, err := s.products.FindByID(ctx, productID); err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, msgProductNotFound)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}

	existing, err := s.repo.FindItem(ctx, cartID, productID)
	switch {
	case err == nil && existing != nil:
		err = s.repo.IncrementItem(ctx, cartID, productID, 1)
	case db.IsNotFound(err):
		err = s.repo.CreateItem(ctx, &models.CartItem{CartID: cartID, ProductID: productID, Quantity: 1})
		if db.IsUniqueViolation(err, "") {
			// lost a race with a concurrent add of the same product
			err = s.repo.IncrementItem(ctx, cartID, productID, 1)
		}
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "add cart item")
	}

	return s.loadItem(ctx, cartID, productID)
}

func (s *service) UpdateItem(ctx context.Context, cartID uuid.UUID, productID int64, quantity int) (*CartItemDTO, error) {
	if quantity < 1 || quantity > MaxItemQuantity {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
			WithDetails(map[string]string{"quantity": fmt.Sprintf("must be between 1 and %d", MaxItemQuantity)})
	}
	if err := s.ensureCart(ctx, cartID); err != nil {
		return nil, err
	}
	if _, err := s.repo.FindItem(ctx, cartID, productID); err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, msgProductNotFoundInCart)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart item")
	}
	if err := s.repo.UpdateItemQuantity(ctx, cartID, productID, quantity); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update cart item")
	}
	return s.loadItem(ctx, cartID, productID)
}

// RemoveItem deletes the line if present; removing an absent product is not an error.
func (s *service) RemoveItem(ctx context.Context, cartID uuid.UUID, productID int64) error {
	if err := s.ensureCart(ctx, cartID); err != nil {
		return err
	}
	if err := s.repo.DeleteItem(ctx, cartID, productID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove cart item")
	}
	return nil
}

func (s *service) ClearCart(ctx context.Context, cartID uuid.UUID) error {
	if err := s.ensureCart(ctx, cartID); err != nil {
		return err
	}
	if err := s.repo.ClearItems(ctx, cartID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
	}
	return nil
}

func (s *service) ensureCart(ctx context.Context, cartID uuid.UUID) error {
	ok, err := s.repo.Exists(ctx, cartID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, msgCartNotFound)
	}
	return nil
}

func (s *service) loadItem(ctx context.Context, cartID uuid.UUID, productID int64) (*CartItemDTO, error) {
	item, err := s.repo.FindItem(ctx, cartID, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload cart item")
	}
	dto := itemFromModel(item)
	return &dto, nil
}
