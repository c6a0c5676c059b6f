package orders

import (
	"context"
	"fmt"

	"github.com/alopez/store-backend/pkg/db"
	pkgerrors "github.com/alopez/store-backend/pkg/errors"
	"github.com/alopez/store-backend/pkg/logger"
)

// Service exposes the caller-scoped order history.
type Service interface {
	ListOrders(ctx context.Context, customerID int64) ([]OrderDTO, error)
	GetOrder(ctx context.Context, customerID, orderID int64) (*OrderDTO, error)
}

type ServiceParams struct {
	Repo   Repository
	Logger *logger.Logger
}

type service struct {
	repo Repository
	logg *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	return &service{repo: params.Repo, logg: params.Logger}, nil
}

func (s *service) ListOrders(ctx context.Context, customerID int64) ([]OrderDTO, error) {
	rows, err := s.repo.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	out := make([]OrderDTO, 0, len(rows))
	for i := range rows {
		out = append(out, FromModel(&rows[i]))
	}
	return out, nil
}

func (s *service) GetOrder(ctx context.Context, customerID, orderID int64) (*OrderDTO, error) {
	order, err := s.repo.FindWithItems(ctx, orderID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	if !order.IsPlacedBy(customerID) {
		if s.logg != nil {
			logCtx := s.logg.WithOrderID(s.logg.WithUserID(ctx, customerID), orderID)
			s.logg.Warn(logCtx, "order.access_denied")
		}
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "You don't have permission to access this order.")
	}
	dto := FromModel(order)
	return &dto, nil
}
