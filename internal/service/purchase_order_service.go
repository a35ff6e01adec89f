package service

import (
	"context"
	"errors"

	"github.com/shinyyama/simcard-market/internal/model"
	"github.com/shinyyama/simcard-market/internal/repository"
	"gorm.io/gorm"
)

type PurchaseOrderService interface {
	List(ctx context.Context, userID string, role model.UserRole) ([]model.PurchaseOrder, error)
	Get(ctx context.Context, id uint64, userID string) (*model.PurchaseOrder, error)
}

type purchaseOrderService struct {
	repo repository.PurchaseOrderRepository
}

func NewPurchaseOrderService(repo repository.PurchaseOrderRepository) PurchaseOrderService {
	return &purchaseOrderService{repo: repo}
}

// List returns the user's orders as buyer or as seller, newest first.
func (s *purchaseOrderService) List(ctx context.Context, userID string, role model.UserRole) ([]model.PurchaseOrder, error) {
	if userID == "" {
		return nil, errors.New("user is required")
	}
	switch role {
	case "", model.UserRoleBuyer:
		return s.repo.ListByBuyer(ctx, userID)
	case model.UserRoleSeller:
		return s.repo.ListBySeller(ctx, userID)
	}
	return nil, ErrInvalidRole
}

func (s *purchaseOrderService) Get(ctx context.Context, id uint64, userID string) (*model.PurchaseOrder, error) {
	po, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	if po.BuyerID != userID && po.SellerID != userID {
		return nil, ErrForbidden
	}
	return po, nil
}

// notFound maps gorm's missing-row error to ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
