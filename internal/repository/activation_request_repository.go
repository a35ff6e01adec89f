package repository

import (
	"context"
	"errors"

	"github.com/shinyyama/simcard-market/internal/model"
	"gorm.io/gorm"
)

type ActivationRequestRepository interface {
	FindByPurchaseOrder(ctx context.Context, purchaseOrderID uint64) (*model.ActivationRequest, error)
	// Create inserts the request unless one exists for the purchase order, in
	// which case the existing row is returned with created=false.
	Create(ctx context.Context, ar *model.ActivationRequest) (*model.ActivationRequest, bool, error)
	SetDB(db *gorm.DB)
}

type activationRequestRepository struct {
	db *gorm.DB
}

func NewActivationRequestRepository(db *gorm.DB) ActivationRequestRepository {
	return &activationRequestRepository{db: db}
}

func (r *activationRequestRepository) FindByPurchaseOrder(ctx context.Context, purchaseOrderID uint64) (*model.ActivationRequest, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var ar model.ActivationRequest
	if err := r.db.WithContext(ctx).Where("purchase_order_id = ?", purchaseOrderID).First(&ar).Error; err != nil {
		return nil, err
	}
	return &ar, nil
}

func (r *activationRequestRepository) Create(ctx context.Context, ar *model.ActivationRequest) (*model.ActivationRequest, bool, error) {
	if r.db == nil {
		return nil, false, ErrDBNotReady
	}
	err := r.db.WithContext(ctx).Create(ar).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		existing, findErr := r.FindByPurchaseOrder(ctx, ar.PurchaseOrderID)
		if findErr != nil {
			return nil, false, findErr
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return ar, true, nil
}

func (r *activationRequestRepository) SetDB(db *gorm.DB) {
	r.db = db
}
