package repository

import (
	"context"
	"time"

	"github.com/shinyyama/simcard-market/internal/model"
	"gorm.io/gorm"
)

type PaymentReceiptRepository interface {
	Create(ctx context.Context, receipt *model.PaymentReceipt) error
	FindByAuthority(ctx context.Context, gateway model.Gateway, authority string) (*model.PaymentReceipt, error)
	// MarkVerified flips a receipt to verified and credits the owner's wallet.
	// It reports false, crediting nothing, when the receipt was already verified.
	MarkVerified(ctx context.Context, id string, refID string) (bool, error)
	MarkFailed(ctx context.Context, id string) error
	SetDB(db *gorm.DB)
}

type paymentReceiptRepository struct {
	db *gorm.DB
}

func NewPaymentReceiptRepository(db *gorm.DB) PaymentReceiptRepository {
	return &paymentReceiptRepository{db: db}
}

func (r *paymentReceiptRepository) Create(ctx context.Context, receipt *model.PaymentReceipt) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	return r.db.WithContext(ctx).Create(receipt).Error
}

func (r *paymentReceiptRepository) FindByAuthority(ctx context.Context, gateway model.Gateway, authority string) (*model.PaymentReceipt, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var receipt model.PaymentReceipt
	if err := r.db.WithContext(ctx).
		Where("gateway = ? AND authority = ?", gateway, authority).
		First(&receipt).Error; err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (r *paymentReceiptRepository) MarkVerified(ctx context.Context, id string, refID string) (bool, error) {
	if r.db == nil {
		return false, ErrDBNotReady
	}
	var credited bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		res := tx.Model(&model.PaymentReceipt{}).
			Where("id = ? AND status <> ?", id, model.ReceiptStatusVerified).
			Updates(map[string]interface{}{
				"status":      model.ReceiptStatusVerified,
				"ref_id":      refID,
				"verified_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		var receipt model.PaymentReceipt
		if err := tx.Where("id = ?", id).First(&receipt).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.User{}).
			Where("id = ?", receipt.UserID).
			Update("wallet_balance", gorm.Expr("wallet_balance + ?", receipt.Amount)).Error; err != nil {
			return err
		}
		credited = true
		return tx.Create(&model.Transaction{
			UserID:      receipt.UserID,
			Type:        model.TransactionTypeDeposit,
			Amount:      receipt.Amount,
			Description: "wallet top-up via " + string(receipt.Gateway),
			Reference:   "receipt:" + receipt.ID,
		}).Error
	})
	if err != nil {
		return false, err
	}
	return credited, nil
}

func (r *paymentReceiptRepository) MarkFailed(ctx context.Context, id string) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	return r.db.WithContext(ctx).
		Model(&model.PaymentReceipt{}).
		Where("id = ? AND status = ?", id, model.ReceiptStatusPending).
		Update("status", model.ReceiptStatusFailed).Error
}

func (r *paymentReceiptRepository) SetDB(db *gorm.DB) {
	r.db = db
}
