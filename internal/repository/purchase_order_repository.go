package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/shinyyama/simcard-market/internal/model"
	"gorm.io/gorm"
)

// ErrOrderConflict means the sim was already sold to someone else.
var ErrOrderConflict = errors.New("sim already sold to another buyer")

type WinnerPurchaseParams struct {
	SimCardID        uint64
	AuctionID        uint64
	BuyerID          string
	SellerID         string
	LineType         model.LineType
	Price            int64
	CommissionAmount int64
}

type PurchaseOrderRepository interface {
	FindByID(ctx context.Context, id uint64) (*model.PurchaseOrder, error)
	FindBySim(ctx context.Context, simID uint64) (*model.PurchaseOrder, error)
	ListByBuyer(ctx context.Context, buyerID string) ([]model.PurchaseOrder, error)
	ListBySeller(ctx context.Context, sellerID string) ([]model.PurchaseOrder, error)
	CompleteForWinner(ctx context.Context, p WinnerPurchaseParams) (*model.PurchaseOrder, bool, error)
	SetDB(db *gorm.DB)
}

type purchaseOrderRepository struct {
	db *gorm.DB
}

func NewPurchaseOrderRepository(db *gorm.DB) PurchaseOrderRepository {
	return &purchaseOrderRepository{db: db}
}

func (r *purchaseOrderRepository) FindByID(ctx context.Context, id uint64) (*model.PurchaseOrder, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var po model.PurchaseOrder
	if err := r.db.WithContext(ctx).First(&po, id).Error; err != nil {
		return nil, err
	}
	return &po, nil
}

func (r *purchaseOrderRepository) FindBySim(ctx context.Context, simID uint64) (*model.PurchaseOrder, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var po model.PurchaseOrder
	if err := r.db.WithContext(ctx).Where("sim_card_id = ?", simID).First(&po).Error; err != nil {
		return nil, err
	}
	return &po, nil
}

func (r *purchaseOrderRepository) ListByBuyer(ctx context.Context, buyerID string) ([]model.PurchaseOrder, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var list []model.PurchaseOrder
	if err := r.db.WithContext(ctx).
		Where("buyer_id = ?", buyerID).
		Order("id DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *purchaseOrderRepository) ListBySeller(ctx context.Context, sellerID string) ([]model.PurchaseOrder, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var list []model.PurchaseOrder
	if err := r.db.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		Order("id DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// CompleteForWinner releases the winner's deposit, holds the winning amount
// and creates the purchase order in one transaction. The bool is false when
// the order already existed; calling it again never charges twice.
func (r *purchaseOrderRepository) CompleteForWinner(ctx context.Context, p WinnerPurchaseParams) (*model.PurchaseOrder, bool, error) {
	if r.db == nil {
		return nil, false, ErrDBNotReady
	}
	var (
		po      *model.PurchaseOrder
		created bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.PurchaseOrder
		err := tx.Where("sim_card_id = ?", p.SimCardID).First(&existing).Error
		if err == nil {
			po = &existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if _, err := releaseDepositTx(tx, p.AuctionID, p.BuyerID, "auction won; deposit converted to purchase payment"); err != nil {
			return err
		}
		res := tx.Model(&model.User{}).
			Where("id = ? AND wallet_balance - blocked_balance >= ?", p.BuyerID, p.Price).
			Update("blocked_balance", gorm.Expr("blocked_balance + ?", p.Price))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInsufficientFunds
		}

		po = &model.PurchaseOrder{
			SimCardID:            p.SimCardID,
			BuyerID:              p.BuyerID,
			SellerID:             p.SellerID,
			LineType:             p.LineType,
			Status:               model.PurchaseOrderStatusPending,
			Price:                p.Price,
			CommissionAmount:     p.CommissionAmount,
			SellerReceivedAmount: p.Price - p.CommissionAmount,
			BuyerBlockedAmount:   p.Price,
		}
		if err := tx.Create(po).Error; err != nil {
			return err
		}
		if err := tx.Create(&model.Transaction{
			UserID:      p.BuyerID,
			Type:        model.TransactionTypePurchaseBlocked,
			Amount:      p.Price,
			Description: "winning bid held for purchase order",
			Reference:   fmt.Sprintf("purchase_order:%d", po.ID),
		}).Error; err != nil {
			return err
		}
		created = true
		return tx.Model(&model.SimCard{}).
			Where("id = ?", p.SimCardID).
			Update("status", model.SimStatusSold).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// a concurrent session inserted the order first
		existing, findErr := r.FindBySim(ctx, p.SimCardID)
		if findErr != nil {
			return nil, false, findErr
		}
		po, created, err = existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if po.BuyerID != p.BuyerID {
		return po, false, ErrOrderConflict
	}
	return po, created, nil
}

func (r *purchaseOrderRepository) SetDB(db *gorm.DB) {
	r.db = db
}
