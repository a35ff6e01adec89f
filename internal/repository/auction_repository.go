package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/shinyyama/simcard-market/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrStaleBid means another bidder moved current_bid to or past the amount first.
	ErrStaleBid = errors.New("bid no longer exceeds current bid")
	// ErrInsufficientFunds means the available balance could not cover a hold.
	ErrInsufficientFunds = errors.New("insufficient available balance")
)

type PlaceBidParams struct {
	AuctionID uint64
	SimCardID uint64
	UserID    string
	Amount    int64
	// DepositAmount is the guarantee to block with this bid; zero when the
	// user already holds a blocked deposit for the auction.
	DepositAmount  int64
	IdempotencyKey *string
}

type AuctionRepository interface {
	FindDetailBySim(ctx context.Context, simID uint64) (*model.AuctionDetail, error)
	FindParticipant(ctx context.Context, auctionID uint64, userID string) (*model.AuctionParticipant, error)
	ListParticipants(ctx context.Context, auctionID uint64) ([]model.AuctionParticipant, error)
	FindBidByIdempotencyKey(ctx context.Context, key string) (*model.Bid, error)
	ListBids(ctx context.Context, auctionID uint64, limit int) ([]model.Bid, error)
	PlaceBid(ctx context.Context, p PlaceBidParams) (*model.Bid, error)
	ReleaseDeposit(ctx context.Context, auctionID uint64, userID, reason string) (bool, error)
	SetDB(db *gorm.DB)
}

type auctionRepository struct {
	db *gorm.DB
}

func NewAuctionRepository(db *gorm.DB) AuctionRepository {
	return &auctionRepository{db: db}
}

func (r *auctionRepository) FindDetailBySim(ctx context.Context, simID uint64) (*model.AuctionDetail, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var d model.AuctionDetail
	if err := r.db.WithContext(ctx).Where("sim_card_id = ?", simID).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *auctionRepository) FindParticipant(ctx context.Context, auctionID uint64, userID string) (*model.AuctionParticipant, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var p model.AuctionParticipant
	if err := r.db.WithContext(ctx).
		Where("auction_id = ? AND user_id = ?", auctionID, userID).
		First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *auctionRepository) ListParticipants(ctx context.Context, auctionID uint64) ([]model.AuctionParticipant, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var list []model.AuctionParticipant
	if err := r.db.WithContext(ctx).
		Where("auction_id = ?", auctionID).
		Order("id ASC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *auctionRepository) FindBidByIdempotencyKey(ctx context.Context, key string) (*model.Bid, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var b model.Bid
	if err := r.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *auctionRepository) ListBids(ctx context.Context, auctionID uint64, limit int) ([]model.Bid, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var list []model.Bid
	if err := r.db.WithContext(ctx).
		Where("auction_id = ?", auctionID).
		Order("amount DESC").
		Limit(limit).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// PlaceBid raises current_bid and records the bid in one transaction. The
// conditional update lets only one of several racing bidders win a price.
func (r *auctionRepository) PlaceBid(ctx context.Context, p PlaceBidParams) (*model.Bid, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	bid := &model.Bid{
		AuctionID:      p.AuctionID,
		SimCardID:      p.SimCardID,
		UserID:         p.UserID,
		Amount:         p.Amount,
		IdempotencyKey: p.IdempotencyKey,
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.AuctionDetail{}).
			Where("id = ? AND current_bid < ?", p.AuctionID, p.Amount).
			Updates(map[string]interface{}{
				"current_bid":       p.Amount,
				"highest_bidder_id": p.UserID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStaleBid
		}
		if err := tx.Create(bid).Error; err != nil {
			return err
		}
		if p.DepositAmount <= 0 {
			return nil
		}
		return blockDepositTx(tx, p)
	})
	if err != nil {
		return nil, err
	}
	return bid, nil
}

func blockDepositTx(tx *gorm.DB, p PlaceBidParams) error {
	res := tx.Model(&model.User{}).
		Where("id = ? AND wallet_balance - blocked_balance >= ?", p.UserID, p.DepositAmount).
		Update("blocked_balance", gorm.Expr("blocked_balance + ?", p.DepositAmount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientFunds
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "auction_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"guarantee_deposit_amount":  p.DepositAmount,
			"guarantee_deposit_blocked": true,
		}),
	}).Create(&model.AuctionParticipant{
		AuctionID:               p.AuctionID,
		UserID:                  p.UserID,
		GuaranteeDepositAmount:  p.DepositAmount,
		GuaranteeDepositBlocked: true,
	}).Error; err != nil {
		return err
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "auction_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"amount": p.DepositAmount,
			"status": model.DepositStatusBlocked,
			"reason": "",
		}),
	}).Create(&model.GuaranteeDeposit{
		UserID:    p.UserID,
		AuctionID: p.AuctionID,
		SimCardID: p.SimCardID,
		Amount:    p.DepositAmount,
		Status:    model.DepositStatusBlocked,
	}).Error; err != nil {
		return err
	}
	return tx.Create(&model.Transaction{
		UserID:      p.UserID,
		Type:        model.TransactionTypeBidDeposit,
		Amount:      p.DepositAmount,
		Description: "guarantee deposit blocked for auction bid",
		Reference:   fmt.Sprintf("auction:%d", p.AuctionID),
	}).Error
}

// ReleaseDeposit returns a participant's guarantee to their available balance.
// It reports false when the deposit was already released or never blocked.
func (r *auctionRepository) ReleaseDeposit(ctx context.Context, auctionID uint64, userID, reason string) (bool, error) {
	if r.db == nil {
		return false, ErrDBNotReady
	}
	var released bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		amount, err := releaseDepositTx(tx, auctionID, userID, reason)
		if err != nil {
			return err
		}
		if amount == 0 {
			return nil
		}
		released = true
		return tx.Create(&model.Transaction{
			UserID:      userID,
			Type:        model.TransactionTypeCreditReleased,
			Amount:      amount,
			Description: reason,
			Reference:   fmt.Sprintf("auction:%d", auctionID),
		}).Error
	})
	if err != nil {
		return false, err
	}
	return released, nil
}

// releaseDepositTx unblocks the participant row, the deposit ledger entry and
// the user's blocked balance (floored at zero). It returns the released amount,
// zero when there was nothing blocked.
func releaseDepositTx(tx *gorm.DB, auctionID uint64, userID, reason string) (int64, error) {
	var part model.AuctionParticipant
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("auction_id = ? AND user_id = ?", auctionID, userID).
		First(&part).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if !part.GuaranteeDepositBlocked || part.GuaranteeDepositAmount <= 0 {
		return 0, nil
	}
	amount := part.GuaranteeDepositAmount

	if err := tx.Model(&model.User{}).
		Where("id = ?", userID).
		Update("blocked_balance", gorm.Expr("CASE WHEN blocked_balance > ? THEN blocked_balance - ? ELSE 0 END", amount, amount)).Error; err != nil {
		return 0, err
	}
	if err := tx.Model(&model.GuaranteeDeposit{}).
		Where("auction_id = ? AND user_id = ? AND status = ?", auctionID, userID, model.DepositStatusBlocked).
		Updates(map[string]interface{}{
			"status": model.DepositStatusReleased,
			"reason": reason,
		}).Error; err != nil {
		return 0, err
	}
	if err := tx.Model(&model.AuctionParticipant{}).
		Where("id = ?", part.ID).
		Update("guarantee_deposit_blocked", false).Error; err != nil {
		return 0, err
	}
	return amount, nil
}

func (r *auctionRepository) SetDB(db *gorm.DB) {
	r.db = db
}
