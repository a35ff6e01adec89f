package repository

import (
	"context"
	"errors"

	"github.com/shinyyama/simcard-market/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SettlementRepository interface {
	// FindOrCreate returns the intent for s.AuctionID, inserting s when none exists.
	FindOrCreate(ctx context.Context, s *model.AuctionSettlement) (*model.AuctionSettlement, error)
	FindByAuction(ctx context.Context, auctionID uint64) (*model.AuctionSettlement, error)
	ListUnfinished(ctx context.Context, limit int) ([]model.AuctionSettlement, error)
	Update(ctx context.Context, s *model.AuctionSettlement) error
	SetDB(db *gorm.DB)
}

type settlementRepository struct {
	db *gorm.DB
}

func NewSettlementRepository(db *gorm.DB) SettlementRepository {
	return &settlementRepository{db: db}
}

// FindOrCreate inserts without reading first and then reads the row back, so
// two sessions racing on one auction both end up with the row that won.
func (r *settlementRepository) FindOrCreate(ctx context.Context, s *model.AuctionSettlement) (*model.AuctionSettlement, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	row := *s
	row.ID = 0
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "auction_id"}}, DoNothing: true}).
		Create(&row).Error
	if err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, err
	}
	return r.FindByAuction(ctx, s.AuctionID)
}

func (r *settlementRepository) FindByAuction(ctx context.Context, auctionID uint64) (*model.AuctionSettlement, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var s model.AuctionSettlement
	if err := r.db.WithContext(ctx).Where("auction_id = ?", auctionID).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *settlementRepository) ListUnfinished(ctx context.Context, limit int) ([]model.AuctionSettlement, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	if limit <= 0 {
		limit = 100
	}
	var list []model.AuctionSettlement
	if err := r.db.WithContext(ctx).
		Where("status <> ?", model.SettlementStatusCompleted).
		Order("id ASC").
		Limit(limit).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *settlementRepository) Update(ctx context.Context, s *model.AuctionSettlement) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	return r.db.WithContext(ctx).Save(s).Error
}

func (r *settlementRepository) SetDB(db *gorm.DB) {
	r.db = db
}
