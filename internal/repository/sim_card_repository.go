package repository

import (
	"context"
	"errors"

	"github.com/shinyyama/simcard-market/internal/model"
	"gorm.io/gorm"
)

type SimCardRepository interface {
	FindByID(ctx context.Context, id uint64) (*model.SimCard, error)
	List(ctx context.Context, simType model.SimType, limit, offset int) ([]model.SimCard, int64, error)
	SetDB(db *gorm.DB)
}

type simCardRepository struct {
	db *gorm.DB
}

var ErrDBNotReady = errors.New("database not initialized")

func NewSimCardRepository(db *gorm.DB) SimCardRepository {
	return &simCardRepository{db: db}
}

// FindByID loads the sim together with its auction detail, if any.
func (r *simCardRepository) FindByID(ctx context.Context, id uint64) (*model.SimCard, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var sim model.SimCard
	if err := r.db.WithContext(ctx).Preload("AuctionDetail").First(&sim, id).Error; err != nil {
		return nil, err
	}
	return &sim, nil
}

func (r *simCardRepository) List(ctx context.Context, simType model.SimType, limit, offset int) ([]model.SimCard, int64, error) {
	if r.db == nil {
		return nil, 0, ErrDBNotReady
	}
	var (
		sims  []model.SimCard
		total int64
	)
	q := r.db.WithContext(ctx).Model(&model.SimCard{}).Where("status = ?", model.SimStatusAvailable)
	if simType != "" {
		q = q.Where("type = ?", simType)
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := q.Preload("AuctionDetail").
		Order("created_at desc").
		Limit(limit).
		Offset(offset).
		Find(&sims).Error; err != nil {
		return nil, 0, err
	}
	return sims, total, nil
}

func (r *simCardRepository) SetDB(db *gorm.DB) {
	r.db = db
}
