package repository

import (
	"context"

	"github.com/shinyyama/simcard-market/internal/model"
	"gorm.io/gorm"
)

type TransactionRepository interface {
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]model.Transaction, int64, error)
	SetDB(db *gorm.DB)
}

type transactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]model.Transaction, int64, error) {
	if r.db == nil {
		return nil, 0, ErrDBNotReady
	}
	var (
		list  []model.Transaction
		total int64
	)
	q := r.db.WithContext(ctx).Model(&model.Transaction{}).Where("user_id = ?", userID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := q.Order("id DESC").Limit(limit).Offset(offset).Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *transactionRepository) SetDB(db *gorm.DB) {
	r.db = db
}
