package repository

import (
	"context"

	"github.com/shinyyama/simcard-market/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SiteSettingRepository interface {
	All(ctx context.Context) ([]model.SiteSetting, error)
	Upsert(ctx context.Context, s *model.SiteSetting) error
	SetDB(db *gorm.DB)
}

type siteSettingRepository struct {
	db *gorm.DB
}

func NewSiteSettingRepository(db *gorm.DB) SiteSettingRepository {
	return &siteSettingRepository{db: db}
}

func (r *siteSettingRepository) All(ctx context.Context) ([]model.SiteSetting, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var list []model.SiteSetting
	if err := r.db.WithContext(ctx).Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *siteSettingRepository) Upsert(ctx context.Context, s *model.SiteSetting) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "setting_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"setting_value", "setting_type", "category", "updated_at"}),
	}).Create(s).Error
}

func (r *siteSettingRepository) SetDB(db *gorm.DB) {
	r.db = db
}
