package model

import "time"

type SiteSetting struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement"`
	SettingKey   string    `gorm:"column:setting_key;size:128;uniqueIndex;not null"`
	SettingValue string    `gorm:"column:setting_value;type:text;not null"`
	SettingType  string    `gorm:"column:setting_type;size:16;not null;default:string"`
	Category     string    `gorm:"column:category;size:64"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}

func (SiteSetting) TableName() string {
	return "site_settings"
}
