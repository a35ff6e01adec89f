package model

import "time"

type Notification struct {
	ID              uint64     `gorm:"primaryKey;autoIncrement"`
	UserID          string     `gorm:"column:user_id;size:128;index;not null"`
	Type            string     `gorm:"column:type;size:64;not null"`
	Title           string     `gorm:"column:title;size:255"`
	Body            string     `gorm:"column:body;type:text"`
	SimCardID       *uint64    `gorm:"column:sim_card_id;index"`
	PurchaseOrderID *uint64    `gorm:"column:purchase_order_id;index"`
	ReadAt          *time.Time `gorm:"column:read_at"`
	CreatedAt       time.Time  `gorm:"autoCreateTime"`
}

func (Notification) TableName() string {
	return "notifications"
}
