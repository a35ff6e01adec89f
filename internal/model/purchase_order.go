package model

import "time"

type LineType string

const (
	LineTypeActive   LineType = "active"
	LineTypeInactive LineType = "inactive"
)

type PurchaseOrderStatus string

const (
	PurchaseOrderStatusPending   PurchaseOrderStatus = "pending"
	PurchaseOrderStatusCompleted PurchaseOrderStatus = "completed"
)

// PurchaseOrder is created exactly once per sold sim; the unique index on
// sim_card_id makes the first settling session win.
type PurchaseOrder struct {
	ID                   uint64              `gorm:"primaryKey;autoIncrement"`
	SimCardID            uint64              `gorm:"column:sim_card_id;uniqueIndex;not null"`
	BuyerID              string              `gorm:"column:buyer_id;size:128;index;not null"`
	SellerID             string              `gorm:"column:seller_id;size:128;index;not null"`
	LineType             LineType            `gorm:"column:line_type;size:16;not null"`
	Status               PurchaseOrderStatus `gorm:"column:status;size:16;not null"`
	Price                int64               `gorm:"column:price;not null"`
	CommissionAmount     int64               `gorm:"column:commission_amount;not null"`
	SellerReceivedAmount int64               `gorm:"column:seller_received_amount;not null"`
	BuyerBlockedAmount   int64               `gorm:"column:buyer_blocked_amount;not null"`
	CreatedAt            time.Time           `gorm:"autoCreateTime"`
	UpdatedAt            time.Time           `gorm:"autoUpdateTime"`
}

func (PurchaseOrder) TableName() string {
	return "purchase_orders"
}
