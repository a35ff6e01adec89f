package model

import "time"

type SettlementStatus string

const (
	SettlementStatusInProgress       SettlementStatus = "in_progress"
	SettlementStatusAwaitingDelivery SettlementStatus = "awaiting_delivery"
	SettlementStatusCompleted        SettlementStatus = "completed"
)

// AuctionSettlement records the intent to settle an auction and which of its
// steps have finished, so an interrupted settlement can be resumed.
type AuctionSettlement struct {
	ID                    uint64           `gorm:"primaryKey;autoIncrement"`
	AuctionID             uint64           `gorm:"column:auction_id;uniqueIndex;not null"`
	SimCardID             uint64           `gorm:"column:sim_card_id;index;not null"`
	WinnerID              string           `gorm:"column:winner_id;size:128;not null"`
	Status                SettlementStatus `gorm:"column:status;size:24;not null"`
	PurchaseOrderID       *uint64          `gorm:"column:purchase_order_id"`
	WinnerCompletedAt     *time.Time       `gorm:"column:winner_completed_at"`
	DepositsReleasedAt    *time.Time       `gorm:"column:deposits_released_at"`
	ActivationRequestedAt *time.Time       `gorm:"column:activation_requested_at"`
	LastError             string           `gorm:"column:last_error;type:text"`
	CreatedAt             time.Time        `gorm:"autoCreateTime"`
	UpdatedAt             time.Time        `gorm:"autoUpdateTime"`
}

func (AuctionSettlement) TableName() string {
	return "auction_settlements"
}
