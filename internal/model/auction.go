package model

import "time"

// AuctionDetail is mutated by every accepted bid until EndTime.
type AuctionDetail struct {
	ID              uint64    `gorm:"primaryKey;autoIncrement"`
	SimCardID       uint64    `gorm:"column:sim_card_id;uniqueIndex;not null"`
	BasePrice       int64     `gorm:"column:base_price;not null"`
	EndTime         time.Time `gorm:"column:end_time;not null"`
	CurrentBid      int64     `gorm:"column:current_bid;not null;default:0"`
	HighestBidderID *string   `gorm:"column:highest_bidder_id;size:128"`
	CreatedAt       time.Time `gorm:"autoCreateTime"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime"`
}

func (AuctionDetail) TableName() string {
	return "auction_details"
}

// Ended is strict: a bid placed exactly at EndTime is still accepted.
func (a *AuctionDetail) Ended(now time.Time) bool {
	return now.After(a.EndTime)
}

func (a *AuctionDetail) IsHighestBidder(userID string) bool {
	return userID != "" && a.HighestBidderID != nil && *a.HighestBidderID == userID
}

type Bid struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement"`
	AuctionID      uint64    `gorm:"column:auction_id;index;not null"`
	SimCardID      uint64    `gorm:"column:sim_card_id;index;not null"`
	UserID         string    `gorm:"column:user_id;size:128;index;not null"`
	Amount         int64     `gorm:"column:amount;not null"`
	IdempotencyKey *string   `gorm:"column:idempotency_key;size:64;uniqueIndex"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
}

func (Bid) TableName() string {
	return "bids"
}

// AuctionParticipant exists once per user who has bid in an auction.
type AuctionParticipant struct {
	ID                      uint64    `gorm:"primaryKey;autoIncrement"`
	AuctionID               uint64    `gorm:"column:auction_id;uniqueIndex:ux_participant;not null"`
	UserID                  string    `gorm:"column:user_id;size:128;uniqueIndex:ux_participant;not null"`
	GuaranteeDepositAmount  int64     `gorm:"column:guarantee_deposit_amount;not null"`
	GuaranteeDepositBlocked bool      `gorm:"column:guarantee_deposit_blocked;not null"`
	CreatedAt               time.Time `gorm:"autoCreateTime"`
	UpdatedAt               time.Time `gorm:"autoUpdateTime"`
}

func (AuctionParticipant) TableName() string {
	return "auction_participants"
}

type DepositStatus string

const (
	DepositStatusBlocked  DepositStatus = "blocked"
	DepositStatusReleased DepositStatus = "released"
)

type GuaranteeDeposit struct {
	ID        uint64        `gorm:"primaryKey;autoIncrement"`
	UserID    string        `gorm:"column:user_id;size:128;uniqueIndex:ux_deposit;not null"`
	AuctionID uint64        `gorm:"column:auction_id;uniqueIndex:ux_deposit;not null"`
	SimCardID uint64        `gorm:"column:sim_card_id;index;not null"`
	Amount    int64         `gorm:"column:amount;not null"`
	Status    DepositStatus `gorm:"column:status;size:16;not null"`
	Reason    string        `gorm:"column:reason;size:255"`
	CreatedAt time.Time     `gorm:"autoCreateTime"`
	UpdatedAt time.Time     `gorm:"autoUpdateTime"`
}

func (GuaranteeDeposit) TableName() string {
	return "guarantee_deposits"
}
