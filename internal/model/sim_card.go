package model

import "time"

type SimType string

const (
	SimTypeFixed   SimType = "fixed"
	SimTypeAuction SimType = "auction"
	SimTypeInquiry SimType = "inquiry"
)

type SimStatus string

const (
	SimStatusAvailable SimStatus = "available"
	SimStatusSold      SimStatus = "sold"
)

type SimCard struct {
	ID            uint64         `gorm:"primaryKey;autoIncrement"`
	Number        string         `gorm:"column:number;size:16;uniqueIndex;not null"`
	Carrier       string         `gorm:"column:carrier;size:32;not null"`
	Price         int64          `gorm:"column:price;not null"`
	Type          SimType        `gorm:"column:type;size:16;not null"`
	IsActive      bool           `gorm:"column:is_active;not null"`
	Status        SimStatus      `gorm:"column:status;size:16;not null;default:available"`
	SellerID      string         `gorm:"column:seller_id;size:128;index;not null"`
	AuctionDetail *AuctionDetail `gorm:"foreignKey:SimCardID"`
	CreatedAt     time.Time      `gorm:"autoCreateTime"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime"`
}

func (SimCard) TableName() string {
	return "sim_cards"
}

// LineType reports whether the sold line is already active or a zero line.
func (s *SimCard) LineType() LineType {
	if s.IsActive {
		return LineTypeActive
	}
	return LineTypeInactive
}
