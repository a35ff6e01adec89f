package model

import "time"

type TransactionType string

const (
	TransactionTypeBidDeposit      TransactionType = "bid_deposit"
	TransactionTypeCreditReleased  TransactionType = "credit_released"
	TransactionTypePurchaseBlocked TransactionType = "purchase_blocked"
	TransactionTypeDeposit         TransactionType = "deposit"
)

// Transaction is an append-only wallet ledger row.
type Transaction struct {
	ID          uint64          `gorm:"primaryKey;autoIncrement"`
	UserID      string          `gorm:"column:user_id;size:128;index;not null"`
	Type        TransactionType `gorm:"column:type;size:32;not null"`
	Amount      int64           `gorm:"column:amount;not null"`
	Description string          `gorm:"column:description;size:255"`
	Reference   string          `gorm:"column:reference;size:64;index"`
	CreatedAt   time.Time       `gorm:"autoCreateTime"`
}

func (Transaction) TableName() string {
	return "transactions"
}
