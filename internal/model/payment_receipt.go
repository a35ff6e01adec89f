package model

import "time"

type Gateway string

const (
	GatewayZarinPal Gateway = "zarinpal"
	GatewayZibal    Gateway = "zibal"
)

type ReceiptStatus string

const (
	ReceiptStatusPending  ReceiptStatus = "pending"
	ReceiptStatusVerified ReceiptStatus = "verified"
	ReceiptStatusFailed   ReceiptStatus = "failed"
)

// PaymentReceipt is written before the user is sent to the gateway. Authority
// holds the ZarinPal authority code or the Zibal trackId.
type PaymentReceipt struct {
	ID         string        `gorm:"column:id;primaryKey;size:36"`
	UserID     string        `gorm:"column:user_id;size:128;index;not null"`
	Gateway    Gateway       `gorm:"column:gateway;size:16;uniqueIndex:ux_receipt_authority;not null"`
	Authority  string        `gorm:"column:authority;size:64;uniqueIndex:ux_receipt_authority;not null"`
	Amount     int64         `gorm:"column:amount;not null"`
	Status     ReceiptStatus `gorm:"column:status;size:16;not null"`
	RefID      *string       `gorm:"column:ref_id;size:64"`
	VerifiedAt *time.Time    `gorm:"column:verified_at"`
	CreatedAt  time.Time     `gorm:"autoCreateTime"`
	UpdatedAt  time.Time     `gorm:"autoUpdateTime"`
}

func (PaymentReceipt) TableName() string {
	return "payment_receipts"
}
