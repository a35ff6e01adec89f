package model

import "time"

type DeliveryMethod string

const (
	DeliveryMethodActivationCode DeliveryMethod = "activation_code"
	DeliveryMethodPhysicalCard   DeliveryMethod = "physical_card"
)

type ActivationStatus string

const (
	ActivationStatusPending ActivationStatus = "pending"
)

type ActivationRequest struct {
	ID                 uint64           `gorm:"primaryKey;autoIncrement"`
	PurchaseOrderID    uint64           `gorm:"column:purchase_order_id;uniqueIndex;not null"`
	SimCardID          uint64           `gorm:"column:sim_card_id;index;not null"`
	BuyerID            string           `gorm:"column:buyer_id;size:128;index;not null"`
	SellerID           string           `gorm:"column:seller_id;size:128;index;not null"`
	SimNumber          string           `gorm:"column:sim_number;size:16;not null"`
	BuyerName          string           `gorm:"column:buyer_name;size:255"`
	SellerName         string           `gorm:"column:seller_name;size:255"`
	DeliveryMethod     DeliveryMethod   `gorm:"column:delivery_method;size:32;not null"`
	DeliveryAddress    *string          `gorm:"column:delivery_address;type:text"`
	DeliveryCity       *string          `gorm:"column:delivery_city;size:64"`
	DeliveryPostalCode *string          `gorm:"column:delivery_postal_code;size:10"`
	DeliveryPhone      *string          `gorm:"column:delivery_phone;size:11"`
	ActivationCode     *string          `gorm:"column:activation_code;size:64"`
	Status             ActivationStatus `gorm:"column:status;size:16;not null"`
	CreatedAt          time.Time        `gorm:"autoCreateTime"`
	UpdatedAt          time.Time        `gorm:"autoUpdateTime"`
}

func (ActivationRequest) TableName() string {
	return "activation_requests"
}
