package model

import "time"

type UserRole string

const (
	UserRoleBuyer  UserRole = "buyer"
	UserRoleSeller UserRole = "seller"
	UserRoleAdmin  UserRole = "admin"
)

// User carries the wallet. BlockedBalance is the part of WalletBalance held
// for guarantee deposits and pending purchases.
type User struct {
	ID             string    `gorm:"column:id;primaryKey;size:128"`
	Name           string    `gorm:"column:name;size:255"`
	Role           UserRole  `gorm:"column:role;size:16;not null;default:buyer"`
	WalletBalance  int64     `gorm:"column:wallet_balance;not null;default:0"`
	BlockedBalance int64     `gorm:"column:blocked_balance;not null;default:0"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

func (User) TableName() string {
	return "users"
}

// AvailableBalance is what the user can still spend or pledge.
func (u *User) AvailableBalance() int64 {
	return u.WalletBalance - u.BlockedBalance
}
