package service

import (
	"context"
	"errors"

	"github.com/shinyyama/simcard-market/internal/model"
	"github.com/shinyyama/simcard-market/internal/repository"
	"gorm.io/gorm"
)

type Wallet struct {
	Balance   int64 `json:"balance"`
	Blocked   int64 `json:"blocked"`
	Available int64 `json:"available"`
}

type WalletService interface {
	Get(ctx context.Context, userID string) (*Wallet, error)
	Transactions(ctx context.Context, userID string, limit, offset int) ([]model.Transaction, int64, error)
}

type walletService struct {
	users repository.UserRepository
	txs   repository.TransactionRepository
}

func NewWalletService(users repository.UserRepository, txs repository.TransactionRepository) WalletService {
	return &walletService{users: users, txs: txs}
}

func (s *walletService) Get(ctx context.Context, userID string) (*Wallet, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return walletOf(u), nil
}

func (s *walletService) Transactions(ctx context.Context, userID string, limit, offset int) ([]model.Transaction, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.txs.ListByUser(ctx, userID, limit, offset)
}

func walletOf(u *model.User) *Wallet {
	return &Wallet{
		Balance:   u.WalletBalance,
		Blocked:   u.BlockedBalance,
		Available: u.AvailableBalance(),
	}
}
