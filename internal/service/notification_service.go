package service

import (
	"context"
	"time"

	"github.com/shinyyama/simcard-market/internal/model"
	"github.com/shinyyama/simcard-market/internal/repository"
	log "github.com/sirupsen/logrus"
)

const (
	NotifyOutbid            = "auction_outbid"
	NotifyPurchaseCompleted = "purchase_completed"
	NotifySimSold           = "sim_sold"
	NotifyDepositReleased   = "guarantee_released"
	NotifyActivationRequest = "activation_requested"
	NotifyWalletCredited    = "wallet_credited"
)

type NotificationService interface {
	Notify(ctx context.Context, userID, typ, title, body string, simID, purchaseOrderID *uint64)
	List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]model.Notification, int64, error)
	MarkAllRead(ctx context.Context, userID string) error
	MarkByPurchaseOrder(ctx context.Context, userID string, purchaseOrderID uint64) error
}

type notificationService struct {
	repo repository.NotificationRepository
}

func NewNotificationService(repo repository.NotificationRepository) NotificationService {
	return &notificationService{repo: repo}
}

// Notify is best-effort; it logs errors but does not return them to avoid breaking main flows.
func (s *notificationService) Notify(ctx context.Context, userID, typ, title, body string, simID, purchaseOrderID *uint64) {
	if userID == "" || typ == "" {
		return
	}
	ctx, cancel := withShortDeadline(ctx)
	defer cancel()
	n := &model.Notification{
		UserID:          userID,
		Type:            typ,
		Title:           title,
		Body:            body,
		SimCardID:       simID,
		PurchaseOrderID: purchaseOrderID,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		log.WithError(err).WithFields(log.Fields{"user_id": userID, "type": typ}).Warn("failed to store notification")
	}
}

func (s *notificationService) List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]model.Notification, int64, error) {
	if userID == "" {
		return nil, 0, nil
	}
	list, err := s.repo.ListByUser(ctx, userID, unreadOnly, limit)
	if err != nil {
		return nil, 0, err
	}
	cnt, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return list, 0, err
	}
	return list, cnt, nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}
	return s.repo.MarkAllRead(ctx, userID)
}

func (s *notificationService) MarkByPurchaseOrder(ctx context.Context, userID string, purchaseOrderID uint64) error {
	if userID == "" || purchaseOrderID == 0 {
		return nil
	}
	return s.repo.MarkByPurchaseOrder(ctx, userID, purchaseOrderID)
}

func uint64Ptr(v uint64) *uint64 {
	return &v
}

// withShortDeadline keeps a slow notification write from blocking the main flow.
func withShortDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, 2*time.Second)
}
