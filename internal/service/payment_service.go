package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shinyyama/simcard-market/internal/events"
	"github.com/shinyyama/simcard-market/internal/gateway"
	"github.com/shinyyama/simcard-market/internal/model"
	"github.com/shinyyama/simcard-market/internal/repository"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

const (
	PaymentSuccessRedirect = 2 * time.Second
	PaymentFailureRedirect = 3 * time.Second

	SellerWallet = "/seller/wallet"
	BuyerWallet  = "/buyer/wallet"
)

const (
	MsgPaymentSucceeded = "payment verified and your wallet was credited"
	MsgPaymentCancelled = "payment was cancelled or did not complete"
	MsgReceiptNotFound  = "no payment record matches this transaction"
	MsgPaymentSupport   = "payment could not be verified; if money was deducted please contact support"
)

// ZarinPalGateway amounts are toman.
type ZarinPalGateway interface {
	Request(ctx context.Context, amount int64, callbackURL, description string) (string, error)
	StartPayURL(authority string) string
	Verify(ctx context.Context, authority string, amount int64) (*gateway.ZarinPalVerification, error)
}

// ZibalGateway amounts are rial.
type ZibalGateway interface {
	Request(ctx context.Context, amountRial int64, callbackURL, description, orderID string) (string, error)
	StartPayURL(trackID string) string
	Verify(ctx context.Context, trackID string) (*gateway.ZibalVerification, error)
}

// CallbackResult is the terminal state of one gateway callback.
type CallbackResult struct {
	Success       bool          `json:"success"`
	Message       string        `json:"message"`
	RefID         string        `json:"refId,omitempty"`
	Amount        int64         `json:"amount,omitempty"`
	Wallet        *Wallet       `json:"wallet,omitempty"`
	RedirectTo    string        `json:"redirectTo"`
	RedirectAfter time.Duration `json:"-"`
}

type TopUpResult struct {
	ReceiptID  string `json:"receiptId"`
	Gateway    string `json:"gateway"`
	Authority  string `json:"authority"`
	PaymentURL string `json:"paymentUrl"`
}

type PaymentService interface {
	RequestTopUp(ctx context.Context, userID string, gw model.Gateway, amount int64) (*TopUpResult, error)
	HandleZarinPalCallback(ctx context.Context, authority, status string) *CallbackResult
	HandleZibalCallback(ctx context.Context, trackID, success, status string) *CallbackResult
}

type PaymentCallbacks struct {
	ZarinPal string
	Zibal    string
}

type paymentService struct {
	receipts  repository.PaymentReceiptRepository
	users     repository.UserRepository
	zarinpal  ZarinPalGateway
	zibal     ZibalGateway
	callbacks PaymentCallbacks
	notifier  NotificationService
	events    events.Publisher

	zibalFlight singleflight.Group
}

func NewPaymentService(
	receipts repository.PaymentReceiptRepository,
	users repository.UserRepository,
	zarinpal ZarinPalGateway,
	zibal ZibalGateway,
	callbacks PaymentCallbacks,
	notifier NotificationService,
	pub events.Publisher,
) PaymentService {
	return &paymentService{
		receipts:  receipts,
		users:     users,
		zarinpal:  zarinpal,
		zibal:     zibal,
		callbacks: callbacks,
		notifier:  notifier,
		events:    pub,
	}
}

// RequestTopUp opens a gateway payment of amount toman and stores the pending
// receipt the callback will look up.
func (s *paymentService) RequestTopUp(ctx context.Context, userID string, gw model.Gateway, amount int64) (*TopUpResult, error) {
	if userID == "" {
		return nil, errors.New("user is required")
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	receipt := &model.PaymentReceipt{
		ID:     uuid.NewString(),
		UserID: userID,
		Amount: amount,
		Status: model.ReceiptStatusPending,
	}
	desc := fmt.Sprintf("wallet top-up %d", amount)

	var (
		authority string
		payURL    string
		err       error
	)
	switch gw {
	case model.GatewayZarinPal:
		authority, err = s.zarinpal.Request(ctx, amount, s.callbacks.ZarinPal, desc)
		if err == nil {
			payURL = s.zarinpal.StartPayURL(authority)
		}
	case model.GatewayZibal:
		authority, err = s.zibal.Request(ctx, amount*10, s.callbacks.Zibal, desc, receipt.ID)
		if err == nil {
			payURL = s.zibal.StartPayURL(authority)
		}
	default:
		return nil, ErrUnknownGateway
	}
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", gw, err)
	}
	receipt.Gateway = gw
	receipt.Authority = authority
	if err := s.receipts.Create(ctx, receipt); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"user_id":    userID,
		"gateway":    gw,
		"receipt_id": receipt.ID,
		"amount":     amount,
	}).Info("top-up requested")
	return &TopUpResult{ReceiptID: receipt.ID, Gateway: string(gw), Authority: authority, PaymentURL: payURL}, nil
}

func (s *paymentService) HandleZarinPalCallback(ctx context.Context, authority, status string) *CallbackResult {
	if status != "OK" || authority == "" {
		return failure(s.cancelledPage(ctx, model.GatewayZarinPal, authority), MsgPaymentCancelled)
	}
	receipt, err := s.receipts.FindByAuthority(ctx, model.GatewayZarinPal, authority)
	if err != nil {
		return s.lookupFailure(err, authority)
	}
	walletPage := s.walletPage(ctx, receipt.UserID)
	if receipt.Status == model.ReceiptStatusVerified {
		return s.success(ctx, receipt, walletPage, deref(receipt.RefID), receipt.Amount)
	}

	v, err := s.zarinpal.Verify(ctx, authority, receipt.Amount)
	if err != nil {
		s.verifyFailed(ctx, receipt, err)
		return failure(walletPage, MsgPaymentSupport)
	}
	if err := s.credit(ctx, receipt, v.RefID); err != nil {
		return failure(walletPage, MsgPaymentSupport)
	}
	return s.success(ctx, receipt, walletPage, v.RefID, receipt.Amount)
}

// HandleZibalCallback verifies at most once per trackId at a time; concurrent
// callbacks for the same trackId share one verification.
func (s *paymentService) HandleZibalCallback(ctx context.Context, trackID, success, status string) *CallbackResult {
	if success != "1" || status != "2" || trackID == "" {
		return failure(s.cancelledPage(ctx, model.GatewayZibal, trackID), MsgPaymentCancelled)
	}
	v, _, _ := s.zibalFlight.Do(trackID, func() (interface{}, error) {
		return s.verifyZibal(ctx, trackID), nil
	})
	res := *v.(*CallbackResult)
	return &res
}

func (s *paymentService) verifyZibal(ctx context.Context, trackID string) *CallbackResult {
	receipt, err := s.receipts.FindByAuthority(ctx, model.GatewayZibal, trackID)
	if err != nil {
		return s.lookupFailure(err, trackID)
	}
	walletPage := s.walletPage(ctx, receipt.UserID)
	if receipt.Status == model.ReceiptStatusVerified {
		return s.success(ctx, receipt, walletPage, deref(receipt.RefID), receipt.Amount)
	}

	v, err := s.zibal.Verify(ctx, trackID)
	if err != nil {
		s.verifyFailed(ctx, receipt, err)
		return failure(walletPage, MsgPaymentSupport)
	}
	// receipts are in toman, Zibal answers in rial
	if v.AmountRial != receipt.Amount*10 {
		log.WithFields(log.Fields{
			"receipt_id":  receipt.ID,
			"track_id":    trackID,
			"amount_rial": v.AmountRial,
			"expected":    receipt.Amount * 10,
		}).Error("zibal verified amount does not match receipt")
		return failure(walletPage, MsgPaymentSupport)
	}
	if err := s.credit(ctx, receipt, v.RefNumber); err != nil {
		return failure(walletPage, MsgPaymentSupport)
	}
	return s.success(ctx, receipt, walletPage, v.RefNumber, v.AmountRial/10)
}

func (s *paymentService) credit(ctx context.Context, receipt *model.PaymentReceipt, refID string) error {
	logger := log.WithFields(log.Fields{
		"receipt_id": receipt.ID,
		"user_id":    receipt.UserID,
		"gateway":    receipt.Gateway,
		"ref_id":     refID,
	})
	credited, err := s.receipts.MarkVerified(ctx, receipt.ID, refID)
	if err != nil {
		// the gateway has the money; this needs manual reconciliation
		logger.WithError(err).Error("payment verified but wallet credit failed")
		return err
	}
	if !credited {
		return nil
	}
	logger.WithField("amount", receipt.Amount).Info("wallet credited")
	s.notifier.Notify(ctx, receipt.UserID, NotifyWalletCredited, "Wallet charged",
		fmt.Sprintf("%d was added to your wallet.", receipt.Amount), nil, nil)
	s.events.Publish(events.SubjectWalletCredited, events.WalletCredited{
		UserID:    receipt.UserID,
		Gateway:   string(receipt.Gateway),
		Amount:    receipt.Amount,
		ReceiptID: receipt.ID,
	})
	return nil
}

func (s *paymentService) verifyFailed(ctx context.Context, receipt *model.PaymentReceipt, err error) {
	log.WithError(err).WithFields(log.Fields{
		"receipt_id": receipt.ID,
		"gateway":    receipt.Gateway,
	}).Warn("payment verification failed")
	if errors.Is(err, gateway.ErrRejected) {
		if merr := s.receipts.MarkFailed(ctx, receipt.ID); merr != nil {
			log.WithError(merr).WithField("receipt_id", receipt.ID).Warn("failed to mark receipt failed")
		}
	}
}

func (s *paymentService) lookupFailure(err error, authority string) *CallbackResult {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.WithField("authority", authority).Warn("payment callback for unknown receipt")
		return failure(BuyerWallet, MsgReceiptNotFound)
	}
	log.WithError(err).WithField("authority", authority).Error("payment receipt lookup failed")
	return failure(BuyerWallet, MsgPaymentSupport)
}

func (s *paymentService) success(ctx context.Context, receipt *model.PaymentReceipt, page, refID string, amount int64) *CallbackResult {
	res := &CallbackResult{
		Success:       true,
		Message:       MsgPaymentSucceeded,
		RefID:         refID,
		Amount:        amount,
		RedirectTo:    page,
		RedirectAfter: PaymentSuccessRedirect,
	}
	if u, err := s.users.FindByID(ctx, receipt.UserID); err == nil {
		res.Wallet = walletOf(u)
	}
	return res
}

// cancelledPage resolves the wallet page for a callback that never reaches
// verification. An unknown receipt falls back to the buyer page.
func (s *paymentService) cancelledPage(ctx context.Context, gw model.Gateway, authority string) string {
	if authority == "" {
		return BuyerWallet
	}
	receipt, err := s.receipts.FindByAuthority(ctx, gw, authority)
	if err != nil {
		return BuyerWallet
	}
	return s.walletPage(ctx, receipt.UserID)
}

// walletPage picks the wallet page by the receipt owner's role.
func (s *paymentService) walletPage(ctx context.Context, userID string) string {
	u, err := s.users.FindByID(ctx, userID)
	if err == nil && u.Role == model.UserRoleSeller {
		return SellerWallet
	}
	return BuyerWallet
}

func failure(page, msg string) *CallbackResult {
	return &CallbackResult{
		Message:       msg,
		RedirectTo:    page,
		RedirectAfter: PaymentFailureRedirect,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
