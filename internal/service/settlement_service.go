package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/samber/lo"
	"github.com/shinyyama/simcard-market/internal/delivery"
	"github.com/shinyyama/simcard-market/internal/events"
	"github.com/shinyyama/simcard-market/internal/model"
	"github.com/shinyyama/simcard-market/internal/repository"
	"github.com/shinyyama/simcard-market/internal/settings"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type AuctionState string

const (
	StateAuctionOpen           AuctionState = "auction_open"
	StateAwaitingAction        AuctionState = "auction_ended_awaiting_action"
	StateAwaitingDelivery      AuctionState = "awaiting_delivery"
	StateSettled               AuctionState = "settled"
	StateAuctionEndedNotWinner AuctionState = "auction_ended_not_winner"
	StateSold                  AuctionState = "sold"

	// StateSettlementPending means the order exists but a later settlement
	// step has not finished; calling Settle again picks it up.
	StateSettlementPending AuctionState = "settlement_pending"
)

// Settlement steps, as recorded in StepError.
const (
	StepCompletePurchase  = "complete_purchase"
	StepReleaseDeposits   = "release_deposits"
	StepActivationRequest = "activation_request"
	StepRecord            = "record_progress"
)

const (
	BuyerDashboard  = "/buyer"
	SettledRedirect = 2 * time.Second
)

type AuctionView struct {
	State             AuctionState      `json:"state"`
	SimCardID         uint64            `json:"simCardId"`
	SimNumber         string            `json:"simNumber"`
	AuctionID         uint64            `json:"auctionId"`
	BasePrice         int64             `json:"basePrice"`
	CurrentBid        int64             `json:"currentBid"`
	EndTime           time.Time         `json:"endTime"`
	Ended             bool              `json:"ended"`
	IsWinner          bool              `json:"isWinner"`
	PurchaseCompleted bool              `json:"purchaseCompleted"`
	AmountDue         int64             `json:"amountDue,omitempty"`
	DeliveryOptions   *delivery.Options `json:"deliveryOptions,omitempty"`
	SettlementStatus  string            `json:"settlementStatus,omitempty"`
	LastError         string            `json:"lastError,omitempty"`
}

type DeliveryChoice struct {
	Method  model.DeliveryMethod
	Address *delivery.Address
}

type SettleInput struct {
	SimID    uint64
	WinnerID string
	// Delivery may be nil; inactive lines then wait in awaiting_delivery.
	Delivery *DeliveryChoice
}

type SettlementOutcome struct {
	Status           model.SettlementStatus `json:"status"`
	PurchaseOrderID  uint64                 `json:"purchaseOrderId"`
	ReleasedDeposits int                    `json:"releasedDeposits"`
	RequiresDelivery bool                   `json:"requiresDelivery"`
	DeliveryOptions  *delivery.Options      `json:"deliveryOptions,omitempty"`
	RedirectTo       string                 `json:"redirectTo,omitempty"`
	RedirectAfter    time.Duration          `json:"-"`
}

type SettlementService interface {
	View(ctx context.Context, simID uint64, viewerID string) (*AuctionView, error)
	CompleteAuctionPurchaseForWinner(ctx context.Context, simID uint64, winnerID string) (*model.PurchaseOrder, error)
	IsAuctionPurchaseCompleted(ctx context.Context, simID uint64, userID string) (bool, error)
	Settle(ctx context.Context, in SettleInput) (*SettlementOutcome, error)
	DeliveryOptions(ctx context.Context) delivery.Options
	SubmitDelivery(ctx context.Context, simID uint64, buyerID string, method model.DeliveryMethod, addr *delivery.Address) (*SettlementOutcome, error)
	Resume(ctx context.Context, simID uint64) (*SettlementOutcome, error)
	ResumeAll(ctx context.Context, limit int) (int, error)
}

type settlementService struct {
	sims        repository.SimCardRepository
	auctions    repository.AuctionRepository
	orders      repository.PurchaseOrderRepository
	users       repository.UserRepository
	settlements repository.SettlementRepository
	activations ActivationService
	settings    Settings
	notifier    NotificationService
	events      events.Publisher
	now         func() time.Time
}

type SettlementDeps struct {
	Sims        repository.SimCardRepository
	Auctions    repository.AuctionRepository
	Orders      repository.PurchaseOrderRepository
	Users       repository.UserRepository
	Settlements repository.SettlementRepository
	Activations ActivationService
	Settings    Settings
	Notifier    NotificationService
	Events      events.Publisher
}

func NewSettlementService(d SettlementDeps) SettlementService {
	return &settlementService{
		sims:        d.Sims,
		auctions:    d.Auctions,
		orders:      d.Orders,
		users:       d.Users,
		settlements: d.Settlements,
		activations: d.Activations,
		settings:    d.Settings,
		notifier:    d.Notifier,
		events:      d.Events,
		now:         time.Now,
	}
}

func (s *settlementService) loadAuction(ctx context.Context, simID uint64) (*model.SimCard, *model.AuctionDetail, error) {
	sim, err := s.sims.FindByID(ctx, simID)
	if err != nil {
		return nil, nil, notFound(err)
	}
	if sim.Type != model.SimTypeAuction {
		return nil, nil, ErrNotAuction
	}
	detail, err := s.auctions.FindDetailBySim(ctx, sim.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.WithField("sim_id", sim.ID).Error("auction sim has no auction detail row")
			return nil, nil, ErrAuctionDetailMissing
		}
		return nil, nil, err
	}
	return sim, detail, nil
}

func (s *settlementService) View(ctx context.Context, simID uint64, viewerID string) (*AuctionView, error) {
	sim, detail, err := s.loadAuction(ctx, simID)
	if err != nil {
		return nil, err
	}
	v := &AuctionView{
		SimCardID:  sim.ID,
		SimNumber:  sim.Number,
		AuctionID:  detail.ID,
		BasePrice:  detail.BasePrice,
		CurrentBid: detail.CurrentBid,
		EndTime:    detail.EndTime,
		Ended:      detail.Ended(s.now()),
		IsWinner:   detail.IsHighestBidder(viewerID),
	}
	if !v.Ended {
		v.State = StateAuctionOpen
		return v, nil
	}
	if !v.IsWinner {
		if sim.Status == model.SimStatusSold {
			v.State = StateSold
		} else {
			v.State = StateAuctionEndedNotWinner
		}
		return v, nil
	}

	completed, err := s.IsAuctionPurchaseCompleted(ctx, sim.ID, viewerID)
	if err != nil {
		return nil, err
	}
	v.PurchaseCompleted = completed
	if !completed {
		v.State = StateAwaitingAction
		v.AmountDue = detail.CurrentBid
		return v, nil
	}
	intent, err := s.settlements.FindByAuction(ctx, detail.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// bought outside Settle; deposits and activation are still owed
		v.State = StateSettlementPending
		return v, nil
	}
	if err != nil {
		return nil, err
	}
	v.SettlementStatus = string(intent.Status)
	v.LastError = intent.LastError
	switch intent.Status {
	case model.SettlementStatusCompleted:
		v.State = StateSettled
	case model.SettlementStatusAwaitingDelivery:
		v.State = StateAwaitingDelivery
		opts := s.DeliveryOptions(ctx)
		v.DeliveryOptions = &opts
	default:
		v.State = StateSettlementPending
	}
	return v, nil
}

func (s *settlementService) IsAuctionPurchaseCompleted(ctx context.Context, simID uint64, userID string) (bool, error) {
	po, err := s.orders.FindBySim(ctx, simID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return userID != "" && po.BuyerID == userID, nil
}

func (s *settlementService) CompleteAuctionPurchaseForWinner(ctx context.Context, simID uint64, winnerID string) (*model.PurchaseOrder, error) {
	sim, detail, err := s.loadAuction(ctx, simID)
	if err != nil {
		return nil, err
	}
	if err := s.checkWinner(sim, detail, winnerID); err != nil {
		return nil, err
	}
	return s.completeForWinner(ctx, sim, detail, winnerID)
}

func (s *settlementService) checkWinner(sim *model.SimCard, detail *model.AuctionDetail, userID string) error {
	if sim.SellerID == userID {
		return ErrForbidden
	}
	if !detail.Ended(s.now()) {
		return ErrAuctionNotEnded
	}
	if !detail.IsHighestBidder(userID) {
		return ErrNotWinner
	}
	return nil
}

func (s *settlementService) completeForWinner(ctx context.Context, sim *model.SimCard, detail *model.AuctionDetail, winnerID string) (*model.PurchaseOrder, error) {
	price := detail.CurrentBid
	rate := s.settings.GetNumber(ctx, settings.KeyCommissionRate, settings.DefaultCommissionRate)
	commission := int64(math.Round(float64(price) * rate / 100))

	po, created, err := s.orders.CompleteForWinner(ctx, repository.WinnerPurchaseParams{
		SimCardID:        sim.ID,
		AuctionID:        detail.ID,
		BuyerID:          winnerID,
		SellerID:         sim.SellerID,
		LineType:         sim.LineType(),
		Price:            price,
		CommissionAmount: commission,
	})
	switch {
	case errors.Is(err, repository.ErrOrderConflict):
		return nil, ErrAlreadySold
	case errors.Is(err, repository.ErrInsufficientFunds):
		ib := &InsufficientBalanceError{Required: price}
		if u, uerr := s.users.FindByID(ctx, winnerID); uerr == nil {
			// the winner's own deposit is released inside the same transaction
			ib.Current = u.AvailableBalance()
			if p, perr := s.auctions.FindParticipant(ctx, detail.ID, winnerID); perr == nil && p.GuaranteeDepositBlocked {
				ib.Current += p.GuaranteeDepositAmount
			}
		}
		return nil, ib
	case err != nil:
		return nil, err
	}

	if created {
		log.WithFields(log.Fields{
			"sim_id":            sim.ID,
			"auction_id":        detail.ID,
			"user_id":           winnerID,
			"purchase_order_id": po.ID,
			"price":             price,
			"commission":        commission,
		}).Info("auction purchase completed for winner")
		s.notifier.Notify(ctx, winnerID, NotifyPurchaseCompleted, "Purchase completed",
			fmt.Sprintf("You won %s for %d.", sim.Number, price), uint64Ptr(sim.ID), uint64Ptr(po.ID))
		s.notifier.Notify(ctx, sim.SellerID, NotifySimSold, "SIM sold",
			fmt.Sprintf("%s was sold at auction for %d.", sim.Number, price), uint64Ptr(sim.ID), uint64Ptr(po.ID))
	}
	return po, nil
}

// Settle runs the settlement saga for the winner. Progress is persisted after
// every step, so calling it again (or Resume) skips what already succeeded.
func (s *settlementService) Settle(ctx context.Context, in SettleInput) (*SettlementOutcome, error) {
	sim, detail, err := s.loadAuction(ctx, in.SimID)
	if err != nil {
		return nil, err
	}
	if err := s.checkWinner(sim, detail, in.WinnerID); err != nil {
		return nil, err
	}
	intent, err := s.settlements.FindOrCreate(ctx, &model.AuctionSettlement{
		AuctionID: detail.ID,
		SimCardID: sim.ID,
		WinnerID:  in.WinnerID,
		Status:    model.SettlementStatusInProgress,
	})
	if err != nil {
		return nil, err
	}
	if intent.WinnerID != in.WinnerID {
		return nil, ErrSettlementConflict
	}
	return s.run(ctx, intent, sim, detail, in.Delivery)
}

func (s *settlementService) run(ctx context.Context, intent *model.AuctionSettlement, sim *model.SimCard, detail *model.AuctionDetail, choice *DeliveryChoice) (*SettlementOutcome, error) {
	logger := log.WithFields(log.Fields{
		"sim_id":     sim.ID,
		"auction_id": detail.ID,
		"user_id":    intent.WinnerID,
	})
	out := &SettlementOutcome{}
	if intent.Status == model.SettlementStatusCompleted {
		if intent.PurchaseOrderID != nil {
			out.PurchaseOrderID = *intent.PurchaseOrderID
		}
		out.Status = intent.Status
		out.RedirectTo = BuyerDashboard
		out.RedirectAfter = SettledRedirect
		return out, nil
	}

	if intent.WinnerCompletedAt == nil {
		po, err := s.completeForWinner(ctx, sim, detail, intent.WinnerID)
		if err != nil {
			var ib *InsufficientBalanceError
			if errors.As(err, &ib) || errors.Is(err, ErrAlreadySold) {
				return nil, err
			}
			return nil, s.fail(ctx, intent, StepCompletePurchase, err)
		}
		now := s.now()
		intent.PurchaseOrderID = &po.ID
		intent.WinnerCompletedAt = &now
		if err := s.save(ctx, intent); err != nil {
			return nil, err
		}
	}
	if intent.PurchaseOrderID != nil {
		out.PurchaseOrderID = *intent.PurchaseOrderID
	}

	if intent.DepositsReleasedAt == nil {
		released, err := s.releaseCompetitors(ctx, detail, sim, intent.WinnerID)
		out.ReleasedDeposits = released
		if err != nil {
			return nil, s.fail(ctx, intent, StepReleaseDeposits, err)
		}
		now := s.now()
		intent.DepositsReleasedAt = &now
		if err := s.save(ctx, intent); err != nil {
			return nil, err
		}
	}

	if !sim.IsActive && intent.ActivationRequestedAt == nil {
		if choice == nil {
			intent.Status = model.SettlementStatusAwaitingDelivery
			intent.LastError = ""
			if err := s.save(ctx, intent); err != nil {
				return nil, err
			}
			opts := s.DeliveryOptions(ctx)
			out.Status = intent.Status
			out.RequiresDelivery = true
			out.DeliveryOptions = &opts
			logger.Info("settlement waiting for delivery method")
			return out, nil
		}
		if err := s.selectDelivery(ctx, intent, sim, choice); err != nil {
			intent.Status = model.SettlementStatusAwaitingDelivery
			if isDeliveryInputError(err) {
				if serr := s.save(ctx, intent); serr != nil {
					return nil, serr
				}
				return nil, err
			}
			return nil, s.fail(ctx, intent, StepActivationRequest, err)
		}
	}

	intent.Status = model.SettlementStatusCompleted
	intent.LastError = ""
	if err := s.save(ctx, intent); err != nil {
		return nil, err
	}
	logger.WithField("released", out.ReleasedDeposits).Info("auction settled")
	s.events.Publish(events.SubjectSettled, events.AuctionSettled{
		SimCardID:       sim.ID,
		AuctionID:       detail.ID,
		WinnerID:        intent.WinnerID,
		PurchaseOrderID: out.PurchaseOrderID,
		Released:        out.ReleasedDeposits,
	})

	out.Status = intent.Status
	out.RedirectTo = BuyerDashboard
	out.RedirectAfter = SettledRedirect
	return out, nil
}

// releaseCompetitors returns every losing bidder's guarantee. Each release is
// its own transaction; a failure stops the loop and the next run picks up the
// participants that are still blocked.
func (s *settlementService) releaseCompetitors(ctx context.Context, detail *model.AuctionDetail, sim *model.SimCard, winnerID string) (int, error) {
	parts, err := s.auctions.ListParticipants(ctx, detail.ID)
	if err != nil {
		return 0, err
	}
	pending := lo.Filter(parts, func(p model.AuctionParticipant, _ int) bool {
		return p.UserID != winnerID && p.GuaranteeDepositBlocked && p.GuaranteeDepositAmount > 0
	})

	released := 0
	reason := fmt.Sprintf("auction for %s ended; guarantee deposit released", sim.Number)
	for _, p := range pending {
		ok, err := s.auctions.ReleaseDeposit(ctx, detail.ID, p.UserID, reason)
		if err != nil {
			return released, fmt.Errorf("release deposit of %s: %w", p.UserID, err)
		}
		if !ok {
			continue
		}
		released++
		s.notifier.Notify(ctx, p.UserID, NotifyDepositReleased, "Guarantee deposit released",
			fmt.Sprintf("Your guarantee of %d for %s is available again.", p.GuaranteeDepositAmount, sim.Number), uint64Ptr(sim.ID), nil)
	}
	return released, nil
}

// selectDelivery runs the buyer's choice through a delivery.Selector so the
// activation-code setting and address rules apply to every entry point.
func (s *settlementService) selectDelivery(ctx context.Context, intent *model.AuctionSettlement, sim *model.SimCard, choice *DeliveryChoice) error {
	sel := delivery.NewSelector(s.activationCodeAllowed(ctx), func(ctx context.Context, method model.DeliveryMethod, addr *delivery.Address) error {
		return s.requestActivation(ctx, intent, sim, method, addr)
	})
	if err := sel.Choose(ctx, choice.Method); err != nil {
		return err
	}
	if sel.State() != delivery.StateCollectingAddress {
		return nil
	}
	var addr delivery.Address
	if choice.Address != nil {
		addr = *choice.Address
	}
	return sel.SubmitAddress(ctx, addr)
}

func (s *settlementService) requestActivation(ctx context.Context, intent *model.AuctionSettlement, sim *model.SimCard, method model.DeliveryMethod, addr *delivery.Address) error {
	if intent.PurchaseOrderID == nil {
		return errors.New("settlement has no purchase order")
	}
	_, err := s.activations.Create(ctx, CreateActivationInput{
		PurchaseOrderID: *intent.PurchaseOrderID,
		SimID:           sim.ID,
		BuyerID:         intent.WinnerID,
		SellerID:        sim.SellerID,
		SimNumber:       sim.Number,
		BuyerName:       s.displayName(ctx, intent.WinnerID),
		SellerName:      s.displayName(ctx, sim.SellerID),
		Method:          method,
		Address:         addr,
	})
	if err != nil {
		return err
	}
	now := s.now()
	intent.ActivationRequestedAt = &now
	return nil
}

func (s *settlementService) displayName(ctx context.Context, userID string) string {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("could not resolve display name")
		return ""
	}
	return u.Name
}

func (s *settlementService) activationCodeAllowed(ctx context.Context) bool {
	return s.settings.GetBoolean(ctx, settings.KeyBuyerCanReceiveActivationCode, true)
}

func (s *settlementService) DeliveryOptions(ctx context.Context) delivery.Options {
	return delivery.NewSelector(s.activationCodeAllowed(ctx), nil).Options()
}

// SubmitDelivery finishes a settlement that stopped in awaiting_delivery.
func (s *settlementService) SubmitDelivery(ctx context.Context, simID uint64, buyerID string, method model.DeliveryMethod, addr *delivery.Address) (*SettlementOutcome, error) {
	sim, detail, err := s.loadAuction(ctx, simID)
	if err != nil {
		return nil, err
	}
	intent, err := s.settlements.FindByAuction(ctx, detail.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSettlementNotStarted
		}
		return nil, err
	}
	if intent.WinnerID != buyerID {
		return nil, ErrForbidden
	}
	if sim.IsActive {
		return nil, ErrDeliveryNotRequired
	}
	return s.run(ctx, intent, sim, detail, &DeliveryChoice{Method: method, Address: addr})
}

// Resume re-runs the unfinished steps of a sim's settlement. A zero line
// without a delivery choice stays in awaiting_delivery.
func (s *settlementService) Resume(ctx context.Context, simID uint64) (*SettlementOutcome, error) {
	sim, detail, err := s.loadAuction(ctx, simID)
	if err != nil {
		return nil, err
	}
	intent, err := s.settlements.FindByAuction(ctx, detail.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSettlementNotStarted
		}
		return nil, err
	}
	return s.run(ctx, intent, sim, detail, nil)
}

// ResumeAll resumes up to limit unfinished settlements and reports how many
// ran without error. It keeps going past individual failures.
func (s *settlementService) ResumeAll(ctx context.Context, limit int) (int, error) {
	list, err := s.settlements.ListUnfinished(ctx, limit)
	if err != nil {
		return 0, err
	}
	ok := 0
	var errs []error
	for _, intent := range list {
		if err := ctx.Err(); err != nil {
			return ok, err
		}
		if _, err := s.Resume(ctx, intent.SimCardID); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"sim_id":     intent.SimCardID,
				"auction_id": intent.AuctionID,
			}).Warn("settlement resume failed")
			errs = append(errs, err)
			continue
		}
		ok++
	}
	return ok, errors.Join(errs...)
}

func (s *settlementService) save(ctx context.Context, intent *model.AuctionSettlement) error {
	if err := s.settlements.Update(ctx, intent); err != nil {
		return &StepError{Step: StepRecord, Err: err}
	}
	return nil
}

// fail records the error on the intent and wraps it with the step name.
func (s *settlementService) fail(ctx context.Context, intent *model.AuctionSettlement, step string, err error) error {
	log.WithError(err).WithFields(log.Fields{
		"sim_id":     intent.SimCardID,
		"auction_id": intent.AuctionID,
		"user_id":    intent.WinnerID,
		"step":       step,
	}).Error("settlement step failed")
	intent.LastError = step + ": " + err.Error()
	if uerr := s.settlements.Update(ctx, intent); uerr != nil {
		log.WithError(uerr).WithField("auction_id", intent.AuctionID).Error("failed to record settlement error")
	}
	return &StepError{Step: step, Err: err}
}

func isDeliveryInputError(err error) bool {
	var verrs delivery.ValidationErrors
	if errors.As(err, &verrs) {
		return true
	}
	return errors.Is(err, delivery.ErrMethodUnavailable)
}
