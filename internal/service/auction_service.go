package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shinyyama/simcard-market/internal/events"
	"github.com/shinyyama/simcard-market/internal/model"
	"github.com/shinyyama/simcard-market/internal/repository"
	"github.com/shinyyama/simcard-market/internal/settings"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ReloadAfter is how long clients wait before refetching auction state after
// a bid. The new highest bid is never predicted client-side.
const ReloadAfter = 1500 * time.Millisecond

// Settings is the read side of settings.Service.
type Settings interface {
	Get(ctx context.Context, key, def string) string
	GetNumber(ctx context.Context, key string, def float64) float64
	GetBoolean(ctx context.Context, key string, def bool) bool
}

type GuaranteeCheck struct {
	HasBalance     bool  `json:"hasBalance"`
	RequiredAmount int64 `json:"requiredAmount"`
	CurrentBalance int64 `json:"currentBalance"`
	// AlreadyBlocked is set when the user's deposit for this auction is held.
	AlreadyBlocked bool `json:"alreadyBlocked"`
}

func (c *GuaranteeCheck) Shortfall() int64 {
	if c.HasBalance {
		return 0
	}
	return c.RequiredAmount - c.CurrentBalance
}

type PlaceBidInput struct {
	SimID          uint64
	UserID         string
	Amount         int64
	IdempotencyKey string
}

type BidResult struct {
	Bid         *model.Bid
	Replayed    bool
	ReloadAfter time.Duration
}

type AuctionService interface {
	CheckGuaranteeDepositBalance(ctx context.Context, userID string, auctionID uint64, basePrice int64, simID uint64) (*GuaranteeCheck, error)
	PlaceBid(ctx context.Context, in PlaceBidInput) (*BidResult, error)
	ListBids(ctx context.Context, simID uint64, limit int) ([]model.Bid, error)
}

type auctionService struct {
	sims     repository.SimCardRepository
	auctions repository.AuctionRepository
	users    repository.UserRepository
	settings Settings
	notifier NotificationService
	events   events.Publisher
	now      func() time.Time
}

func NewAuctionService(
	sims repository.SimCardRepository,
	auctions repository.AuctionRepository,
	users repository.UserRepository,
	st Settings,
	notifier NotificationService,
	pub events.Publisher,
) AuctionService {
	return &auctionService{
		sims:     sims,
		auctions: auctions,
		users:    users,
		settings: st,
		notifier: notifier,
		events:   pub,
		now:      time.Now,
	}
}

func guaranteeAmount(ctx context.Context, st Settings, basePrice int64) int64 {
	rate := st.GetNumber(ctx, settings.KeyAuctionGuaranteeRate, settings.DefaultAuctionGuaranteeRate)
	if rate <= 0 {
		return 0
	}
	return int64(math.Ceil(float64(basePrice) * rate / 100))
}

func (s *auctionService) CheckGuaranteeDepositBalance(ctx context.Context, userID string, auctionID uint64, basePrice int64, simID uint64) (*GuaranteeCheck, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	check := &GuaranteeCheck{CurrentBalance: u.AvailableBalance()}

	p, err := s.auctions.FindParticipant(ctx, auctionID, userID)
	switch {
	case err == nil && p.GuaranteeDepositBlocked && p.GuaranteeDepositAmount > 0:
		check.HasBalance = true
		check.AlreadyBlocked = true
		return check, nil
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	check.RequiredAmount = guaranteeAmount(ctx, s.settings, basePrice)
	check.HasBalance = check.CurrentBalance >= check.RequiredAmount
	log.WithFields(log.Fields{
		"user_id":    userID,
		"auction_id": auctionID,
		"sim_id":     simID,
		"required":   check.RequiredAmount,
		"available":  check.CurrentBalance,
	}).Debug("guarantee deposit check")
	return check, nil
}

func (s *auctionService) PlaceBid(ctx context.Context, in PlaceBidInput) (*BidResult, error) {
	if in.UserID == "" {
		return nil, errors.New("user is required")
	}
	key := strings.TrimSpace(in.IdempotencyKey)
	if key != "" {
		if res, err := s.replay(ctx, key, in.UserID); res != nil || err != nil {
			return res, err
		}
	}

	if _, err := s.users.FindByID(ctx, in.UserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	sim, err := s.sims.FindByID(ctx, in.SimID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if sim.SellerID == in.UserID {
		return nil, ErrSelfBid
	}
	if in.Amount <= 0 {
		return nil, ErrInvalidBidAmount
	}
	if sim.Type != model.SimTypeAuction {
		return nil, ErrNotAuction
	}
	detail, err := s.auctions.FindDetailBySim(ctx, sim.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.WithField("sim_id", sim.ID).Error("auction sim has no auction detail row")
			return nil, ErrAuctionDetailMissing
		}
		return nil, err
	}
	if sim.Status == model.SimStatusSold || detail.Ended(s.now()) {
		return nil, ErrAuctionEnded
	}
	if in.Amount <= detail.CurrentBid || in.Amount < detail.BasePrice {
		return nil, ErrBidTooLow
	}

	check, err := s.CheckGuaranteeDepositBalance(ctx, in.UserID, detail.ID, detail.BasePrice, sim.ID)
	if err != nil {
		return nil, err
	}
	if !check.HasBalance {
		return nil, &InsufficientBalanceError{Required: check.RequiredAmount, Current: check.CurrentBalance}
	}

	params := repository.PlaceBidParams{
		AuctionID:     detail.ID,
		SimCardID:     sim.ID,
		UserID:        in.UserID,
		Amount:        in.Amount,
		DepositAmount: check.RequiredAmount,
	}
	if key != "" {
		params.IdempotencyKey = &key
	}
	bid, err := s.auctions.PlaceBid(ctx, params)
	switch {
	case errors.Is(err, repository.ErrStaleBid):
		return nil, ErrBidTooLow
	case errors.Is(err, repository.ErrInsufficientFunds):
		return nil, &InsufficientBalanceError{Required: check.RequiredAmount, Current: check.CurrentBalance}
	case errors.Is(err, gorm.ErrDuplicatedKey) && key != "":
		// the same key was committed by a concurrent request
		if res, rerr := s.replay(ctx, key, in.UserID); res != nil || rerr != nil {
			return res, rerr
		}
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("place bid: %w", err)
	}

	log.WithFields(log.Fields{
		"sim_id":     sim.ID,
		"auction_id": detail.ID,
		"user_id":    in.UserID,
		"amount":     in.Amount,
		"deposit":    check.RequiredAmount,
	}).Info("bid placed")

	if prev := detail.HighestBidderID; prev != nil && *prev != in.UserID {
		s.notifier.Notify(ctx, *prev, NotifyOutbid, "You were outbid",
			fmt.Sprintf("A higher bid was placed on %s.", sim.Number), uint64Ptr(sim.ID), nil)
	}
	s.events.Publish(events.SubjectBidPlaced, events.BidPlaced{
		SimCardID: sim.ID,
		AuctionID: detail.ID,
		UserID:    in.UserID,
		Amount:    in.Amount,
	})
	return &BidResult{Bid: bid, ReloadAfter: ReloadAfter}, nil
}

// replay returns the bid already stored under key, or nil when there is none.
func (s *auctionService) replay(ctx context.Context, key, userID string) (*BidResult, error) {
	b, err := s.auctions.FindBidByIdempotencyKey(ctx, key)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if b.UserID != userID {
		return nil, ErrForbidden
	}
	return &BidResult{Bid: b, Replayed: true, ReloadAfter: ReloadAfter}, nil
}

func (s *auctionService) ListBids(ctx context.Context, simID uint64, limit int) ([]model.Bid, error) {
	detail, err := s.auctions.FindDetailBySim(ctx, simID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s.auctions.ListBids(ctx, detail.ID, limit)
}
