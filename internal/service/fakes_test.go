package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shinyyama/simcard-market/internal/gateway"
	"github.com/shinyyama/simcard-market/internal/model"
	"github.com/shinyyama/simcard-market/internal/repository"
	"github.com/shinyyama/simcard-market/internal/settings"
	"gorm.io/gorm"
)

var errMockStorage = errors.New("mock storage error")

// memStore backs every in-memory repository. Methods that are transactions
// in the gorm implementation validate first and mutate only on success.
type memStore struct {
	mu     sync.Mutex
	nextID uint64

	users         map[string]*model.User
	sims          map[uint64]*model.SimCard
	details       map[uint64]*model.AuctionDetail
	participants  []*model.AuctionParticipant
	deposits      []*model.GuaranteeDeposit
	bids          []*model.Bid
	orders        []*model.PurchaseOrder
	activations   []*model.ActivationRequest
	txs           []model.Transaction
	receipts      map[string]*model.PaymentReceipt
	settlements   []*model.AuctionSettlement
	notifications []model.Notification

	participantLookups int
	completeCalls      int
	releaseErr         map[string]error
	activationErr      error
}

func newMemStore() *memStore {
	return &memStore{
		users:      map[string]*model.User{},
		sims:       map[uint64]*model.SimCard{},
		details:    map[uint64]*model.AuctionDetail{},
		receipts:   map[string]*model.PaymentReceipt{},
		releaseErr: map[string]error{},
	}
}

func (m *memStore) id() uint64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) addUser(id string, role model.UserRole, wallet, blocked int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id] = &model.User{ID: id, Name: "name-" + id, Role: role, WalletBalance: wallet, BlockedBalance: blocked}
}

func (m *memStore) addAuctionSim(sellerID, number string, active bool, basePrice int64, end time.Time) (uint64, uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sim := &model.SimCard{
		ID:       m.id(),
		Number:   number,
		Carrier:  "MCI",
		Price:    basePrice,
		Type:     model.SimTypeAuction,
		IsActive: active,
		Status:   model.SimStatusAvailable,
		SellerID: sellerID,
	}
	m.sims[sim.ID] = sim
	d := &model.AuctionDetail{ID: m.id(), SimCardID: sim.ID, BasePrice: basePrice, EndTime: end}
	m.details[d.ID] = d
	return sim.ID, d.ID
}

// addParticipant records a user whose guarantee is blocked, with the
// matching blocked balance on the user.
func (m *memStore) addParticipant(auctionID uint64, userID string, amount int64, blocked bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	status := model.DepositStatusReleased
	if blocked {
		status = model.DepositStatusBlocked
		m.users[userID].BlockedBalance += amount
	}
	m.participants = append(m.participants, &model.AuctionParticipant{
		ID:                      m.id(),
		AuctionID:               auctionID,
		UserID:                  userID,
		GuaranteeDepositAmount:  amount,
		GuaranteeDepositBlocked: blocked,
	})
	m.deposits = append(m.deposits, &model.GuaranteeDeposit{
		ID:        m.id(),
		UserID:    userID,
		AuctionID: auctionID,
		Amount:    amount,
		Status:    status,
	})
}

func (m *memStore) setHighest(auctionID uint64, userID string, amount int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.details[auctionID]
	d.CurrentBid = amount
	d.HighestBidderID = &userID
}

func (m *memStore) user(id string) model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.users[id]
}

func (m *memStore) detail(id uint64) model.AuctionDetail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.details[id]
}

func (m *memStore) txCount(userID string, typ model.TransactionType) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, tx := range m.txs {
		if tx.UserID == userID && tx.Type == typ {
			n++
		}
	}
	return n
}

func (m *memStore) depositStatus(auctionID uint64, userID string) model.DepositStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.deposits {
		if d.AuctionID == auctionID && d.UserID == userID {
			return d.Status
		}
	}
	return ""
}

func (m *memStore) settlementFor(auctionID uint64) *model.AuctionSettlement {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.settlements {
		if s.AuctionID == auctionID {
			cp := *s
			return &cp
		}
	}
	return nil
}

func (m *memStore) counts() (bids, orders, activations int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bids), len(m.orders), len(m.activations)
}

// releaseLocked mirrors releaseDepositTx. Callers hold m.mu.
func (m *memStore) releaseLocked(auctionID uint64, userID, reason string) int64 {
	var part *model.AuctionParticipant
	for _, p := range m.participants {
		if p.AuctionID == auctionID && p.UserID == userID {
			part = p
		}
	}
	if part == nil || !part.GuaranteeDepositBlocked || part.GuaranteeDepositAmount <= 0 {
		return 0
	}
	u := m.users[userID]
	u.BlockedBalance -= part.GuaranteeDepositAmount
	if u.BlockedBalance < 0 {
		u.BlockedBalance = 0
	}
	for _, d := range m.deposits {
		if d.AuctionID == auctionID && d.UserID == userID && d.Status == model.DepositStatusBlocked {
			d.Status = model.DepositStatusReleased
			d.Reason = reason
		}
	}
	part.GuaranteeDepositBlocked = false
	return part.GuaranteeDepositAmount
}

type memUsers struct{ m *memStore }

func (r memUsers) FindByID(_ context.Context, id string) (*model.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

func (r memUsers) Upsert(_ context.Context, u *model.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	cp := *u
	r.m.users[u.ID] = &cp
	return nil
}

func (memUsers) SetDB(*gorm.DB) {}

type memSims struct{ m *memStore }

func (r memSims) FindByID(_ context.Context, id uint64) (*model.SimCard, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.sims[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *s
	return &cp, nil
}

func (r memSims) List(_ context.Context, simType model.SimType, limit, offset int) ([]model.SimCard, int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []model.SimCard
	for _, s := range r.m.sims {
		if s.Status == model.SimStatusAvailable && (simType == "" || s.Type == simType) {
			out = append(out, *s)
		}
	}
	return out, int64(len(out)), nil
}

func (memSims) SetDB(*gorm.DB) {}

type memAuctions struct{ m *memStore }

func (r memAuctions) FindDetailBySim(_ context.Context, simID uint64) (*model.AuctionDetail, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, d := range r.m.details {
		if d.SimCardID == simID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r memAuctions) FindParticipant(_ context.Context, auctionID uint64, userID string) (*model.AuctionParticipant, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.participantLookups++
	for _, p := range r.m.participants {
		if p.AuctionID == auctionID && p.UserID == userID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r memAuctions) ListParticipants(_ context.Context, auctionID uint64) ([]model.AuctionParticipant, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []model.AuctionParticipant
	for _, p := range r.m.participants {
		if p.AuctionID == auctionID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r memAuctions) FindBidByIdempotencyKey(_ context.Context, key string) (*model.Bid, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, b := range r.m.bids {
		if b.IdempotencyKey != nil && *b.IdempotencyKey == key {
			cp := *b
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r memAuctions) ListBids(_ context.Context, auctionID uint64, limit int) ([]model.Bid, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []model.Bid
	for _, b := range r.m.bids {
		if b.AuctionID == auctionID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (r memAuctions) PlaceBid(_ context.Context, p repository.PlaceBidParams) (*model.Bid, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	d := r.m.details[p.AuctionID]
	if d == nil || d.CurrentBid >= p.Amount {
		return nil, repository.ErrStaleBid
	}
	if p.IdempotencyKey != nil {
		for _, b := range r.m.bids {
			if b.IdempotencyKey != nil && *b.IdempotencyKey == *p.IdempotencyKey {
				return nil, gorm.ErrDuplicatedKey
			}
		}
	}
	u := r.m.users[p.UserID]
	if p.DepositAmount > 0 && u.AvailableBalance() < p.DepositAmount {
		return nil, repository.ErrInsufficientFunds
	}

	d.CurrentBid = p.Amount
	uid := p.UserID
	d.HighestBidderID = &uid
	bid := &model.Bid{
		ID:             r.m.id(),
		AuctionID:      p.AuctionID,
		SimCardID:      p.SimCardID,
		UserID:         p.UserID,
		Amount:         p.Amount,
		IdempotencyKey: p.IdempotencyKey,
	}
	r.m.bids = append(r.m.bids, bid)
	if p.DepositAmount > 0 {
		u.BlockedBalance += p.DepositAmount
		r.m.participants = append(r.m.participants, &model.AuctionParticipant{
			ID:                      r.m.id(),
			AuctionID:               p.AuctionID,
			UserID:                  p.UserID,
			GuaranteeDepositAmount:  p.DepositAmount,
			GuaranteeDepositBlocked: true,
		})
		r.m.deposits = append(r.m.deposits, &model.GuaranteeDeposit{
			ID:        r.m.id(),
			UserID:    p.UserID,
			AuctionID: p.AuctionID,
			SimCardID: p.SimCardID,
			Amount:    p.DepositAmount,
			Status:    model.DepositStatusBlocked,
		})
		r.m.txs = append(r.m.txs, model.Transaction{UserID: p.UserID, Type: model.TransactionTypeBidDeposit, Amount: p.DepositAmount})
	}
	cp := *bid
	return &cp, nil
}

func (r memAuctions) ReleaseDeposit(_ context.Context, auctionID uint64, userID, reason string) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.releaseErr[userID]; err != nil {
		return false, err
	}
	amount := r.m.releaseLocked(auctionID, userID, reason)
	if amount == 0 {
		return false, nil
	}
	r.m.txs = append(r.m.txs, model.Transaction{UserID: userID, Type: model.TransactionTypeCreditReleased, Amount: amount, Description: reason})
	return true, nil
}

func (memAuctions) SetDB(*gorm.DB) {}

type memOrders struct{ m *memStore }

func (r memOrders) FindByID(_ context.Context, id uint64) (*model.PurchaseOrder, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, o := range r.m.orders {
		if o.ID == id {
			cp := *o
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r memOrders) FindBySim(_ context.Context, simID uint64) (*model.PurchaseOrder, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, o := range r.m.orders {
		if o.SimCardID == simID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r memOrders) list(match func(*model.PurchaseOrder) bool) []model.PurchaseOrder {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []model.PurchaseOrder
	for i := len(r.m.orders) - 1; i >= 0; i-- {
		if match(r.m.orders[i]) {
			out = append(out, *r.m.orders[i])
		}
	}
	return out
}

func (r memOrders) ListByBuyer(_ context.Context, buyerID string) ([]model.PurchaseOrder, error) {
	return r.list(func(o *model.PurchaseOrder) bool { return o.BuyerID == buyerID }), nil
}

func (r memOrders) ListBySeller(_ context.Context, sellerID string) ([]model.PurchaseOrder, error) {
	return r.list(func(o *model.PurchaseOrder) bool { return o.SellerID == sellerID }), nil
}

func (r memOrders) CompleteForWinner(_ context.Context, p repository.WinnerPurchaseParams) (*model.PurchaseOrder, bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.completeCalls++
	for _, o := range r.m.orders {
		if o.SimCardID == p.SimCardID {
			cp := *o
			if o.BuyerID != p.BuyerID {
				return &cp, false, repository.ErrOrderConflict
			}
			return &cp, false, nil
		}
	}

	u := r.m.users[p.BuyerID]
	var held int64
	for _, part := range r.m.participants {
		if part.AuctionID == p.AuctionID && part.UserID == p.BuyerID && part.GuaranteeDepositBlocked {
			held = part.GuaranteeDepositAmount
		}
	}
	if u.AvailableBalance()+held < p.Price {
		return nil, false, repository.ErrInsufficientFunds
	}

	r.m.releaseLocked(p.AuctionID, p.BuyerID, "auction won")
	u.BlockedBalance += p.Price
	po := &model.PurchaseOrder{
		ID:                   r.m.id(),
		SimCardID:            p.SimCardID,
		BuyerID:              p.BuyerID,
		SellerID:             p.SellerID,
		LineType:             p.LineType,
		Status:               model.PurchaseOrderStatusPending,
		Price:                p.Price,
		CommissionAmount:     p.CommissionAmount,
		SellerReceivedAmount: p.Price - p.CommissionAmount,
		BuyerBlockedAmount:   p.Price,
	}
	r.m.orders = append(r.m.orders, po)
	r.m.txs = append(r.m.txs, model.Transaction{UserID: p.BuyerID, Type: model.TransactionTypePurchaseBlocked, Amount: p.Price})
	r.m.sims[p.SimCardID].Status = model.SimStatusSold
	cp := *po
	return &cp, true, nil
}

func (memOrders) SetDB(*gorm.DB) {}

type memActivations struct{ m *memStore }

func (r memActivations) FindByPurchaseOrder(_ context.Context, purchaseOrderID uint64) (*model.ActivationRequest, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, a := range r.m.activations {
		if a.PurchaseOrderID == purchaseOrderID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r memActivations) Create(_ context.Context, ar *model.ActivationRequest) (*model.ActivationRequest, bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.activationErr != nil {
		return nil, false, r.m.activationErr
	}
	for _, a := range r.m.activations {
		if a.PurchaseOrderID == ar.PurchaseOrderID {
			cp := *a
			return &cp, false, nil
		}
	}
	cp := *ar
	cp.ID = r.m.id()
	r.m.activations = append(r.m.activations, &cp)
	out := cp
	return &out, true, nil
}

func (memActivations) SetDB(*gorm.DB) {}

type memSettlements struct{ m *memStore }

func (r memSettlements) FindOrCreate(_ context.Context, s *model.AuctionSettlement) (*model.AuctionSettlement, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, existing := range r.m.settlements {
		if existing.AuctionID == s.AuctionID {
			cp := *existing
			return &cp, nil
		}
	}
	cp := *s
	cp.ID = r.m.id()
	r.m.settlements = append(r.m.settlements, &cp)
	out := cp
	return &out, nil
}

func (r memSettlements) FindByAuction(_ context.Context, auctionID uint64) (*model.AuctionSettlement, error) {
	if s := r.m.settlementFor(auctionID); s != nil {
		return s, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r memSettlements) ListUnfinished(_ context.Context, limit int) ([]model.AuctionSettlement, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []model.AuctionSettlement
	for _, s := range r.m.settlements {
		if s.Status != model.SettlementStatusCompleted {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r memSettlements) Update(_ context.Context, s *model.AuctionSettlement) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for i, existing := range r.m.settlements {
		if existing.ID == s.ID {
			cp := *s
			r.m.settlements[i] = &cp
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (memSettlements) SetDB(*gorm.DB) {}

type memReceipts struct{ m *memStore }

func (r memReceipts) Create(_ context.Context, receipt *model.PaymentReceipt) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	cp := *receipt
	r.m.receipts[receipt.ID] = &cp
	return nil
}

func (r memReceipts) FindByAuthority(_ context.Context, gw model.Gateway, authority string) (*model.PaymentReceipt, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, rc := range r.m.receipts {
		if rc.Gateway == gw && rc.Authority == authority {
			cp := *rc
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r memReceipts) MarkVerified(_ context.Context, id string, refID string) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	rc, ok := r.m.receipts[id]
	if !ok || rc.Status == model.ReceiptStatusVerified {
		return false, nil
	}
	now := time.Now()
	rc.Status = model.ReceiptStatusVerified
	rc.RefID = &refID
	rc.VerifiedAt = &now
	r.m.users[rc.UserID].WalletBalance += rc.Amount
	r.m.txs = append(r.m.txs, model.Transaction{UserID: rc.UserID, Type: model.TransactionTypeDeposit, Amount: rc.Amount})
	return true, nil
}

func (r memReceipts) MarkFailed(_ context.Context, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if rc, ok := r.m.receipts[id]; ok && rc.Status == model.ReceiptStatusPending {
		rc.Status = model.ReceiptStatusFailed
	}
	return nil
}

func (memReceipts) SetDB(*gorm.DB) {}

type memNotifications struct{ m *memStore }

func (r memNotifications) Create(_ context.Context, n *model.Notification) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.notifications = append(r.m.notifications, *n)
	return nil
}

func (r memNotifications) ListByUser(_ context.Context, userID string, unreadOnly bool, limit int) ([]model.Notification, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []model.Notification
	for _, n := range r.m.notifications {
		if n.UserID == userID && (!unreadOnly || n.ReadAt == nil) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r memNotifications) MarkAllRead(_ context.Context, userID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	now := time.Now()
	for i := range r.m.notifications {
		if r.m.notifications[i].UserID == userID {
			r.m.notifications[i].ReadAt = &now
		}
	}
	return nil
}

func (r memNotifications) MarkByPurchaseOrder(_ context.Context, userID string, purchaseOrderID uint64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	now := time.Now()
	for i, n := range r.m.notifications {
		if n.UserID == userID && n.PurchaseOrderID != nil && *n.PurchaseOrderID == purchaseOrderID {
			r.m.notifications[i].ReadAt = &now
		}
	}
	return nil
}

func (r memNotifications) CountUnread(_ context.Context, userID string) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for _, x := range r.m.notifications {
		if x.UserID == userID && x.ReadAt == nil {
			n++
		}
	}
	return n, nil
}

func (memNotifications) SetDB(*gorm.DB) {}

func (m *memStore) notificationTypes(userID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, n := range m.notifications {
		if n.UserID == userID {
			out = append(out, n.Type)
		}
	}
	return out
}

// settingRows is a settings.Store over fixed rows.
type settingRows struct {
	mu   sync.Mutex
	rows []model.SiteSetting
}

func (s *settingRows) All(context.Context) ([]model.SiteSetting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.SiteSetting(nil), s.rows...), nil
}

func (s *settingRows) Upsert(_ context.Context, row *model.SiteSetting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rows {
		if s.rows[i].SettingKey == row.SettingKey {
			s.rows[i] = *row
			return nil
		}
	}
	s.rows = append(s.rows, *row)
	return nil
}

func newSettings(kv ...string) *settings.Service {
	store := &settingRows{}
	for i := 0; i+1 < len(kv); i += 2 {
		store.rows = append(store.rows, model.SiteSetting{SettingKey: kv[i], SettingValue: kv[i+1]})
	}
	return settings.New(store)
}

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
}

func (p *recordingPublisher) Publish(subject string, _ interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
}

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.subjects...)
}

type fakeZarinPal struct {
	authority   string
	refID       string
	requestErr  error
	verifyErr   error
	verifyCalls int32
	lastAmount  int64
}

func (z *fakeZarinPal) Request(_ context.Context, amount int64, _, _ string) (string, error) {
	z.lastAmount = amount
	if z.requestErr != nil {
		return "", z.requestErr
	}
	return z.authority, nil
}

func (z *fakeZarinPal) StartPayURL(authority string) string {
	return "https://zarinpal.test/StartPay/" + authority
}

func (z *fakeZarinPal) Verify(_ context.Context, _ string, amount int64) (*gateway.ZarinPalVerification, error) {
	atomic.AddInt32(&z.verifyCalls, 1)
	z.lastAmount = amount
	if z.verifyErr != nil {
		return nil, z.verifyErr
	}
	return &gateway.ZarinPalVerification{Code: 100, RefID: z.refID}, nil
}

type fakeZibal struct {
	trackID     string
	amountRial  int64
	delay       time.Duration
	verifyErr   error
	verifyCalls int32
	lastAmount  int64
}

func (z *fakeZibal) Request(_ context.Context, amountRial int64, _, _, _ string) (string, error) {
	z.lastAmount = amountRial
	return z.trackID, nil
}

func (z *fakeZibal) StartPayURL(trackID string) string {
	return "https://zibal.test/start/" + trackID
}

func (z *fakeZibal) Verify(_ context.Context, _ string) (*gateway.ZibalVerification, error) {
	atomic.AddInt32(&z.verifyCalls, 1)
	if z.delay > 0 {
		time.Sleep(z.delay)
	}
	if z.verifyErr != nil {
		return nil, z.verifyErr
	}
	return &gateway.ZibalVerification{Result: 100, AmountRial: z.amountRial, RefNumber: "778899"}, nil
}

// fixture wires every service over one memStore with a fixed clock.
type fixture struct {
	store      *memStore
	pub        *recordingPublisher
	now        time.Time
	auction    *auctionService
	settlement *settlementService
}

func newFixture(st Settings) *fixture {
	if st == nil {
		st = newSettings()
	}
	f := &fixture{
		store: newMemStore(),
		pub:   &recordingPublisher{},
		now:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	notifier := NewNotificationService(memNotifications{f.store})
	clock := func() time.Time { return f.now }

	f.auction = NewAuctionService(memSims{f.store}, memAuctions{f.store}, memUsers{f.store}, st, notifier, f.pub).(*auctionService)
	f.auction.now = clock

	f.settlement = NewSettlementService(SettlementDeps{
		Sims:        memSims{f.store},
		Auctions:    memAuctions{f.store},
		Orders:      memOrders{f.store},
		Users:       memUsers{f.store},
		Settlements: memSettlements{f.store},
		Activations: NewActivationService(memActivations{f.store}, notifier),
		Settings:    st,
		Notifier:    notifier,
		Events:      f.pub,
	}).(*settlementService)
	f.settlement.now = clock
	return f
}
