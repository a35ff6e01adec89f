// Package settings is a read-through cache over the site_settings table.
//
// A single Service is created per process and injected into every consumer.
// It keeps one snapshot of all settings; reads within the TTL of the snapshot
// never reach the store, and Invalidate makes the next read refetch.
package settings

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shinyyama/simcard-market/internal/model"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const CacheTTL = 60 * time.Second

const (
	KeyCommissionRate                = "commission_rate"
	KeyAuctionGuaranteeRate          = "auction_guarantee_rate"
	KeyAuctionPaymentDeadlineHours   = "auction_payment_deadline_hours"
	KeyAuctionTopWinnersCount        = "auction_top_winners_count"
	KeyBuyerCanReceiveActivationCode = "buyer_can_receive_activation_code"
)

// Defaults used when a key is missing from the table.
const (
	DefaultCommissionRate       = 5.0
	DefaultAuctionGuaranteeRate = 5.0
)

type Store interface {
	All(ctx context.Context) ([]model.SiteSetting, error)
	Upsert(ctx context.Context, s *model.SiteSetting) error
}

type Service struct {
	store Store
	ttl   time.Duration
	now   func() time.Time

	mu        sync.RWMutex
	values    map[string]string
	fetchedAt time.Time
	gen       uint64

	group singleflight.Group
}

type Option func(*Service)

func WithTTL(ttl time.Duration) Option {
	return func(s *Service) { s.ttl = ttl }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store, ttl: CacheTTL, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Get(ctx context.Context, key, def string) string {
	if v, ok := s.snapshot(ctx)[key]; ok {
		return v
	}
	return def
}

func (s *Service) GetNumber(ctx context.Context, key string, def float64) float64 {
	v, ok := s.snapshot(ctx)[key]
	if !ok {
		return def
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		log.WithFields(log.Fields{"key": key, "value": v}).Warn("setting is not a number; using default")
		return def
	}
	return n
}

func (s *Service) GetBoolean(ctx context.Context, key string, def bool) bool {
	v, ok := s.snapshot(ctx)[key]
	if !ok {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off", "":
		return false
	}
	return def
}

// All returns a copy of every cached setting.
func (s *Service) All(ctx context.Context) map[string]string {
	src := s.snapshot(ctx)
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// Set writes one setting and invalidates the cache.
func (s *Service) Set(ctx context.Context, key, value, settingType, category string) error {
	if settingType == "" {
		settingType = "string"
	}
	err := s.store.Upsert(ctx, &model.SiteSetting{
		SettingKey:   key,
		SettingValue: value,
		SettingType:  settingType,
		Category:     category,
	})
	if err != nil {
		return err
	}
	s.Invalidate()
	return nil
}

// Invalidate is global; there is no per-key invalidation.
func (s *Service) Invalidate() {
	s.mu.Lock()
	s.fetchedAt = time.Time{}
	s.gen++
	s.mu.Unlock()
	s.group.Forget("all")
}

func (s *Service) snapshot(ctx context.Context) map[string]string {
	s.mu.RLock()
	if s.values != nil && !s.fetchedAt.IsZero() && s.now().Sub(s.fetchedAt) < s.ttl {
		v := s.values
		s.mu.RUnlock()
		return v
	}
	stale, gen := s.values, s.gen
	s.mu.RUnlock()

	v, err, _ := s.group.Do("all", func() (interface{}, error) {
		return s.refresh(ctx, gen)
	})
	if err != nil {
		log.WithError(err).Warn("settings refresh failed; serving previous snapshot")
		return stale
	}
	return v.(map[string]string)
}

func (s *Service) refresh(ctx context.Context, gen uint64) (map[string]string, error) {
	rows, err := s.store.All(ctx)
	if err != nil {
		return nil, err
	}
	values := make(map[string]string, len(rows))
	for _, row := range rows {
		values[row.SettingKey] = row.SettingValue
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = values
	// An Invalidate during the fetch leaves the snapshot expired.
	if s.gen == gen {
		s.fetchedAt = s.now()
	}
	return values, nil
}
