package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shinyyama/simcard-market/internal/config"
	"github.com/shinyyama/simcard-market/internal/db"
	"github.com/shinyyama/simcard-market/internal/settings"
	log "github.com/sirupsen/logrus"
)

type seedSetting struct {
	Key      string
	Value    string
	Type     string
	Category string
}

type seedUser struct {
	ID      string
	Name    string
	Role    string
	Balance int64
}

type seedSim struct {
	Number    string
	Carrier   string
	Price     int64
	Type      string
	IsActive  bool
	SellerID  string
	BasePrice int64
	EndsIn    time.Duration
}

var defaultSettings = []seedSetting{
	{settings.KeyCommissionRate, "5", "number", "finance"},
	{settings.KeyAuctionGuaranteeRate, "5", "number", "auction"},
	{settings.KeyAuctionPaymentDeadlineHours, "48", "number", "auction"},
	{settings.KeyAuctionTopWinnersCount, "3", "number", "auction"},
	{settings.KeyBuyerCanReceiveActivationCode, "true", "boolean", "delivery"},
}

var demoUsers = []seedUser{
	{ID: "admin-1", Name: "Admin", Role: "admin"},
	{ID: "seller-1", Name: "Reza Seller", Role: "seller"},
	{ID: "buyer-1", Name: "Sara Buyer", Role: "buyer", Balance: 50_000_000},
	{ID: "buyer-2", Name: "Ali Buyer", Role: "buyer", Balance: 20_000_000},
}

var demoSims = []seedSim{
	{Number: "09121111111", Carrier: "hamrah-aval", Price: 15_000_000, Type: "fixed", IsActive: true, SellerID: "seller-1"},
	{Number: "09351234567", Carrier: "irancell", Price: 0, Type: "inquiry", IsActive: false, SellerID: "seller-1"},
	{Number: "09120000000", Carrier: "hamrah-aval", Price: 10_000_000, Type: "auction", IsActive: false, SellerID: "seller-1", BasePrice: 10_000_000, EndsIn: 72 * time.Hour},
	{Number: "09129999999", Carrier: "hamrah-aval", Price: 8_000_000, Type: "auction", IsActive: true, SellerID: "seller-1", BasePrice: 8_000_000, EndsIn: time.Hour},
}

func main() {
	if err := run(); err != nil {
		log.WithError(err).Fatal("seed failed")
	}
}

func run() (err error) {
	ctx := context.Background()
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	gdb, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	if err := db.Migrate(gdb); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return fmt.Errorf("sql db: %w", err)
	}

	tx, err := sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// Settings are always upserted; they are safe to reapply.
	for _, s := range defaultSettings {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO site_settings (setting_key, setting_value, setting_type, category, created_at, updated_at)
			 VALUES (?, ?, ?, ?, NOW(), NOW())
			 ON DUPLICATE KEY UPDATE setting_value = VALUES(setting_value), setting_type = VALUES(setting_type), category = VALUES(category), updated_at = NOW()`,
			s.Key, s.Value, s.Type, s.Category,
		); err != nil {
			return fmt.Errorf("upsert setting %q: %w", s.Key, err)
		}
	}

	canSeed, err := shouldSeed(ctx, tx)
	if err != nil {
		return err
	}
	if !canSeed {
		log.Info("sim cards already exist; seeded settings only (set FORCE_SEED=true to override)")
		return tx.Commit()
	}

	for _, u := range demoUsers {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO users (id, name, role, wallet_balance, blocked_balance, created_at, updated_at)
			 VALUES (?, ?, ?, ?, 0, NOW(), NOW())
			 ON DUPLICATE KEY UPDATE name = VALUES(name), role = VALUES(role)`,
			u.ID, u.Name, u.Role, u.Balance,
		); err != nil {
			return fmt.Errorf("insert user %q: %w", u.ID, err)
		}
	}

	now := time.Now()
	for _, s := range demoSims {
		if err := insertSim(ctx, tx, s, now); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	log.WithFields(log.Fields{"users": len(demoUsers), "sims": len(demoSims)}).Info("seed finished")
	return nil
}

func insertSim(ctx context.Context, tx *sql.Tx, s seedSim, now time.Time) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO sim_cards (number, carrier, price, type, is_active, status, seller_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 'available', ?, NOW(), NOW())`,
		strings.TrimSpace(s.Number), s.Carrier, s.Price, s.Type, s.IsActive, s.SellerID,
	)
	if err != nil {
		return fmt.Errorf("insert sim %q: %w", s.Number, err)
	}
	if s.Type != "auction" {
		return nil
	}
	simID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sim last insert id: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO auction_details (sim_card_id, base_price, end_time, current_bid, created_at, updated_at)
		 VALUES (?, ?, ?, 0, NOW(), NOW())`,
		simID, s.BasePrice, now.Add(s.EndsIn).UTC(),
	); err != nil {
		return fmt.Errorf("insert auction for %q: %w", s.Number, err)
	}
	return nil
}

func shouldSeed(ctx context.Context, tx *sql.Tx) (bool, error) {
	var cnt int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM sim_cards`).Scan(&cnt); err != nil {
		return false, fmt.Errorf("count sim cards: %w", err)
	}
	if cnt == 0 {
		return true, nil
	}
	if !strings.EqualFold(os.Getenv("FORCE_SEED"), "true") {
		return false, nil
	}
	for _, table := range []string{"auction_details", "sim_cards"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return false, fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return true, nil
}
