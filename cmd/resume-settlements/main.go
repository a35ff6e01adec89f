// Command resume-settlements finishes auction settlements that stopped
// partway. It is meant to run from cron.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/shinyyama/simcard-market/internal/config"
	"github.com/shinyyama/simcard-market/internal/db"
	"github.com/shinyyama/simcard-market/internal/events"
	"github.com/shinyyama/simcard-market/internal/repository"
	"github.com/shinyyama/simcard-market/internal/service"
	"github.com/shinyyama/simcard-market/internal/settings"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		limit   int
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "resume-settlements",
		Short: "Finish auction settlements that stopped partway",
		Args:  cobra.NoArgs,
		// runtime failures are not usage errors
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(limit, timeout)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum settlements to resume")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "overall deadline")
	return cmd
}

func run(limit int, timeout time.Duration) error {
	if limit <= 0 {
		return fmt.Errorf("--limit must be positive, got %d", limit)
	}
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config load: %w", err)
	}
	config.Logging("simcard-market-resume", cfg.LogLevel)

	gdb, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}

	var pub events.Publisher = events.Nop{}
	if cfg.NatsURL != "" {
		if nc, err := events.Connect(cfg.NatsURL, cfg.NatsToken); err != nil {
			log.WithError(err).Warn("nats connect failed; events disabled")
		} else {
			defer nc.Close()
			pub = nc
		}
	}

	users := repository.NewUserRepository(gdb)
	notifier := service.NewNotificationService(repository.NewNotificationRepository(gdb))
	svc := service.NewSettlementService(service.SettlementDeps{
		Sims:        repository.NewSimCardRepository(gdb),
		Auctions:    repository.NewAuctionRepository(gdb),
		Orders:      repository.NewPurchaseOrderRepository(gdb),
		Users:       users,
		Settlements: repository.NewSettlementRepository(gdb),
		Activations: service.NewActivationService(repository.NewActivationRequestRepository(gdb), notifier),
		Settings:    settings.New(repository.NewSiteSettingRepository(gdb)),
		Notifier:    notifier,
		Events:      pub,
	})

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	n, err := svc.ResumeAll(ctx, limit)
	entry := log.WithField("resumed", n)
	if err != nil {
		entry.WithError(err).Error("some settlements are still pending")
		return err
	}
	entry.Info("resume finished")
	return nil
}
