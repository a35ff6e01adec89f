package main

import (
	"github.com/joho/godotenv"
	"github.com/shinyyama/simcard-market/internal/config"
	"github.com/shinyyama/simcard-market/internal/db"
	"github.com/shinyyama/simcard-market/internal/events"
	"github.com/shinyyama/simcard-market/internal/server"
	log "github.com/sirupsen/logrus"
)

var (
	gitSHA    = "dev"
	buildTime = ""
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("config load error")
	}
	config.Logging("simcard-market-api", cfg.LogLevel)

	var pub events.Publisher = events.Nop{}
	if cfg.NatsURL != "" {
		nc, err := events.Connect(cfg.NatsURL, cfg.NatsToken)
		if err != nil {
			log.WithError(err).Warn("nats connect failed; events disabled")
		} else {
			defer nc.Close()
			pub = nc
		}
	}

	srv := server.New(cfg, nil, pub, gitSHA, buildTime)
	addr := ":" + cfg.Port

	errCh := make(chan error, 1)

	go func() {
		log.WithField("addr", addr).Info("starting server")
		errCh <- srv.Start(addr)
	}()

	go func() {
		conn, err := db.Connect(cfg)
		if err != nil {
			log.WithError(err).Error("db connect error")
			return
		}
		srv.SetDB(conn)
		if err := db.Migrate(conn); err != nil {
			log.WithError(err).Error("auto migrate error")
			return
		}
		log.Info("database ready")
	}()

	if err := <-errCh; err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}
