package server

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/shinyyama/simcard-market/internal/config"
	"github.com/shinyyama/simcard-market/internal/events"
	"github.com/shinyyama/simcard-market/internal/gateway"
	"github.com/shinyyama/simcard-market/internal/handler"
	appmw "github.com/shinyyama/simcard-market/internal/middleware"
	"github.com/shinyyama/simcard-market/internal/repository"
	"github.com/shinyyama/simcard-market/internal/service"
	"github.com/shinyyama/simcard-market/internal/settings"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type dbSetter interface {
	SetDB(db *gorm.DB)
}

type Server struct {
	e        *echo.Echo
	repos    []dbSetter
	settings *settings.Service
}

// New builds the API. db may be nil; repositories answer ErrDBNotReady until
// SetDB is called.
func New(cfg *config.Config, db *gorm.DB, pub events.Publisher, sha, buildTime string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "Authorization", appmw.DevUserHeader, "Idempotency-Key"},
		AllowCredentials: true,
		AllowOriginFunc: func(origin string) (bool, error) {
			low := strings.ToLower(origin)
			if strings.HasPrefix(low, "http://localhost:") || strings.HasPrefix(low, "http://127.0.0.1:") ||
				strings.HasPrefix(low, "https://localhost:") || strings.HasPrefix(low, "https://127.0.0.1:") {
				return true, nil
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false, nil
			}
			if u.Scheme != "http" && u.Scheme != "https" {
				return false, nil
			}
			host := u.Hostname()
			if strings.HasSuffix(host, "vercel.app") {
				return true, nil
			}
			return false, nil
		},
	}))
	if pub == nil {
		pub = events.Nop{}
	}

	userRepo := repository.NewUserRepository(db)
	simRepo := repository.NewSimCardRepository(db)
	auctionRepo := repository.NewAuctionRepository(db)
	orderRepo := repository.NewPurchaseOrderRepository(db)
	activationRepo := repository.NewActivationRequestRepository(db)
	settingRepo := repository.NewSiteSettingRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	txRepo := repository.NewTransactionRepository(db)
	receiptRepo := repository.NewPaymentReceiptRepository(db)
	settlementRepo := repository.NewSettlementRepository(db)

	st := settings.New(settingRepo)
	notifySvc := service.NewNotificationService(notificationRepo)
	simSvc := service.NewSimService(simRepo)
	walletSvc := service.NewWalletService(userRepo, txRepo)
	auctionSvc := service.NewAuctionService(simRepo, auctionRepo, userRepo, st, notifySvc, pub)
	activationSvc := service.NewActivationService(activationRepo, notifySvc)
	orderSvc := service.NewPurchaseOrderService(orderRepo)
	settlementSvc := service.NewSettlementService(service.SettlementDeps{
		Sims:        simRepo,
		Auctions:    auctionRepo,
		Orders:      orderRepo,
		Users:       userRepo,
		Settlements: settlementRepo,
		Activations: activationSvc,
		Settings:    st,
		Notifier:    notifySvc,
		Events:      pub,
	})
	gatewayClient := gateway.NewHTTPClient()
	paymentSvc := service.NewPaymentService(
		receiptRepo,
		userRepo,
		gateway.NewZarinPal(cfg.ZarinPal, gatewayClient),
		gateway.NewZibal(cfg.Zibal, gatewayClient),
		service.PaymentCallbacks{ZarinPal: cfg.ZarinPal.CallbackURL, Zibal: cfg.Zibal.CallbackURL},
		notifySvc,
		pub,
	)

	authMw, err := appmw.NewAuthMiddleware(context.Background(), cfg.FirebaseProjectID)
	if err != nil {
		log.WithError(err).Fatal("failed to init firebase auth")
	}

	simHandler := handler.NewSimHandler(simSvc)
	auctionHandler := handler.NewAuctionHandler(auctionSvc, settlementSvc)
	paymentHandler := handler.NewPaymentHandler(paymentSvc)
	orderHandler := handler.NewPurchaseOrderHandler(orderSvc, activationSvc, notifySvc)
	walletHandler := handler.NewWalletHandler(walletSvc)
	notificationHandler := handler.NewNotificationHandler(notifySvc)
	settingsHandler := handler.NewSettingsHandler(st, userRepo)
	userHandler := handler.NewUserHandler(userRepo, authMw.Client())

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"ok":         "true",
			"git_sha":    sha,
			"build_time": buildTime,
		})
	})

	api := e.Group("/api")
	auth := authMw.RequireAuth

	api.GET("/sims", simHandler.List)
	api.GET("/sims/:id", simHandler.Get)
	api.GET("/sims/:id/auction", auctionHandler.View, authMw.OptionalAuth)
	api.GET("/sims/:id/bids", auctionHandler.ListBids)
	api.GET("/sims/:id/guarantee-check", auctionHandler.GuaranteeCheck, auth)
	api.POST("/sims/:id/bids", auctionHandler.PlaceBid, auth)
	api.POST("/sims/:id/settle", auctionHandler.Settle, auth)
	api.POST("/sims/:id/delivery", auctionHandler.SubmitDelivery, auth)
	api.GET("/delivery-options", auctionHandler.DeliveryOptions)

	// Gateways redirect the browser here without our credentials.
	api.GET("/payments/zarinpal/callback", paymentHandler.ZarinPalCallback)
	api.GET("/payments/zibal/callback", paymentHandler.ZibalCallback)
	api.POST("/wallet/topup", paymentHandler.TopUp, auth)

	api.GET("/me", userHandler.GetMe, auth)
	api.PUT("/me", userHandler.UpdateMe, auth)
	api.GET("/me/wallet", walletHandler.Get, auth)
	api.GET("/me/transactions", walletHandler.Transactions, auth)
	api.GET("/me/purchase-orders", orderHandler.ListMine, auth)
	api.GET("/purchase-orders/:id", orderHandler.Get, auth)
	api.GET("/notifications", notificationHandler.List, auth)
	api.POST("/notifications/read", notificationHandler.MarkAllRead, auth)
	api.GET("/users/:uid/public", userHandler.GetPublic)

	admin := api.Group("/admin", auth, settingsHandler.RequireAdmin)
	admin.GET("/settings", settingsHandler.List)
	admin.PUT("/settings/:key", settingsHandler.Set)
	admin.POST("/settlements/:id/resume", auctionHandler.Resume)

	return &Server{
		e: e,
		repos: []dbSetter{
			userRepo, simRepo, auctionRepo, orderRepo, activationRepo,
			settingRepo, notificationRepo, txRepo, receiptRepo, settlementRepo,
		},
		settings: st,
	}
}

func (s *Server) Start(addr string) error {
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}

// SetDB injects the connection into every repository and drops any settings
// snapshot taken while the database was unavailable.
func (s *Server) SetDB(db *gorm.DB) {
	for _, r := range s.repos {
		r.SetDB(db)
	}
	s.settings.Invalidate()
}
