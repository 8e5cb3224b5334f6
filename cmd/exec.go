package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	pubnub "github.com/pubnub/go/v7"

	"ticket-market/config"
	"ticket-market/internal/handlers"
	"ticket-market/internal/services/gateway"
	"ticket-market/internal/services/gateway/momo"
	"ticket-market/monitoring"
	"ticket-market/security"
	"ticket-market/services"
	"ticket-market/store"
	"ticket-market/utils"

	_ "ticket-market/migrations"
)

func Start() error {
	app := pocketbase.New()

	cfg := config.LoadConfig()

	redisClient, err := utils.NewRedisClient(cfg.RedisURL)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	// PubNub pushes settlement outcomes to buyers waiting on a redirect.
	pnConfig := pubnub.NewConfigWithUserId(pubnub.UserId(cfg.PubNubUUID))
	pnConfig.PublishKey = cfg.PubNubPublishKey
	pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
	pnConfig.SecretKey = cfg.PubNubSecretKey

	pn := pubnub.NewPubNub(pnConfig)

	momoClient := momo.NewClient(&momo.Config{
		PartnerCode: cfg.Momo.PartnerCode,
		AccessKey:   cfg.Momo.AccessKey,
		SecretKey:   cfg.Momo.SecretKey,
		Endpoint:    cfg.Momo.Endpoint,
		ReturnURL:   cfg.Momo.ReturnURL,
		NotifyURL:   cfg.Momo.NotifyURL,
	})

	registry := gateway.NewRegistry(
		gateway.NewCashProcessor(),
		gateway.NewBankTransferProcessor(),
		gateway.NewCreditCardProcessor(),
		gateway.NewWalletProcessor(momoClient),
	)

	var events services.EventPublisher = services.NoopPublisher{}
	if cfg.AMQPURL != "" {
		amqpPublisher, err := services.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return err
		}
		defer amqpPublisher.Close()
		events = amqpPublisher
	}

	ticketStore := store.NewTicketStore(app)
	transactionStore := store.NewTransactionStore(app)
	paymentStore := store.NewPaymentStore(app)
	earningStore := store.NewEarningStore(app)

	earningService := services.NewEarningService(earningStore, cfg.CommissionRate)
	notifier := services.NewPubNubNotifier(pn)

	purchaseService := services.NewPurchaseService(
		ticketStore, transactionStore, paymentStore, earningService,
		registry, notifier, events,
		redisClient, cfg.ReservationTTL,
	)

	reconciliationService := services.NewReconciliationService(momoClient, momoClient, paymentStore, purchaseService)

	sweeper := services.NewReservationSweeper(
		transactionStore, purchaseService, redisClient,
		cfg.ReservationTTL, cfg.SweepInterval,
	)

	purchaseHandler := handlers.NewPurchaseHandler(app, purchaseService, reconciliationService, transactionStore, paymentStore)
	callbackHandler := handlers.NewCallbackHandler(app, reconciliationService)
	earningHandler := handlers.NewEarningHandler(app, earningService, earningStore)
	ticketHandler := handlers.NewTicketHandler(app, ticketStore)

	rateLimiter := security.NewRateLimiter(redisClient, cfg.PurchaseRateLimit)

	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sweeper.Start(ctx)
	go handleShutdown(cancel)

	if cfg.EnableMetrics {
		monitoring.NewMonitor(redisClient)
	}

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		// Ticket endpoints
		e.Router.POST("/api/v1/tickets", ticketHandler.CreateListing)
		e.Router.GET("/api/v1/tickets", ticketHandler.ListAvailable)
		e.Router.GET("/api/v1/tickets/{ticketId}", ticketHandler.GetTicket)
		e.Router.GET("/api/v1/tickets/{ticketId}/preview", purchaseHandler.PreviewPurchase)

		// Purchase endpoints
		e.Router.POST("/api/v1/purchases", rateLimiter.PurchaseRateLimit(purchaseHandler.InitiatePurchase))
		e.Router.GET("/api/v1/purchases", purchaseHandler.ListPurchases)
		e.Router.GET("/api/v1/purchases/{transactionId}", purchaseHandler.GetPurchase)
		e.Router.GET("/api/v1/purchases/{transactionId}/status", purchaseHandler.CheckPurchaseStatus)

		// Payment history
		e.Router.GET("/api/v1/payments", purchaseHandler.ListPayments)

		// Earning endpoints
		e.Router.GET("/api/v1/earnings/summary", earningHandler.GetSummary)
		e.Router.GET("/api/v1/earnings", earningHandler.ListEarnings)
		e.Router.GET("/api/v1/earnings/preview", earningHandler.PreviewEarnings)

		// Gateway callbacks
		e.Router.POST("/api/v1/callbacks/momo", callbackHandler.HandleIPN)
		e.Router.GET("/api/v1/payment/return", callbackHandler.HandleReturn)

		if cfg.EnableMetrics {
			e.Router.GET("/metrics", apis.WrapStdHandler(promhttp.Handler()))
		}

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(503, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(200, map[string]string{"status": "healthy"})
		})

		slog.Info("server routes registered", "port", cfg.Port, "environment", cfg.Environment)

		return e.Next()
	})

	return app.Start()
}

// handleShutdown stops background workers on SIGINT/SIGTERM; PocketBase
// handles its own server shutdown.
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	slog.Info("shutdown signal received, stopping background workers")
	cancel()
}
