package main

import (
	"fmt"
	"time"

	"checkout-service/config"
	"checkout-service/internal/api"
	"checkout-service/internal/broker"
	"checkout-service/internal/gateway"
	"checkout-service/internal/redisclient"
	"checkout-service/internal/service"
	"checkout-service/internal/store"
	"checkout-service/internal/util"
	"checkout-service/internal/worker"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func paymentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "payments",
		Short: "Run the payment service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPayments()
		},
	}
}

func runPayments() error {
	cfg, cleanup, err := bootstrap(config.ServicePayments)
	if err != nil {
		return err
	}
	defer cleanup()

	logger := util.GetLogger()
	logger.Info("Starting payment service")

	ctx, stop := signalContext()
	defer stop()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(ctx, config.ServicePayments); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	logger.Info("Database connected")

	checks := map[string]api.ReadinessCheck{"database": db.Ping}

	// Without Redis the payments table's unique order_id still rejects duplicates.
	var locker service.Locker
	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Warn("Redis unavailable, per-order locking disabled", zap.Error(err))
	} else {
		defer redisClient.Close()
		locker = redisClient
		checks["redis"] = redisClient.Ping
		logger.Info("Redis connected")
	}

	if !cfg.Gateway.Configured() {
		logger.Warn("Razorpay credentials missing, gateway operations will fail")
	}
	razorpay := gateway.NewRazorpayClient(cfg.Gateway)
	processor := gateway.NewSimulatedProcessor(cfg.Gateway.SuccessRate, time.Now().UnixNano())
	paymentService := service.NewPaymentService(db, locker, razorpay, processor, cfg.Gateway, cfg.Redis.LockTTL)

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicPaymentStatus)
	defer producer.Close()
	dispatcher := worker.NewOutboxDispatcher(db, broker.NewEventPublisher(producer), cfg.Outbox.Interval, cfg.Outbox.BatchSize)
	go dispatcher.Start(ctx)

	router := api.NewRouter(checks)
	api.NewPaymentHandler(paymentService).SetupRoutes(router)

	err = serve(ctx, cfg.Server.Port, router)
	logger.Info("Payment service exited")
	return err
}
