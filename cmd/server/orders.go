package main

import (
	"fmt"

	"checkout-service/config"
	"checkout-service/internal/api"
	"checkout-service/internal/broker"
	"checkout-service/internal/paymentclient"
	"checkout-service/internal/realtime"
	"checkout-service/internal/service"
	"checkout-service/internal/store"
	"checkout-service/internal/util"
	"checkout-service/internal/worker"

	"github.com/bwmarrin/snowflake"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func ordersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "orders",
		Short: "Run the order service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrders()
		},
	}
}

func runOrders() error {
	cfg, cleanup, err := bootstrap(config.ServiceOrders)
	if err != nil {
		return err
	}
	defer cleanup()

	logger := util.GetLogger()
	logger.Info("Starting order service")

	ctx, stop := signalContext()
	defer stop()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(ctx, config.ServiceOrders); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	logger.Info("Database connected")

	node, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		return fmt.Errorf("invalid node id %d: %w", cfg.NodeID, err)
	}

	hub := realtime.NewHub()
	go hub.Run(ctx)

	payments := paymentclient.New(cfg.Payments)
	orderService := service.NewOrderService(db, payments, hub, node)
	subscriber := service.NewStatusSubscriber(db, orderService)

	consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicPaymentStatus, cfg.Kafka.ConsumerGroup)
	statusWorker := worker.NewPaymentStatusWorker(consumer, subscriber)
	defer func() {
		if err := statusWorker.Stop(); err != nil {
			logger.Warn("Error stopping payment status worker", zap.Error(err))
		}
	}()
	go func() {
		if err := statusWorker.Start(ctx); err != nil && ctx.Err() == nil {
			logger.Error("Payment status worker error", zap.Error(err))
		}
	}()

	router := api.NewRouter(map[string]api.ReadinessCheck{
		"database": db.Ping,
	})
	ws := realtime.NewHandler(hub, orderService)
	api.NewOrderHandler(orderService, ws.ServeWS).SetupRoutes(router)

	err = serve(ctx, cfg.Server.Port, router)
	logger.Info("Order service exited")
	return err
}
