package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/peerdeal/order-engine/internal/config"
	"github.com/peerdeal/order-engine/internal/delivery/http/handlers"
	"github.com/peerdeal/order-engine/internal/domain"
	"github.com/peerdeal/order-engine/internal/infrastructure/balance"
	"github.com/peerdeal/order-engine/internal/infrastructure/custody"
	publisher "github.com/peerdeal/order-engine/internal/infrastructure/kafka"
	"github.com/peerdeal/order-engine/internal/infrastructure/metrics"
	"github.com/peerdeal/order-engine/internal/infrastructure/migrate"
	"github.com/peerdeal/order-engine/internal/infrastructure/postgres"
	"github.com/peerdeal/order-engine/internal/reconcile"
	"github.com/peerdeal/order-engine/internal/sweeper"
	disputeuc "github.com/peerdeal/order-engine/internal/usecase/dispute"
	escrowuc "github.com/peerdeal/order-engine/internal/usecase/escrow"
	extensionuc "github.com/peerdeal/order-engine/internal/usecase/extension"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("failed to load .env")
	}
	// Reading config
	cfg := config.MustLoad()
	// Init database
	db := postgres.MustInitDB(cfg)

	if cfg.MigrationsPath != "" {
		if err := migrate.RunMigrations(db, cfg.MigrationsPath); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
	}

	// Kafka
	brokers := []string{fmt.Sprintf("%s:%s", cfg.KafkaService.Host, cfg.KafkaService.Port)}
	orderPublisher := publisher.NewKafkaPublisher(brokers, cfg.KafkaService.OrderTopic)
	disputePublisher := publisher.NewKafkaPublisher(brokers, cfg.KafkaService.DisputeTopic)
	sub := publisher.NewDefaultKafkaSubscriber(brokers)

	// Init order store
	orderStore := postgres.NewDefaultOrderStore(db)
	// Init dispute repo
	disputeRepo := postgres.NewDefaultDisputeRepository(db)

	// Init custody client
	custodyClient, err := custody.NewHTTPCustodyClient(cfg.CustodyService.BaseURL)
	if err != nil {
		log.Fatalf("failed to init custody client: %v", err)
	}

	// Init balance cache
	balanceCache := balance.NewRedisBalanceCache(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, custodyClient, cfg.Redis.Ttl)

	engineMetrics := metrics.NewEngineMetrics()

	// Local reconciled view of the remote order store
	reconcileStore := reconcile.NewStore(engineMetrics)
	syncer := reconcile.NewSyncer(reconcileStore, orderStore, engineMetrics)

	// Init escrow usecase
	escrowUsecase := escrowuc.NewDefaultEscrowUsecase(
		orderStore,
		custodyClient,
		balanceCache,
		reconcileStore,
		orderPublisher,
		engineMetrics,
	)
	escrowUsecase.InProgressTTL = cfg.Sweeper.InProgressTTL
	// Init dispute usecase
	disputeUsecase := disputeuc.NewDefaultDisputeUsecase(
		disputeRepo,
		orderStore,
		custodyClient,
		balanceCache,
		reconcileStore,
		disputePublisher,
		engineMetrics,
		cfg.Disputes.ProposalTTL,
	)
	// Init extension usecase
	extensionUsecase := extensionuc.NewDefaultExtensionUsecase(
		orderStore,
		reconcileStore,
		disputeUsecase,
		orderPublisher,
		engineMetrics,
	)

	ctx := context.Background()

	// Expiry sweeper
	expirySweeper := sweeper.NewSweeper(orderStore, reconcileStore, disputeUsecase, engineMetrics, cfg.Sweeper.Cooldown)
	sweeperCron, err := expirySweeper.Start(ctx, cfg.Sweeper.Schedule)
	if err != nil {
		log.Fatalf("failed to start sweeper: %v", err)
	}
	defer sweeperCron.Stop()

	// Push channel: every store event triggers a refetch of that order
	go func() {
		if err := syncer.Listen(ctx, sub, cfg.KafkaService.OrderTopic, cfg.KafkaService.GroupID); err != nil {
			log.Printf("push listener stopped: %v\n", err)
		}
	}()

	// Polling fallback over every active order
	go syncer.Poll(ctx, domain.OrderFilters{
		Statuses: []domain.OrderStatus{
			domain.StatusOpen,
			domain.StatusAccepted,
			domain.StatusEscrowed,
			domain.StatusPaymentSent,
			domain.StatusDisputed,
		},
	}, cfg.Reconciler.PollInterval)

	// Auto-finalize dispute proposals nobody answers
	go func() {
		ticker := time.NewTicker(cfg.Disputes.SweepPeriod)
		defer ticker.Stop()
		for range ticker.C {
			if err := disputeUsecase.FinalizeExpiredProposals(ctx); err != nil {
				log.Printf("failed to finalize expired proposals: %v\n", err)
			}
		}
	}()

	// HTTP API
	router := gin.Default()
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	engineHandler := handlers.NewEngineHandler(orderStore, syncer, escrowUsecase, extensionUsecase, disputeUsecase)
	engineHandler.OpenTTL = cfg.Sweeper.OpenTTL
	engineHandler.RegisterRoutes(router.Group("/v1"))

	addr := fmt.Sprintf("%s:%s", cfg.HTTPServer.Host, cfg.HTTPServer.Port)
	log.Printf("order engine listening on %s\n", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
