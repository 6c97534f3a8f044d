package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-co-op/gocron"
	"github.com/go-redis/redis/v8"
	"github.com/starbank/backend/internal/config"
	"github.com/starbank/backend/internal/database"
	"github.com/starbank/backend/internal/handlers"
	"github.com/starbank/backend/internal/jobs"
	"github.com/starbank/backend/internal/middleware"
	"github.com/starbank/backend/internal/queue"
	"github.com/starbank/backend/internal/routes"
	"github.com/starbank/backend/internal/services/codes"
	"github.com/starbank/backend/internal/services/cooldown"
	"github.com/starbank/backend/internal/services/ledger"
	"github.com/starbank/backend/internal/services/payout"
	"github.com/starbank/backend/internal/services/rewards"
	"github.com/starbank/backend/internal/services/withdrawal"
	"github.com/starbank/backend/internal/session"
)

const settlementQueueKey = "starbank:settlements"

func main() {
	cfg := config.LoadConfig()

	db, err := database.InitDB(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}

	// Services
	ledgerService := ledger.NewService(db)
	clock := cooldown.NewService(db)
	rewardService := rewards.NewService(db, ledgerService, clock, cfg.Rewards)
	codeService := codes.NewService(db, ledgerService)
	gateway := payout.NewHTTPGateway(cfg.Payout)
	withdrawalService := withdrawal.NewService(db, ledgerService, clock, gateway, cfg.Withdrawal, cfg.IsAdmin)

	// Background settlement pipeline: a scheduled sweep enqueues pending
	// requests, a single worker settles them in order.
	settlementQueue := queue.NewRedisQueue(redisClient, settlementQueueKey)
	worker := queue.NewWorker(settlementQueue)
	settlementJob := jobs.NewSettlementJob(withdrawalService, settlementQueue, worker, cfg.Withdrawal.SettleBatchLimit)
	worker.Start()

	scheduler := gocron.NewScheduler(time.UTC)
	if err := settlementJob.Schedule(scheduler, cfg.Withdrawal.SettleEverySecs); err != nil {
		log.Fatalf("Failed to schedule settlement sweep: %v", err)
	}
	dailyReset := jobs.NewDailyResetJob(ledgerService, cfg.AdminIDs, cfg.Rewards.AdminDailyBonus)
	if err := dailyReset.Schedule(scheduler); err != nil {
		log.Fatalf("Failed to schedule daily reset: %v", err)
	}
	scheduler.StartAsync()

	// HTTP surface
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	router.Use(cors.Default())

	rateLimiter := middleware.NewRateLimiter(5, 10)

	wizardStore := session.NewStore(10 * time.Minute)
	routes.Setup(router, cfg, &routes.Handlers{
		Auth:        handlers.NewAuthHandler(cfg),
		Wallet:      handlers.NewWalletHandler(ledgerService, cfg),
		Reward:      handlers.NewRewardHandler(rewardService),
		Withdrawal:  handlers.NewWithdrawalHandler(withdrawalService),
		Code:        handlers.NewCodeHandler(codeService),
		Admin:       handlers.NewAdminHandler(withdrawalService, rewardService, codeService, wizardStore),
		RateLimiter: rateLimiter,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Printf("Server listening on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	scheduler.Stop()
	worker.Stop()
	rateLimiter.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exited")
}
