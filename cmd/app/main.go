package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"telegram-subscription-checkout/internal/application"
	"telegram-subscription-checkout/internal/config"
	tele "telegram-subscription-checkout/internal/infra/adapters/telegram"
	pg "telegram-subscription-checkout/internal/infra/db/postgres"
	httpapi "telegram-subscription-checkout/internal/infra/http"
	"telegram-subscription-checkout/internal/infra/logging"
	"telegram-subscription-checkout/internal/infra/metrics"
	"telegram-subscription-checkout/internal/infra/payment"
	red "telegram-subscription-checkout/internal/infra/redis"
	"telegram-subscription-checkout/internal/infra/sched"
	"telegram-subscription-checkout/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("developer mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()

	// ---- Repositories ----
	orderRepo := pg.NewOrderRepo(pool)
	planRepo := pg.NewPlanRepo(pool)
	subscriberRepo := pg.NewSubscriberRepo(pool)
	sessionRepo := red.NewSessionRepo(redisClient, cfg.Redis.SessionTTL)

	// ---- Provider gateway ----
	gateway := payment.NewNowPaymentsGateway(cfg.Payment.BaseURL, cfg.Payment.APIKey, cfg.Payment.IPNSecret, cfg.Payment.CallbackURL, cfg.Payment.Timeout)

	// ---- Use cases ----
	checkoutUC := usecase.NewCheckoutUseCase(orderRepo, planRepo, subscriberRepo, gateway, logger)
	activationUC := usecase.NewActivationUseCase(orderRepo, planRepo, subscriberRepo, logger)
	subUC := usecase.NewSubscriptionUseCase(subscriberRepo, logger)

	// ---- Telegram (the bot is also the invite issuer, so the facade's
	// conversation usecase is wired after the adapter exists) ----
	facade := application.NewBotFacade(nil, subUC, planRepo)
	botAdapter, err := tele.NewRealTelegramBotAdapter(&cfg.Bot, facade, cfg.Access.ChannelID, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("telegram")
	}
	facade.ConvUC = usecase.NewConversationUseCase(sessionRepo, planRepo, subscriberRepo, checkoutUC, botAdapter, cfg.Payment.FiatCheckoutURL, "@support", logger)

	go func() {
		if err := botAdapter.StartPolling(ctx); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("telegram polling stopped")
		}
	}()

	// ---- Webhook / ops HTTP server ----
	srv := httpapi.NewServer(cfg.HTTP.Port, activationUC, subUC, gateway, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Expiry worker ----
	worker := sched.NewExpiryWorker(cfg.Scheduler.SweepInterval, subUC, logger)
	go func() { _ = worker.Run(ctx) }()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}
