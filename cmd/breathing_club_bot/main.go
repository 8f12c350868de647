package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"breathing_club_bot/api"
	"breathing_club_bot/internal/config"
	"breathing_club_bot/internal/infrastructure/bot"
	"breathing_club_bot/internal/infrastructure/cache"
	"breathing_club_bot/internal/infrastructure/channel"
	"breathing_club_bot/internal/infrastructure/database"
	"breathing_club_bot/internal/infrastructure/prodamus"
	"breathing_club_bot/internal/infrastructure/storage"
	"breathing_club_bot/internal/monitoring"
	"breathing_club_bot/internal/service"
	"breathing_club_bot/internal/worker"
)

const (
	serviceName    = "breathing-club-bot"
	serviceVersion = "1.0.0"
)

func main() {
	// Загружаем переменные окружения
	if err := godotenv.Load(); err != nil {
		log.Println("Файл .env не найден, используем системные переменные")
	}

	cfg := config.NewConfig()
	logger := monitoring.NewLogger(cfg.Env, cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("❌ Некорректная конфигурация")
	}

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("❌ Бот остановлен с ошибкой")
	}
	logger.Info("👋 Бот остановлен")
}

func run(cfg *config.Config, logger *monitoring.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.JaegerEndpoint != "" {
		tp, err := monitoring.InitTracing(monitoring.TracingConfig{
			ServiceName: serviceName,
			Version:     serviceVersion,
			Env:         cfg.Env,
			Endpoint:    cfg.JaegerEndpoint,
			SampleRatio: cfg.TraceSampleRatio,
		})
		if err != nil {
			logger.WithError(err).Warn("⚠️ Трейсинг не запущен")
		} else {
			defer func() {
				if err := monitoring.ShutdownTracing(tp, 5*time.Second); err != nil {
					logger.WithError(err).Warn("⚠️ Не все спаны отправлены")
				}
			}()
		}
	}

	// База данных
	db, err := database.NewConnection(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("✅ Подключение к базе данных установлено")

	users := database.NewUserRepository(db)
	agreements := database.NewAgreementRepository(db)
	subscriptions := database.NewSubscriptionRepository(db)
	payments := database.NewPaymentRepository(db)
	promocodes := database.NewPromocodeRepository(db)
	referrals := database.NewReferralRepository(db)
	lessons := database.NewLessonRepository(db)
	reviews := database.NewVideoReviewRepository(db)
	reports := database.NewReportRepository(db)

	// Состояния диалогов: Redis, при недоступности память процесса
	var stateStore cache.Store
	var redisPinger monitoring.Pinger
	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis, "breathing_club")
	if err != nil {
		logger.WithError(err).Warn("⚠️ Redis недоступен, состояния диалогов хранятся в памяти")
		stateStore = cache.NewMemoryStore(cache.DefaultMemorySize, cfg.Redis.StateTTL)
	} else {
		defer redisClient.Close()
		stateStore = redisClient
		redisPinger = redisClient
	}

	// Telegram
	botAPI, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return err
	}
	botAPI.Debug = cfg.BotDebug
	logger.WithField("username", botAPI.Self.UserName).Info("🤖 Авторизация в Telegram прошла успешно")
	if cfg.BotUsername == "" {
		cfg.BotUsername = botAPI.Self.UserName
	}

	gate := channel.NewGate(botAPI, cfg.ChannelID, logger)
	notifier := bot.NewNotifier(botAPI, cfg, logger)

	// Сервисы
	promoService := service.NewPromocodeService(promocodes, logger)
	referralService := service.NewReferralService(referrals, subscriptions, gate, notifier, cfg.ReferralBonusDays, logger)
	links := prodamus.NewLinkBuilder(cfg.ProdamusDomain, cfg.ProdamusSecretKey, cfg.ProdamusSys)
	paymentService := service.NewPaymentService(cfg, payments, promoService, referralService, gate, notifier, links, logger)
	reviewService := service.NewReviewService(cfg, reviews, promoService, logger)
	if _, err := reviewService.EnsurePromocode(ctx); err != nil {
		logger.WithError(err).Warn("⚠️ Не удалось создать промокод за видео-отзыв")
	}

	var archiver service.ExportArchiver
	if cfg.ExportS3.Enabled() {
		s3Archiver, err := storage.NewArchiver(cfg.ExportS3)
		if err != nil {
			logger.WithError(err).Warn("⚠️ Архивирование выгрузок отключено")
		} else {
			archiver = s3Archiver
		}
	}

	services := bot.Services{
		Users:         service.NewUserService(cfg, users, agreements, referralService, logger),
		Subscriptions: service.NewSubscriptionService(subscriptions, payments, gate, logger),
		Payments:      paymentService,
		Promocodes:    promoService,
		Referrals:     referralService,
		Lessons:       service.NewLessonService(lessons, cfg.ReminderDelay),
		Reviews:       reviewService,
		Admin:         service.NewAdminService(reports, users, archiver, logger),
	}

	// Планировщик
	scheduler := worker.NewScheduler(cfg, subscriptions, lessons, gate, notifier, logger)
	if err := scheduler.Start(ctx); err != nil {
		return err
	}
	defer scheduler.Stop()

	activeUsers := monitoring.NewActiveUsersManager(30 * time.Minute)
	state := bot.NewStateManager(stateStore, cfg.Redis.StateTTL)
	telegramBot := bot.NewBot(botAPI, cfg, services, notifier, state, activeUsers, scheduler, logger)

	// HTTP: вебхук шлюза, health и метрики
	server := api.NewServer(cfg.Port, logger)
	server.SetupRoutes(
		api.NewWebhookHandler(paymentService, cfg.ProdamusSecretKey, logger),
		monitoring.NewHealthChecker(db.DB, redisPinger),
	)

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := botAPI.GetUpdatesChan(updateConfig)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gctx)
	})
	g.Go(func() error {
		activeUsers.Run(gctx, time.Minute)
		return nil
	})
	g.Go(func() error {
		err := telegramBot.Run(gctx, updates)
		botAPI.StopReceivingUpdates()
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	logger.WithField("port", server.GetPort()).Info("🚀 Бот запущен")
	return g.Wait()
}
