package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"palpiteiros/internal/cache"
	polymarketgamma "palpiteiros/internal/client/polymarket/gamma"
	"palpiteiros/internal/config"
	cronrunner "palpiteiros/internal/cron"
	"palpiteiros/internal/db"
	"palpiteiros/internal/handler"
	"palpiteiros/internal/logger"
	"palpiteiros/internal/models"
	"palpiteiros/internal/notify"
	"palpiteiros/internal/ratelimit"
	"palpiteiros/internal/repository"
	gormrepository "palpiteiros/internal/repository/gorm"
	"palpiteiros/internal/repository/memory"
	"palpiteiros/internal/service"

	_ "palpiteiros/docs"
)

func main() {
	envOnly := false
	if raw := os.Getenv("BM_ENV_ONLY"); raw != "" {
		envOnly = strings.EqualFold(raw, "true") || raw == "1"
	}

	cfg, err := config.Load(config.ConfigPath("config/config.yaml"), envOnly)
	if err != nil {
		panic(err)
	}
	if err := config.Validate(cfg); err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore := openStore(cfg, logger)
	defer closeStore()

	var redisClient *redis.Client
	if useRedis(cfg.Cache.Backend) || useRedis(cfg.RateLimit.Backend) {
		redisClient, err = db.ConnectRedis(ctx, cfg.Redis)
		if err != nil {
			logger.Fatal("redis connect failed", zap.Error(err))
		}
		defer redisClient.Close()
	}

	var cacheStore cache.Store = cache.NewMemoryStore()
	if useRedis(cfg.Cache.Backend) {
		cacheStore = cache.NewRedisStore(redisClient, cfg.Cache.Prefix)
	}
	sharedCache := cache.New(cacheStore, logger)

	var limiter ratelimit.Limiter = ratelimit.NewMemoryLimiter(cfg.RateLimit.SubscribeLimit, cfg.RateLimit.SubscribeWindow)
	if useRedis(cfg.RateLimit.Backend) {
		limiter = ratelimit.NewRedisLimiter(redisClient, cfg.Cache.Prefix+"rl:", cfg.RateLimit.SubscribeLimit, cfg.RateLimit.SubscribeWindow)
	}

	gammaClient := polymarketgamma.NewClient(
		&http.Client{Timeout: cfg.Gamma.Timeout},
		cfg.Gamma.BaseURL,
		polymarketgamma.WithRateLimit(cfg.Gamma.RateLimit, cfg.Gamma.RateBurst),
	)

	syncService := &service.MarketSyncService{
		Store:     store,
		Gamma:     gammaClient,
		Cache:     sharedCache,
		Logger:    logger,
		PageLimit: cfg.Gamma.PageLimit,
		MaxPages:  cfg.Gamma.MaxPages,
		ChunkSize: cfg.Gamma.ChunkSize,
		Bucket:    cfg.MarketSync.Bucket,
		CacheTTL:  cfg.Cache.GammaTTL,
	}
	breakingService := &service.BreakingMarketsService{
		Store:             store,
		Cache:             sharedCache,
		Logger:            logger,
		CacheTTL:          cfg.Cache.BreakingTTL,
		CandidatePageSize: cfg.Breaking.CandidatePageSize,
		HistoryPoints:     cfg.Breaking.HistoryPoints,
	}
	var sendLimiter *rate.Limiter
	if cfg.Newsletter.SendRate > 0 {
		sendLimiter = rate.NewLimiter(rate.Limit(cfg.Newsletter.SendRate), 1)
	}
	dispatcher := &service.NewsletterDispatcher{
		Store:       store,
		Ranker:      breakingService,
		Sender:      buildSender(cfg, logger),
		Logger:      logger,
		SiteURL:     cfg.Newsletter.SiteURL,
		FromAddress: cfg.Newsletter.FromAddress,
		MarketLimit: cfg.Newsletter.MarketLimit,
		BatchSize:   cfg.Newsletter.BatchSize,
		BatchDelay:  cfg.Newsletter.BatchDelay,
		Limiter:     sendLimiter,
	}
	subscriptions := &service.SubscriptionService{
		Store:   store,
		Limiter: limiter,
		Logger:  logger,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(handler.CORS())
	engine.Use(handler.AccessLog(logger))

	healthHandler := &handler.HealthHandler{Store: store}
	healthHandler.Register(engine)

	api := engine.Group("/functions/v1")
	breakingHandler := &handler.BreakingHandler{
		Service: breakingService,
		Defaults: service.Params{
			Limit:          cfg.Breaking.DefaultLimit,
			MinPriceChange: cfg.Breaking.DefaultMinPriceChange,
			TimeRangeHours: cfg.Breaking.DefaultTimeRangeHours,
		},
		Logger: logger,
	}
	breakingHandler.Register(api)
	newsletterHandler := &handler.NewsletterHandler{
		Dispatcher:    dispatcher,
		Subscriptions: subscriptions,
		CronSecret:    cfg.Newsletter.CronSecret,
		Logger:        logger,
	}
	newsletterHandler.Register(api)
	syncHandler := &handler.SyncHandler{
		Service:    syncService,
		CronSecret: cfg.Newsletter.CronSecret,
		Logger:     logger,
	}
	syncHandler.Register(api)

	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:         cfg.Server.HTTPAddr,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if cfg.Cron.Enabled {
		runner := cronrunner.New(logger, ctx, cfg.Cron.JobTimeout)
		registerJobs(runner, cfg, logger, syncService, dispatcher)
		runner.Start()
		defer runner.Stop()
	}

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown failed", zap.Error(err))
	}
	logger.Info("http server stopped")
}

func useRedis(backend string) bool {
	return strings.EqualFold(strings.TrimSpace(backend), config.BackendRedis)
}

func openStore(cfg config.Config, logger *zap.Logger) (repository.Repository, func()) {
	if strings.EqualFold(cfg.DB.Driver, config.DriverMemory) {
		logger.Warn("using in-memory store, data is lost on restart")
		return memory.New(), func() {}
	}
	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if cfg.DB.AutoMigrate {
		if err := db.AutoMigrate(dbConn); err != nil {
			logger.Fatal("auto-migrate failed", zap.Error(err))
		}
	}
	return gormrepository.New(dbConn.Gorm), func() { _ = db.Close(dbConn) }
}

// buildSender chains the configured providers in order, or the log sender when none is set.
func buildSender(cfg config.Config, logger *zap.Logger) notify.Sender {
	var senders []notify.Sender
	if cfg.Email.Resend.APIKey != "" {
		senders = append(senders, notify.NewResendSender(cfg.Email.Resend.APIKey, cfg.Email.Resend.BaseURL, cfg.Email.Timeout))
	}
	if cfg.Email.SendGrid.APIKey != "" {
		senders = append(senders, notify.NewSendGridSender(cfg.Email.SendGrid.APIKey, cfg.Email.SendGrid.BaseURL, cfg.Newsletter.FromName, cfg.Email.Timeout))
	}
	if len(senders) == 0 {
		logger.Warn("no email provider configured, digests are only logged")
		senders = append(senders, notify.LogSender{Logger: logger})
	}
	return notify.NewChain(logger, senders...)
}

func registerJobs(runner *cronrunner.Runner, cfg config.Config, logger *zap.Logger, syncService *service.MarketSyncService, dispatcher *service.NewsletterDispatcher) {
	jobs := []struct {
		name string
		spec string
		run  func(context.Context) error
	}{
		{"market_sync", cfg.Cron.MarketSync, func(ctx context.Context) error {
			_, err := syncService.Sync(ctx, service.SyncOptions{})
			return err
		}},
		{"daily_digest", cfg.Cron.DailyDigest, digestJob(dispatcher, models.FrequencyDaily)},
		{"weekly_digest", cfg.Cron.WeeklyDigest, digestJob(dispatcher, models.FrequencyWeekly)},
	}
	for _, job := range jobs {
		if strings.TrimSpace(job.spec) == "" {
			continue
		}
		if _, err := runner.Add(job.name, job.spec, job.run); err != nil {
			logger.Warn("cron register failed", zap.String("job", job.name), zap.Error(err))
		}
	}
}

func digestJob(dispatcher *service.NewsletterDispatcher, frequency string) func(context.Context) error {
	return func(ctx context.Context) error {
		_, err := dispatcher.Dispatch(ctx, service.DispatchOptions{Frequency: frequency})
		return err
	}
}
