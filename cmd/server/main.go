package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coinsight/internal/advisor"
	"coinsight/internal/bot"
	"coinsight/internal/cache"
	"coinsight/internal/config"
	"coinsight/internal/db"
	"coinsight/internal/handler"
	"coinsight/internal/job"
	"coinsight/internal/ml/anomaly"
	"coinsight/internal/ml/ensemble"
	mlfeatures "coinsight/internal/ml/features"
	"coinsight/internal/ml/inference"
	mlpredictions "coinsight/internal/ml/predictions"
	"coinsight/internal/ml/registry"
	"coinsight/internal/ml/training"
	"coinsight/internal/provider"
	"coinsight/internal/repository"
	"coinsight/internal/sentiment"
	"coinsight/internal/service"
	"coinsight/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"

	_ "coinsight/docs"
)

var (
	loadEnvFunc              = godotenv.Load
	loadConfigFunc           = config.Load
	initPostgresFunc         = db.InitPostgres
	initRedisFunc            = cache.InitRedis
	initTracerFunc           = tracing.InitTracer
	newCandleRepoFunc        = repository.NewCandleRepository
	newCoinGeckoProviderFunc = func(tracer trace.Tracer) service.PriceProvider {
		return provider.NewCoinGeckoProvider(tracer)
	}
	newPriceServiceFunc    = service.NewPriceService
	newPricePollerFunc     = job.NewPricePoller
	startPollerFunc        = func(p *job.PricePoller, ctx context.Context) { go p.Start(ctx) }
	startTelegramBotFunc   = bot.StartTelegramBot
	newHandlerFunc         = handler.New
	newRouterFunc          = gin.Default
	setupSignalNotify      = signal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

// @title           coinsight API
// @version         1.0
// @description     Crypto price tracking, sentiment and ML prediction service.

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
func main() {
	loadEnvFunc()

	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init Postgres and Redis
	os.Setenv("DATABASE_URL", cfg.DatabaseURL)
	os.Setenv("REDIS_URL", cfg.RedisURL)
	initPostgresFunc(ctx)
	initRedisFunc(ctx)

	// Init tracing
	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	// Repositories. Schema is managed by cmd/migrate.
	candleRepo := newCandleRepoFunc(db.Pool, tracer)

	// Provider and price service
	cgProvider := newCoinGeckoProviderFunc(tracer)
	priceService := newPriceServiceFunc(tracer, cgProvider, candleRepo, cache.Client)

	// Price poller (background goroutines, stopped by ctx cancel)
	poller := newPricePollerFunc(tracer, priceService, cfg.CoinGeckoPollSecs)
	startPollerFunc(poller, ctx)

	// Handlers and routes
	h := newHandlerFunc(tracer, priceService)
	h.SetAPIKey(cfg.APIKey)

	botDeps := bot.Deps{Prices: priceService}

	// Everything past this point needs Postgres.
	if db.Pool != nil {
		signalRepo := repository.NewSignalRepository(db.Pool, tracer)
		convRepo := repository.NewConversationRepository(db.Pool, tracer)
		sentimentRepo := sentiment.NewRepository(db.Pool, tracer)
		featureRepo := mlfeatures.NewRepository(db.Pool, tracer)
		registryRepo := registry.NewRepository(db.Pool, tracer)
		predictionRepo := mlpredictions.NewRepository(db.Pool, tracer)

		// Sentiment pipeline
		var llmScorer sentiment.BatchLLMScorer
		if cfg.LLMScoringEnabled && cfg.LLMAPIKey != "" {
			llmScorer = sentiment.NewOpenAIScorer(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMModel)
		}
		scorer := sentiment.NewScorer(llmScorer, cfg.LLMScoringBatchSize)
		sentimentSvc := sentiment.NewService(
			tracer,
			sentimentRepo,
			scorer,
			signalRepo,
			provider.NewFearGreedProvider(tracer),
			provider.NewRedditProvider(tracer),
			provider.NewRSSProvider(tracer),
			provider.NewWikipediaProvider(tracer),
			sentiment.Config{
				Interval:            cfg.MLInterval,
				LongThreshold:       cfg.CompositeSignalAbs,
				ShortThreshold:      -cfg.CompositeSignalAbs,
				NewsFeeds:           cfg.SentimentFeeds,
				NewsFeedItemLimit:   cfg.SentimentMaxItems,
				RedditSubs:          cfg.SentimentSubreddits,
				RedditPostLimit:     cfg.SentimentMaxItems,
				ScoringBatchSize:    cfg.LLMScoringBatchSize,
				AttentionWindowDays: cfg.AttentionWindowDays,
				RetentionDays:       cfg.SentimentRetainDays,
			},
		)
		sentimentRunner := service.NewSentimentService(tracer, sentimentSvc)
		sentimentJob := job.NewSentimentJob(tracer, sentimentRunner, time.Duration(cfg.SentimentPollSecs)*time.Second)
		go sentimentJob.Start(ctx)

		h.SetSentimentRunner(sentimentRunner)
		h.SetCompositeReader(sentimentRepo)
		h.SetSignalReader(signalRepo)
		botDeps.Composites = sentimentRepo

		// ML pipeline
		if cfg.MLEnabled {
			var outliers training.OutlierFilter
			if cfg.MLAnomalyFilter {
				outliers = anomaly.NewFilter(0)
			}
			trainingSvc := training.NewService(tracer, featureRepo, registryRepo, outliers, training.Config{
				Interval:        cfg.MLInterval,
				TrainWindowDays: cfg.MLTrainWindowDays,
				MinTrainSamples: cfg.MLMinTrainSamples,
			})
			inferenceSvc := inference.NewService(
				tracer,
				featureRepo,
				registryRepo,
				predictionRepo,
				signalRepo,
				sentimentRepo,
				ensemble.NewService(),
				inference.Config{
					Interval:       cfg.MLInterval,
					TargetHours:    cfg.MLTargetHours,
					LongThreshold:  cfg.MLLongThreshold,
					ShortThreshold: cfg.MLShortThreshold,
				},
			)
			mlSvc := service.NewMLSignalService(
				tracer,
				candleRepo,
				featureRepo,
				sentimentRepo,
				inferenceSvc,
				trainingSvc,
				predictionRepo,
				service.MLSignalConfig{
					Interval:    cfg.MLInterval,
					HistoryBars: cfg.MLTrainWindowDays * 24,
					TargetHours: cfg.MLTargetHours,
				},
			)

			inferJob := job.NewMLFeatureInferenceJob(tracer, mlSvc, time.Duration(cfg.MLInferPollSecs)*time.Second)
			go inferJob.Start(ctx)
			trainJob := job.NewMLTrainingJob(tracer, mlSvc, cfg.MLTrainHourUTC)
			go trainJob.Start(ctx)
			resolveJob := job.NewMLOutcomeResolverJob(tracer, mlSvc, time.Duration(cfg.MLResolvePollSecs)*time.Second, 200)
			go resolveJob.Start(ctx)

			h.SetMLTrainingRunner(mlSvc)
			h.SetPredictionReader(predictionRepo)
			botDeps.Predictions = predictionRepo
		}

		// Advisor (optional)
		if cfg.LLMAPIKey != "" {
			llmClient := advisor.NewOpenAIClient(cfg.LLMAPIKey, cfg.LLMBaseURL)
			advisorSvc := advisor.NewAdvisorService(tracer, llmClient, priceService, signalRepo,
				convRepo, cfg.LLMModel, cfg.AdvisorMaxHistory)
			botDeps.Advisor = advisorSvc
			log.Println("Advisor service enabled")
		}
	} else {
		log.Println("Postgres unavailable, sentiment and ML pipelines disabled")
	}

	// Telegram bot
	os.Setenv("TELEGRAM_BOT_TOKEN", cfg.TelegramBotToken)
	startTelegramBotFunc(botDeps)

	r := newRouterFunc()
	r.Use(otelgin.Middleware("coinsight"))

	h.RegisterRoutes(r)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
