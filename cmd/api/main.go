package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ecom-support/chatbot/internal/api/handlers"
	"github.com/ecom-support/chatbot/internal/cache/redis"
	"github.com/ecom-support/chatbot/internal/contextstore"
	"github.com/ecom-support/chatbot/internal/entity"
	"github.com/ecom-support/chatbot/internal/faq"
	"github.com/ecom-support/chatbot/internal/ingestion"
	"github.com/ecom-support/chatbot/internal/intent"
	"github.com/ecom-support/chatbot/internal/interaction"
	"github.com/ecom-support/chatbot/internal/metrics"
	"github.com/ecom-support/chatbot/internal/middleware/ratelimit"
	"github.com/ecom-support/chatbot/internal/middleware/security"
	"github.com/ecom-support/chatbot/internal/middleware/validation"
	"github.com/ecom-support/chatbot/internal/personalize"
	"github.com/ecom-support/chatbot/internal/pipeline"
	"github.com/ecom-support/chatbot/internal/profile"
	"github.com/ecom-support/chatbot/internal/recovery"
	"github.com/ecom-support/chatbot/internal/storage/sqlite"
	"github.com/ecom-support/chatbot/pkg/config"
	appLogger "github.com/ecom-support/chatbot/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadFile(os.Getenv("SUPPORTBOT_CONFIG_FILE"))
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting support chatbot API server",
		zap.String("faq_policy", cfg.Pipeline.FAQPolicy),
		zap.Float64("faq_threshold", cfg.Pipeline.FAQThreshold),
		zap.Float64("intent_threshold", cfg.Pipeline.IntentThreshold),
	)

	metrics.Init()

	var checks []handlers.Check

	var sqliteClient *sqlite.Client
	if cfg.SQLite.Enabled {
		sqliteClient, err = sqlite.NewClient(cfg.SQLite.Path)
		if err != nil {
			appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
		}
		defer sqliteClient.Close()

		if err := sqliteClient.InitSchema(); err != nil {
			appLogger.Fatal("Failed to initialize schema", zap.Error(err))
		}
		checks = append(checks, handlers.Check{Name: "sqlite", Check: sqliteClient.Ping})
	}

	var profileSource profile.Source
	switch cfg.Profiles.Source {
	case config.ProfileSourceRedis:
		redisClient, err := redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer redisClient.Close()

		profileSource = profile.NewRedisSource(redisClient)
		checks = append(checks, handlers.Check{Name: "redis", Check: redisClient.Ping})
	default:
		profileSource = profile.NewFileSource(cfg.Data.ProfilesPath)
	}
	profiles := profile.NewStore(profileSource)

	faqIndex, err := faq.LoadOrBuild(cfg.Artifacts.FAQIndexPath, cfg.Data.FAQPath)
	if err != nil {
		appLogger.Error("FAQ index unavailable, FAQ matching disabled", zap.Error(err))
	}
	matcher := faq.NewMatcher(faqIndex, cfg.Pipeline.FAQThreshold)

	classifier := intent.NewClassifier(cfg.Artifacts.IntentModelPath, cfg.Data.IntentsPath, ingestion.IntentOptions(cfg.Classifier))
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := classifier.Warm(ctx); err != nil {
			appLogger.Error("Intent classifier warm-up failed", zap.Error(err))
		}
	}()
	checks = append(checks, handlers.Check{Name: "intent_model", Check: func(context.Context) error {
		if classifier.Model() == nil {
			return fmt.Errorf("intent model not loaded yet")
		}
		return nil
	}})

	extractor := entity.NewExtractorFromDir(cfg.Artifacts.EntityModelDir)
	contexts := contextstore.New()

	csvSink, err := interaction.NewCSVSink(cfg.Logs.InteractionPath)
	if err != nil {
		appLogger.Fatal("Failed to open interaction log", zap.Error(err))
	}
	defer csvSink.Close()

	recorder := interaction.NewMulti().Add("csv", csvSink)

	var errorDB recovery.ErrorWriter
	if sqliteClient != nil {
		recorder.Add("sqlite", interaction.NewSQLiteSink(sqliteClient))
		errorDB = sqliteClient
	}

	errorLog, err := recovery.NewErrorLog(cfg.Logs.ErrorPath, errorDB)
	if err != nil {
		appLogger.Fatal("Failed to open error log", zap.Error(err))
	}
	defer errorLog.Close()

	orchestrator := pipeline.New(pipeline.Deps{
		FAQ:          matcher,
		Classifier:   classifier,
		Extractor:    extractor,
		Context:      contexts,
		Personalizer: personalize.New(profiles),
		Recorder:     recorder,
		Errors:       errorLog,
	}, pipeline.Options{
		IntentThreshold: cfg.Pipeline.IntentThreshold,
		FAQPolicy:       cfg.Pipeline.FAQPolicy,
	})

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.AllowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, X-User-ID",
		AllowMethods: "GET, POST, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		AllowedOrigins: security.ParseOrigins(cfg.Server.AllowedOrigins),
		IsDevelopment:  cfg.Server.Development,
	}))

	if cfg.RateLimit.Enabled {
		limiter := ratelimit.New(ratelimit.Config{
			MaxRequestsPerMinute: cfg.RateLimit.MaxRequestsPerMinute,
			SkipPaths:            []string{"/health", "/api/v1/health", "/api/v1/ready", "/metrics"},
			Logger:               appLogger.GetLogger(),
		})
		defer limiter.Stop()
		app.Use(limiter.Middleware())
	}

	app.Use(validation.Middleware(validation.Config{
		MaxMessageLength: cfg.Validation.MaxMessageLength,
		Logger:           appLogger.GetLogger(),
	}))

	chatHandler := handlers.NewChatHandler(orchestrator, historyReader(sqliteClient), cfg.Validation.MaxMessageLength)
	contextHandler := handlers.NewContextHandler(contexts)
	wsHandler := handlers.NewWebSocketHandler(orchestrator, cfg.Validation.MaxMessageLength)
	healthHandler := handlers.NewHealthHandler(checks...)
	adminHandler := handlers.NewAdminHandler(
		handlers.Reloadable{Name: "profiles", Reload: profiles.Reload},
		handlers.Reloadable{Name: "faq_index", Reload: func(context.Context) error {
			ix, err := faq.LoadIndex(cfg.Artifacts.FAQIndexPath)
			if err != nil {
				return err
			}
			matcher.Swap(ix)
			metrics.ArtifactLoads.WithLabelValues("faq_index", "reload").Inc()
			return nil
		}},
		handlers.Reloadable{Name: "intent_model", Reload: func(context.Context) error {
			return classifier.Reload()
		}},
		handlers.Reloadable{Name: "entity_model", Reload: func(context.Context) error {
			return extractor.Reload()
		}},
	)

	app.Post("/chat", chatHandler.HandleChat)
	app.Get("/health", healthHandler.Health)
	app.Get("/metrics", metrics.MetricsHandler())

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/chat", websocket.New(wsHandler.HandleConnection))

	api := app.Group("/api/v1")

	api.Post("/chat", chatHandler.HandleChatDetailed)
	api.Get("/interactions", chatHandler.GetHistory)

	api.Get("/context/:user_id", contextHandler.GetContext)
	api.Delete("/context/:user_id", contextHandler.ClearContext)
	api.Delete("/context", contextHandler.ClearAll)

	api.Post("/admin/reload", adminHandler.Reload)

	api.Get("/health", healthHandler.Health)
	api.Get("/ready", healthHandler.Ready)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		appLogger.Warn("Server shutdown incomplete", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}

// historyReader avoids handing the handler a typed nil when SQLite is off.
func historyReader(c *sqlite.Client) handlers.HistoryReader {
	if c == nil {
		return nil
	}
	return c
}
