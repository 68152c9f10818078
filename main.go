package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"tradingview-agent/config"
	"tradingview-agent/internal/api"
	"tradingview-agent/internal/backtest"
	"tradingview-agent/internal/cache"
	"tradingview-agent/internal/database"
	"tradingview-agent/internal/ensemble"
	"tradingview-agent/internal/events"
	"tradingview-agent/internal/llm"
	"tradingview-agent/internal/logging"
	"tradingview-agent/internal/markethours"
	"tradingview-agent/internal/notification"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := logging.New(logging.Config{
		Level:      cfg.LoggingConfig.Level,
		JSONFormat: cfg.LoggingConfig.JSONFormat,
	})
	logger.Info().Msg("starting TradingView agent")

	eventBus := events.NewEventBus()

	// Notifications
	var notifier *notification.Manager
	if cfg.NotificationConfig.Enabled {
		notifier = notification.NewManager()
		if cfg.NotificationConfig.Discord.Enabled {
			notifier.AddNotifier(notification.NewDiscordNotifier(notification.DiscordConfig{
				WebhookURL: cfg.NotificationConfig.Discord.WebhookURL,
				Enabled:    true,
			}))
		}
		if cfg.NotificationConfig.Telegram.Enabled {
			notifier.AddNotifier(notification.NewTelegramNotifier(notification.TelegramConfig{
				BotToken: cfg.NotificationConfig.Telegram.BotToken,
				ChatID:   cfg.NotificationConfig.Telegram.ChatID,
				Enabled:  true,
			}))
		}
		logger.Info().Msg("notification manager initialized")
	}

	// Audit store
	var repo *database.Repository
	if cfg.DatabaseConfig.Enabled {
		db, err := database.NewDB(database.Config{
			Host:     cfg.DatabaseConfig.Host,
			Port:     cfg.DatabaseConfig.Port,
			User:     cfg.DatabaseConfig.User,
			Password: cfg.DatabaseConfig.Password,
			Database: cfg.DatabaseConfig.Database,
			SSLMode:  cfg.DatabaseConfig.SSLMode,
		}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()

		migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := db.RunMigrations(migrateCtx); err != nil {
			cancel()
			logger.Fatal().Err(err).Msg("failed to run migrations")
		}
		cancel()

		repo = database.NewRepository(db)
		logger.Info().Msg("database connected")
	}

	// Stats store: Postgres when available, fronted by Redis when enabled.
	var statsStore backtest.StatsStore
	if repo != nil {
		statsStore = repo
	}
	if cfg.RedisConfig.Enabled {
		statsCache := cache.NewStatsCache(cache.Config{
			Address:  cfg.RedisConfig.Address,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
			PoolSize: cfg.RedisConfig.PoolSize,
			TTL:      time.Duration(cfg.RedisConfig.TTL) * time.Second,
		}, statsStore, logger)
		defer statsCache.Close()
		statsStore = statsCache
		logger.Info().Msg("stats cache initialized")
	}

	priors := backtest.NewPriorChain(statsStore, logger)

	// Ensemble
	models := buildModelSpecs(cfg, logger)
	if len(models) == 0 {
		logger.Fatal().Msg("no usable models configured, check API key environment variables")
	}
	builder := &ensemble.ContextBuilder{Priors: priors}
	coordinator := ensemble.NewCoordinator(models, builder,
		ensemble.SystemPromptUltraSelective, cfg.EnsembleConfig.CallTimeout, logger)
	logger.Info().Int("models", coordinator.ModelCount()).Msg("ensemble coordinator initialized")

	// Market hours gate
	var gate *markethours.Manager
	if cfg.MarketHoursConfig.Enforce {
		gate, err = markethours.NewManager()
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize market hours gate")
		}
	}

	// Mirror bus errors into the log
	eventBus.Subscribe(events.EventError, func(e events.Event) {
		logger.Warn().Interface("data", e.Data).Msg("event bus error")
	})

	server := api.NewServer(api.ServerConfig{
		Port:           cfg.ServerConfig.Port,
		Host:           cfg.ServerConfig.Host,
		ProductionMode: cfg.ServerConfig.ProductionMode,
	}, coordinator, gate, repo, statsStore, notifier, eventBus, logger)

	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()
	eventBus.Publish(events.Event{Type: events.EventServerStarted, Data: map[string]interface{}{
		"port": cfg.ServerConfig.Port,
	}})

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info().Str("signal", sig.String()).Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.ServerConfig.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown error")
	}

	logger.Info().Msg("shutdown complete")
}

// buildModelSpecs turns the configured model list into live adapters,
// preserving configuration order.
func buildModelSpecs(cfg *config.Config, logger zerolog.Logger) []ensemble.ModelSpec {
	if !cfg.EnsembleConfig.Enabled {
		return nil
	}

	var specs []ensemble.ModelSpec
	for _, m := range cfg.EnsembleConfig.EnabledModels() {
		client := llm.NewClient(&llm.ClientConfig{
			Provider:    llm.Provider(m.Provider),
			APIKey:      os.Getenv(m.APIKeyEnv),
			Model:       m.Model,
			BaseURL:     m.BaseURL,
			MaxTokens:   cfg.EnsembleConfig.MaxTokens,
			Temperature: cfg.EnsembleConfig.Temperature,
			Timeout:     cfg.EnsembleConfig.CallTimeout,
		})
		specs = append(specs, ensemble.ModelSpec{
			Name:    m.ID,
			Weight:  m.Weight,
			Adapter: llm.NewAdapter(m.ID, client, logger),
		})
		logger.Info().Str("model", m.ID).Str("provider", m.Provider).Float64("weight", m.Weight).Msg("model registered")
	}
	return specs
}
