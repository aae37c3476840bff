package main

import (
	"context"
	"log"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"market-structure-engine/config"
	"market-structure-engine/internal/analysis"
	"market-structure-engine/internal/api"
	"market-structure-engine/internal/database"
	"market-structure-engine/internal/logging"
	"market-structure-engine/internal/marketdata"
	"market-structure-engine/internal/monitor"
	"market-structure-engine/internal/notify"
	"market-structure-engine/internal/signal"
	"market-structure-engine/internal/trades"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(cfg.LoggingConfig)
	logger.Info().Msg("Starting market structure engine")

	ctx := context.Background()

	// Optional Postgres trade journal. The engine runs fine without it.
	var db *database.DB
	var journal *trades.Journal
	if cfg.DatabaseConfig.Enabled {
		db, err = database.NewDB(database.Config{
			Host:     cfg.DatabaseConfig.Host,
			Port:     cfg.DatabaseConfig.Port,
			User:     cfg.DatabaseConfig.User,
			Password: cfg.DatabaseConfig.Password,
			Database: cfg.DatabaseConfig.Database,
			SSLMode:  cfg.DatabaseConfig.SSLMode,
		}, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("Database unavailable, trade journal disabled")
		} else {
			if err := db.RunMigrations(ctx); err != nil {
				logger.Error().Err(err).Msg("Migrations failed")
			}
			journal = trades.NewJournal(db)
			defer db.Close()
		}
	}

	// Snapshot tiers: disk always, Redis when configured.
	snapshots := make([]marketdata.SnapshotStore, 0, 2)
	disk, err := marketdata.NewDiskSnapshotStore(cfg.MarketDataConfig.SnapshotDir)
	if err != nil {
		logger.Warn().Err(err).Msg("Disk snapshot store unavailable")
	} else {
		snapshots = append(snapshots, disk)
	}
	if cfg.RedisConfig.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisConfig.Address,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
			PoolSize: cfg.RedisConfig.PoolSize,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Msg("Redis unavailable, snapshot tier disabled")
		} else {
			snapshots = append(snapshots, marketdata.NewRedisSnapshotStore(rdb, logger))
			defer rdb.Close()
		}
	}

	providers := buildProviders(cfg.MarketDataConfig.Providers)
	store := marketdata.NewStore(providers, snapshots, marketdata.StoreConfig{
		ProviderTimeout: cfg.MarketDataConfig.ProviderTimeout,
		SnapshotMaxAge:  cfg.MarketDataConfig.SnapshotMaxAge,
	}, logger)

	analysisCfg := analysis.Config{
		PrimaryTimeframe:      cfg.StructureConfig.PrimaryTimeframe,
		PrimaryLimit:          cfg.StructureConfig.PrimaryLimit,
		DailyTimeframe:        cfg.StructureConfig.DailyTimeframe,
		DailyLimit:            cfg.StructureConfig.DailyLimit,
		MinCandles:            cfg.StructureConfig.MinCandles,
		EntryScore:            cfg.StructureConfig.EntryScore,
		SweepVolumeMultiplier: cfg.StructureConfig.SweepVolumeMultiplier,
		VolumeDeltaRatio:      cfg.StructureConfig.VolumeDeltaRatio,
		CompressionRatio:      cfg.StructureConfig.CompressionRatio,
		StopLossPct:           cfg.StructureConfig.StopLossPct,
		TakeProfitPct:         cfg.StructureConfig.TakeProfitPct,
	}

	analyzer := analysis.NewAnalyzer(store, analysisCfg, logger)
	biases := signal.NewBiasStore(cfg.SignalConfig.MinHold, cfg.SignalConfig.OverrideScore, logger)
	tracker := trades.NewTracker(cfg.TradesConfig.MaxDuration, journal, logger)
	debouncer := notify.NewDebouncer(cfg.NotifyConfig.DebounceWindow, logger)
	engine := signal.NewEngine(analyzer, biases, tracker, debouncer, analysisCfg, logger)

	server := api.NewServer(api.ServerConfig{
		Host:           cfg.ServerConfig.Host,
		Port:           cfg.ServerConfig.Port,
		ProductionMode: cfg.ServerConfig.ProductionMode,
	}, engine, tracker, journal, debouncer, logger)

	var mon *monitor.Monitor
	if cfg.MonitorConfig.Enabled {
		mon = monitor.NewMonitor(engine, store, cfg.MonitorConfig.Symbols, cfg.MonitorConfig.Schedule, logger)
		if err := mon.Start(); err != nil {
			logger.Error().Err(err).Msg("Monitor failed to start")
			mon = nil
		}
	}

	go func() {
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("Server stopped")
		}
	}()
	logger.Info().Str("host", cfg.ServerConfig.Host).Int("port", cfg.ServerConfig.Port).Msg("API server listening")

	quit := make(chan os.Signal, 1)
	ossignal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("Shutting down")

	if mon != nil {
		mon.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.ServerConfig.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Shutdown error")
	}
	logger.Info().Msg("Stopped")
}

// buildProviders maps configured names to clients, preserving priority order.
func buildProviders(names []string) []marketdata.Provider {
	providers := make([]marketdata.Provider, 0, len(names))
	for _, name := range names {
		switch name {
		case "binance":
			providers = append(providers, marketdata.NewBinanceClient(""))
		case "bybit":
			providers = append(providers, marketdata.NewBybitClient(""))
		case "coingecko":
			providers = append(providers, marketdata.NewCoinGeckoClient(""))
		}
	}
	return providers
}
