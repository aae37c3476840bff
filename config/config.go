package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ServerConfig     ServerConfig     `json:"server"`
	MarketDataConfig MarketDataConfig `json:"market_data"`
	RedisConfig      RedisConfig      `json:"redis"`
	StructureConfig  StructureConfig  `json:"structure"`
	SignalConfig     SignalConfig     `json:"signal"`
	TradesConfig     TradesConfig     `json:"trades"`
	NotifyConfig     NotifyConfig     `json:"notify"`
	DatabaseConfig   DatabaseConfig   `json:"database"`
	MonitorConfig    MonitorConfig    `json:"monitor"`
	LoggingConfig    LoggingConfig    `json:"logging"`
}

type ServerConfig struct {
	Host            string `json:"host"`
	Port            int    `json:"port"`
	ProductionMode  bool   `json:"production_mode"`
	ShutdownTimeout int    `json:"shutdown_timeout"` // seconds
}

// MarketDataConfig controls the candle store and its providers.
type MarketDataConfig struct {
	Providers       []string      `json:"providers"` // priority order: binance, bybit, coingecko
	ProviderTimeout time.Duration `json:"provider_timeout"`
	SnapshotMaxAge  time.Duration `json:"snapshot_max_age"`
	SnapshotDir     string        `json:"snapshot_dir"`
}

// RedisConfig holds the optional Redis snapshot tier.
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// StructureConfig holds the analysis thresholds.
type StructureConfig struct {
	PrimaryTimeframe      string  `json:"primary_timeframe"`
	PrimaryLimit          int     `json:"primary_limit"`
	DailyTimeframe        string  `json:"daily_timeframe"`
	DailyLimit            int     `json:"daily_limit"`
	MinCandles            int     `json:"min_candles"`
	EntryScore            int     `json:"entry_score"`
	SweepVolumeMultiplier float64 `json:"sweep_volume_multiplier"`
	VolumeDeltaRatio      float64 `json:"volume_delta_ratio"`
	CompressionRatio      float64 `json:"compression_ratio"`
	StopLossPct           float64 `json:"stop_loss_pct"`
	TakeProfitPct         float64 `json:"take_profit_pct"`
}

// SignalConfig holds bias persistence tunables.
type SignalConfig struct {
	MinHold       time.Duration `json:"min_hold"`
	OverrideScore int           `json:"override_score"`
}

type TradesConfig struct {
	MaxDuration time.Duration `json:"max_duration"`
}

type NotifyConfig struct {
	DebounceWindow time.Duration `json:"debounce_window"`
}

type DatabaseConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// MonitorConfig controls the optional background sweep over a watchlist.
type MonitorConfig struct {
	Enabled  bool     `json:"enabled"`
	Schedule string   `json:"schedule"` // cron expression
	Symbols  []string `json:"symbols"`
}

type LoggingConfig struct {
	Level      string `json:"level"`       // debug, info, warn, error
	JSONFormat bool   `json:"json_format"` // false gives console output
}

// Load reads config.json if present, then applies environment overrides.
// Environment always wins.
func Load() (*Config, error) {
	cfg, err := loadFromFile("config.json")
	if err != nil {
		cfg = &Config{}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", cfg.ServerConfig.Host)
	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", cfg.ServerConfig.Port)
	cfg.ServerConfig.ProductionMode = getEnvOrDefault("PRODUCTION_MODE", boolStr(cfg.ServerConfig.ProductionMode)) == "true"
	cfg.ServerConfig.ShutdownTimeout = getEnvIntOrDefault("SERVER_SHUTDOWN_TIMEOUT", cfg.ServerConfig.ShutdownTimeout)

	if providers := os.Getenv("MARKET_DATA_PROVIDERS"); providers != "" {
		cfg.MarketDataConfig.Providers = splitList(providers)
	}
	cfg.MarketDataConfig.ProviderTimeout = getEnvDurationOrDefault("MARKET_DATA_PROVIDER_TIMEOUT", cfg.MarketDataConfig.ProviderTimeout)
	cfg.MarketDataConfig.SnapshotMaxAge = getEnvDurationOrDefault("MARKET_DATA_SNAPSHOT_MAX_AGE", cfg.MarketDataConfig.SnapshotMaxAge)
	cfg.MarketDataConfig.SnapshotDir = getEnvOrDefault("MARKET_DATA_SNAPSHOT_DIR", cfg.MarketDataConfig.SnapshotDir)

	cfg.RedisConfig.Enabled = getEnvOrDefault("REDIS_ENABLED", boolStr(cfg.RedisConfig.Enabled)) == "true"
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", cfg.RedisConfig.Address)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)
	cfg.RedisConfig.PoolSize = getEnvIntOrDefault("REDIS_POOL_SIZE", cfg.RedisConfig.PoolSize)

	cfg.StructureConfig.PrimaryTimeframe = getEnvOrDefault("STRUCTURE_PRIMARY_TIMEFRAME", cfg.StructureConfig.PrimaryTimeframe)
	cfg.StructureConfig.EntryScore = getEnvIntOrDefault("STRUCTURE_ENTRY_SCORE", cfg.StructureConfig.EntryScore)
	cfg.StructureConfig.MinCandles = getEnvIntOrDefault("STRUCTURE_MIN_CANDLES", cfg.StructureConfig.MinCandles)
	cfg.StructureConfig.SweepVolumeMultiplier = getEnvFloatOrDefault("STRUCTURE_SWEEP_VOLUME_MULTIPLIER", cfg.StructureConfig.SweepVolumeMultiplier)
	cfg.StructureConfig.VolumeDeltaRatio = getEnvFloatOrDefault("STRUCTURE_VOLUME_DELTA_RATIO", cfg.StructureConfig.VolumeDeltaRatio)
	cfg.StructureConfig.CompressionRatio = getEnvFloatOrDefault("STRUCTURE_COMPRESSION_RATIO", cfg.StructureConfig.CompressionRatio)
	cfg.StructureConfig.StopLossPct = getEnvFloatOrDefault("STRUCTURE_STOP_LOSS_PCT", cfg.StructureConfig.StopLossPct)
	cfg.StructureConfig.TakeProfitPct = getEnvFloatOrDefault("STRUCTURE_TAKE_PROFIT_PCT", cfg.StructureConfig.TakeProfitPct)

	cfg.SignalConfig.MinHold = getEnvDurationOrDefault("SIGNAL_MIN_HOLD", cfg.SignalConfig.MinHold)
	cfg.SignalConfig.OverrideScore = getEnvIntOrDefault("SIGNAL_OVERRIDE_SCORE", cfg.SignalConfig.OverrideScore)

	cfg.TradesConfig.MaxDuration = getEnvDurationOrDefault("TRADES_MAX_DURATION", cfg.TradesConfig.MaxDuration)
	cfg.NotifyConfig.DebounceWindow = getEnvDurationOrDefault("NOTIFY_DEBOUNCE_WINDOW", cfg.NotifyConfig.DebounceWindow)

	cfg.DatabaseConfig.Enabled = getEnvOrDefault("DATABASE_ENABLED", boolStr(cfg.DatabaseConfig.Enabled)) == "true"
	cfg.DatabaseConfig.Host = getEnvOrDefault("DATABASE_HOST", cfg.DatabaseConfig.Host)
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DATABASE_PORT", cfg.DatabaseConfig.Port)
	cfg.DatabaseConfig.User = getEnvOrDefault("DATABASE_USER", cfg.DatabaseConfig.User)
	cfg.DatabaseConfig.Password = getEnvOrDefault("DATABASE_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DATABASE_NAME", cfg.DatabaseConfig.Database)
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DATABASE_SSL_MODE", cfg.DatabaseConfig.SSLMode)

	cfg.MonitorConfig.Enabled = getEnvOrDefault("MONITOR_ENABLED", boolStr(cfg.MonitorConfig.Enabled)) == "true"
	cfg.MonitorConfig.Schedule = getEnvOrDefault("MONITOR_SCHEDULE", cfg.MonitorConfig.Schedule)
	if symbols := os.Getenv("MONITOR_SYMBOLS"); symbols != "" {
		cfg.MonitorConfig.Symbols = splitList(symbols)
	}

	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	cfg.LoggingConfig.JSONFormat = getEnvOrDefault("LOG_JSON", boolStr(cfg.LoggingConfig.JSONFormat)) == "true"
}

func applyDefaults(cfg *Config) {
	if cfg.ServerConfig.Host == "" {
		cfg.ServerConfig.Host = "0.0.0.0"
	}
	if cfg.ServerConfig.Port == 0 {
		cfg.ServerConfig.Port = 8080
	}
	if cfg.ServerConfig.ShutdownTimeout == 0 {
		cfg.ServerConfig.ShutdownTimeout = 10
	}

	if len(cfg.MarketDataConfig.Providers) == 0 {
		cfg.MarketDataConfig.Providers = []string{"binance", "bybit", "coingecko"}
	}
	if cfg.MarketDataConfig.ProviderTimeout == 0 {
		cfg.MarketDataConfig.ProviderTimeout = 15 * time.Second
	}
	if cfg.MarketDataConfig.SnapshotMaxAge == 0 {
		cfg.MarketDataConfig.SnapshotMaxAge = 24 * time.Hour
	}
	if cfg.MarketDataConfig.SnapshotDir == "" {
		cfg.MarketDataConfig.SnapshotDir = "data/snapshots"
	}

	if cfg.RedisConfig.Address == "" {
		cfg.RedisConfig.Address = "localhost:6379"
	}
	if cfg.RedisConfig.PoolSize == 0 {
		cfg.RedisConfig.PoolSize = 10
	}

	if cfg.StructureConfig.PrimaryTimeframe == "" {
		cfg.StructureConfig.PrimaryTimeframe = "4h"
	}
	if cfg.StructureConfig.PrimaryLimit == 0 {
		cfg.StructureConfig.PrimaryLimit = 200
	}
	if cfg.StructureConfig.DailyTimeframe == "" {
		cfg.StructureConfig.DailyTimeframe = "1d"
	}
	if cfg.StructureConfig.DailyLimit == 0 {
		cfg.StructureConfig.DailyLimit = 100
	}
	if cfg.StructureConfig.MinCandles == 0 {
		cfg.StructureConfig.MinCandles = 50
	}
	if cfg.StructureConfig.EntryScore == 0 {
		cfg.StructureConfig.EntryScore = 7
	}
	if cfg.StructureConfig.SweepVolumeMultiplier == 0 {
		cfg.StructureConfig.SweepVolumeMultiplier = 1.5
	}
	if cfg.StructureConfig.VolumeDeltaRatio == 0 {
		cfg.StructureConfig.VolumeDeltaRatio = 1.3
	}
	if cfg.StructureConfig.CompressionRatio == 0 {
		cfg.StructureConfig.CompressionRatio = 0.7
	}
	if cfg.StructureConfig.StopLossPct == 0 {
		cfg.StructureConfig.StopLossPct = 0.03
	}
	if cfg.StructureConfig.TakeProfitPct == 0 {
		cfg.StructureConfig.TakeProfitPct = 0.10
	}

	if cfg.SignalConfig.MinHold == 0 {
		cfg.SignalConfig.MinHold = 4 * time.Hour
	}
	if cfg.SignalConfig.OverrideScore == 0 {
		cfg.SignalConfig.OverrideScore = 8
	}

	if cfg.TradesConfig.MaxDuration == 0 {
		cfg.TradesConfig.MaxDuration = 24 * time.Hour
	}
	if cfg.NotifyConfig.DebounceWindow == 0 {
		cfg.NotifyConfig.DebounceWindow = 180 * time.Second
	}

	if cfg.DatabaseConfig.Host == "" {
		cfg.DatabaseConfig.Host = "localhost"
	}
	if cfg.DatabaseConfig.Port == 0 {
		cfg.DatabaseConfig.Port = 5432
	}
	if cfg.DatabaseConfig.SSLMode == "" {
		cfg.DatabaseConfig.SSLMode = "disable"
	}

	if cfg.MonitorConfig.Schedule == "" {
		cfg.MonitorConfig.Schedule = "*/5 * * * *"
	}
	if len(cfg.MonitorConfig.Symbols) == 0 {
		cfg.MonitorConfig.Symbols = []string{"BTC", "ETH", "SOL"}
	}

	if cfg.LoggingConfig.Level == "" {
		cfg.LoggingConfig.Level = "info"
	}
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func boolStr(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
