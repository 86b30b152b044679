package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Bybit     BybitConfig     `mapstructure:"bybit"`
	Screener  ScreenerConfig  `mapstructure:"screener"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Journal   JournalConfig   `mapstructure:"journal"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// BybitConfig holds Bybit API configuration
type BybitConfig struct {
	RESTURL          string        `mapstructure:"rest_url"`
	WSURL            string        `mapstructure:"ws_url"`
	Category         string        `mapstructure:"category"`
	UpdateInterval   time.Duration `mapstructure:"update_interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
	TradesLimit      int           `mapstructure:"trades_limit"`
	MaxRetries       int           `mapstructure:"max_retries"`
	RetryDelayBase   time.Duration `mapstructure:"retry_delay_base"`
	MaxRequests      int           `mapstructure:"max_requests"`      // per rate-limit window
	RateLimitWindow  time.Duration `mapstructure:"rate_limit_window"`
	RateSafetyFactor float64       `mapstructure:"rate_safety_factor"` // fraction of the allowance actually used
	WSPingInterval   time.Duration `mapstructure:"ws_ping_interval"`
	WSEnabled        bool          `mapstructure:"ws_enabled"`
}

// ScreenerConfig holds the detection engine thresholds
type ScreenerConfig struct {
	BigTradeThreshold        float64       `mapstructure:"big_trade_threshold"`
	PriceChangeThreshold     float64       `mapstructure:"price_change_threshold"`
	VolumeSpikePct           float64       `mapstructure:"volume_spike_pct"`
	SignalCooldown           time.Duration `mapstructure:"signal_cooldown"`
	TrendConfirmationPeriods int           `mapstructure:"trend_confirmation_periods"`
	CombinedSignalBonus      float64       `mapstructure:"combined_signal_bonus"`
	MinSignalScore           float64       `mapstructure:"min_signal_score"`
	CorrelationThreshold     float64       `mapstructure:"correlation_threshold"`
	DirectionalBiasRequired  bool          `mapstructure:"directional_bias_required"`
	TopCoinsLimit            int           `mapstructure:"top_coins_limit"`
	HistoryWindow            int           `mapstructure:"history_window"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// JournalConfig holds the signal archive configuration
type JournalConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	DBPath     string `mapstructure:"db_path"`
	MaxSignals int    `mapstructure:"max_signals"`
}

// DashboardConfig holds terminal dashboard configuration
type DashboardConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	RefreshRate time.Duration `mapstructure:"refresh_rate"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	setDefaults(v)

	v.SetEnvPrefix("PERPSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Bybit defaults
	v.SetDefault("bybit.rest_url", "https://api.bybit.com")
	v.SetDefault("bybit.ws_url", "wss://stream.bybit.com/v5/public/linear")
	v.SetDefault("bybit.category", "linear")
	v.SetDefault("bybit.update_interval", "5s")
	v.SetDefault("bybit.timeout", "10s")
	v.SetDefault("bybit.trades_limit", 100)
	v.SetDefault("bybit.max_retries", 3)
	v.SetDefault("bybit.retry_delay_base", "1s")
	v.SetDefault("bybit.max_requests", 600)
	v.SetDefault("bybit.rate_limit_window", "5s")
	v.SetDefault("bybit.rate_safety_factor", 0.8)
	v.SetDefault("bybit.ws_ping_interval", "20s")
	v.SetDefault("bybit.ws_enabled", false)

	// Screener defaults
	v.SetDefault("screener.big_trade_threshold", 200000.0)
	v.SetDefault("screener.price_change_threshold", 1.5)
	v.SetDefault("screener.volume_spike_pct", 5.0)
	v.SetDefault("screener.signal_cooldown", "600s")
	v.SetDefault("screener.trend_confirmation_periods", 4)
	v.SetDefault("screener.combined_signal_bonus", 2.5)
	v.SetDefault("screener.min_signal_score", 12.0)
	v.SetDefault("screener.correlation_threshold", 0.8)
	v.SetDefault("screener.directional_bias_required", true)
	v.SetDefault("screener.top_coins_limit", 20)
	v.SetDefault("screener.history_window", 10)

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Journal defaults
	v.SetDefault("journal.enabled", false)
	v.SetDefault("journal.db_path", "")
	v.SetDefault("journal.max_signals", 1000)

	// Dashboard defaults
	v.SetDefault("dashboard.enabled", true)
	v.SetDefault("dashboard.refresh_rate", "1s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.Bybit.RESTURL == "" {
		return fmt.Errorf("bybit.rest_url is required")
	}
	if c.Bybit.Category == "" {
		return fmt.Errorf("bybit.category is required")
	}
	if c.Bybit.UpdateInterval < time.Second {
		return fmt.Errorf("bybit.update_interval must be at least 1 second")
	}
	if c.Bybit.TradesLimit < 1 || c.Bybit.TradesLimit > 1000 {
		return fmt.Errorf("bybit.trades_limit must be between 1 and 1000")
	}
	if c.Bybit.MaxRequests < 1 {
		return fmt.Errorf("bybit.max_requests must be at least 1")
	}
	if c.Bybit.RateSafetyFactor <= 0 || c.Bybit.RateSafetyFactor > 1 {
		return fmt.Errorf("bybit.rate_safety_factor must be in (0, 1]")
	}
	if c.Bybit.WSEnabled && c.Bybit.WSURL == "" {
		return fmt.Errorf("bybit.ws_url is required when the websocket stream is enabled")
	}

	if c.Screener.BigTradeThreshold <= 0 {
		return fmt.Errorf("screener.big_trade_threshold must be positive")
	}
	if c.Screener.PriceChangeThreshold <= 0 {
		return fmt.Errorf("screener.price_change_threshold must be positive")
	}
	if c.Screener.VolumeSpikePct <= 0 {
		return fmt.Errorf("screener.volume_spike_pct must be positive")
	}
	if c.Screener.SignalCooldown < time.Second {
		return fmt.Errorf("screener.signal_cooldown must be at least 1 second")
	}
	if c.Screener.TrendConfirmationPeriods < 1 {
		return fmt.Errorf("screener.trend_confirmation_periods must be at least 1")
	}
	switch c.Screener.MinSignalScore {
	case 8.0, 12.0, 16.0:
	default:
		return fmt.Errorf("screener.min_signal_score must be one of 8, 12, or 16")
	}
	if c.Screener.CorrelationThreshold < 0 || c.Screener.CorrelationThreshold > 1 {
		return fmt.Errorf("screener.correlation_threshold must be between 0.0 and 1.0")
	}
	if c.Screener.TopCoinsLimit < 1 {
		return fmt.Errorf("screener.top_coins_limit must be at least 1")
	}
	if c.Screener.HistoryWindow < 2 {
		return fmt.Errorf("screener.history_window must be at least 2")
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	if c.Journal.Enabled && c.Journal.MaxSignals < 1 {
		return fmt.Errorf("journal.max_signals must be at least 1")
	}

	if c.Dashboard.Enabled && c.Dashboard.RefreshRate < 100*time.Millisecond {
		return fmt.Errorf("dashboard.refresh_rate must be at least 100ms")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
