// Package config loads and validates the application configuration.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/tradewatch/gapsentry/internal/session"
)

// Config is the complete application configuration, loaded once at startup
// and passed by reference into the components.
type Config struct {
	Scanner  ScannerConfig  `mapstructure:"scanner"`
	Session  SessionConfig  `mapstructure:"session"`
	Filter   FilterConfig   `mapstructure:"filter"`
	Score    ScoreConfig    `mapstructure:"score"`
	Market   MarketConfig   `mapstructure:"market"`
	Enrich   EnrichConfig   `mapstructure:"enrich"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ScannerConfig holds the scan cadence and cycle limits.
type ScannerConfig struct {
	Interval          time.Duration `mapstructure:"interval"`
	CycleBudget       time.Duration `mapstructure:"cycle_budget"`
	CallTimeout       time.Duration `mapstructure:"call_timeout"`
	MaxAlertsPerCycle int           `mapstructure:"max_alerts_per_cycle"`
	Universe          []string      `mapstructure:"universe"`
}

// SessionConfig holds the trading session windows and enable flags.
type SessionConfig struct {
	Timezone             string `mapstructure:"timezone"`
	PremarketStart       string `mapstructure:"premarket_start"`
	PremarketEnd         string `mapstructure:"premarket_end"`
	MarketOpen           string `mapstructure:"market_open"`
	MarketClose          string `mapstructure:"market_close"`
	AfterHoursEnd        string `mapstructure:"afterhours_end"`
	EnablePremarket      bool   `mapstructure:"enable_premarket"`
	EnableAfterHours     bool   `mapstructure:"enable_afterhours"`
	WeekendPause         bool   `mapstructure:"weekend_pause"`
	RegularMultiplier    int    `mapstructure:"regular_multiplier"`
	AfterHoursMultiplier int    `mapstructure:"afterhours_multiplier"`
}

// FilterConfig holds the gap candidate thresholds.
type FilterConfig struct {
	MinGapPercent    float64 `mapstructure:"min_gap_percent"`
	MinPrice         float64 `mapstructure:"min_price"`
	MaxPrice         float64 `mapstructure:"max_price"`
	MaxFloatMillions float64 `mapstructure:"max_float_millions"`
}

// ScoreConfig holds the scoring weights and saturation points.
type ScoreConfig struct {
	MaxScale              float64 `mapstructure:"max_scale"`
	GapMax                float64 `mapstructure:"gap_max"`
	VolumeMax             float64 `mapstructure:"volume_max"`
	FloatMax              float64 `mapstructure:"float_max"`
	HistoricalMax         float64 `mapstructure:"historical_max"`
	AIMax                 float64 `mapstructure:"ai_max"`
	GapSaturationPercent  float64 `mapstructure:"gap_saturation_percent"`
	VolumeSaturationRatio float64 `mapstructure:"volume_saturation_ratio"`
}

// MarketConfig holds the market-data provider settings.
type MarketConfig struct {
	BaseURL    string  `mapstructure:"base_url"`
	APIKey     string  `mapstructure:"api_key"`
	APISecret  string  `mapstructure:"api_secret"`
	RatePerSec float64 `mapstructure:"rate_per_sec"`
	Burst      int     `mapstructure:"burst"`
}

// EnrichConfig holds the optional enrichment provider settings.
type EnrichConfig struct {
	Historical HistoricalConfig `mapstructure:"historical"`
	AI         AIConfig         `mapstructure:"ai"`
}

// HistoricalConfig configures the historical statistics provider.
type HistoricalConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BaseURL  string `mapstructure:"base_url"`
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

// AIConfig configures the AI insight provider.
type AIConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
}

// TelegramConfig holds the alert delivery settings.
type TelegramConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// StorageConfig holds the checkpoint store settings.
type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// LoggingConfig holds the logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	setDefaults(v)

	v.SetEnvPrefix("GAPSENTRY")
	v.AutomaticEnv()
	bindLegacyEnv(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// bindLegacyEnv keeps the historically recognized environment names working.
func bindLegacyEnv(v *viper.Viper) {
	_ = v.BindEnv("scanner.interval", "SCANNER_INTERVAL")
	_ = v.BindEnv("session.enable_premarket", "ENABLE_PREMARKET")
	_ = v.BindEnv("session.enable_afterhours", "ENABLE_AFTERHOURS")
	_ = v.BindEnv("session.weekend_pause", "WEEKEND_PAUSE")
	_ = v.BindEnv("filter.min_gap_percent", "MIN_GAP_PERCENT")
	_ = v.BindEnv("filter.min_price", "MIN_PRICE")
	_ = v.BindEnv("filter.max_price", "MAX_PRICE")
	_ = v.BindEnv("filter.max_float_millions", "MAX_FLOAT_MILLIONS")
}

// defaultUniverse is the stock small-cap watchlist, overridable in YAML.
var defaultUniverse = []string{
	"KLTO", "KZIA", "VTAK", "HSDT", "CARM", "OEGD", "KNW", "SIR",
	"SXTC", "IMPP", "INDO", "BFRI", "XELA", "MULN", "BBIG", "PROG",
	"ATER", "GFAI", "RDBX", "NEGG", "BKKT", "DWAC", "PHUN", "MARK",
	"IZEA", "NAKD", "SNDL", "CLOV", "WKHS", "RIDE", "NKLA", "GOEV",
	"AMC", "GME", "BBBY", "SOFI", "PLTR", "NIO", "MARA", "RIOT",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("scanner.interval", "5m")
	v.SetDefault("scanner.cycle_budget", "2m")
	v.SetDefault("scanner.call_timeout", "20s")
	v.SetDefault("scanner.max_alerts_per_cycle", 5)
	v.SetDefault("scanner.universe", defaultUniverse)

	v.SetDefault("session.timezone", "America/New_York")
	v.SetDefault("session.premarket_start", "04:00")
	v.SetDefault("session.premarket_end", "09:30")
	v.SetDefault("session.market_open", "09:30")
	v.SetDefault("session.market_close", "16:00")
	v.SetDefault("session.afterhours_end", "20:00")
	v.SetDefault("session.enable_premarket", true)
	v.SetDefault("session.enable_afterhours", false)
	v.SetDefault("session.weekend_pause", true)
	v.SetDefault("session.regular_multiplier", 2)
	v.SetDefault("session.afterhours_multiplier", 3)

	v.SetDefault("filter.min_gap_percent", 5.0)
	v.SetDefault("filter.min_price", 0.50)
	v.SetDefault("filter.max_price", 20.00)
	v.SetDefault("filter.max_float_millions", 50.0)

	v.SetDefault("score.max_scale", 100.0)
	v.SetDefault("score.gap_max", 25.0)
	v.SetDefault("score.volume_max", 20.0)
	v.SetDefault("score.float_max", 15.0)
	v.SetDefault("score.historical_max", 40.0)
	v.SetDefault("score.ai_max", 10.0)
	v.SetDefault("score.gap_saturation_percent", 25.0)
	v.SetDefault("score.volume_saturation_ratio", 5.0)

	v.SetDefault("market.rate_per_sec", 5.0)
	v.SetDefault("market.burst", 2)

	v.SetDefault("enrich.historical.enabled", false)
	v.SetDefault("enrich.ai.enabled", false)
	v.SetDefault("enrich.ai.model", "gpt-4o-mini")

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	v.SetDefault("storage.db_path", "./data/gapsentry.db")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are usable. Any error here
// is fatal at startup.
func (c *Config) Validate() error {
	if c.Scanner.Interval < time.Second {
		return fmt.Errorf("scanner.interval must be at least 1 second")
	}
	if c.Scanner.CycleBudget < time.Second {
		return fmt.Errorf("scanner.cycle_budget must be at least 1 second")
	}
	if c.Scanner.CallTimeout <= 0 {
		return fmt.Errorf("scanner.call_timeout must be positive")
	}
	if len(c.Scanner.Universe) == 0 {
		return fmt.Errorf("scanner.universe must contain at least one symbol")
	}

	if _, err := time.LoadLocation(c.Session.Timezone); err != nil {
		return fmt.Errorf("session.timezone: %w", err)
	}
	boundaries := map[string]string{
		"session.premarket_start": c.Session.PremarketStart,
		"session.premarket_end":   c.Session.PremarketEnd,
		"session.market_open":     c.Session.MarketOpen,
		"session.market_close":    c.Session.MarketClose,
		"session.afterhours_end":  c.Session.AfterHoursEnd,
	}
	for key, val := range boundaries {
		if _, err := session.ParseClockTime(val); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	if c.Session.RegularMultiplier < 1 {
		return fmt.Errorf("session.regular_multiplier must be at least 1")
	}
	if c.Session.AfterHoursMultiplier < 1 {
		return fmt.Errorf("session.afterhours_multiplier must be at least 1")
	}

	if c.Filter.MinPrice < 0 {
		return fmt.Errorf("filter.min_price must not be negative")
	}
	if c.Filter.MaxPrice <= c.Filter.MinPrice {
		return fmt.Errorf("filter.max_price must exceed filter.min_price")
	}
	if c.Filter.MaxFloatMillions < 0 {
		return fmt.Errorf("filter.max_float_millions must not be negative")
	}

	if c.Score.MaxScale <= 0 {
		return fmt.Errorf("score.max_scale must be positive")
	}
	for key, val := range map[string]float64{
		"score.gap_max":        c.Score.GapMax,
		"score.volume_max":     c.Score.VolumeMax,
		"score.float_max":      c.Score.FloatMax,
		"score.historical_max": c.Score.HistoricalMax,
		"score.ai_max":         c.Score.AIMax,
	} {
		if val < 0 {
			return fmt.Errorf("%s must not be negative", key)
		}
	}
	if c.Score.GapSaturationPercent <= 0 {
		return fmt.Errorf("score.gap_saturation_percent must be positive")
	}
	if c.Score.VolumeSaturationRatio <= 0 {
		return fmt.Errorf("score.volume_saturation_ratio must be positive")
	}

	if c.Market.BaseURL == "" {
		return fmt.Errorf("market.base_url is required")
	}

	if c.Enrich.Historical.Enabled {
		if c.Enrich.Historical.BaseURL == "" {
			return fmt.Errorf("enrich.historical.base_url is required when enabled")
		}
		if c.Enrich.Historical.Email == "" || c.Enrich.Historical.Password == "" {
			return fmt.Errorf("enrich.historical credentials are required when enabled")
		}
	}
	if c.Enrich.AI.Enabled {
		if c.Enrich.AI.BaseURL == "" {
			return fmt.Errorf("enrich.ai.base_url is required when enabled")
		}
		if c.Enrich.AI.APIKey == "" {
			return fmt.Errorf("enrich.ai.api_key is required when enabled")
		}
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
		if c.Telegram.MaxRetries < 1 {
			return fmt.Errorf("telegram.max_retries must be at least 1")
		}
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

// SessionWindows builds the session clock windows from the validated config.
func (c *Config) SessionWindows() (session.Windows, error) {
	loc, err := time.LoadLocation(c.Session.Timezone)
	if err != nil {
		return session.Windows{}, fmt.Errorf("session.timezone: %w", err)
	}
	win := session.Windows{
		Location:         loc,
		EnablePremarket:  c.Session.EnablePremarket,
		EnableAfterHours: c.Session.EnableAfterHours,
		WeekendPause:     c.Session.WeekendPause,
	}
	for _, b := range []struct {
		dst *session.ClockTime
		val string
	}{
		{&win.PremarketStart, c.Session.PremarketStart},
		{&win.PremarketEnd, c.Session.PremarketEnd},
		{&win.MarketOpen, c.Session.MarketOpen},
		{&win.MarketClose, c.Session.MarketClose},
		{&win.AfterHoursEnd, c.Session.AfterHoursEnd},
	} {
		t, err := session.ParseClockTime(b.val)
		if err != nil {
			return session.Windows{}, err
		}
		*b.dst = t
	}
	return win, nil
}
