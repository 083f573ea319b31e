// Package config handles configuration management with validation
package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration structure
type Config struct {
	App         AppConfig              `yaml:"app"`
	Venues      map[string]VenueConfig `yaml:"venues"`
	Risk        RiskConfig             `yaml:"risk"`
	Arbitrage   ArbitrageConfig        `yaml:"arbitrage"`
	Backtest    BacktestConfig         `yaml:"backtest"`
	Scheduler   SchedulerConfig        `yaml:"scheduler"`
	Concurrency ConcurrencyConfig      `yaml:"concurrency"`
	Store       StoreConfig            `yaml:"store"`
	Notify      NotifyConfig           `yaml:"notify"`
	Telemetry   TelemetryConfig        `yaml:"telemetry"`
	System      SystemConfig           `yaml:"system"`
}

// AppConfig contains application-level settings
type AppConfig struct {
	Name         string   `yaml:"name"`
	ActiveVenues []string `yaml:"active_venues"`
	Symbol       string   `yaml:"symbol"`    // symbol traded on signals
	Timeframe    string   `yaml:"timeframe"` // timeframe attached to signals
}

// VenueConfig describes one paper venue
type VenueConfig struct {
	Type             string             `yaml:"type"`
	StartingBalance  float64            `yaml:"starting_balance"`
	PriceSkewPercent float64            `yaml:"price_skew_percent"`
	StrictSymbols    bool               `yaml:"strict_symbols"`
	Holdings         map[string]float64 `yaml:"holdings"`
	ExcludeFromQuote bool               `yaml:"exclude_from_quote"` // trade on it but leave it out of arbitrage scans
}

// RiskConfig contains the live risk budget. Percent fields are in percent units.
type RiskConfig struct {
	RiskPerTradePercent  float64       `yaml:"risk_per_trade_percent"`
	StopLossPercent      float64       `yaml:"stop_loss_percent"`
	TakeProfitPercent    float64       `yaml:"take_profit_percent"`
	MaxPositions         int           `yaml:"max_positions"`
	MaxPositionPercent   float64       `yaml:"max_position_percent"`
	MinConfidence        float64       `yaml:"min_confidence"`
	MaxConsecutiveLosses int           `yaml:"max_consecutive_losses"`
	MaxLossAmount        float64       `yaml:"max_loss_amount"`
	CooldownPeriod       time.Duration `yaml:"cooldown_period"`
	LotBands             []LotBand     `yaml:"lot_bands"`
}

// LotBand is one minimum-lot floor. A price below Below trades at least MinLot.
// Below 0 marks the catch-all last band.
type LotBand struct {
	Below  float64 `yaml:"below"`
	MinLot float64 `yaml:"min_lot"`
}

// DefaultLotBands returns the seven stock price bands
func DefaultLotBands() []LotBand {
	return []LotBand{
		{Below: 0.01, MinLot: 10000},
		{Below: 0.1, MinLot: 1000},
		{Below: 1, MinLot: 100},
		{Below: 10, MinLot: 10},
		{Below: 100, MinLot: 1},
		{Below: 1000, MinLot: 0.1},
		{Below: 0, MinLot: 0.01},
	}
}

// ArbitrageConfig contains scan and auto-execution settings
type ArbitrageConfig struct {
	Universe             []string           `yaml:"universe"`
	Amounts              map[string]float64 `yaml:"amounts"`
	DefaultAmount        float64            `yaml:"default_amount"`
	ReportThreshold      float64            `yaml:"report_threshold"`
	AutoExecute          bool               `yaml:"auto_execute"`
	AutoExecuteThreshold float64            `yaml:"auto_execute_threshold"`
	FeeRate              float64            `yaml:"fee_rate"`
	VenueTimeout         time.Duration      `yaml:"venue_timeout"`
	MaxRetries           int                `yaml:"max_retries"`
	BreakerFailures      uint               `yaml:"breaker_failures"`
	BreakerWindow        uint               `yaml:"breaker_window"`
	BreakerDelay         time.Duration      `yaml:"breaker_delay"`
}

// BacktestConfig contains defaults for backtest and optimize runs
type BacktestConfig struct {
	StartingCapital        float64   `yaml:"starting_capital"`
	Symbol                 string    `yaml:"symbol"`
	Timeframe              string    `yaml:"timeframe"`
	StartDate              string    `yaml:"start_date"`
	EndDate                string    `yaml:"end_date"`
	ConfidenceThreshold    float64   `yaml:"confidence_threshold"`
	MaxPositionCostPercent float64   `yaml:"max_position_cost_percent"`
	RiskPerTradePercent    float64   `yaml:"risk_per_trade_percent"`
	StopLossPercent        float64   `yaml:"stop_loss_percent"`
	TakeProfitPercent      float64   `yaml:"take_profit_percent"`
	MaxPositions           int       `yaml:"max_positions"`
	LotBands               []LotBand `yaml:"lot_bands"`
	EnforceStops           bool      `yaml:"enforce_stops"`
	Seed                   uint64    `yaml:"seed"`
	OutputDir              string    `yaml:"output_dir"`
}

// SchedulerConfig contains the live job intervals
type SchedulerConfig struct {
	MonitorInterval   time.Duration `yaml:"monitor_interval"`
	ArbitrageInterval time.Duration `yaml:"arbitrage_interval"`
	RiskInterval      time.Duration `yaml:"risk_interval"`
	AutosaveInterval  time.Duration `yaml:"autosave_interval"`
}

// ConcurrencyConfig contains worker pool and rate limit settings
type ConcurrencyConfig struct {
	QuotePoolSize     int           `yaml:"quote_pool_size"`
	QuotePoolBuffer   int           `yaml:"quote_pool_buffer"`
	OptimizePoolSize  int           `yaml:"optimize_pool_size"`
	OrderRateLimit    float64       `yaml:"order_rate_limit"`
	OrderBurst        int           `yaml:"order_burst"`
	NotifySinkTimeout time.Duration `yaml:"notify_sink_timeout"`
}

// StoreConfig selects the snapshot store
type StoreConfig struct {
	Type string `yaml:"type"` // memory or sqlite
	Path string `yaml:"path"`
}

// NotifyConfig contains notification sink settings
type NotifyConfig struct {
	LogEvents bool        `yaml:"log_events"`
	Redis     RedisConfig `yaml:"redis"`
}

// RedisConfig points the event sink at a Redis stream
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	DB       int    `yaml:"db"`
	Username string `yaml:"username"`
	Password Secret `yaml:"password"`
	Stream   string `yaml:"stream"`
	MaxLen   int64  `yaml:"max_len"`
}

// TelemetryConfig contains telemetry settings
type TelemetryConfig struct {
	MetricsPort   int  `yaml:"metrics_port"`
	EnableMetrics bool `yaml:"enable_metrics"`
	StdoutTraces  bool `yaml:"stdout_traces"`
	StdoutLogs    bool `yaml:"stdout_logs"`
}

// SystemConfig contains system settings
type SystemConfig struct {
	LogLevel string `yaml:"log_level"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (value: %v): %s", e.Field, e.Value, e.Message)
}

var validTimeframes = []string{"1m", "5m", "15m", "1h", "4h", "1d"}

// LoadConfig loads configuration from a YAML file with environment variable expansion.
// Fields missing from the file keep their DefaultConfig values. Map sections such as
// venues are merged over the defaults, so only app.active_venues decides what is built.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config, err := Parse([]byte(expandEnvVars(string(data))))
	if err != nil {
		return nil, err
	}
	return config, nil
}

// Parse decodes YAML over the defaults and validates the result
func Parse(data []byte) (*Config, error) {
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	var errs []string

	for _, validate := range []func() error{
		c.validateAppConfig,
		c.validateVenues,
		c.validateRiskConfig,
		c.validateArbitrageConfig,
		c.validateBacktestConfig,
		c.validateSchedulerConfig,
		c.validateStoreConfig,
		c.validateNotifyConfig,
		c.validateSystemConfig,
	} {
		if err := validate(); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errs, "\n"))
	}
	return nil
}

func (c *Config) validateAppConfig() error {
	if len(c.App.ActiveVenues) == 0 {
		return ValidationError{
			Field:   "app.active_venues",
			Message: "at least one venue must be active",
		}
	}
	for _, name := range c.App.ActiveVenues {
		if _, exists := c.Venues[name]; !exists {
			return ValidationError{
				Field:   "app.active_venues",
				Value:   name,
				Message: "venue configuration not found in venues section",
			}
		}
	}
	if c.App.Symbol == "" {
		return ValidationError{
			Field:   "app.symbol",
			Message: "trading symbol is required",
		}
	}
	if !slices.Contains(validTimeframes, c.App.Timeframe) {
		return ValidationError{
			Field:   "app.timeframe",
			Value:   c.App.Timeframe,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validTimeframes, ", ")),
		}
	}
	return nil
}

func (c *Config) validateVenues() error {
	if len(c.Venues) == 0 {
		return ValidationError{
			Field:   "venues",
			Message: "at least one venue must be configured",
		}
	}

	for name, venue := range c.Venues {
		if venue.Type != "paper" {
			return ValidationError{
				Field:   fmt.Sprintf("venues.%s.type", name),
				Value:   venue.Type,
				Message: "must be one of: paper",
			}
		}
		if venue.StartingBalance < 0 {
			return ValidationError{
				Field:   fmt.Sprintf("venues.%s.starting_balance", name),
				Value:   venue.StartingBalance,
				Message: "starting balance cannot be negative",
			}
		}
		if venue.PriceSkewPercent <= -100 {
			return ValidationError{
				Field:   fmt.Sprintf("venues.%s.price_skew_percent", name),
				Value:   venue.PriceSkewPercent,
				Message: "skew must be greater than -100",
			}
		}
	}
	return nil
}

func (c *Config) validateRiskConfig() error {
	r := c.Risk
	if r.RiskPerTradePercent <= 0 || r.RiskPerTradePercent > 100 {
		return ValidationError{Field: "risk.risk_per_trade_percent", Value: r.RiskPerTradePercent, Message: "must be in (0, 100]"}
	}
	if r.StopLossPercent <= 0 || r.StopLossPercent >= 100 {
		return ValidationError{Field: "risk.stop_loss_percent", Value: r.StopLossPercent, Message: "must be in (0, 100)"}
	}
	if r.TakeProfitPercent <= 0 {
		return ValidationError{Field: "risk.take_profit_percent", Value: r.TakeProfitPercent, Message: "must be positive"}
	}
	if r.MaxPositions < 1 {
		return ValidationError{Field: "risk.max_positions", Value: r.MaxPositions, Message: "must be at least 1"}
	}
	if r.MaxPositionPercent <= 0 || r.MaxPositionPercent > 100 {
		return ValidationError{Field: "risk.max_position_percent", Value: r.MaxPositionPercent, Message: "must be in (0, 100]"}
	}
	if r.MinConfidence < 0 || r.MinConfidence > 1 {
		return ValidationError{Field: "risk.min_confidence", Value: r.MinConfidence, Message: "must be in [0, 1]"}
	}
	return validateLotBands("risk.lot_bands", r.LotBands)
}

// validateLotBands requires rising price bounds with non-increasing lots,
// and allows an open-ended band only in last place
func validateLotBands(field string, bands []LotBand) error {
	for i, b := range bands {
		name := fmt.Sprintf("%s[%d]", field, i)
		if b.MinLot < 0 || b.Below < 0 {
			return ValidationError{Field: name, Value: b, Message: "below and min_lot cannot be negative"}
		}
		if b.Below == 0 && i != len(bands)-1 {
			return ValidationError{Field: name, Value: b, Message: "only the last band may be open-ended"}
		}
		if i == 0 {
			continue
		}
		prev := bands[i-1]
		if b.Below != 0 && b.Below <= prev.Below {
			return ValidationError{Field: name + ".below", Value: b.Below, Message: "must increase from band to band"}
		}
		if b.MinLot > prev.MinLot {
			return ValidationError{Field: name + ".min_lot", Value: b.MinLot, Message: "must not exceed a cheaper band's lot"}
		}
	}
	return nil
}

func (c *Config) validateArbitrageConfig() error {
	a := c.Arbitrage
	if a.ReportThreshold < 0 {
		return ValidationError{Field: "arbitrage.report_threshold", Value: a.ReportThreshold, Message: "cannot be negative"}
	}
	if a.AutoExecute && a.AutoExecuteThreshold <= 0 {
		return ValidationError{Field: "arbitrage.auto_execute_threshold", Value: a.AutoExecuteThreshold, Message: "must be positive when auto execution is enabled"}
	}
	if a.FeeRate < 0 || a.FeeRate >= 1 {
		return ValidationError{Field: "arbitrage.fee_rate", Value: a.FeeRate, Message: "must be in [0, 1)"}
	}
	if a.VenueTimeout <= 0 {
		return ValidationError{Field: "arbitrage.venue_timeout", Value: a.VenueTimeout, Message: "must be positive"}
	}
	for symbol, amount := range a.Amounts {
		if amount <= 0 {
			return ValidationError{Field: "arbitrage.amounts." + symbol, Value: amount, Message: "must be positive"}
		}
	}
	return nil
}

func (c *Config) validateBacktestConfig() error {
	b := c.Backtest
	if b.StartingCapital <= 0 {
		return ValidationError{Field: "backtest.starting_capital", Value: b.StartingCapital, Message: "must be positive"}
	}
	if !slices.Contains(validTimeframes, b.Timeframe) {
		return ValidationError{
			Field:   "backtest.timeframe",
			Value:   b.Timeframe,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validTimeframes, ", ")),
		}
	}
	start, end, err := b.Period()
	if err != nil {
		return ValidationError{Field: "backtest.start_date", Value: b.StartDate + ".." + b.EndDate, Message: err.Error()}
	}
	if !end.After(start) {
		return ValidationError{Field: "backtest.end_date", Value: b.EndDate, Message: "must be after start_date"}
	}
	if b.ConfidenceThreshold < 0 || b.ConfidenceThreshold > 1 {
		return ValidationError{Field: "backtest.confidence_threshold", Value: b.ConfidenceThreshold, Message: "must be in [0, 1]"}
	}
	return validateLotBands("backtest.lot_bands", b.LotBands)
}

// Period parses the backtest date range
func (b BacktestConfig) Period() (time.Time, time.Time, error) {
	start, err := time.Parse(time.DateOnly, b.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start date: %w", err)
	}
	end, err := time.Parse(time.DateOnly, b.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end date: %w", err)
	}
	return start, end, nil
}

func (c *Config) validateSchedulerConfig() error {
	s := c.Scheduler
	intervals := map[string]time.Duration{
		"scheduler.monitor_interval":   s.MonitorInterval,
		"scheduler.arbitrage_interval": s.ArbitrageInterval,
		"scheduler.risk_interval":      s.RiskInterval,
		"scheduler.autosave_interval":  s.AutosaveInterval,
	}
	for field, d := range intervals {
		if d < time.Second {
			return ValidationError{Field: field, Value: d, Message: "must be at least 1s"}
		}
	}
	return nil
}

func (c *Config) validateStoreConfig() error {
	switch c.Store.Type {
	case "memory":
	case "sqlite":
		if c.Store.Path == "" {
			return ValidationError{Field: "store.path", Message: "path is required for sqlite store"}
		}
	default:
		return ValidationError{Field: "store.type", Value: c.Store.Type, Message: "must be one of: memory, sqlite"}
	}
	return nil
}

func (c *Config) validateNotifyConfig() error {
	if c.Notify.Redis.Enabled && c.Notify.Redis.Addr == "" {
		return ValidationError{Field: "notify.redis.addr", Message: "address is required when redis is enabled"}
	}
	return nil
}

func (c *Config) validateSystemConfig() error {
	validLevels := []string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}
	if !slices.Contains(validLevels, strings.ToUpper(c.System.LogLevel)) {
		return ValidationError{
			Field:   "system.log_level",
			Value:   c.System.LogLevel,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validLevels, ", ")),
		}
	}
	return nil
}

// String returns a string representation of the configuration (with sensitive data masked)
func (c *Config) String() string {
	data, _ := yaml.Marshal(c)
	return string(data)
}

// Helper functions

func expandEnvVars(s string) string {
	return os.Expand(s, os.Getenv)
}

// DefaultConfig returns the stock configuration: two paper venues, the second
// priced 0.8% higher and holding some BTC so auto-execution has both legs.
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:         "tradecore",
			ActiveVenues: []string{"paper-a", "paper-b"},
			Symbol:       "BTC/USD",
			Timeframe:    "1h",
		},
		Venues: map[string]VenueConfig{
			"paper-a": {
				Type:            "paper",
				StartingBalance: 10000,
			},
			"paper-b": {
				Type:             "paper",
				StartingBalance:  10000,
				PriceSkewPercent: 0.8,
				Holdings:         map[string]float64{"BTC/USD": 0.05, "BTC/USDT": 0.05},
			},
		},
		Risk: RiskConfig{
			RiskPerTradePercent:  2,
			StopLossPercent:      3,
			TakeProfitPercent:    6,
			MaxPositions:         5,
			MaxPositionPercent:   10,
			MinConfidence:        0.3,
			MaxConsecutiveLosses: 5,
			CooldownPeriod:       30 * time.Minute,
			LotBands:             DefaultLotBands(),
		},
		Arbitrage: ArbitrageConfig{
			DefaultAmount:        0.01,
			ReportThreshold:      0.1,
			AutoExecute:          true,
			AutoExecuteThreshold: 0.5,
			VenueTimeout:         3 * time.Second,
			MaxRetries:           2,
			BreakerFailures:      5,
			BreakerWindow:        10,
			BreakerDelay:         30 * time.Second,
		},
		Backtest: BacktestConfig{
			StartingCapital:        10000,
			Symbol:                 "BTC/USD",
			Timeframe:              "1h",
			StartDate:              "2024-01-01",
			EndDate:                "2024-12-31",
			ConfidenceThreshold:    0.7,
			MaxPositionCostPercent: 10,
			RiskPerTradePercent:    2,
			StopLossPercent:        3,
			TakeProfitPercent:      6,
			MaxPositions:           5,
			LotBands:               DefaultLotBands(),
			Seed:                   42,
			OutputDir:              "backtests",
		},
		Scheduler: SchedulerConfig{
			MonitorInterval:   30 * time.Second,
			ArbitrageInterval: 10 * time.Second,
			RiskInterval:      15 * time.Second,
			AutosaveInterval:  5 * time.Minute,
		},
		Concurrency: ConcurrencyConfig{
			QuotePoolSize:     16,
			QuotePoolBuffer:   256,
			OptimizePoolSize:  4,
			OrderRateLimit:    25,
			OrderBurst:        30,
			NotifySinkTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Type: "sqlite",
			Path: "data/tradecore.db",
		},
		Notify: NotifyConfig{
			LogEvents: true,
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Stream: "tradecore:events",
			},
		},
		Telemetry: TelemetryConfig{
			MetricsPort:   9090,
			EnableMetrics: true,
		},
		System: SystemConfig{
			LogLevel: "INFO",
		},
	}
}
