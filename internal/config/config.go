package config

import (
	"fmt"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all simulator configuration. It is loaded once at startup and
// immutable for the life of a session.
type Config struct {
	Simulation     SimulationConfig  `mapstructure:"simulation"`
	WebSocket      WebSocketConfig   `mapstructure:"websocket"`
	WalletTracking map[string]string `mapstructure:"wallet_tracking"`
	Replay         ReplayConfig      `mapstructure:"replay"`
	Database       DatabaseConfig    `mapstructure:"database"`
	Status         StatusConfig      `mapstructure:"status"`
	Logging        LoggingConfig     `mapstructure:"logging"`
}

type SimulationConfig struct {
	InitialSolBalance           float64 `mapstructure:"initial_sol_balance" validate:"gte=0.01,lte=10000"`
	PositionSizeSol             float64 `mapstructure:"position_size_sol" validate:"gte=0.001,lte=1000"`
	ExecutionDelayMs            int     `mapstructure:"execution_delay_ms" validate:"gte=0,lte=30000"`
	BaseSlippageBps             float64 `mapstructure:"base_slippage_bps" validate:"gte=0,lte=5000"`
	PriceImpactFactor           float64 `mapstructure:"price_impact_factor" validate:"gte=0,lte=100"`
	MaxSlippageBps              float64 `mapstructure:"max_slippage_bps" validate:"gte=0,lte=10000"`
	MaxTradesPerWalletPerMinute int     `mapstructure:"max_trades_per_wallet_per_minute" validate:"gte=1,lte=1000"`
	SnapshotIntervalSeconds     int     `mapstructure:"snapshot_interval_seconds" validate:"gte=10,lte=3600"`
	SkipMigratedTokens          bool    `mapstructure:"skip_migrated_tokens"`
}

type WebSocketConfig struct {
	URL                    string  `mapstructure:"url" validate:"required"`
	ReconnectBaseDelayMs   int     `mapstructure:"reconnect_base_delay_ms" validate:"gte=1"`
	ReconnectMaxDelayMs    int     `mapstructure:"reconnect_max_delay_ms" validate:"gte=1"`
	ReconnectJitterFactor  float64 `mapstructure:"reconnect_jitter_factor" validate:"gte=0,lte=1"`
	ReceiveBufferSize      int     `mapstructure:"receive_buffer_size" validate:"gte=1"`
	DedupBufferSize        int     `mapstructure:"dedup_buffer_size" validate:"gte=1"`
	IngestBatchSize        int     `mapstructure:"ingest_batch_size" validate:"gte=1"`
	IngestFlushIntervalMs  int     `mapstructure:"ingest_flush_interval_ms" validate:"gte=1"`
}

type ReplayConfig struct {
	Enabled       bool     `mapstructure:"enabled"`
	From          string   `mapstructure:"from"`
	To            string   `mapstructure:"to"`
	FilterWallets []string `mapstructure:"filter_wallets"`
	BatchSize     int      `mapstructure:"batch_size"`
}

type DatabaseConfig struct {
	DSN             string `mapstructure:"dsn" validate:"required"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime_seconds"`
}

type StatusConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Manager loads the config file, applies defaults and validates ranges.
// The file stays watched, but a mid-session change only warns: the
// effective config is frozen at startup.
type Manager struct {
	config *Config
	viper  *viper.Viper
}

func NewManager(configPath string) (*Manager, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	v.SetDefault("simulation.initial_sol_balance", 10.0)
	v.SetDefault("simulation.position_size_sol", 0.1)
	v.SetDefault("simulation.execution_delay_ms", 0)
	v.SetDefault("simulation.base_slippage_bps", 100.0)
	v.SetDefault("simulation.price_impact_factor", 1.0)
	v.SetDefault("simulation.max_slippage_bps", 1000.0)
	v.SetDefault("simulation.max_trades_per_wallet_per_minute", 10)
	v.SetDefault("simulation.snapshot_interval_seconds", 60)
	v.SetDefault("simulation.skip_migrated_tokens", true)
	v.SetDefault("websocket.url", "wss://pumpportal.fun/api/data")
	v.SetDefault("websocket.reconnect_base_delay_ms", 1000)
	v.SetDefault("websocket.reconnect_max_delay_ms", 30000)
	v.SetDefault("websocket.reconnect_jitter_factor", 0.2)
	v.SetDefault("websocket.receive_buffer_size", 10000)
	v.SetDefault("websocket.dedup_buffer_size", 10000)
	v.SetDefault("websocket.ingest_batch_size", 50)
	v.SetDefault("websocket.ingest_flush_interval_ms", 100)
	v.SetDefault("replay.enabled", false)
	v.SetDefault("replay.batch_size", 500)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime_seconds", 1800)
	v.SetDefault("status.enabled", true)
	v.SetDefault("status.listen_addr", ":8080")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.pretty", true)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	if _, _, err := cfg.Replay.Window(); cfg.Replay.Enabled && err != nil {
		return nil, err
	}

	m := &Manager{config: &cfg, viper: v}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		log.Warn().Str("file", e.Name).
			Msg("config file changed; ignored, restart to apply")
	})

	return m, nil
}

// Get returns the loaded config.
func (m *Manager) Get() *Config {
	return m.config
}

// TrackedWallets returns the tracked wallet keys in sorted order so the
// subscription payload is stable across restarts.
func (c *Config) TrackedWallets() []string {
	wallets := make([]string, 0, len(c.WalletTracking))
	for w := range c.WalletTracking {
		wallets = append(wallets, w)
	}
	sort.Strings(wallets)
	return wallets
}

// WalletAlias returns the display alias for a tracked wallet, falling back
// to the key itself.
func (c *Config) WalletAlias(wallet string) string {
	if alias, ok := c.WalletTracking[wallet]; ok && alias != "" {
		return alias
	}
	return wallet
}

// InitialSolBalanceDec converts the configured funding amount once at the
// config boundary; everything downstream is decimal.
func (s SimulationConfig) InitialSolBalanceDec() decimal.Decimal {
	return decimal.NewFromFloat(s.InitialSolBalance)
}

func (s SimulationConfig) PositionSizeSolDec() decimal.Decimal {
	return decimal.NewFromFloat(s.PositionSizeSol)
}

func (s SimulationConfig) BaseSlippageBpsDec() decimal.Decimal {
	return decimal.NewFromFloat(s.BaseSlippageBps)
}

func (s SimulationConfig) PriceImpactFactorDec() decimal.Decimal {
	return decimal.NewFromFloat(s.PriceImpactFactor)
}

func (s SimulationConfig) MaxSlippageBpsDec() decimal.Decimal {
	return decimal.NewFromFloat(s.MaxSlippageBps)
}

func (s SimulationConfig) SnapshotInterval() time.Duration {
	return time.Duration(s.SnapshotIntervalSeconds) * time.Second
}

func (w WebSocketConfig) ReconnectBaseDelay() time.Duration {
	return time.Duration(w.ReconnectBaseDelayMs) * time.Millisecond
}

func (w WebSocketConfig) ReconnectMaxDelay() time.Duration {
	return time.Duration(w.ReconnectMaxDelayMs) * time.Millisecond
}

func (w WebSocketConfig) IngestFlushInterval() time.Duration {
	return time.Duration(w.IngestFlushIntervalMs) * time.Millisecond
}

func (d DatabaseConfig) ConnMaxLifetimeDuration() time.Duration {
	return time.Duration(d.ConnMaxLifetime) * time.Second
}

// Window parses the replay range. Both endpoints are required when replay
// is enabled; a missing endpoint is fatal at startup.
func (r ReplayConfig) Window() (time.Time, time.Time, error) {
	if r.From == "" || r.To == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("replay requires both from and to (RFC3339)")
	}
	from, err := time.Parse(time.RFC3339, r.From)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("replay from: %w", err)
	}
	to, err := time.Parse(time.RFC3339, r.To)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("replay to: %w", err)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("replay window ends before it starts")
	}
	return from.UTC(), to.UTC(), nil
}
