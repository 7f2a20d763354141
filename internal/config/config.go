// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Ledger drivers.
const (
	LedgerPostgres = "postgres"
	LedgerMemory   = "memory"
)

// Config holds all application configuration.
type Config struct {
	Bot       BotConfig       `mapstructure:"bot"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Whitelist WhitelistConfig `mapstructure:"whitelist"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Games     GamesConfig     `mapstructure:"games"`
}

// BotConfig holds Telegram bot configuration.
type BotConfig struct {
	Token       string        `mapstructure:"token"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// WhitelistConfig holds chat whitelist configuration.
type WhitelistConfig struct {
	Chats []int64 `mapstructure:"chats"`
}

// LedgerConfig selects where balances live and how accounts open.
type LedgerConfig struct {
	Driver         string `mapstructure:"driver"`
	InitialBalance int64  `mapstructure:"initial_balance"`
	Currency       string `mapstructure:"currency"`
}

// EngineConfig holds session engine timing.
type EngineConfig struct {
	AcceptanceWindow time.Duration `mapstructure:"acceptance_window"`
	GraceWindow      time.Duration `mapstructure:"grace_window"`
	ReaperInterval   time.Duration `mapstructure:"reaper_interval"`
	ThinkMin         time.Duration `mapstructure:"think_min"`
	ThinkMax         time.Duration `mapstructure:"think_max"`
}

// GamesConfig holds game-specific configuration.
type GamesConfig struct {
	ThreeInRow GameConfig      `mapstructure:"threeinrow"`
	FourInRow  FourInRowConfig `mapstructure:"fourinrow"`
	CardDuel   CardDuelConfig  `mapstructure:"cardduel"`
}

// GameConfig holds the settings shared by every game.
type GameConfig struct {
	MaxWager    int64         `mapstructure:"max_wager"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
}

// FourInRowConfig holds four-in-a-row configuration.
type FourInRowConfig struct {
	GameConfig  `mapstructure:",squash"`
	SearchDepth int `mapstructure:"search_depth"`
}

// CardDuelConfig holds card duel configuration.
type CardDuelConfig struct {
	GameConfig  `mapstructure:",squash"`
	DealerDelay time.Duration `mapstructure:"dealer_delay"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// e.g. BOT_TOKEN, DATABASE_HOST, ENGINE_GRACE_WINDOW
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values viper cannot.
func (c *Config) Validate() error {
	switch c.Ledger.Driver {
	case LedgerPostgres, LedgerMemory:
	default:
		return fmt.Errorf("unknown ledger driver %q", c.Ledger.Driver)
	}
	if c.Ledger.InitialBalance < 0 {
		return fmt.Errorf("ledger.initial_balance must not be negative")
	}
	if c.Engine.ThinkMax < c.Engine.ThinkMin {
		return fmt.Errorf("engine.think_max (%s) is below engine.think_min (%s)", c.Engine.ThinkMax, c.Engine.ThinkMin)
	}
	return nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("bot.poll_timeout", "10s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "gamebot")
	v.SetDefault("database.name", "gamebot")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	v.SetDefault("ledger.driver", LedgerPostgres)
	v.SetDefault("ledger.initial_balance", 1000)
	v.SetDefault("ledger.currency", "coins")

	v.SetDefault("engine.acceptance_window", "60s")
	v.SetDefault("engine.grace_window", "30s")
	v.SetDefault("engine.reaper_interval", "5s")
	v.SetDefault("engine.think_min", "500ms")
	v.SetDefault("engine.think_max", "1500ms")

	// Game defaults
	v.SetDefault("games.threeinrow.max_wager", 0)
	v.SetDefault("games.threeinrow.idle_timeout", "60s")
	v.SetDefault("games.fourinrow.max_wager", 0)
	v.SetDefault("games.fourinrow.idle_timeout", "60s")
	v.SetDefault("games.fourinrow.search_depth", 5)
	v.SetDefault("games.cardduel.max_wager", 10000)
	v.SetDefault("games.cardduel.idle_timeout", "120s")
	v.SetDefault("games.cardduel.dealer_delay", "1s")
}

// IsChatAllowed checks if a chat ID is in the whitelist.
// An empty whitelist allows every chat.
func (c *Config) IsChatAllowed(chatID int64) bool {
	return len(c.Whitelist.Chats) == 0 || slices.Contains(c.Whitelist.Chats, chatID)
}
