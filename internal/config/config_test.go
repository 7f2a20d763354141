package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, LedgerPostgres, cfg.Ledger.Driver)
	assert.Equal(t, int64(1000), cfg.Ledger.InitialBalance)
	assert.Equal(t, "coins", cfg.Ledger.Currency)
	assert.Equal(t, 60*time.Second, cfg.Engine.AcceptanceWindow)
	assert.Equal(t, 30*time.Second, cfg.Engine.GraceWindow)
	assert.Equal(t, 500*time.Millisecond, cfg.Engine.ThinkMin)
	assert.Equal(t, 1500*time.Millisecond, cfg.Engine.ThinkMax)
	assert.Equal(t, 5, cfg.Games.FourInRow.SearchDepth)
	assert.Equal(t, int64(10000), cfg.Games.CardDuel.MaxWager)
	assert.Equal(t, 120*time.Second, cfg.Games.CardDuel.IdleTimeout)
	assert.Equal(t, time.Second, cfg.Games.CardDuel.DealerDelay)
	assert.Equal(t, "postgres://gamebot:@localhost:5432/gamebot?sslmode=disable", cfg.Database.DSN())
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := `
ledger:
  driver: memory
  initial_balance: 250
games:
  threeinrow:
    max_wager: 75
  cardduel:
    dealer_delay: 2s
whitelist:
  chats: [-100, -200]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))
	t.Setenv("ENGINE_GRACE_WINDOW", "45s")
	t.Setenv("BOT_TOKEN", "secret")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, LedgerMemory, cfg.Ledger.Driver)
	assert.Equal(t, int64(250), cfg.Ledger.InitialBalance)
	assert.Equal(t, int64(75), cfg.Games.ThreeInRow.MaxWager)
	assert.Equal(t, 2*time.Second, cfg.Games.CardDuel.DealerDelay)
	assert.Equal(t, 45*time.Second, cfg.Engine.GraceWindow)
	assert.Equal(t, "secret", cfg.Bot.Token)

	assert.True(t, cfg.IsChatAllowed(-100))
	assert.False(t, cfg.IsChatAllowed(-300))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(*Config) {}, true},
		{"unknown driver", func(c *Config) { c.Ledger.Driver = "redis" }, false},
		{"negative balance", func(c *Config) { c.Ledger.InitialBalance = -1 }, false},
		{"think range inverted", func(c *Config) { c.Engine.ThinkMax = c.Engine.ThinkMin - 1 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Ledger: LedgerConfig{Driver: LedgerMemory},
				Engine: EngineConfig{ThinkMin: time.Second, ThinkMax: 2 * time.Second},
			}
			tt.mutate(cfg)
			if tt.ok {
				assert.NoError(t, cfg.Validate())
			} else {
				assert.Error(t, cfg.Validate())
			}
		})
	}
}

func TestIsChatAllowed_EmptyWhitelist(t *testing.T) {
	assert.True(t, (&Config{}).IsChatAllowed(12345))
}
