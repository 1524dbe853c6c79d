package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magefree/mage-commander/internal/game"
	"github.com/magefree/mage-commander/internal/game/commander"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.HTTP.Address)
	assert.Equal(t, ":9090", cfg.Server.GRPC.Address)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.False(t, cfg.ActionLog.Enabled)
	assert.Equal(t, game.DefaultSettings(), cfg.Settings())
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
  format: json
rules:
  starting_life: 30
  commander_damage_threshold: 16
  shuffle_seed: 42
commander:
  auto_command_zone: always
store:
  driver: sqlite
  dsn: games.db
replay:
  dir: /var/lib/commander/replays
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "/var/lib/commander/replays", cfg.Replay.Dir)

	settings := cfg.Settings()
	assert.Equal(t, 30, settings.StartingLife)
	assert.Equal(t, 16, settings.CommanderDamageThreshold)
	assert.Equal(t, int64(42), settings.ShuffleSeed)
	assert.Equal(t, 7, settings.OpeningHand, "unset keys keep their defaults")
	assert.Equal(t, commander.PolicyAlways, settings.CommandZonePolicy)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("COMMANDER_SERVER_HTTP_ADDRESS", "127.0.0.1:9000")
	t.Setenv("COMMANDER_RULES_STARTING_LIFE", "25")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.HTTP.Address)
	assert.Equal(t, 25, cfg.Rules.StartingLife)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		errMsg string
	}{
		{"bad policy", "commander:\n  auto_command_zone: sometimes\n", "auto_command_zone"},
		{"sqlite without dsn", "store:\n  driver: sqlite\n", "store.dsn"},
		{"unknown driver", "store:\n  driver: mongo\n", "unknown store.driver"},
		{"zero life", "rules:\n  starting_life: 0\n", "starting_life"},
		{"action log without queue", "actionlog:\n  enabled: true\n  queue: \"\"\n", "actionlog"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
