package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/magefree/mage-commander/internal/game"
	"github.com/magefree/mage-commander/internal/game/commander"
)

// Config is the server configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Rules     RulesConfig     `mapstructure:"rules"`
	Commander CommanderConfig `mapstructure:"commander"`
	Store     StoreConfig     `mapstructure:"store"`
	ActionLog ActionLogConfig `mapstructure:"actionlog"`
	Replay    ReplayConfig    `mapstructure:"replay"`
}

type ServerConfig struct {
	HTTP HTTPConfig `mapstructure:"http"`
	GRPC GRPCConfig `mapstructure:"grpc"`
}

type HTTPConfig struct {
	Address string `mapstructure:"address"`
}

type GRPCConfig struct {
	Address              string `mapstructure:"address"`
	MaxConcurrentStreams int    `mapstructure:"max_concurrent_streams"`
}

// LoggingConfig selects the zap level and encoder ("json" or "console").
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// RulesConfig holds the match defaults applied to every new game.
type RulesConfig struct {
	StartingLife             int   `mapstructure:"starting_life"`
	CommanderDamageThreshold int   `mapstructure:"commander_damage_threshold"`
	OpeningHand              int   `mapstructure:"opening_hand"`
	MaxHandSize              int   `mapstructure:"max_hand_size"`
	SkipFirstDraw            bool  `mapstructure:"skip_first_draw"`
	ShuffleSeed              int64 `mapstructure:"shuffle_seed"`
}

type CommanderConfig struct {
	// AutoCommandZone is the default answer to the command zone choice:
	// ask, always or never.
	AutoCommandZone string `mapstructure:"auto_command_zone"`
}

// StoreConfig selects the snapshot backend.
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type ActionLogConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	Queue   string `mapstructure:"queue"`
}

type ReplayConfig struct {
	Dir string `mapstructure:"dir"`
}

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const envPrefix = "COMMANDER"

func setDefaults(v *viper.Viper) {
	defaults := game.DefaultSettings()

	v.SetDefault("server.http.address", ":8080")
	v.SetDefault("server.grpc.address", ":9090")
	v.SetDefault("server.grpc.max_concurrent_streams", 100)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("rules.starting_life", defaults.StartingLife)
	v.SetDefault("rules.commander_damage_threshold", defaults.CommanderDamageThreshold)
	v.SetDefault("rules.opening_hand", defaults.OpeningHand)
	v.SetDefault("rules.max_hand_size", defaults.MaxHandSize)
	v.SetDefault("rules.skip_first_draw", defaults.SkipFirstDraw)
	v.SetDefault("rules.shuffle_seed", defaults.ShuffleSeed)

	v.SetDefault("commander.auto_command_zone", string(defaults.CommandZonePolicy))

	v.SetDefault("store.driver", DriverMemory)
	v.SetDefault("store.dsn", "")

	v.SetDefault("actionlog.enabled", false)
	v.SetDefault("actionlog.addr", "localhost:6379")
	v.SetDefault("actionlog.queue", "commander:actions")

	v.SetDefault("replay.dir", "")
}

// Load reads the configuration file at path, if any, and applies
// COMMANDER_* environment overrides (COMMANDER_STORE_DRIVER=sqlite).
// A missing file is not an error when path is empty.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values Load cannot default away.
func (c *Config) Validate() error {
	var errs []error
	if c.Rules.StartingLife <= 0 {
		errs = append(errs, fmt.Errorf("rules.starting_life must be positive, got %d", c.Rules.StartingLife))
	}
	if c.Rules.CommanderDamageThreshold <= 0 {
		errs = append(errs, fmt.Errorf("rules.commander_damage_threshold must be positive, got %d", c.Rules.CommanderDamageThreshold))
	}
	if c.Rules.OpeningHand < 0 {
		errs = append(errs, fmt.Errorf("rules.opening_hand must not be negative, got %d", c.Rules.OpeningHand))
	}
	if c.Rules.MaxHandSize < 0 {
		errs = append(errs, fmt.Errorf("rules.max_hand_size must not be negative, got %d", c.Rules.MaxHandSize))
	}
	if _, err := commander.ParsePolicy(c.Commander.AutoCommandZone); err != nil {
		errs = append(errs, fmt.Errorf("commander.auto_command_zone: %w", err))
	}
	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres:
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("store.dsn is required for driver %q", c.Store.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.driver %q", c.Store.Driver))
	}
	if c.ActionLog.Enabled && (c.ActionLog.Addr == "" || c.ActionLog.Queue == "") {
		errs = append(errs, errors.New("actionlog.addr and actionlog.queue are required when the action log is enabled"))
	}
	return errors.Join(errs...)
}

// Settings converts the rules section into per-game settings.
func (c *Config) Settings() game.Settings {
	policy, _ := commander.ParsePolicy(c.Commander.AutoCommandZone)
	return game.Settings{
		StartingLife:             c.Rules.StartingLife,
		CommanderDamageThreshold: c.Rules.CommanderDamageThreshold,
		OpeningHand:              c.Rules.OpeningHand,
		MaxHandSize:              c.Rules.MaxHandSize,
		SkipFirstDraw:            c.Rules.SkipFirstDraw,
		ShuffleSeed:              c.Rules.ShuffleSeed,
		CommandZonePolicy:        policy,
	}
}
