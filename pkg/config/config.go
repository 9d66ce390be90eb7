package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Store selects the game persistence backend.
const (
	StoreSqlite = "sqlite"
	StoreRedis  = "redis"
)

// Config is the full daemon configuration. Values come from defaults, then
// an optional YAML file, then CARDROOM_* environment variables, strongest
// last.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`

	Store    string `yaml:"store"`
	DBPath   string `yaml:"db_path"`
	RedisURL string `yaml:"redis_url"`

	LogFile     string `yaml:"log_file"`
	DebugLevel  string `yaml:"debug_level"`
	MaxLogFiles int    `yaml:"max_log_files"`

	MaxPlayers    int   `yaml:"max_players"`
	StartingChips int64 `yaml:"starting_chips"`
	TurnTimeoutMs int64 `yaml:"turn_timeout_ms"`
	LockTimeoutMs int64 `yaml:"lock_timeout_ms"`

	// Seed fixes the shuffle sequence. For tests and demos only.
	Seed int64 `yaml:"seed"`
}

// Default returns the built-in configuration, rooted at dataDir.
func Default(dataDir string) Config {
	return Config{
		ListenAddr:    "localhost:8080",
		Store:         StoreSqlite,
		DBPath:        filepath.Join(dataDir, "cardroom.db"),
		LogFile:       filepath.Join(dataDir, "logs", "cardroom.log"),
		DebugLevel:    "info",
		MaxLogFiles:   5,
		MaxPlayers:    6,
		StartingChips: 1000,
		TurnTimeoutMs: 30_000,
		LockTimeoutMs: 5_000,
	}
}

// Load builds the configuration from the optional YAML file at path and the
// environment. A missing file is not an error; a malformed one is.
func Load(path, dataDir string) (Config, error) {
	cfg := Default(dataDir)

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Defaults plus environment only.
		case err != nil:
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.validate()
}

// applyEnv overlays CARDROOM_* environment variables.
func (c *Config) applyEnv() error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	str("CARDROOM_LISTEN_ADDR", &c.ListenAddr)
	str("CARDROOM_STORE", &c.Store)
	str("CARDROOM_DB_PATH", &c.DBPath)
	str("CARDROOM_REDIS_URL", &c.RedisURL)
	str("CARDROOM_LOG_FILE", &c.LogFile)
	str("CARDROOM_DEBUG_LEVEL", &c.DebugLevel)

	ints := map[string]*int64{
		"CARDROOM_STARTING_CHIPS":  &c.StartingChips,
		"CARDROOM_TURN_TIMEOUT_MS": &c.TurnTimeoutMs,
		"CARDROOM_LOCK_TIMEOUT_MS": &c.LockTimeoutMs,
		"CARDROOM_SEED":            &c.Seed,
	}
	for key, dst := range ints {
		v, ok := os.LookupEnv(key)
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = n
	}

	if v, ok := os.LookupEnv("CARDROOM_MAX_PLAYERS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid CARDROOM_MAX_PLAYERS: %w", err)
		}
		c.MaxPlayers = n
	}
	return nil
}

func (c *Config) validate() error {
	switch c.Store {
	case StoreSqlite:
		if c.DBPath == "" {
			return fmt.Errorf("db_path is required for the sqlite store")
		}
	case StoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("redis_url is required for the redis store")
		}
	default:
		return fmt.Errorf("unknown store %q (want %s or %s)", c.Store, StoreSqlite, StoreRedis)
	}

	if c.MaxPlayers < 2 {
		return fmt.Errorf("max_players must be at least 2, got %d", c.MaxPlayers)
	}
	if c.StartingChips <= 0 {
		return fmt.Errorf("starting_chips must be positive, got %d", c.StartingChips)
	}
	if c.TurnTimeoutMs <= 0 {
		return fmt.Errorf("turn_timeout_ms must be positive, got %d", c.TurnTimeoutMs)
	}
	return nil
}

// TurnTimeout returns the turn timer duration.
func (c *Config) TurnTimeout() time.Duration {
	return time.Duration(c.TurnTimeoutMs) * time.Millisecond
}

// LockTimeout returns the per-game guard acquisition timeout.
func (c *Config) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutMs) * time.Millisecond
}
