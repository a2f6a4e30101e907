package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// AIParams holds the parameters for one bot profile (name and behavior).
type AIParams struct {
	Name               string `json:"name" yaml:"name"`
	DelayMinMS         int    `json:"delay_min_ms" yaml:"delay_min_ms"`
	DelayMaxMS         int    `json:"delay_max_ms" yaml:"delay_max_ms"`
	UseKnownPairChance int    `json:"use_known_pair_chance" yaml:"use_known_pair_chance"` // 0-100, probability to play a remembered pair when one is known
	ForgetChance       int    `json:"forget_chance" yaml:"forget_chance"`                 // 0-100, probability to forget each remembered card per move
}

// Config holds all configurable parameters.
type Config struct {
	// Symbols is the card face set; each symbol is dealt twice.
	Symbols          []string `json:"symbols" yaml:"symbols"`
	RevealDurationMS int      `json:"reveal_duration_ms" yaml:"reveal_duration_ms"`
	MaxNameLength    int      `json:"max_name_length" yaml:"max_name_length"`
	WSPort           int      `json:"ws_port" yaml:"ws_port"`

	// SessionIdleTimeoutSec closes sessions nobody has touched for this long.
	// A disconnected player can resume until then.
	SessionIdleTimeoutSec int `json:"session_idle_timeout_sec" yaml:"session_idle_timeout_sec"`

	// DatabaseURL selects the Postgres history store; SQLitePath the SQLite one.
	// Postgres wins when both are set. Neither set means no history is kept.
	DatabaseURL string `json:"database_url" yaml:"database_url"`
	SQLitePath  string `json:"sqlite_path" yaml:"sqlite_path"`

	// AuthBaseURL is the issuer base URL; its /.well-known/jwks.json verifies tokens.
	AuthBaseURL string `json:"auth_base_url" yaml:"auth_base_url"`

	LogLevel string `json:"log_level" yaml:"log_level"`

	// AIProfiles lists bot profiles for simulation runs.
	AIProfiles []AIParams `json:"ai_profiles" yaml:"ai_profiles"`
}

// DefaultSymbols is the stock 8-symbol set.
var DefaultSymbols = []string{"🐶", "🐱", "🦊", "🐻", "🐼", "🐨", "🐯", "🦁"}

// Defaults returns a Config with all default values.
func Defaults() *Config {
	return &Config{
		Symbols:               append([]string(nil), DefaultSymbols...),
		RevealDurationMS:      1000,
		MaxNameLength:         24,
		WSPort:                8080,
		SessionIdleTimeoutSec: 600,
		LogLevel:              "info",
		AIProfiles: []AIParams{
			{Name: "Mnemosyne", DelayMinMS: 300, DelayMaxMS: 800, UseKnownPairChance: 95, ForgetChance: 1},
			{Name: "Calliope", DelayMinMS: 200, DelayMaxMS: 600, UseKnownPairChance: 80, ForgetChance: 15},
			{Name: "Thalia", DelayMinMS: 200, DelayMaxMS: 700, UseKnownPairChance: 60, ForgetChance: 35},
		},
	}
}

// configFiles are tried in order; the first one that exists is used.
var configFiles = []string{"config.json", "config.yaml", "config.yml"}

// Load reads configuration from an optional config file in the working
// directory (config.json, config.yaml or config.yml), then applies
// environment variable overrides. Fields not set in either source retain
// their default values.
func Load() *Config {
	return LoadDir(".")
}

// LoadDir is Load with the config file looked up in dir.
func LoadDir(dir string) *Config {
	cfg := Defaults()

	for _, name := range configFiles {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			slog.Warn("reading config file", "tag", "config", "path", path, "err", err)
			break
		}
		if err := decode(name, data, cfg); err != nil {
			slog.Warn("failed to parse config file", "tag", "config", "path", path, "err", err)
		}
		break
	}

	// Environment variable overrides
	overrideSymbols(&cfg.Symbols, "SYMBOLS")
	overrideInt(&cfg.RevealDurationMS, "REVEAL_DURATION_MS")
	overrideInt(&cfg.MaxNameLength, "MAX_NAME_LENGTH")
	overrideInt(&cfg.WSPort, "WS_PORT")
	overrideInt(&cfg.SessionIdleTimeoutSec, "SESSION_IDLE_TIMEOUT_SEC")
	overrideString(&cfg.DatabaseURL, "DATABASE_URL")
	overrideString(&cfg.SQLitePath, "SQLITE_PATH")
	overrideString(&cfg.AuthBaseURL, "AUTH_BASE_URL")
	overrideString(&cfg.LogLevel, "LOG_LEVEL")
	if len(cfg.AIProfiles) > 0 {
		overrideString(&cfg.AIProfiles[0].Name, "AI_NAME")
		overrideInt(&cfg.AIProfiles[0].DelayMinMS, "AI_DELAY_MIN_MS")
		overrideInt(&cfg.AIProfiles[0].DelayMaxMS, "AI_DELAY_MAX_MS")
		overrideInt(&cfg.AIProfiles[0].UseKnownPairChance, "AI_USE_KNOWN_PAIR_CHANCE")
		overrideInt(&cfg.AIProfiles[0].ForgetChance, "AI_FORGET_CHANCE")
	}

	return cfg
}

func decode(name string, data []byte, cfg *Config) error {
	if strings.HasSuffix(name, ".json") {
		return json.Unmarshal(data, cfg)
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate reports settings the server cannot run with.
func (c *Config) Validate() error {
	if len(c.Symbols) < 2 {
		return fmt.Errorf("config: need at least 2 symbols, got %d", len(c.Symbols))
	}
	seen := make(map[string]bool, len(c.Symbols))
	for _, s := range c.Symbols {
		if s == "" || seen[s] {
			return fmt.Errorf("config: symbols must be non-empty and distinct, got %q", c.Symbols)
		}
		seen[s] = true
	}
	if c.RevealDurationMS <= 0 {
		return fmt.Errorf("config: reveal_duration_ms must be positive, got %d", c.RevealDurationMS)
	}
	if c.MaxNameLength <= 0 {
		return fmt.Errorf("config: max_name_length must be positive, got %d", c.MaxNameLength)
	}
	return nil
}

func overrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			*field = n
		} else {
			slog.Warn("invalid env value", "tag", "config", "key", envKey, "value", val)
		}
	}
}

func overrideString(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

// overrideSymbols reads a comma-separated symbol list.
func overrideSymbols(field *[]string, envKey string) {
	val := os.Getenv(envKey)
	if val == "" {
		return
	}
	var symbols []string
	for _, s := range strings.Split(val, ",") {
		if s = strings.TrimSpace(s); s != "" {
			symbols = append(symbols, s)
		}
	}
	*field = symbols
}
