package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap/zapcore"

	"github.com/unkn0wn-root/poolcache"
)

// Loader handles configuration loading and parsing
type Loader struct {
	envPattern *regexp.Regexp
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		envPattern: regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`),
	}
}

// Load reads and parses a configuration file
func (l *Loader) Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return l.Parse(data)
}

// Parse parses configuration from YAML bytes on top of DefaultConfig.
func (l *Loader) Parse(data []byte) (*Config, error) {
	expanded := l.expandEnvVars(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} with environment variable values
func (l *Loader) expandEnvVars(input string) string {
	return l.envPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := strings.TrimPrefix(strings.TrimSuffix(match, "}"), "${")
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match // keep original if env var not set
	})
}

var (
	validCodecs   = map[string]bool{"msgpack": true, "cbor": true, "json": true}
	validBackends = map[string]bool{"zap": true, "logrus": true, "nop": true}
)

// Validate checks cfg for errors.
func Validate(cfg *Config) error {
	if cfg.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}
	if cfg.Redis.DB < 0 {
		return fmt.Errorf("redis.db must be >= 0, got %d", cfg.Redis.DB)
	}
	if cfg.Redis.PoolSize < 0 {
		return fmt.Errorf("redis.pool_size must be >= 0, got %d", cfg.Redis.PoolSize)
	}
	if cfg.Redis.DialTimeout < 0 || cfg.Redis.ReadTimeout < 0 || cfg.Redis.WriteTimeout < 0 {
		return fmt.Errorf("redis timeouts must not be negative")
	}
	if cfg.Pool.Name != "" {
		if err := poolcache.ValidateKey(poolcache.PoolName(cfg.Pool.Name)); err != nil {
			return fmt.Errorf("pool.name: %w", err)
		}
	}
	if !validCodecs[cfg.Codec.Name] {
		return fmt.Errorf("invalid codec: %q", cfg.Codec.Name)
	}
	if cfg.Codec.MaxDecode < 0 {
		return fmt.Errorf("codec.max_decode must be >= 0, got %d", cfg.Codec.MaxDecode)
	}
	if !validBackends[cfg.Log.Backend] {
		return fmt.Errorf("invalid log backend: %q", cfg.Log.Backend)
	}
	switch cfg.Log.Backend {
	case "zap":
		if _, err := zapcore.ParseLevel(cfg.Log.Level); err != nil {
			return fmt.Errorf("log.level: %w", err)
		}
	case "logrus":
		if _, err := logrus.ParseLevel(cfg.Log.Level); err != nil {
			return fmt.Errorf("log.level: %w", err)
		}
	}
	return nil
}
