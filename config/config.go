// Package config loads poolcache settings from YAML and wires a ready-to-use
// Redis-backed FlatCache and Pool from them.
package config

import "time"

// Config is the root configuration.
type Config struct {
	Redis RedisConfig `yaml:"redis"`
	Pool  PoolConfig  `yaml:"pool"`
	Codec CodecConfig `yaml:"codec"`
	Log   LogConfig   `yaml:"log"`
}

type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	PoolSize     int           `yaml:"pool_size"`

	// CheckIntegrity verifies the selected database before FLUSHDB and on Ping.
	CheckIntegrity bool `yaml:"check_integrity"`
}

type PoolConfig struct {
	// Name is the pool suffix; empty selects the default pool.
	Name string `yaml:"name"`
}

type CodecConfig struct {
	// Name is one of msgpack, cbor, json.
	Name string `yaml:"name"`
	// MaxDecode caps payload size accepted by the codec; 0 = unlimited.
	MaxDecode int `yaml:"max_decode"`
}

type LogConfig struct {
	// Backend is one of zap, logrus, nop.
	Backend string `yaml:"backend"`
	Level   string `yaml:"level"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Redis: RedisConfig{
			Addr:           "localhost:6379",
			DialTimeout:    5 * time.Second,
			ReadTimeout:    3 * time.Second,
			WriteTimeout:   3 * time.Second,
			PoolSize:       10,
			CheckIntegrity: true,
		},
		Codec: CodecConfig{Name: "msgpack"},
		Log:   LogConfig{Backend: "zap", Level: "info"},
	}
}
