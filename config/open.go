package config

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unkn0wn-root/poolcache"
	"github.com/unkn0wn-root/poolcache/codec"
	logruslog "github.com/unkn0wn-root/poolcache/log/logrus"
	zaplog "github.com/unkn0wn-root/poolcache/log/zap"
	"github.com/unkn0wn-root/poolcache/store"
	redisstore "github.com/unkn0wn-root/poolcache/store/redis"
)

// Cache bundles everything Open builds. Close releases it.
type Cache struct {
	Store  store.Store
	Flat   *poolcache.FlatCache
	Pool   *poolcache.Pool
	Logger poolcache.Logger

	syncLog func() error
}

// Open connects to Redis and builds a FlatCache and a Pool on the same store.
// The connection is verified with Ping (and the integrity check when enabled).
func Open(ctx context.Context, cfg *Config) (*Cache, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	logger, syncLog, err := NewLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Redis.Addr,
		Username:     cfg.Redis.Username,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
		PoolSize:     cfg.Redis.PoolSize,
	})
	s, err := redisstore.New(redisstore.Config{
		Client:         rdb,
		CloseClient:    true,
		DB:             cfg.Redis.DB,
		CheckIntegrity: cfg.Redis.CheckIntegrity,
	})
	if err != nil {
		_ = rdb.Close()
		return nil, err
	}
	if err := s.Ping(ctx); err != nil {
		_ = s.Close(ctx)
		return nil, fmt.Errorf("poolcache: connect %s: %w", cfg.Redis.Addr, err)
	}

	c, err := build(s, cfg, logger)
	if err != nil {
		_ = s.Close(ctx)
		return nil, err
	}
	c.syncLog = syncLog
	logger.Info("cache ready", poolcache.Fields{"addr": cfg.Redis.Addr, "db": cfg.Redis.DB, "pool": c.Pool.Name()})
	return c, nil
}

func build(s store.Store, cfg *Config, logger poolcache.Logger) (*Cache, error) {
	flat, err := poolcache.NewFlatCache(s, poolcache.FlatOptions{Logger: logger})
	if err != nil {
		return nil, err
	}
	pool, err := poolcache.NewPool(s, poolcache.PoolOptions{Name: cfg.Pool.Name, Logger: logger})
	if err != nil {
		return nil, err
	}
	return &Cache{Store: s, Flat: flat, Pool: pool, Logger: logger}, nil
}

// Close commits the pool's pending entries, closes the store and flushes the
// logger. All failures are reported.
func (c *Cache) Close(ctx context.Context) error {
	var errs []error
	if c.Pool != nil {
		errs = append(errs, c.Pool.Close(ctx))
	}
	if c.Store != nil {
		errs = append(errs, c.Store.Close(ctx))
	}
	if c.syncLog != nil {
		errs = append(errs, c.syncLog())
	}
	return errors.Join(errs...)
}

// NewLogger builds the configured logger adapter. sync flushes buffered output
// and is never nil.
func NewLogger(cfg LogConfig) (l poolcache.Logger, sync func() error, err error) {
	noSync := func() error { return nil }
	switch cfg.Backend {
	case "zap":
		lvl, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("log.level: %w", err)
		}
		zc := zap.NewProductionConfig()
		zc.Level = zap.NewAtomicLevelAt(lvl)
		zl, err := zc.Build()
		if err != nil {
			return nil, nil, fmt.Errorf("build zap logger: %w", err)
		}
		// stderr sync fails on some platforms; nothing to recover there
		return zaplog.New(zl), func() error { _ = zl.Sync(); return nil }, nil
	case "logrus":
		lvl, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("log.level: %w", err)
		}
		ll := logrus.New()
		ll.SetLevel(lvl)
		ll.SetFormatter(&logrus.JSONFormatter{})
		return logruslog.New(ll), noSync, nil
	case "nop", "":
		return poolcache.NopLogger{}, noSync, nil
	default:
		return nil, nil, fmt.Errorf("invalid log backend: %q", cfg.Backend)
	}
}

// CodecFor returns the configured structured codec for V, size-limited when
// MaxDecode is set.
func CodecFor[V any](cfg CodecConfig) (codec.Codec[V], error) {
	var c codec.Codec[V]
	switch cfg.Name {
	case "msgpack", "":
		c = codec.Msgpack[V]{}
	case "cbor":
		cb, err := codec.NewCBOR[V](true)
		if err != nil {
			return nil, err
		}
		c = cb
	case "json":
		c = codec.JSON[V]{}
	default:
		return nil, fmt.Errorf("invalid codec: %q", cfg.Name)
	}
	if cfg.MaxDecode > 0 {
		c = codec.Limit[V]{Inner: c, MaxDecode: cfg.MaxDecode}
	}
	return c, nil
}
