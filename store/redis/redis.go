package redis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/poolcache/store"
)

var ErrNilClient = errors.New("redis store: nil client")

// Redis implements store.Store. Flat keys are Redis STRINGs, groups are HASHes.
type Redis struct {
	rdb            goredis.UniversalClient
	closeClient    bool
	db             int
	checkIntegrity bool
}

var _ store.Store = (*Redis)(nil)

type Config struct {
	Client      goredis.UniversalClient
	CloseClient bool // set true only if this store exclusively owns the client

	// DB is the logical database the client is expected to have selected.
	// When CheckIntegrity is set, Check and Flush(ScopeCurrent) verify it first.
	DB             int
	CheckIntegrity bool
}

func New(cfg Config) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	return &Redis{
		rdb:            cfg.Client,
		closeClient:    cfg.CloseClient,
		db:             cfg.DB,
		checkIntegrity: cfg.CheckIntegrity,
	}, nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.rdb.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return nil, false, nil // miss
	}
	if err != nil {
		return nil, false, wrap("get", err)
	}
	return b, true, nil
}

func (r *Redis) MGet(ctx context.Context, keys []string) ([][]byte, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	vals, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, wrap("mget", err)
	}
	out := make([][]byte, len(keys))
	for i, v := range vals {
		out[i] = asBytes(v)
	}
	return out, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	return wrap("set", r.rdb.Set(ctx, key, value, 0).Err())
}

// MSet runs MSET and the per-key EXPIREs inside MULTI/EXEC.
func (r *Redis) MSet(ctx context.Context, pairs map[string][]byte, ttl time.Duration, expire bool) error {
	if len(pairs) == 0 {
		return nil
	}
	args := make([]any, 0, len(pairs)*2)
	for k, v := range pairs {
		args = append(args, k, v)
	}
	_, err := r.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.MSet(ctx, args...)
		if expire {
			for k := range pairs {
				p.Expire(ctx, k, ttl)
			}
		}
		return nil
	})
	return wrap("mset", err)
}

func (r *Redis) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := r.rdb.Del(ctx, keys...).Result()
	return n, wrap("del", err)
}

func (r *Redis) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, wrap("exists", err)
	}
	return n == 1, nil
}

func (r *Redis) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		// EXPIRE with 0 deletes; go-redis rounds sub-second durations, so be explicit.
		n, err := r.rdb.Del(ctx, key).Result()
		return n > 0, wrap("expire", err)
	}
	ok, err := r.rdb.Expire(ctx, key, ttl).Result()
	return ok, wrap("expire", err)
}

func (r *Redis) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := r.rdb.TTL(ctx, key).Result()
	if err != nil {
		return 0, wrap("ttl", err)
	}
	return d, nil
}

func (r *Redis) Flush(ctx context.Context, scope store.Scope) error {
	switch scope {
	case store.ScopeAll:
		return wrap("flushall", r.rdb.FlushAll(ctx).Err())
	case store.ScopeCurrent:
		if err := r.Check(ctx); err != nil {
			return err
		}
		return wrap("flushdb", r.rdb.FlushDB(ctx).Err())
	default:
		return fmt.Errorf("redis store: unknown flush scope %d", scope)
	}
}

func (r *Redis) GroupGet(ctx context.Context, group, field string) ([]byte, bool, error) {
	b, err := r.rdb.HGet(ctx, group, field).Bytes()
	if err == goredis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, wrap("hget", err)
	}
	return b, true, nil
}

func (r *Redis) GroupGetMany(ctx context.Context, group string, fields []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(fields))
	if len(fields) == 0 {
		return out, nil
	}
	vals, err := r.rdb.HMGet(ctx, group, fields...).Result()
	if err != nil {
		return nil, wrap("hmget", err)
	}
	for i, v := range vals {
		if b := asBytes(v); b != nil {
			out[fields[i]] = b
		}
	}
	return out, nil
}

func (r *Redis) GroupGetAll(ctx context.Context, group string) (map[string][]byte, error) {
	m, err := r.rdb.HGetAll(ctx, group).Result()
	if err != nil {
		return nil, wrap("hgetall", err)
	}
	out := make(map[string][]byte, len(m))
	for k, v := range m {
		out[k] = []byte(v)
	}
	return out, nil
}

func (r *Redis) GroupKeys(ctx context.Context, group string) ([]string, error) {
	keys, err := r.rdb.HKeys(ctx, group).Result()
	return keys, wrap("hkeys", err)
}

func (r *Redis) GroupSet(ctx context.Context, group string, pairs map[string][]byte) error {
	if len(pairs) == 0 {
		return nil
	}
	args := make([]any, 0, len(pairs)*2)
	for k, v := range pairs {
		args = append(args, k, v)
	}
	return wrap("hset", r.rdb.HSet(ctx, group, args...).Err())
}

func (r *Redis) GroupDel(ctx context.Context, group string, fields ...string) (int64, error) {
	if len(fields) == 0 {
		return 0, nil
	}
	n, err := r.rdb.HDel(ctx, group, fields...).Result()
	return n, wrap("hdel", err)
}

func (r *Redis) GroupExists(ctx context.Context, group, field string) (bool, error) {
	ok, err := r.rdb.HExists(ctx, group, field).Result()
	return ok, wrap("hexists", err)
}

func (r *Redis) GroupExpire(ctx context.Context, group string, ttl time.Duration) (bool, error) {
	return r.Expire(ctx, group, ttl)
}

func (r *Redis) Ping(ctx context.Context) error {
	if err := r.rdb.Ping(ctx).Err(); err != nil {
		return wrap("ping", err)
	}
	return r.Check(ctx)
}

// Check verifies that the connection has the configured logical database selected.
// It is a no-op unless CheckIntegrity was set.
func (r *Redis) Check(ctx context.Context) error {
	if !r.checkIntegrity {
		return nil
	}
	info, err := r.rdb.ClientInfo(ctx).Result()
	if err != nil {
		return wrap("client info", err)
	}
	if info.DB != r.db {
		return fmt.Errorf("%w: selected db %d, expected %d", store.ErrIntegrityCheckFailed, info.DB, r.db)
	}
	return nil
}

// Close releases the underlying redis client only when this store owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (r *Redis) Close(context.Context) error {
	if r.closeClient {
		if err := r.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}

func asBytes(v any) []byte {
	switch vv := v.(type) {
	case nil:
		return nil
	case string:
		return []byte(vv)
	case []byte:
		return vv
	default:
		return []byte(fmt.Sprint(vv))
	}
}

// wrap classifies go-redis errors into the store sentinels.
func wrap(op string, err error) error {
	if err == nil || err == goredis.Nil {
		return nil
	}
	if errors.Is(err, goredis.ErrClosed) {
		return fmt.Errorf("redis %s: %w: %v", op, store.ErrNotConnected, err)
	}
	var ne net.Error
	if errors.As(err, &ne) || errors.Is(err, io.EOF) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("redis %s: %w: %v", op, store.ErrBackendUnavailable, err)
	}
	return fmt.Errorf("redis %s: %w", op, err)
}
