// Package sloghooks reports poolcache events through log/slog with sampling
// and key redaction.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/poolcache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	FallbackEvery     uint64
	BackendErrorEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	fallbackCtr atomic.Uint64
	backendCtr  atomic.Uint64
}

var _ poolcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) GroupExpired(pool string, ttl time.Duration) {
	if h.l == nil {
		return
	}
	h.l.Warn("poolcache.group_expired",
		"pool", pool,
		"ttl", ttl)
}

func (h *Hooks) SaveRefused(pool, key string) {
	if h.l == nil {
		return
	}
	h.l.Debug("poolcache.save_refused",
		"pool", pool,
		"key", h.redact(key))
}

func (h *Hooks) CommitFailed(pool string, written, deleted int, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("poolcache.commit_failed",
		"pool", pool,
		"written", written,
		"deleted", deleted,
		"err", err)
}

func (h *Hooks) DecodeFallback(key string) {
	if h.l == nil || !sample(h.opts.FallbackEvery, &h.fallbackCtr) {
		return
	}
	h.l.Debug("poolcache.decode_fallback",
		"key", h.redact(key))
}

func (h *Hooks) BackendError(op string, err error) {
	if h.l == nil || !sample(h.opts.BackendErrorEvery, &h.backendCtr) {
		return
	}
	h.l.Warn("poolcache.backend_error",
		"op", op,
		"err", err)
}
