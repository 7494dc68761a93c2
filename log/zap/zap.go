// Package zap adapts a *zap.Logger to poolcache.Logger.
package zap

import (
	"sort"

	"go.uber.org/zap"

	"github.com/unkn0wn-root/poolcache"
)

var _ poolcache.Logger = Logger{}

type Logger struct{ L *zap.Logger }

// New wraps l; a nil l yields a no-op logger.
func New(l *zap.Logger) Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return Logger{L: l.WithOptions(zap.AddCallerSkip(1))}
}

func (z Logger) Debug(msg string, f poolcache.Fields) { z.L.Debug(msg, fields(f)...) }
func (z Logger) Info(msg string, f poolcache.Fields)  { z.L.Info(msg, fields(f)...) }
func (z Logger) Warn(msg string, f poolcache.Fields)  { z.L.Warn(msg, fields(f)...) }
func (z Logger) Error(msg string, f poolcache.Fields) { z.L.Error(msg, fields(f)...) }

// fields converts f in key order. Errors become zap.NamedError so encoders
// render them as strings.
func fields(f poolcache.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]zap.Field, 0, len(f))
	for _, k := range keys {
		if err, ok := f[k].(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, f[k]))
	}
	return out
}
