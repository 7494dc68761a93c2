package poolcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/unkn0wn-root/poolcache/store"
)

func newTestPool(t *testing.T, s store.Store, name string, h Hooks) *Pool {
	t.Helper()
	p, err := NewPool(s, PoolOptions{Name: name, Hooks: h})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	return p
}

func mustSave(t *testing.T, p *Pool, e *Entry) {
	t.Helper()
	ok, err := p.Save(context.Background(), e)
	if err != nil || !ok {
		t.Fatalf("Save(%s): ok=%v err=%v", e.Key(), ok, err)
	}
}

func TestPoolName(t *testing.T) {
	if got := PoolName(""); got != "DEFAULT_Cache_Pool" {
		t.Fatalf("got %q", got)
	}
	if got := PoolName("users"); got != "Cache_Pool_users" {
		t.Fatalf("got %q", got)
	}
	if _, err := NewPool(nil, PoolOptions{}); err == nil {
		t.Fatalf("expected error for nil store")
	}
}

func TestPoolSaveGet(t *testing.T) {
	ctx := context.Background()
	p := newTestPool(t, newMemStore(t), "t", nil)

	mustSave(t, p, NewEntry("a").Set(StringValue("1")))
	e, err := p.GetItem(ctx, "a")
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if !e.IsHit() || !e.Get().Equal(StringValue("1")) {
		t.Fatalf("hit=%v value=%q", e.IsHit(), e.Get().String())
	}

	miss, _ := p.GetItem(ctx, "nope")
	if miss.IsHit() || !miss.Get().IsAbsent() || miss.Key() != "nope" {
		t.Fatalf("expected a miss entry, got %+v", miss)
	}
	if _, err := p.GetItem(ctx, "bad key"); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("err=%v", err)
	}
}

func TestPoolSaveExpiredIsRefused(t *testing.T) {
	ctx := context.Background()
	s := newMemStore(t)
	newClock(t, s)
	h := &recHooks{}
	p := newTestPool(t, s, "t", h)

	mustSave(t, p, NewEntry("b").Set(StringValue("old")))

	ok, err := p.Save(ctx, NewEntry("b").Set(StringValue("1")).ExpiresAfter(0))
	if ok || err != nil {
		t.Fatalf("Save of expired entry: ok=%v err=%v", ok, err)
	}
	if has, _ := p.HasItem(ctx, "b"); has {
		t.Fatalf("refused save must remove the stored key")
	}
	if len(h.refused) != 1 || h.refused[0] != "b" {
		t.Fatalf("refused hooks=%v", h.refused)
	}

	past := NewEntry("c").Set(StringValue("1")).ExpiresAt(now().Add(-time.Hour))
	if ok, _ := p.Save(ctx, past); ok {
		t.Fatalf("past instant should be refused")
	}
}

func TestPoolSaveRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	p := newTestPool(t, newMemStore(t), "t", nil)
	if _, err := p.Save(ctx, NewEntry("k")); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("absent value err=%v", err)
	}
	if _, err := p.Save(ctx, NewEntry("a b").Set(StringValue("v"))); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("bad key err=%v", err)
	}
	if _, err := p.Save(ctx, nil); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("nil entry err=%v", err)
	}
}

// A TTL on one entry is a TTL on the whole pool.
func TestPoolSaveExpiresWholeGroup(t *testing.T) {
	ctx := context.Background()
	s := newMemStore(t)
	clk := newClock(t, s)
	h := &recHooks{}
	p := newTestPool(t, s, "grp", h)

	mustSave(t, p, NewEntry("a").Set(StringValue("no ttl")))
	mustSave(t, p, NewEntry("b").Set(StringValue("ttl")).ExpiresAfter(time.Minute))

	if d, _ := s.TTL(ctx, p.Name()); d != time.Minute {
		t.Fatalf("group ttl=%v", d)
	}
	if len(h.groupExpired) != 1 || h.groupExpired[0] != time.Minute {
		t.Fatalf("group expired hooks=%v", h.groupExpired)
	}

	clk.Advance(time.Minute + time.Second)
	for _, k := range []string{"a", "b"} {
		if has, _ := p.HasItem(ctx, k); has {
			t.Fatalf("%s survived the group expiration", k)
		}
	}
}

func TestPoolSaveTimestampEntry(t *testing.T) {
	ctx := context.Background()
	s := newMemStore(t)
	clk := newClock(t, s)
	p := newTestPool(t, s, "t", nil)

	mustSave(t, p, NewEntry("k").Set(StringValue("v")).ExpiresAt(clk.t.Add(30*time.Second)))
	if d, _ := s.TTL(ctx, p.Name()); d != 30*time.Second {
		t.Fatalf("group ttl=%v", d)
	}
}

func TestPoolSaveDeferredServedFromMemory(t *testing.T) {
	ctx := context.Background()
	fs := newFailStore(newMemStore(t))
	p := newTestPool(t, fs, "t", nil)

	e := NewEntry("x").Set(StringValue("staged"))
	if ok, err := p.SaveDeferred(e); !ok || err != nil {
		t.Fatalf("SaveDeferred: ok=%v err=%v", ok, err)
	}
	e.Set(StringValue("mutated after staging"))

	got, _ := p.GetItem(ctx, "x")
	if !got.IsHit() || got.Get().String() != "staged" {
		t.Fatalf("hit=%v value=%q", got.IsHit(), got.Get().String())
	}
	if has, _ := p.HasItem(ctx, "x"); !has {
		t.Fatalf("staged entry should be reported")
	}
	if n := fs.total(); n != 0 {
		t.Fatalf("staged reads reached the backend: %v", fs.calls)
	}
	if p.Deferred() != 1 {
		t.Fatalf("deferred=%d", p.Deferred())
	}
}

func TestPoolSaveDeferredExpiredUnstages(t *testing.T) {
	newClock(t, nil)
	p := newTestPool(t, newMemStore(t), "t", nil)

	_, _ = p.SaveDeferred(NewEntry("k").Set(StringValue("v")))
	ok, err := p.SaveDeferred(NewEntry("k").Set(StringValue("v")).ExpiresAfter(0))
	if ok || err != nil {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if p.Deferred() != 0 {
		t.Fatalf("expired entry should unstage the key")
	}
	if _, err := p.SaveDeferred(NewEntry("k")); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("absent value err=%v", err)
	}
}

func TestPoolStagedEntryExpiresInMemory(t *testing.T) {
	ctx := context.Background()
	s := newMemStore(t)
	clk := newClock(t, s)
	p := newTestPool(t, s, "t", nil)

	_, _ = p.SaveDeferred(NewEntry("k").Set(StringValue("v")).ExpiresAfter(time.Second))
	clk.Advance(2 * time.Second)

	got, _ := p.GetItem(ctx, "k")
	if got.IsHit() {
		t.Fatalf("expired staged entry should be a miss")
	}
	if has, _ := p.HasItem(ctx, "k"); has {
		t.Fatalf("expired staged entry should not be reported")
	}
}

func TestPoolCommit(t *testing.T) {
	ctx := context.Background()
	s := newMemStore(t)
	newClock(t, s)
	p := newTestPool(t, s, "t", nil)

	if !p.Commit(ctx) {
		t.Fatalf("empty commit should succeed")
	}

	_, _ = p.SaveDeferred(NewEntry("a").Set(StringValue("1")))
	_, _ = p.SaveDeferred(NewEntry("x").Set(StringValue("2")))
	_, _ = p.SaveDeferred(NewEntry("x").Set(StringValue("3"))) // last write wins
	if !p.Commit(ctx) {
		t.Fatalf("Commit failed")
	}
	if p.Deferred() != 0 {
		t.Fatalf("deferred not cleared")
	}
	dump, err := p.Dump(ctx)
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if len(dump) != 2 || dump["a"].String() != "1" || dump["x"].String() != "3" {
		t.Fatalf("dump=%+v", dump)
	}
	keys, _ := p.Keys(ctx)
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "x" {
		t.Fatalf("keys=%v", keys)
	}
}

func TestPoolCommitDeletesEntriesExpiredWhileStaged(t *testing.T) {
	ctx := context.Background()
	s := newMemStore(t)
	clk := newClock(t, s)
	p := newTestPool(t, s, "t", nil)

	mustSave(t, p, NewEntry("gone").Set(StringValue("stored")))
	_, _ = p.SaveDeferred(NewEntry("gone").Set(StringValue("new")).ExpiresAfter(time.Second))
	_, _ = p.SaveDeferred(NewEntry("kept").Set(StringValue("v")))
	clk.Advance(time.Second)

	if !p.Commit(ctx) {
		t.Fatalf("Commit failed")
	}
	if has, _ := p.HasItem(ctx, "gone"); has {
		t.Fatalf("entry that expired while staged should be removed from the backend")
	}
	if has, _ := p.HasItem(ctx, "kept"); !has {
		t.Fatalf("fresh entry not written")
	}
}

func TestPoolCommitFailureStillClears(t *testing.T) {
	ctx := context.Background()
	fs := newFailStore(newMemStore(t))
	fs.fail["hset"] = errBoom
	h := &recHooks{}
	p := newTestPool(t, fs, "t", h)

	_, _ = p.SaveDeferred(NewEntry("a").Set(StringValue("1")))
	if p.Commit(ctx) {
		t.Fatalf("Commit should report the failed write")
	}
	if p.Deferred() != 0 {
		t.Fatalf("deferred map must be cleared regardless of failures")
	}
	if len(h.commitFailed) != 1 || !errors.Is(h.commitFailed[0], errBoom) {
		t.Fatalf("commit failed hooks=%v", h.commitFailed)
	}
}

func TestPoolGetItems(t *testing.T) {
	ctx := context.Background()
	fs := newFailStore(newMemStore(t))
	p := newTestPool(t, fs, "t", nil)

	mustSave(t, p, NewEntry("k1").Set(StringValue("stored")))
	_, _ = p.SaveDeferred(NewEntry("k2").Set(StringValue("staged")))
	before := fs.calls["hmget"]

	got, err := p.GetItems(ctx, []string{"k1", "k2", "k3"})
	if err != nil {
		t.Fatalf("GetItems: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("want 3 entries, got %d", len(got))
	}
	for k, e := range got {
		if e.Key() != k {
			t.Fatalf("entry under %q has key %q", k, e.Key())
		}
	}
	if !got["k1"].IsHit() || got["k1"].Get().String() != "stored" {
		t.Fatalf("k1: %+v", got["k1"])
	}
	if !got["k2"].IsHit() || got["k2"].Get().String() != "staged" {
		t.Fatalf("k2: %+v", got["k2"])
	}
	if got["k3"].IsHit() {
		t.Fatalf("k3 should miss")
	}
	if n := fs.calls["hmget"] - before; n != 1 {
		t.Fatalf("want one batched backend read, got %d", n)
	}

	empty, err := p.GetItems(ctx, nil)
	if err != nil || len(empty) != 0 {
		t.Fatalf("empty input: %v err=%v", empty, err)
	}
	if _, err := p.GetItems(ctx, []string{"ok", "bad key"}); !errors.Is(err, ErrInvalidKeySet) {
		t.Fatalf("err=%v", err)
	}
}

func TestPoolReadsFallBackOnBackendError(t *testing.T) {
	ctx := context.Background()
	fs := newFailStore(newMemStore(t))
	h := &recHooks{}
	p := newTestPool(t, fs, "t", h)
	mustSave(t, p, NewEntry("k").Set(StringValue("v")))

	fs.fail["hget"] = errBoom
	fs.fail["hmget"] = errBoom
	fs.fail["hexists"] = errBoom
	fs.fail["hset"] = errBoom

	if e, err := p.GetItem(ctx, "k"); err != nil || e.IsHit() {
		t.Fatalf("GetItem: hit=%v err=%v", e.IsHit(), err)
	}
	items, err := p.GetItems(ctx, []string{"k"})
	if err != nil || items["k"].IsHit() {
		t.Fatalf("GetItems: %+v err=%v", items, err)
	}
	if has, err := p.HasItem(ctx, "k"); has || err != nil {
		t.Fatalf("HasItem: %v err=%v", has, err)
	}
	if ok, err := p.Save(ctx, NewEntry("k").Set(StringValue("v2"))); ok || err != nil {
		t.Fatalf("Save: %v err=%v", ok, err)
	}
	if len(h.backendErrors) != 4 {
		t.Fatalf("backend error hooks=%v", h.backendErrors)
	}
}

func TestPoolDeleteItem(t *testing.T) {
	ctx := context.Background()
	fs := newFailStore(newMemStore(t))
	p := newTestPool(t, fs, "t", nil)

	mustSave(t, p, NewEntry("stored").Set(StringValue("v")))
	_, _ = p.SaveDeferred(NewEntry("staged").Set(StringValue("v")))

	before := fs.calls["hdel"]
	still, err := p.DeleteItem(ctx, "staged")
	if err != nil || still {
		t.Fatalf("staged delete: still=%v err=%v", still, err)
	}
	if fs.calls["hdel"] != before || p.Deferred() != 0 {
		t.Fatalf("staged delete should only unstage")
	}

	ok, err := p.DeleteItem(ctx, "stored")
	if err != nil || !ok {
		t.Fatalf("DeleteItem: ok=%v err=%v", ok, err)
	}
	if has, _ := p.HasItem(ctx, "stored"); has {
		t.Fatalf("stored key should be gone")
	}

	fs.fail["hdel"] = errBoom
	if ok, err := p.DeleteItem(ctx, "other"); ok || !errors.Is(err, errBoom) {
		t.Fatalf("DeleteItem on backend error: ok=%v err=%v", ok, err)
	}
}

func TestPoolDeleteItemsAndClear(t *testing.T) {
	ctx := context.Background()
	p := newTestPool(t, newMemStore(t), "t", nil)

	mustSave(t, p, NewEntry("a").Set(StringValue("1")))
	mustSave(t, p, NewEntry("b").Set(StringValue("2")))
	mustSave(t, p, NewEntry("c").Set(StringValue("3")))
	_, _ = p.SaveDeferred(NewEntry("d").Set(StringValue("4")))

	if ok, err := p.DeleteItems(ctx, []string{"a", "d"}); !ok || err != nil {
		t.Fatalf("DeleteItems: ok=%v err=%v", ok, err)
	}
	if p.Deferred() != 0 {
		t.Fatalf("staged key not unstaged")
	}
	keys, _ := p.Keys(ctx)
	if len(keys) != 2 || keys[0] != "b" {
		t.Fatalf("keys=%v", keys)
	}

	_, _ = p.SaveDeferred(NewEntry("e").Set(StringValue("5")))
	if !p.Clear(ctx) {
		t.Fatalf("Clear failed")
	}
	if p.Deferred() != 0 {
		t.Fatalf("Clear should drop staged entries")
	}
	if keys, _ := p.Keys(ctx); len(keys) != 0 {
		t.Fatalf("keys after clear=%v", keys)
	}
}

func TestPoolsAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := newMemStore(t)
	a := newTestPool(t, s, "a", nil)
	b := newTestPool(t, s, "b", nil)

	mustSave(t, a, NewEntry("k").Set(StringValue("from a")))
	if has, _ := b.HasItem(ctx, "k"); has {
		t.Fatalf("pools share keys")
	}
	if !b.Clear(ctx) {
		t.Fatalf("Clear failed")
	}
	if has, _ := a.HasItem(ctx, "k"); !has {
		t.Fatalf("clearing one pool wiped another")
	}
}

func TestPoolCloseCommits(t *testing.T) {
	ctx := context.Background()
	s := newMemStore(t)
	p := newTestPool(t, s, "t", nil)

	_, _ = p.SaveDeferred(NewEntry("k").Set(StringValue("v")))
	if err := p.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	other := newTestPool(t, s, "t", nil)
	if e, _ := other.GetItem(ctx, "k"); !e.IsHit() {
		t.Fatalf("pending entry not committed on Close")
	}

	fs := newFailStore(s)
	fs.fail["hset"] = errBoom
	q := newTestPool(t, fs, "t", nil)
	_, _ = q.SaveDeferred(NewEntry("j").Set(StringValue("v")))
	if err := q.Close(ctx); !errors.Is(err, ErrCommitFailed) {
		t.Fatalf("err=%v want ErrCommitFailed", err)
	}
}
