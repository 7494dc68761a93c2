// Package poolcache layers two cache contracts over a hash-oriented key-value
// backend (Redis, or the in-process store for tests):
//
//   - FlatCache: get/set/delete/has/clear by key, single and batched. Each key is
//     a backend string with its own TTL.
//   - Pool: a named group of Entry values backed by one backend hash, with
//     immediate writes (Save), staged writes (SaveDeferred) and a batch Commit.
//
// Components:
//   - Store (package store): the backend primitives; store/redis and store/memory.
//   - Value: string | bytes | codec-encoded, decided once at the API boundary.
//   - Codec[V] (package codec): JSON, msgpack, CBOR, protobuf for encoded values.
//
// Backend limitation: a group has ONE expiration clock. Saving an entry with a
// TTL expires the whole pool, including every field written before or after it:
//
//	e := poolcache.NewEntry("session").Set(poolcache.StringValue("x")).ExpiresAfter(time.Hour)
//	_, _ = pool.Save(ctx, e) // every key in the pool now expires in one hour
//
// Staged writes:
//
//	_, _ = pool.SaveDeferred(e) // visible to GetItem/HasItem immediately
//	ok := pool.Commit(ctx)      // one batched write; staged map is always emptied
//
// A Pool is not safe for concurrent use; guard it externally if shared.
package poolcache
