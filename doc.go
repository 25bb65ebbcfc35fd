// Package tillfront implements the client core of a restaurant POS terminal.
//
// The root package is a provider-agnostic cache for slow-changing reference
// data (meals, categories, stock). Entries are framed with a creation
// timestamp, a cache-format tag, and a per-key revision; a read returns data
// only when the entry is younger than MaxAge, carries the current format tag,
// and its revision still matches. Anything else is treated as a miss and the
// offending entry is deleted (self-heal); cache problems never reach the
// operator.
//
// Components:
//   - Provider: byte store with TTL (on-disk, BigCache, Ristretto, Redis).
//   - Codec[V]: (de)serializes V <-> []byte.
//   - RevStore: revision counter per logical key. Local (in-process) by
//     default, optional Redis implementation shared across terminals.
//
// Revisions order cache writes after invalidations:
//
//	obs  := cache.SnapshotRev(k)  // before the network fetch
//	list := fetchFromBackend(k)
//	_    = cache.SetWithRev(ctx, k, list, obs, 0) // write iff rev == obs
//
// A mutation (create/update/delete of a meal, category or stock item) calls
// Invalidate, which bumps the revision; any fetch response that was already
// in flight when the mutation landed is then silently discarded.
//
// Domain packages build on this core: model (resource records), backend
// (REST client), state (application state container), catalog (read-through
// resource services), shiftgate (cashier shift state machine), refresh
// (periodic and focus-triggered forced refresh), session and config.
package tillfront
