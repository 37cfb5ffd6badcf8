// Package tokencache keeps the most recently issued token of each identity and
// applies the refresh policy on lookup.
//
// An entry is Fresh while more than the refresh buffer remains before its
// expiry, StaleButExpiringSoon inside the buffer, and Expired once its expiry
// is reached. Fresh entries are returned unchanged; anything else is replaced
// by a newly issued token in the same locked step.
//
// # Architecture boundaries
//
// The cache is process-local and bounded. Identities are spread over shards
// by FNV-1a hash; each shard has its own lock, map and eviction order (LRU or
// FIFO). A hard TTL applies to every entry independently of the refresh
// policy, and a background sweeper reclaims expired entries.
//
// # What this package must NOT do
//
//   - Verify tokens presented by clients. That belongs to the jwt codec.
//   - Check credentials or know about users beyond the identity string.
//   - Share entries across processes.
package tokencache
