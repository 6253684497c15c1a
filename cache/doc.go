// Package cache provides the time-bounded read-through caches used for the
// discovery document, catalog lookups, resource listings and service API key
// logins. A Cache is scoped to the component that owns it; the Store behind it
// may be process local (MemoryStore) or shared between replicas (RedisStore).
//
// Entries are never invalidated early: staleness up to the TTL is expected.
package cache
