// Package profile stores tenant profiles, the per-tenant rule strings read
// by admission control.
//
// # Stores
//
//   - MemoryStore: profiles declared inline in the configuration
//   - FileStore: a YAML file, optionally watched with fsnotify
//   - SQLiteStore: a SQLite database managed with the CLI
//   - MongoStore: a MongoDB collection shared by several gatekeepers
//   - RedisStore: a Redis hash shared by several gatekeepers
//
// The shared stores implement Watcher. Watch follows a change stream
// (MongoDB) or a pub/sub channel (Redis) so that a profile written by one
// gatekeeper is evicted from the caches of the others.
//
// # Cache
//
// Cache wraps any Store with a TTL and implements limits.ProfileSource.
// For stores that report changes (every persistent store does for changes
// made through it), the affected tenant is evicted at once and cache listeners are
// notified; the server uses this to invalidate rate limiters when
// configured to. RefreshScheduler purges the cache on a cron schedule to
// pick up changes made behind the store's back.
//
//	store, err := profile.NewFileStore("profiles.yaml", logger)
//	if err != nil {
//	    return err
//	}
//	cache := profile.NewCache(store, profile.WithTTL(time.Minute))
//	go store.Watch(ctx, 0)
package profile
