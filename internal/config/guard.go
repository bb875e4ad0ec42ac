package config

import "time"

// GuardConfig holds tunables for the admin route guard. SessionCacheTTL is
// the lifetime of cached session probes; entries are expired lazily on read,
// so SessionCacheMax bounds how many entries the cache may hold before the
// insert path starts evicting.
type GuardConfig struct {
	SessionCacheTTL time.Duration
	SessionCacheMax int
}

// LoadGuardConfig reads guard settings from the environment with defaults
// matching the documented behavior (60 second probe cache).
func LoadGuardConfig() GuardConfig {
	g := GuardConfig{
		SessionCacheTTL: envDur("GUARD_SESSION_CACHE_TTL", 60*time.Second),
		SessionCacheMax: envInt("GUARD_SESSION_CACHE_MAX", 1024),
	}
	if g.SessionCacheTTL <= 0 {
		g.SessionCacheTTL = 60 * time.Second
	}
	if g.SessionCacheMax < 1 {
		g.SessionCacheMax = 1
	}
	return g
}
