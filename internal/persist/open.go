package persist

import (
	"fmt"
	"strings"
)

// Options selects and configures a KV backend.
type Options struct {
	Backend     string // memory, sqlite, postgres, redis
	SQLitePath  string
	DatabaseURL string
	RedisURL    string
	Namespace   string
}

// Open returns the configured backend. An empty Backend picks postgres when a
// DatabaseURL is set, sqlite when a path is set, and memory otherwise.
func Open(o Options) (KV, error) {
	backend := strings.ToLower(strings.TrimSpace(o.Backend))
	if backend == "" {
		switch {
		case o.DatabaseURL != "":
			backend = "postgres"
		case o.SQLitePath != "":
			backend = "sqlite"
		default:
			backend = "memory"
		}
	}
	switch backend {
	case "memory":
		return NewMemory(), nil
	case "sqlite":
		return NewSQLite(o.SQLitePath)
	case "postgres":
		if o.DatabaseURL == "" {
			return nil, fmt.Errorf("postgres backend requires DATABASE_URL")
		}
		return NewPostgres(o.DatabaseURL, o.Namespace)
	case "redis":
		if o.RedisURL == "" {
			return nil, fmt.Errorf("redis backend requires REDIS_URL")
		}
		return NewRedis(o.RedisURL, o.Namespace)
	default:
		return nil, fmt.Errorf("unknown store backend %q", o.Backend)
	}
}
