package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/debtlink/internal/config"
)

// Open builds the configured backend. The fixture driver needs no
// migration; database drivers are returned unmigrated.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, eris.New("store: postgres driver requires store.database_url (DEBTLINK_STORE_DATABASE_URL)")
		}
		return NewPostgres(ctx, cfg.DatabaseURL, &PoolConfig{MaxConns: cfg.MaxConns, MinConns: cfg.MinConns})
	case "sqlite":
		dsn := cfg.DatabaseURL
		if dsn == "" {
			dsn = "debtlink.db"
		}
		return NewSQLite(dsn)
	case "fixture":
		if cfg.FixturePath == "" {
			return nil, eris.New("store: fixture driver requires store.fixture_path")
		}
		return NewFixture(cfg.FixturePath)
	default:
		return nil, eris.Errorf("store: unsupported driver %q", cfg.Driver)
	}
}

// WithCache wraps s in a Cached decorator using minutes from config. A zero
// TTL leaves s unwrapped.
func WithCache(s Store, cfg config.CacheConfig) Store {
	if cfg.TTLMinutes <= 0 {
		return s
	}
	return NewCached(s,
		time.Duration(cfg.TTLMinutes)*time.Minute,
		time.Duration(cfg.CleanupMinutes)*time.Minute)
}
