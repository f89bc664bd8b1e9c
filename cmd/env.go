package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/debtlink/internal/config"
	"github.com/sells-group/debtlink/internal/matcher"
	"github.com/sells-group/debtlink/internal/report"
	"github.com/sells-group/debtlink/internal/store"
)

// env holds the collaborators shared by the matching commands.
type env struct {
	Store     store.Store
	Engine    *matcher.Engine
	Builder   *report.Builder
	Persister *report.Persister
}

// initEnv opens the configured store behind the read cache and builds the
// engine. mode overrides match.mode when set.
func initEnv(ctx context.Context, mode string) (*env, error) {
	mc := cfg.Match
	if mode != "" {
		if mode != config.ModeBest && mode != config.ModeAll {
			return nil, eris.Errorf("--mode must be %q or %q, got %q", config.ModeBest, config.ModeAll, mode)
		}
		mc.Mode = mode
	}

	s, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	cached := store.WithCache(s, cfg.Cache)

	engine := matcher.New(mc)
	zap.L().Debug("environment ready",
		zap.String("driver", cfg.Store.Driver),
		zap.String("mode", mc.Mode),
	)
	return &env{
		Store:     cached,
		Engine:    engine,
		Builder:   report.NewBuilder(cached, engine),
		Persister: report.NewPersister(cached, mc.MinPersistConfidence, cfg.Batch.WritesPerSecond, report.DefaultCreatedBy),
	}, nil
}

// Close releases the store.
func (e *env) Close() {
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("close store", zap.Error(err))
	}
}
