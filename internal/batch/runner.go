// Package batch drives the report builder across many companies with
// bounded concurrency, per-company retries and a dead-letter queue.
package batch

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/debtlink/internal/config"
	"github.com/sells-group/debtlink/internal/model"
	"github.com/sells-group/debtlink/internal/report"
	"github.com/sells-group/debtlink/internal/resilience"
	"github.com/sells-group/debtlink/internal/store"
)

// Summary is the outcome of one batch run.
type Summary struct {
	RunID        string                `json:"run_id"`
	Results      []model.CompanyResult `json:"results"`
	Succeeded    int64                 `json:"succeeded"`
	Failed       int64                 `json:"failed"`
	DeadLettered int64                 `json:"dead_lettered"`
	Persist      report.PersistStats   `json:"persist"`
	Duration     time.Duration         `json:"duration"`
}

// Reports returns the reports of successful companies in input order.
func (s *Summary) Reports() []*model.CompanyMatchReport {
	var out []*model.CompanyMatchReport
	for _, r := range s.Results {
		if r.Report != nil {
			out = append(out, r.Report)
		}
	}
	return out
}

// Runner matches companies concurrently. Each company is isolated: its
// failure is recorded in its own result and never aborts the others.
type Runner struct {
	store     store.Store
	builder   *report.Builder
	persister *report.Persister
	cfg       config.BatchConfig
	retry     resilience.RetryConfig
	breaker   *resilience.Breaker

	now      func() time.Time
	newRunID func() string
}

// NewRunner creates a Runner. A nil persister builds reports without
// writing links.
func NewRunner(s store.Store, b *report.Builder, p *report.Persister, cfg config.BatchConfig) *Runner {
	bc := resilience.BreakerFromConfig(cfg)
	bc.OnStateChange = func(from, to resilience.CircuitState) {
		zap.L().With(zap.String("component", "batch")).Warn("storage circuit state changed",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}
	return &Runner{
		store:     s,
		builder:   b,
		persister: p,
		cfg:       cfg,
		retry:     resilience.RetryFromConfig(cfg),
		breaker:   resilience.NewBreaker(bc),
		now:       time.Now,
		newRunID:  uuid.NewString,
	}
}

// Breaker exposes the storage circuit breaker shared by all companies.
func (r *Runner) Breaker() *resilience.Breaker { return r.breaker }

// Run matches the given companies, or every stored company when ids is
// empty. Companies that still fail after retries are dead-lettered. Only a
// failure to list companies is returned as an error.
func (r *Runner) Run(ctx context.Context, ids []int64) (*Summary, error) {
	if len(ids) == 0 {
		companies, err := r.store.ListCompanies(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "batch: list companies")
		}
		for _, c := range companies {
			ids = append(ids, c.ID)
		}
	}

	sum := r.fanOut(ctx, ids, func(ctx context.Context, runID string, i int, err error) bool {
		entry := resilience.NewDLQEntry(ids[i], runID, err, r.cfg.DLQMaxRetries, r.dlqBackoff(), r.now().UTC())
		return r.enqueue(ctx, entry)
	}, nil)
	return sum, nil
}

// RetryFailed replays due dead-letter entries. A success removes the entry;
// a failure re-queues it with one more retry spent.
func (r *Runner) RetryFailed(ctx context.Context) (*Summary, error) {
	entries, err := r.store.DequeueDLQ(ctx, resilience.DLQFilter{})
	if err != nil {
		return nil, eris.Wrap(err, "batch: dequeue dead letters")
	}
	ids := make([]int64, len(entries))
	for i, e := range entries {
		ids[i] = e.CompanyID
	}

	sum := r.fanOut(ctx, ids,
		func(ctx context.Context, runID string, i int, err error) bool {
			e := entries[i]
			now := r.now().UTC()
			e.RunID = runID
			e.Error = err.Error()
			e.ErrorType = resilience.ClassifyError(err)
			e.RetryCount++
			if e.ErrorType == resilience.ErrorTypePermanent {
				e.MaxRetries = e.RetryCount
			}
			e.NextRetryAt = resilience.NextRetryAt(e.RetryCount, r.dlqBackoff(), now)
			e.LastFailedAt = now
			return r.enqueue(ctx, e)
		},
		func(ctx context.Context, i int) {
			if err := r.store.RemoveDLQ(ctx, ids[i]); err != nil {
				zap.L().With(zap.String("component", "batch")).Warn("failed to remove dead letter",
					zap.Int64("company_id", ids[i]), zap.Error(err))
			}
		},
	)
	return sum, nil
}

// fanOut runs every company and calls onFail or onSuccess with its index.
// onFail reports whether the company was dead-lettered. Callbacks are
// skipped once ctx is done.
func (r *Runner) fanOut(ctx context.Context, ids []int64,
	onFail func(ctx context.Context, runID string, i int, err error) bool,
	onSuccess func(ctx context.Context, i int),
) *Summary {
	start := r.now()
	runID := r.newRunID()
	log := zap.L().With(zap.String("component", "batch"), zap.String("run_id", runID))

	limit := r.cfg.MaxConcurrentCompanies
	if limit <= 0 {
		limit = runtime.NumCPU()
	}
	log.Info("batch started", zap.Int("companies", len(ids)), zap.Int("concurrency", limit))

	sum := &Summary{RunID: runID, Results: make([]model.CompanyResult, len(ids))}
	var (
		succeeded, failed, dead atomic.Int64
		mu                      sync.Mutex
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, id := range ids {
		g.Go(func() error {
			res, st, err := r.company(gctx, runID, id)
			sum.Results[i] = res
			if err != nil {
				failed.Add(1)
				log.Error("company failed",
					zap.Int64("company_id", id),
					zap.Int("attempts", res.Attempts),
					zap.Error(err))
				if onFail != nil && gctx.Err() == nil && onFail(gctx, runID, i, err) {
					dead.Add(1)
				}
				return nil
			}
			succeeded.Add(1)
			mu.Lock()
			sum.Persist.Add(st)
			mu.Unlock()
			if onSuccess != nil && gctx.Err() == nil {
				onSuccess(gctx, i)
			}
			return nil
		})
	}
	_ = g.Wait()

	sum.Succeeded = succeeded.Load()
	sum.Failed = failed.Load()
	sum.DeadLettered = dead.Load()
	sum.Duration = r.now().Sub(start)

	log.Info("batch complete",
		zap.Int64("succeeded", sum.Succeeded),
		zap.Int64("failed", sum.Failed),
		zap.Int64("dead_lettered", sum.DeadLettered),
		zap.Int("links_created", sum.Persist.Created),
		zap.Duration("duration", sum.Duration),
	)
	return sum
}

type outcome struct {
	report *model.CompanyMatchReport
	stats  report.PersistStats
}

// company builds and optionally persists one company's report, retrying
// transient failures through the shared breaker.
func (r *Runner) company(ctx context.Context, runID string, id int64) (model.CompanyResult, report.PersistStats, error) {
	start := r.now()
	res := model.CompanyResult{CompanyID: id, Status: model.RunStatusMatching}

	retry := r.retry
	retry.OnRetry = resilience.RetryLogger(id, "match")
	out, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (outcome, error) {
		res.Attempts++
		return resilience.ExecuteVal(ctx, r.breaker, func(ctx context.Context) (outcome, error) {
			return r.attempt(ctx, runID, id)
		})
	})
	res.Duration = r.now().Sub(start)
	if err != nil {
		res.Status = model.RunStatusFailed
		res.Error = err.Error()
		return res, report.PersistStats{}, err
	}

	res.Status = model.RunStatusComplete
	res.Report = out.report
	res.Created = out.stats.Created
	res.Skipped = out.stats.Existing
	return res, out.stats, nil
}

func (r *Runner) attempt(ctx context.Context, runID string, id int64) (outcome, error) {
	rep, err := r.builder.Build(ctx, id)
	if err != nil {
		return outcome{}, err
	}
	out := outcome{report: rep}
	if r.persister == nil {
		return out, nil
	}
	out.stats, err = r.persister.Persist(ctx, report.Persistable(rep), runID)
	if err != nil {
		return outcome{}, err
	}
	return out, nil
}

func (r *Runner) enqueue(ctx context.Context, e resilience.DLQEntry) bool {
	if err := r.store.EnqueueDLQ(ctx, e); err != nil {
		zap.L().With(zap.String("component", "batch")).Error("failed to dead-letter company",
			zap.Int64("company_id", e.CompanyID), zap.Error(err))
		return false
	}
	return true
}

func (r *Runner) dlqBackoff() time.Duration {
	return time.Duration(r.cfg.DLQBackoffMinutes) * time.Minute
}
