package report

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/debtlink/internal/model"
	"github.com/sells-group/debtlink/internal/store"
)

// DefaultCreatedBy tags links written by the matcher.
const DefaultCreatedBy = "debtlink"

// PersistStats counts what a Persist call did with its input.
type PersistStats struct {
	Considered     int `json:"considered"`
	BelowThreshold int `json:"below_threshold"`
	Duplicates     int `json:"duplicates"`
	Existing       int `json:"existing"`
	Created        int `json:"created"`
}

// Add accumulates another call's counts.
func (s *PersistStats) Add(o PersistStats) {
	s.Considered += o.Considered
	s.BelowThreshold += o.BelowThreshold
	s.Duplicates += o.Duplicates
	s.Existing += o.Existing
	s.Created += o.Created
}

// Persister writes qualifying match results as unverified links.
type Persister struct {
	store     store.Store
	limiter   *rate.Limiter
	minConf   float64
	createdBy string
}

// NewPersister creates a Persister. writesPerSecond <= 0 leaves writes
// unthrottled; an empty createdBy uses DefaultCreatedBy.
func NewPersister(s store.Store, minConfidence, writesPerSecond float64, createdBy string) *Persister {
	if createdBy == "" {
		createdBy = DefaultCreatedBy
	}
	p := &Persister{store: s, minConf: minConfidence, createdBy: createdBy}
	if writesPerSecond > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(writesPerSecond), max(1, int(writesPerSecond)))
	}
	return p
}

// Persist writes every result at or above the persist threshold whose
// (instrument, document) pair is not already stored. Reruns are no-ops.
func (p *Persister) Persist(ctx context.Context, results []model.MatchResult, runID string) (PersistStats, error) {
	log := zap.L().With(zap.String("component", "persist"), zap.String("run_id", runID))
	st := PersistStats{Considered: len(results)}

	// Keep the strongest result per pair, first seen on ties.
	var keep []model.MatchResult
	index := make(map[model.LinkKey]int, len(results))
	for _, r := range results {
		if r.Confidence < p.minConf {
			st.BelowThreshold++
			continue
		}
		k := r.Key()
		if i, ok := index[k]; ok {
			st.Duplicates++
			if r.Confidence > keep[i].Confidence {
				keep[i] = r
			}
			continue
		}
		index[k] = len(keep)
		keep = append(keep, r)
	}
	if len(keep) == 0 {
		return st, nil
	}

	seen := make(map[int64]bool, len(keep))
	var ids []int64
	for _, r := range keep {
		if !seen[r.InstrumentID] {
			seen[r.InstrumentID] = true
			ids = append(ids, r.InstrumentID)
		}
	}
	existing, err := p.store.ExistingLinks(ctx, ids)
	if err != nil {
		return st, eris.Wrap(err, "persist: existing links")
	}

	for _, r := range keep {
		if existing.Has(r.Key()) {
			st.Existing++
			continue
		}
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return st, eris.Wrap(err, "persist: rate limit")
			}
		}
		created, err := p.store.CreateLink(ctx, model.NewDocumentLink(r, runID, p.createdBy))
		if err != nil {
			return st, eris.Wrapf(err, "persist: link %d/%d", r.InstrumentID, r.DocumentID)
		}
		if created {
			st.Created++
		} else {
			st.Existing++
		}
	}

	log.Info("links persisted",
		zap.Int("created", st.Created),
		zap.Int("existing", st.Existing),
		zap.Int("below_threshold", st.BelowThreshold),
	)
	return st, nil
}
