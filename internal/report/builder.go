// Package report assembles per-company match reports from the matcher and
// writes qualifying links back to storage.
package report

import (
	"context"
	"runtime"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/debtlink/internal/config"
	"github.com/sells-group/debtlink/internal/matcher"
	"github.com/sells-group/debtlink/internal/model"
	"github.com/sells-group/debtlink/internal/store"
)

// Builder fetches a company's instruments and candidate pools and scores
// them with the engine.
type Builder struct {
	store  store.Store
	engine *matcher.Engine
	cfg    config.MatchConfig
}

// NewBuilder creates a Builder using the engine's thresholds.
func NewBuilder(s store.Store, e *matcher.Engine) *Builder {
	return &Builder{store: s, engine: e, cfg: e.Config()}
}

// slot holds one instrument's scoring outcome.
type slot struct {
	best  model.MatchResult
	found bool
	all   []model.MatchResult
}

// Build produces the match report for one company. An unknown company is
// the only error that is not a storage failure.
func (b *Builder) Build(ctx context.Context, companyID int64) (*model.CompanyMatchReport, error) {
	company, err := b.store.GetCompany(ctx, companyID)
	if err != nil {
		return nil, eris.Wrapf(err, "report: company %d", companyID)
	}
	insts, err := b.instruments(ctx, company)
	if err != nil {
		return nil, err
	}

	rep := &model.CompanyMatchReport{
		CompanyID:        company.ID,
		CompanyName:      company.Name,
		TotalInstruments: len(insts),
		Matches:          []model.MatchResult{},
		Unmatched:        []model.UnmatchedInstrument{},
	}
	for i := range insts {
		switch insts[i].Category() {
		case model.CategoryBond:
			rep.Bonds++
		case model.CategoryLoan:
			rep.Loans++
		}
	}

	pools := make(map[model.Category][]matcher.Candidate, 2)
	for _, c := range []model.Category{model.CategoryBond, model.CategoryLoan} {
		if (c == model.CategoryBond && rep.Bonds == 0) || (c == model.CategoryLoan && rep.Loans == 0) {
			continue
		}
		section, _ := model.PoolFor(c)
		docs, err := b.store.ListDocuments(ctx, companyID, section)
		if err != nil {
			return nil, eris.Wrapf(err, "report: list %s documents", section)
		}
		pools[c] = b.engine.Candidates(docs)
	}

	slots, err := b.score(ctx, insts, pools)
	if err != nil {
		return nil, err
	}

	var footnotes []model.DocumentSection
	footnotesLoaded := false
	for i := range insts {
		inst := &insts[i]
		s := &slots[i]
		cat := inst.Category()
		if cat == model.CategoryUnknown {
			rep.Unmatched = append(rep.Unmatched, unmatched(inst, model.ReasonUnclassified, 0))
			rep.Buckets.Unmatched++
			continue
		}

		if cat == model.CategoryBond && (!s.found || s.best.Confidence < b.cfg.MinPersistConfidence) {
			if !footnotesLoaded {
				footnotes, err = b.store.ListDocuments(ctx, companyID, model.SectionDebtFootnote)
				if err != nil {
					return nil, eris.Wrap(err, "report: list footnotes")
				}
				footnotesLoaded = true
			}
			if fn := b.engine.FootnoteFallback(inst, footnotes); len(fn) > 0 {
				if !s.found || fn[0].Confidence > s.best.Confidence {
					s.best, s.found = fn[0], true
				}
				s.all = append(s.all, fn...)
			}
		}

		switch {
		case s.found && s.best.Confidence >= b.cfg.MinPersistConfidence:
			rep.Matches = append(rep.Matches, s.best)
			if s.best.Confidence >= b.cfg.HighConfidence {
				rep.Buckets.High++
			} else {
				rep.Buckets.Low++
			}
		case len(pools[cat]) == 0 && !s.found:
			rep.Unmatched = append(rep.Unmatched, unmatched(inst, model.ReasonNoCandidates, 0))
			rep.Buckets.Unmatched++
		default:
			rep.Unmatched = append(rep.Unmatched, unmatched(inst, model.ReasonBelowMinimum, s.best.Confidence))
			rep.Buckets.Unmatched++
		}
		if b.cfg.Mode == config.ModeAll {
			rep.Candidates = append(rep.Candidates, s.all...)
		}
	}

	if err := rep.Validate(); err != nil {
		return nil, err
	}

	zap.L().With(zap.String("component", "report")).Info("company report built",
		zap.Int64("company_id", rep.CompanyID),
		zap.Int("instruments", rep.TotalInstruments),
		zap.Int("bonds", rep.Bonds),
		zap.Int("loans", rep.Loans),
		zap.Int("high", rep.Buckets.High),
		zap.Int("low", rep.Buckets.Low),
		zap.Int("unmatched", rep.Buckets.Unmatched),
	)
	return rep, nil
}

// score runs the engine for every instrument concurrently. Each goroutine
// writes only its own slot.
func (b *Builder) score(ctx context.Context, insts []model.DebtInstrument, pools map[model.Category][]matcher.Candidate) ([]slot, error) {
	slots := make([]slot, len(insts))
	all := b.cfg.Mode == config.ModeAll

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i := range insts {
		cands := pools[insts[i].Category()]
		if len(cands) == 0 {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			inst := &insts[i]
			slots[i].best, slots[i].found = b.engine.BestMatch(inst, cands)
			if all {
				slots[i].all = b.engine.FindAll(inst, cands)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "report: score instruments")
	}
	return slots, nil
}

// BuildReverse starts from the company's governing documents that have no
// stored link yet and scores the instruments each one could govern.
func (b *Builder) BuildReverse(ctx context.Context, companyID int64) ([]model.MatchResult, error) {
	company, err := b.store.GetCompany(ctx, companyID)
	if err != nil {
		return nil, eris.Wrapf(err, "report: company %d", companyID)
	}
	insts, err := b.instruments(ctx, company)
	if err != nil {
		return nil, err
	}
	if len(insts) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(insts))
	for i := range insts {
		ids[i] = insts[i].ID
	}
	existing, err := b.store.ExistingLinks(ctx, ids)
	if err != nil {
		return nil, eris.Wrap(err, "report: existing links")
	}
	linked := existing.DocumentIDs()

	var out []model.MatchResult
	for _, section := range []model.SectionType{model.SectionIndenture, model.SectionCreditAgreement} {
		docs, err := b.store.ListDocuments(ctx, companyID, section)
		if err != nil {
			return nil, eris.Wrapf(err, "report: list %s documents", section)
		}
		var open []model.DocumentSection
		for _, d := range docs {
			if !linked[d.ID] {
				open = append(open, d)
			}
		}
		for _, c := range b.engine.Candidates(open) {
			out = append(out, b.engine.Reverse(c, insts)...)
		}
	}
	matcher.SortResults(out)

	zap.L().With(zap.String("component", "report")).Info("reverse matches built",
		zap.Int64("company_id", companyID),
		zap.Int("results", len(out)),
	)
	return out, nil
}

// instruments lists the company's active instruments. An instrument without
// an issuer name inherits the company name for the issuer+date composite.
func (b *Builder) instruments(ctx context.Context, company *model.Company) ([]model.DebtInstrument, error) {
	listed, err := b.store.ListInstruments(ctx, company.ID)
	if err != nil {
		return nil, eris.Wrapf(err, "report: list instruments for company %d", company.ID)
	}
	insts := make([]model.DebtInstrument, len(listed))
	copy(insts, listed)
	for i := range insts {
		if insts[i].IssuerName == "" {
			insts[i].IssuerName = company.Name
		}
	}
	return insts, nil
}

func unmatched(inst *model.DebtInstrument, reason string, best float64) model.UnmatchedInstrument {
	return model.UnmatchedInstrument{
		InstrumentID:   inst.ID,
		Name:           inst.Name,
		Category:       inst.Category(),
		Reason:         reason,
		BestConfidence: best,
	}
}

// Persistable returns the results a persist step should consider: the
// matches plus, in all mode, every candidate.
func Persistable(rep *model.CompanyMatchReport) []model.MatchResult {
	out := make([]model.MatchResult, 0, len(rep.Matches)+len(rep.Candidates))
	out = append(out, rep.Matches...)
	return append(out, rep.Candidates...)
}
