package matcher

import (
	"github.com/sells-group/debtlink/internal/config"
	"github.com/sells-group/debtlink/internal/model"
)

// Pipeline is an ordered list of strategies for one instrument category.
type Pipeline struct {
	category   model.Category
	strategies []Strategy
}

// NewPipeline builds a pipeline from explicit strategies.
func NewPipeline(c model.Category, strategies ...Strategy) *Pipeline {
	return &Pipeline{category: c, strategies: strategies}
}

// Category returns the instrument category the pipeline scores.
func (pl *Pipeline) Category() model.Category { return pl.category }

// Strategies returns the strategy names in evaluation order.
func (pl *Pipeline) Strategies() []string {
	names := make([]string, len(pl.strategies))
	for i, s := range pl.strategies {
		names[i] = s.Name()
	}
	return names
}

// Run evaluates every strategy in order, stopping after a terminal strategy
// fires, and returns the accumulated signals.
func (pl *Pipeline) Run(p *Pair) []Signal {
	for _, s := range pl.strategies {
		out := s.Score(p)
		if len(out) == 0 {
			continue
		}
		p.signals = append(p.signals, out...)
		if t, ok := s.(Terminal); ok && t.Terminal() {
			break
		}
	}
	return p.signals
}

// BondPipeline returns the strategies used for bond-like instruments
// against indentures.
func BondPipeline(cfg config.MatchConfig) *Pipeline {
	return NewPipeline(model.CategoryBond,
		IdentifierStrategy(),
		DescriptionStrategy(),
		MultiTrancheStrategy(),
		FilingProximityStrategy(model.CategoryBond),
		IssuerDateStrategy(model.CategoryBond),
		CouponStrategy(),
		MaturityStrategy(),
		SeniorityStrategy(),
		NameOverlapStrategy(),
		FilingWindowStrategy(model.CategoryBond, cfg.BondFilingToleranceDays),
		AmountStrategy(),
	)
}

// LoanPipeline returns the strategies used for loan-like instruments
// against credit agreements.
func LoanPipeline(cfg config.MatchConfig) *Pipeline {
	return NewPipeline(model.CategoryLoan,
		IdentifierStrategy(),
		FilingProximityStrategy(model.CategoryLoan),
		IssuerDateStrategy(model.CategoryLoan),
		FacilityStrategy(),
		CommitmentStrategy(),
		CouponStrategy(),
		MaturityStrategy(),
		SeniorityStrategy(),
		NameOverlapStrategy(),
		FilingWindowStrategy(model.CategoryLoan, cfg.LoanFilingToleranceDays),
		AmendedRestatedStrategy(),
		AmountStrategy(),
		SameCompanyStrategy(),
	)
}
