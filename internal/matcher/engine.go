package matcher

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/sells-group/debtlink/internal/config"
	"github.com/sells-group/debtlink/internal/extract"
	"github.com/sells-group/debtlink/internal/model"
)

const (
	titleExcerptRunes = 200
	snippetRadius     = 80
	maxSnippets       = 3
)

var footnoteKeywordPattern = regexp.MustCompile(`(?i)\b(?:due|notes|senior|bonds)\b`)

// DefaultConfig returns the match thresholds used when none are configured.
func DefaultConfig() config.MatchConfig {
	return config.MatchConfig{
		MinPersistConfidence:    0.50,
		MinCandidateConfidence:  0.40,
		HighConfidence:          0.70,
		BondFilingToleranceDays: 30,
		LoanFilingToleranceDays: 60,
		BodyWindowChars:         extract.DefaultBodyWindow,
		FootnoteWindowChars:     200,
		FootnoteMaxResults:      3,
		Mode:                    config.ModeBest,
	}
}

// Engine scores and selects matches. It holds no mutable state and is safe
// for concurrent use.
type Engine struct {
	cfg  config.MatchConfig
	bond *Pipeline
	loan *Pipeline
}

// New builds an Engine with the bond and loan pipelines.
func New(cfg config.MatchConfig) *Engine {
	return &Engine{cfg: cfg, bond: BondPipeline(cfg), loan: LoanPipeline(cfg)}
}

// Config returns the engine's thresholds.
func (e *Engine) Config() config.MatchConfig { return e.cfg }

// Pipeline returns the pipeline for a category.
func (e *Engine) Pipeline(c model.Category) (*Pipeline, bool) {
	switch c {
	case model.CategoryBond:
		return e.bond, true
	case model.CategoryLoan:
		return e.loan, true
	default:
		return nil, false
	}
}

// Candidates precomputes document facts for a pool.
func (e *Engine) Candidates(docs []model.DocumentSection) []Candidate {
	out := make([]Candidate, len(docs))
	for i := range docs {
		out[i] = NewCandidate(&docs[i], e.cfg.BodyWindowChars)
	}
	return out
}

// Score evaluates one instrument against one document. An instrument whose
// type is unclassified scores zero with method none.
func (e *Engine) Score(inst *model.DebtInstrument, c Candidate) model.MatchResult {
	return e.score(inst, NewInstrumentFacts(inst), c)
}

func (e *Engine) score(inst *model.DebtInstrument, f *InstrumentFacts, c Candidate) model.MatchResult {
	res := model.MatchResult{
		InstrumentID: inst.ID,
		DocumentID:   c.Doc.ID,
		SectionType:  c.Doc.SectionType,
		Method:       model.MethodNone,
		Relationship: ClassifyRelationship(c.Doc.Title, c.Doc.Content),
		TitleExcerpt: excerpt(c.Doc.Title, titleExcerptRunes),
	}
	pl, ok := e.Pipeline(f.Category)
	if !ok {
		return res
	}
	p := &Pair{Instrument: inst, Inst: f, Document: c.Doc, Doc: c.Facts}
	signals := pl.Run(p)
	res.Confidence, res.Method = Aggregate(signals)
	res.Signals = modelSignals(signals)
	res.Snippets = snippets(c.Doc.Content, signals)
	return res
}

// BestMatch returns the single highest-scoring candidate. Ties keep the
// earliest candidate, so callers pass pools newest first. The bool is false
// when no candidate scores above zero.
func (e *Engine) BestMatch(inst *model.DebtInstrument, cands []Candidate) (model.MatchResult, bool) {
	f := NewInstrumentFacts(inst)
	var best model.MatchResult
	found := false
	for _, c := range cands {
		r := e.score(inst, f, c)
		if r.Confidence <= 0 {
			continue
		}
		if !found || r.Confidence > best.Confidence {
			best, found = r, true
		}
	}
	return best, found
}

// FindAll returns every candidate at or above the candidate threshold, one
// per document, sorted by SortResults.
func (e *Engine) FindAll(inst *model.DebtInstrument, cands []Candidate) []model.MatchResult {
	f := NewInstrumentFacts(inst)
	seen := make(map[int64]bool, len(cands))
	var out []model.MatchResult
	for _, c := range cands {
		if seen[c.Doc.ID] {
			continue
		}
		seen[c.Doc.ID] = true
		r := e.score(inst, f, c)
		if r.Confidence > 0 && r.Confidence >= e.cfg.MinCandidateConfidence {
			out = append(out, r)
		}
	}
	SortResults(out)
	return out
}

// Reverse starts from a governing document and scores the instruments of
// the category it governs. Results meet the candidate threshold and are
// sorted by SortResults.
func (e *Engine) Reverse(c Candidate, insts []model.DebtInstrument) []model.MatchResult {
	var want model.Category
	switch c.Doc.SectionType {
	case model.SectionIndenture:
		want = model.CategoryBond
	case model.SectionCreditAgreement:
		want = model.CategoryLoan
	default:
		return nil
	}
	seen := make(map[int64]bool, len(insts))
	var out []model.MatchResult
	for i := range insts {
		inst := &insts[i]
		if seen[inst.ID] || inst.Category() != want {
			continue
		}
		seen[inst.ID] = true
		r := e.Score(inst, c)
		if r.Confidence > 0 && r.Confidence >= e.cfg.MinCandidateConfidence {
			out = append(out, r)
		}
	}
	SortResults(out)
	return out
}

// FootnoteFallback scans debt footnotes for a bond's coupon near its
// maturity year and a disclosure keyword. At most FootnoteMaxResults
// documents are returned, each at a fixed confidence.
func (e *Engine) FootnoteFallback(inst *model.DebtInstrument, footnotes []model.DocumentSection) []model.MatchResult {
	if inst.Category() != model.CategoryBond || e.cfg.FootnoteMaxResults <= 0 {
		return nil
	}
	coupon, ok := inst.CouponPercent()
	year := inst.MaturityYear()
	if !ok || year == 0 {
		return nil
	}
	yearStr := strconv.Itoa(year)
	window := e.cfg.FootnoteWindowChars

	var out []model.MatchResult
	for i := range footnotes {
		if len(out) >= e.cfg.FootnoteMaxResults {
			break
		}
		doc := &footnotes[i]
		text := doc.Content
		for _, m := range extract.CouponMentions(text) {
			if !extract.CouponsEqual(m.Value, coupon) {
				continue
			}
			lo, hi := max(m.Start-window, 0), min(m.End+window, len(text))
			win := text[lo:hi]
			if !strings.Contains(win, yearStr) || !footnoteKeywordPattern.MatchString(win) {
				continue
			}
			sig := model.MatchSignal{
				Kind:       "footnote",
				Group:      "footnote",
				Method:     model.MethodFootnote,
				Observed:   strings.TrimSpace(text[m.Start:m.End]) + " near " + yearStr,
				Expected:   extract.NoteDescription(coupon, year),
				Confidence: footnoteWeight,
				Location:   model.LocationBody,
			}
			out = append(out, model.MatchResult{
				InstrumentID: inst.ID,
				DocumentID:   doc.ID,
				SectionType:  doc.SectionType,
				Confidence:   footnoteWeight,
				Method:       model.MethodFootnote,
				Relationship: model.RelationshipReferences,
				Signals:      []model.MatchSignal{sig},
				TitleExcerpt: excerpt(doc.Title, titleExcerptRunes),
				Snippets:     []string{strings.Join(strings.Fields(strings.ToValidUTF8(win, "")), " ")},
			})
			break
		}
	}
	return out
}

// snippets collects short body excerpts around observed values that occur
// literally in the content.
func snippets(content string, signals []Signal) []string {
	if content == "" {
		return nil
	}
	var out []string
	seen := make(map[string]bool)
	lower := strings.ToLower(content)
	for _, s := range signals {
		if s.Location != model.LocationBody || s.Observed == "" || len(out) >= maxSnippets {
			continue
		}
		needle := strings.ToLower(s.Observed)
		i := strings.Index(lower, needle)
		if i < 0 || len(lower) != len(content) {
			continue
		}
		lo, hi := max(i-snippetRadius, 0), min(i+len(needle)+snippetRadius, len(content))
		sn := strings.Join(strings.Fields(strings.ToValidUTF8(content[lo:hi], "")), " ")
		if !seen[sn] {
			seen[sn] = true
			out = append(out, sn)
		}
	}
	return out
}

func excerpt(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
