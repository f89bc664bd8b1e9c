package matcher

import (
	"strings"
	"time"

	"github.com/sells-group/debtlink/internal/extract"
	"github.com/sells-group/debtlink/internal/model"
)

// genericDebtWords carry no identity when comparing an instrument name with
// a document title; every indenture mentions notes.
var genericDebtWords = map[string]bool{
	"notes": true, "note": true, "senior": true, "secured": true, "unsecured": true,
	"subordinated": true, "bonds": true, "bond": true, "debentures": true, "debenture": true,
	"loan": true, "loans": true, "term": true, "facility": true, "credit": true,
	"agreement": true, "indenture": true, "revolving": true, "percent": true, "series": true,
}

// instrumentTypeFacilities maps loan instrument types onto facility tokens.
var instrumentTypeFacilities = map[string]string{
	"revolver":                  extract.FacilityRevolving,
	"revolving_credit_facility": extract.FacilityRevolving,
	"term_loan":                 extract.FacilityTermLoan,
	"term_loan_a":               extract.FacilityTermLoanA,
	"term_loan_b":               extract.FacilityTermLoanB,
	"abl":                       extract.FacilityABL,
	"abl_facility":              extract.FacilityABL,
	"delayed_draw":              extract.FacilityDelayedDraw,
	"delayed_draw_term_loan":    extract.FacilityDelayedDraw,
}

// InstrumentFacts are the instrument-side facts consumed by the strategies.
type InstrumentFacts struct {
	Category     model.Category
	Coupon       float64
	HasCoupon    bool
	Year         int
	IssueDate    *time.Time
	CUSIP        string
	ISIN         string
	Descriptions []string
	Seniority    []string
	Words        map[string]bool
	Facilities   []string
	Amounts      []int64
	Commitment   int64
	Issuer       string
}

// NewInstrumentFacts derives the instrument side once per instrument.
func NewInstrumentFacts(inst *model.DebtInstrument) *InstrumentFacts {
	f := &InstrumentFacts{
		Category:  inst.Category(),
		Year:      inst.MaturityYear(),
		IssueDate: inst.IssueDate,
		Amounts:   inst.Amounts(),
		Issuer:    strings.TrimSpace(inst.IssuerName),
	}
	f.Coupon, f.HasCoupon = inst.CouponPercent()
	if inst.CUSIP != nil {
		f.CUSIP = extract.NormalizeIdentifier(*inst.CUSIP)
	}
	if inst.ISIN != nil {
		f.ISIN = extract.NormalizeIdentifier(*inst.ISIN)
	}
	if inst.CommitmentAmount != nil && *inst.CommitmentAmount > 0 {
		f.Commitment = *inst.CommitmentAmount
	}

	f.Descriptions = extract.NoteDescriptions(inst.Name)
	f.Seniority = extract.SeniorityTerms(strings.ReplaceAll(inst.Seniority, "_", " "))

	f.Words = make(map[string]bool)
	for w := range extract.MeaningfulWords(inst.Name) {
		if !genericDebtWords[w] {
			f.Words[w] = true
		}
	}

	facilities := extract.FacilityTypes(inst.Name)
	t := strings.NewReplacer(" ", "_", "-", "_").Replace(strings.ToLower(strings.TrimSpace(inst.InstrumentType)))
	if tok, ok := instrumentTypeFacilities[t]; ok && !contains(facilities, tok) {
		facilities = append(facilities, tok)
	}
	f.Facilities = facilities
	return f
}

// Candidate is a document with its precomputed facts.
type Candidate struct {
	Doc   *model.DocumentSection
	Facts *extract.DocumentFacts
}

// NewCandidate extracts document facts using the given body window.
func NewCandidate(doc *model.DocumentSection, window int) Candidate {
	return Candidate{Doc: doc, Facts: extract.Facts(doc.Title, doc.Content, window)}
}

// Pair is one instrument/document comparison in flight. Signals emitted by
// earlier strategies are visible to later ones.
type Pair struct {
	Instrument *model.DebtInstrument
	Inst       *InstrumentFacts
	Document   *model.DocumentSection
	Doc        *extract.DocumentFacts

	signals []Signal
}

// Signals returns the signals emitted so far.
func (p *Pair) Signals() []Signal { return p.signals }

// fired reports whether any earlier signal belongs to one of the groups.
func (p *Pair) fired(groups ...string) bool {
	for _, s := range p.signals {
		for _, g := range groups {
			if s.Group == g {
				return true
			}
		}
	}
	return false
}

// filingDays returns the absolute day distance between the instrument issue
// date and the document filing date.
func (p *Pair) filingDays() (int, bool) {
	if p.Inst.IssueDate == nil || p.Document.FilingDate == nil {
		return 0, false
	}
	return daysApart(*p.Inst.IssueDate, *p.Document.FilingDate), true
}

func daysApart(a, b time.Time) int {
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	d := int(da.Sub(db).Hours() / 24)
	if d < 0 {
		d = -d
	}
	return d
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
