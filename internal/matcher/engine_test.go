package matcher

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/debtlink/internal/model"
)

func ptr[T any](v T) *T { return &v }

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func bond(id int64, name string, couponBps int, maturity *time.Time) model.DebtInstrument {
	return model.DebtInstrument{
		ID:             id,
		CompanyID:      1,
		Name:           name,
		InstrumentType: "senior_notes",
		CouponBps:      ptr(couponBps),
		MaturityDate:   maturity,
		Active:         true,
	}
}

func indenture(id int64, title, content string) model.DocumentSection {
	return model.DocumentSection{ID: id, CompanyID: 1, SectionType: model.SectionIndenture, Title: title, Content: content}
}

func creditAgreement(id int64, title, content string) model.DocumentSection {
	return model.DocumentSection{ID: id, CompanyID: 1, SectionType: model.SectionCreditAgreement, Title: title, Content: content}
}

func cand(d model.DocumentSection) Candidate {
	return NewCandidate(&d, 0)
}

func newEngine() *Engine { return New(DefaultConfig()) }

func TestScore_IdentifierWins(t *testing.T) {
	e := newEngine()
	inst := bond(1, "8.000% Debentures due 2040", 800, day(2040, 1, 15))
	inst.CUSIP = ptr("037833EP2")

	doc := indenture(10, "5.750% Senior Notes due 2029", "The Notes bear CUSIP No. 037833EP2 and mature in 2029.")
	r := e.Score(&inst, cand(doc))

	assert.InDelta(t, 0.95, r.Confidence, 1e-9)
	assert.Equal(t, model.MethodIdentifier, r.Method)
	require.Len(t, r.Signals, 1, "identifier ends the pipeline")
	assert.Equal(t, model.LocationBody, r.Signals[0].Location)
	require.NotEmpty(t, r.Snippets)
	assert.Contains(t, r.Snippets[0], "037833EP2")
}

func TestScore_IdentifierFromISIN(t *testing.T) {
	e := newEngine()
	inst := bond(1, "Notes", 500, nil)
	inst.ISIN = ptr("US037833EP27")

	r := e.Score(&inst, cand(indenture(10, "Indenture", "CUSIP 037833 EP2")))
	assert.InDelta(t, 0.95, r.Confidence, 1e-9)
	assert.Equal(t, model.MethodIdentifier, r.Method)
}

func TestScore_CouponMaturityScenario(t *testing.T) {
	e := newEngine()
	inst := bond(1, "Notes", 575, day(2029, 6, 15))
	doc := indenture(10, "5.750% Senior Notes due 2029", "This Indenture governs the Notes.")

	r := e.Score(&inst, cand(doc))
	assert.InDelta(t, 0.70, r.Confidence, 1e-9)
	assert.Equal(t, model.MethodCouponMaturity, r.Method)
	assert.Equal(t, model.RelationshipGoverns, r.Relationship)
	assert.Equal(t, "5.750% Senior Notes due 2029", r.TitleExcerpt)
}

func TestScore_SeniorityCompatibleTitle(t *testing.T) {
	e := newEngine()
	inst := bond(1, "Notes", 575, day(2029, 6, 15))
	inst.Seniority = "senior_unsecured"
	doc := indenture(10, "5.750% Senior Notes due 2029", "This Indenture governs the Notes.")

	r := e.Score(&inst, cand(doc))
	assert.InDelta(t, 0.85, r.Confidence, 1e-9)
	var seniority *model.MatchSignal
	for i := range r.Signals {
		if r.Signals[i].Kind == "seniority" {
			seniority = &r.Signals[i]
		}
	}
	require.NotNil(t, seniority)
	assert.Equal(t, "senior", seniority.Observed)
	assert.Equal(t, "senior unsecured", seniority.Expected)

	inst.Seniority = "secured"
	r = e.Score(&inst, cand(indenture(11, "5.750% Senior Unsecured Notes due 2029", "")))
	for _, sig := range r.Signals {
		assert.NotEqual(t, "seniority", sig.Kind)
	}
}

func TestScore_IdentifierNeedsTokenBoundary(t *testing.T) {
	e := newEngine()
	inst := bond(1, "Notes", 800, day(2040, 1, 15))
	inst.CUSIP = ptr("123456AB1")

	r := e.Score(&inst, cand(indenture(10, "Indenture", "Reference X9123456AB12Z")))
	assert.NotEqual(t, model.MethodIdentifier, r.Method)
	assert.Less(t, r.Confidence, 0.95)

	r = e.Score(&inst, cand(indenture(11, "Indenture", "ISIN US123456AB12")))
	assert.Equal(t, model.MethodIdentifier, r.Method)
}

func TestContainsCode(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"CUSIP 123456AB1.", true},
		{"(123456AB1)", true},
		{"123456AB1", true},
		{"US123456AB12", true},
		{"X9123456AB12Z", false},
		{"XUS123456AB12", false},
		{"US123456AB123", false},
		{"123456AB1X", false},
		{"A123456AB1 then 123456AB1", true},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, containsCode(tt.text, "123456AB1"))
		})
	}
}

func TestScore_ForwardReverseSymmetry(t *testing.T) {
	e := newEngine()
	inst := bond(7, "5.250% Senior Notes due 2030", 525, day(2030, 3, 1))
	doc := indenture(20, "5.250% Senior Notes due 2030", "")
	c := cand(doc)

	fwd := e.Score(&inst, c)
	assert.GreaterOrEqual(t, fwd.Confidence, 0.75)
	assert.Equal(t, model.MethodNoteDescription, fwd.Method)

	rev := e.Reverse(c, []model.DebtInstrument{inst})
	require.Len(t, rev, 1)
	assert.Equal(t, int64(7), rev[0].InstrumentID)
	assert.GreaterOrEqual(t, rev[0].Confidence, 0.75)
	assert.InDelta(t, fwd.Confidence, rev[0].Confidence, 1e-9)
}

func TestScore_UnclassifiedInstrument(t *testing.T) {
	e := newEngine()
	inst := bond(1, "5.750% Notes due 2029", 575, day(2029, 1, 1))
	inst.InstrumentType = "preferred_stock"

	r := e.Score(&inst, cand(indenture(1, "5.750% Senior Notes due 2029", "")))
	assert.Zero(t, r.Confidence)
	assert.Equal(t, model.MethodNone, r.Method)
}

func TestFindAll_OrderAndThreshold(t *testing.T) {
	e := newEngine()
	inst := bond(1, "Notes", 575, day(2029, 6, 15))
	inst.IssueDate = day(2019, 6, 1)

	weak := indenture(1, "Notes due 2029 Indenture", "interest at 5.750% per annum")
	strong := indenture(2, "5.750% Senior Notes due 2029", "")
	strong.FilingDate = day(2019, 6, 20)
	noise := indenture(3, "Indenture", "general terms")

	cands := []Candidate{cand(weak), cand(strong), cand(noise), cand(strong)}
	got := e.FindAll(&inst, cands)

	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].DocumentID)
	assert.InDelta(t, 0.80, got[0].Confidence, 1e-9)
	assert.Equal(t, int64(1), got[1].DocumentID)
	assert.InDelta(t, 0.55, got[1].Confidence, 1e-9)
}

func TestBestMatch(t *testing.T) {
	e := newEngine()
	inst := bond(1, "Notes", 575, day(2029, 6, 15))

	t.Run("ties keep input order", func(t *testing.T) {
		a := indenture(1, "5.750% Senior Notes due 2029", "")
		b := indenture(2, "5.750% Senior Notes due 2029", "")
		r, ok := e.BestMatch(&inst, []Candidate{cand(a), cand(b)})
		require.True(t, ok)
		assert.Equal(t, int64(1), r.DocumentID)
	})

	t.Run("highest wins", func(t *testing.T) {
		a := indenture(1, "Indenture", "5.750% interest")
		b := indenture(2, "5.750% Senior Notes due 2029", "")
		r, ok := e.BestMatch(&inst, []Candidate{cand(a), cand(b)})
		require.True(t, ok)
		assert.Equal(t, int64(2), r.DocumentID)
	})

	t.Run("nothing scores", func(t *testing.T) {
		_, ok := e.BestMatch(&inst, []Candidate{cand(indenture(1, "Indenture", "nothing relevant"))})
		assert.False(t, ok)
		_, ok = e.BestMatch(&inst, nil)
		assert.False(t, ok)
	})

	t.Run("idempotent", func(t *testing.T) {
		cands := []Candidate{
			cand(indenture(1, "Notes due 2029 Indenture", "interest at 5.750% per annum")),
			cand(indenture(2, "5.750% Senior Notes due 2029", "CUSIP No. 123456AB1")),
		}
		first, ok1 := e.BestMatch(&inst, cands)
		second, ok2 := e.BestMatch(&inst, cands)
		assert.Equal(t, ok1, ok2)
		assert.Equal(t, first, second)
	})
}

func TestScore_ConfidenceBounds(t *testing.T) {
	e := newEngine()
	full := bond(1, "5.750% Acme Widget Senior Secured Notes due 2029", 575, day(2029, 6, 15))
	full.CUSIP = ptr("123456AB1")
	full.IssueDate = day(2019, 6, 1)
	full.Seniority = "senior_secured"
	full.PrincipalAmount = ptr(int64(50_000_000_000))

	loan := model.DebtInstrument{
		ID: 2, CompanyID: 1, Name: "Acme Widget Term Loan B", InstrumentType: "term_loan_b",
		MaturityDate: day(2028, 1, 1), IssueDate: day(2021, 1, 1),
		CommitmentAmount: ptr(int64(50_000_000_000)), PrincipalAmount: ptr(int64(50_000_000_000)),
		Active: true,
	}

	docs := []model.DocumentSection{
		indenture(1, "5.750% Acme Widget Senior Secured Notes due 2029",
			"$500,000,000 5.750% Senior Secured Notes due 2029 CUSIP No. 123456AB1 between Acme Widget Inc., as Issuer, and Bank, as Trustee"),
		indenture(2, "", ""),
		creditAgreement(3, "Amended and Restated Acme Widget Term Loan B Credit Agreement",
			"$500 million term loan b maturing in 2028"),
		creditAgreement(4, "Credit Agreement", ""),
	}
	docs[0].FilingDate = day(2019, 6, 1)
	docs[2].FilingDate = day(2021, 1, 1)

	for _, inst := range []model.DebtInstrument{full, loan, bond(3, "", 0, nil)} {
		for _, d := range docs {
			inst, d := inst, d
			t.Run(fmt.Sprintf("inst%d_doc%d", inst.ID, d.ID), func(t *testing.T) {
				r := e.Score(&inst, cand(d))
				assert.GreaterOrEqual(t, r.Confidence, 0.0)
				assert.LessOrEqual(t, r.Confidence, 1.0)
			})
		}
	}
}

func TestScore_LoanFacilityAndCommitment(t *testing.T) {
	e := newEngine()
	inst := model.DebtInstrument{
		ID: 1, CompanyID: 1, Name: "Term Loan B", InstrumentType: "term_loan_b",
		MaturityDate:     day(2028, 5, 1),
		CommitmentAmount: ptr(int64(50_000_000_000)),
		Active:           true,
	}
	doc := creditAgreement(5, "Term Loan B Credit Agreement", "aggregate commitments of $500 million, maturing in 2028")

	r := e.Score(&inst, cand(doc))
	assert.InDelta(t, 0.85, r.Confidence, 1e-9)
	assert.Equal(t, model.MethodFacilityTerms, r.Method)
}

func TestScore_LoanSameCompanyFallback(t *testing.T) {
	e := newEngine()
	inst := model.DebtInstrument{ID: 1, CompanyID: 1, Name: "Revolver", InstrumentType: "revolver", Active: true}

	r := e.Score(&inst, cand(creditAgreement(5, "Credit Agreement", "")))
	assert.InDelta(t, 0.20, r.Confidence, 1e-9)
	assert.Equal(t, model.MethodSameCompany, r.Method)

	// Any real signal suppresses the fallback.
	r = e.Score(&inst, cand(creditAgreement(6, "Revolving Credit Agreement", "")))
	assert.InDelta(t, 0.30, r.Confidence, 1e-9)
	assert.Equal(t, model.MethodFacilityTerms, r.Method)
}

func TestScore_AmendedRestatedLoan(t *testing.T) {
	e := newEngine()
	inst := model.DebtInstrument{ID: 1, CompanyID: 1, Name: "Revolver", InstrumentType: "revolver", Active: true}

	r := e.Score(&inst, cand(creditAgreement(5, "Amended and Restated Revolving Credit Agreement", "")))
	assert.InDelta(t, 0.40, r.Confidence, 1e-9)
	assert.Equal(t, model.RelationshipAmends, r.Relationship)
}

func TestScore_Amount(t *testing.T) {
	e := newEngine()
	inst := bond(1, "Notes", 575, day(2029, 6, 15))
	inst.PrincipalAmount = ptr(int64(50_000_000_000))

	t.Run("anchor alone", func(t *testing.T) {
		r := e.Score(&inst, cand(indenture(1, "Indenture", "$500,000,000 aggregate principal amount")))
		assert.InDelta(t, 0.45, r.Confidence, 1e-9)
		assert.Equal(t, model.MethodAmount, r.Method)
	})

	t.Run("boost with coupon and maturity", func(t *testing.T) {
		r := e.Score(&inst, cand(indenture(2, "5.750% Senior Notes due 2029", "$500,000,000 aggregate principal amount")))
		assert.InDelta(t, 0.80, r.Confidence, 1e-9)
		assert.Equal(t, model.MethodCouponMaturity, r.Method)
	})

	t.Run("outside tolerance", func(t *testing.T) {
		r := e.Score(&inst, cand(indenture(3, "Indenture", "$600,000,000 aggregate principal amount")))
		assert.Zero(t, r.Confidence)
	})
}

func TestScore_MultiTranche(t *testing.T) {
	e := newEngine()
	body := "$500,000,000 4.000% Senior Notes due 2025 and $750,000,000 4.500% Senior Notes due 2030"

	exact := bond(1, "Notes", 450, day(2030, 1, 15))
	r := e.Score(&exact, cand(indenture(1, "Indenture", body)))
	assert.InDelta(t, 0.80, r.Confidence, 1e-9)
	assert.Equal(t, model.MethodMultiTranche, r.Method)

	near := bond(2, "Notes", 452, day(2030, 1, 15))
	r = e.Score(&near, cand(indenture(1, "Indenture", body)))
	assert.InDelta(t, 0.78, r.Confidence, 1e-9)
	assert.Equal(t, model.MethodMultiTranche, r.Method)
}

func TestScore_IssuerDate(t *testing.T) {
	e := newEngine()
	body := "between Acme Widgets Corp., as Issuer, and Bank, as Trustee. The Notes due 2031 are senior obligations."

	inst := bond(1, "Notes", 0, day(2031, 4, 1))
	inst.CouponBps = nil
	inst.IssuerName = "Acme Widgets Corporation"

	r := e.Score(&inst, cand(indenture(1, "Indenture", body)))
	assert.InDelta(t, 0.70, r.Confidence, 1e-9)
	assert.Equal(t, model.MethodIssuerDate, r.Method)

	t.Run("skipped when identifiers exist", func(t *testing.T) {
		withID := inst
		withID.CUSIP = ptr("999999ZZ9")
		r := e.Score(&withID, cand(indenture(1, "Indenture", body)))
		assert.InDelta(t, 0.30, r.Confidence, 1e-9)
		assert.Equal(t, model.MethodCouponMaturity, r.Method)
	})

	t.Run("different issuer", func(t *testing.T) {
		other := inst
		other.IssuerName = "Globex Holdings LLC"
		r := e.Score(&other, cand(indenture(1, "Indenture", body)))
		assert.InDelta(t, 0.30, r.Confidence, 1e-9)
	})
}

func TestScore_FilingProximity(t *testing.T) {
	e := newEngine()
	tests := []struct {
		name  string
		cat   string
		gap   int
		want  float64
		wantM model.Method
	}{
		{"bond exact", "senior_notes", 0, 0.85, model.MethodFilingDate},
		{"loan exact", "revolver", 0, 0.80, model.MethodFilingDate},
		{"bond 3 days", "senior_notes", 3, 0.75, model.MethodFilingDate},
		{"bond 7 days", "senior_notes", 7, 0.70, model.MethodFilingDate},
		{"loan 7 days", "revolver", 7, 0.65, model.MethodFilingDate},
		{"bond 30 days", "senior_notes", 30, 0.60, model.MethodFilingDate},
		{"loan 30 days", "revolver", 30, 0.55, model.MethodFilingDate},
		{"loan 45 days window only", "revolver", 45, 0.15, model.MethodFilingDate},
		{"bond 45 days", "senior_notes", 45, 0, model.MethodNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issued := day(2020, 2, 1)
			inst := model.DebtInstrument{ID: 1, CompanyID: 1, Name: "X", InstrumentType: tt.cat, IssueDate: issued, Active: true}
			filed := issued.AddDate(0, 0, tt.gap)
			d := indenture(1, "Indenture", "")
			if tt.cat == "revolver" {
				d = creditAgreement(1, "Credit Agreement", "")
			}
			d.FilingDate = &filed

			r := e.Score(&inst, cand(d))
			assert.InDelta(t, tt.want, r.Confidence, 1e-9)
			assert.Equal(t, tt.wantM, r.Method)
		})
	}
}

func TestReverse(t *testing.T) {
	e := newEngine()
	insts := []model.DebtInstrument{
		bond(1, "Notes", 575, day(2029, 6, 15)),
		bond(2, "Notes", 650, day(2032, 6, 15)),
		{ID: 3, CompanyID: 1, Name: "Revolver", InstrumentType: "revolver", Active: true},
	}
	c := cand(indenture(9, "5.750% Senior Notes due 2029", ""))

	got := e.Reverse(c, insts)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].InstrumentID)
	assert.Equal(t, int64(9), got[0].DocumentID)

	assert.Nil(t, e.Reverse(cand(model.DocumentSection{ID: 1, SectionType: model.SectionDebtFootnote}), insts))
}

func TestFootnoteFallback(t *testing.T) {
	e := newEngine()
	inst := bond(1, "Notes", 575, day(2029, 6, 15))

	hit := func(id int64) model.DocumentSection {
		return model.DocumentSection{
			ID: id, CompanyID: 1, SectionType: model.SectionDebtFootnote, Title: "Long-term debt",
			Content: "As of December 31, we had $500 million of 5.750% Senior Notes due 2029 outstanding.",
		}
	}
	miss := model.DocumentSection{
		ID: 2, SectionType: model.SectionDebtFootnote,
		Content: "The 5.750% rate applied to the swap.",
	}
	footnotes := []model.DocumentSection{hit(1), miss, hit(3), hit(4), hit(5)}

	got := e.FootnoteFallback(&inst, footnotes)
	require.Len(t, got, 3)
	assert.Equal(t, []int64{1, 3, 4}, []int64{got[0].DocumentID, got[1].DocumentID, got[2].DocumentID})
	for _, r := range got {
		assert.InDelta(t, 0.65, r.Confidence, 1e-9)
		assert.Equal(t, model.MethodFootnote, r.Method)
		assert.Equal(t, model.RelationshipReferences, r.Relationship)
		require.Len(t, r.Snippets, 1)
		assert.Contains(t, r.Snippets[0], "5.750% Senior Notes due 2029")
	}

	loan := model.DebtInstrument{ID: 2, Name: "Revolver", InstrumentType: "revolver"}
	assert.Nil(t, e.FootnoteFallback(&loan, footnotes))

	noCoupon := bond(3, "Notes", 0, day(2029, 1, 1))
	assert.Nil(t, e.FootnoteFallback(&noCoupon, footnotes))
}

func TestPipelines(t *testing.T) {
	cfg := DefaultConfig()
	b := BondPipeline(cfg)
	assert.Equal(t, model.CategoryBond, b.Category())
	assert.Equal(t, "identifier", b.Strategies()[0])

	l := LoanPipeline(cfg)
	assert.Equal(t, model.CategoryLoan, l.Category())
	assert.Equal(t, "same_company", l.Strategies()[len(l.Strategies())-1])
}
