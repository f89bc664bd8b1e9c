package matcher

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/sells-group/debtlink/internal/extract"
	"github.com/sells-group/debtlink/internal/model"
	"github.com/sells-group/debtlink/internal/resolve"
)

// Strategy compares one instrument's facts with one document's facts.
type Strategy interface {
	Name() string
	Score(p *Pair) []Signal
}

// Terminal is implemented by strategies that end the pipeline once they fire.
type Terminal interface {
	Terminal() bool
}

type strategy struct {
	name     string
	terminal bool
	score    func(p *Pair) []Signal
}

func (s strategy) Name() string           { return s.name }
func (s strategy) Score(p *Pair) []Signal { return s.score(p) }
func (s strategy) Terminal() bool         { return s.terminal }

func newSignal(c Combine, kind, group string, method model.Method, loc model.Location, conf float64, observed, expected string) Signal {
	return Signal{
		MatchSignal: model.MatchSignal{
			Kind:       kind,
			Group:      group,
			Method:     method,
			Observed:   observed,
			Expected:   expected,
			Confidence: conf,
			Location:   loc,
		},
		Combine: c,
	}
}

func one(s Signal) []Signal { return []Signal{s} }

func pct(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) + "%" }

// IdentifierStrategy fires when the instrument's CUSIP or ISIN (or the CUSIP
// embedded in a US ISIN) appears in the document.
func IdentifierStrategy() Strategy {
	return strategy{name: "identifier", terminal: true, score: scoreIdentifier}
}

func scoreIdentifier(p *Pair) []Signal {
	var codes []string
	if p.Inst.CUSIP != "" {
		codes = append(codes, p.Inst.CUSIP)
	}
	if p.Inst.ISIN != "" {
		codes = append(codes, p.Inst.ISIN)
		if c := extract.CUSIPFromISIN(p.Inst.ISIN); c != "" && c != p.Inst.CUSIP {
			codes = append(codes, c)
		}
	}
	titleUp := strings.ToUpper(p.Document.Title)
	for _, code := range codes {
		if len(code) < 9 {
			continue
		}
		found := contains(p.Doc.CUSIPs, code) || contains(p.Doc.ISINs, code) ||
			containsCode(p.Doc.Searchable, code)
		if !found {
			for _, isin := range p.Doc.ISINs {
				if extract.CUSIPFromISIN(isin) == code {
					found = true
					break
				}
			}
		}
		if !found {
			continue
		}
		loc := model.LocationBody
		if strings.Contains(titleUp, code) {
			loc = model.LocationTitle
		}
		return one(newSignal(Exclusive, "identifier", "identifier", model.MethodIdentifier, loc, identifierWeight, code, code))
	}
	return nil
}

// containsCode reports whether code appears in s as a standalone token or as
// the CUSIP inside a US ISIN ("US" + CUSIP + check digit).
func containsCode(s, code string) bool {
	for from := 0; ; {
		i := strings.Index(s[from:], code)
		if i < 0 {
			return false
		}
		start, end := from+i, from+i+len(code)
		if !isCodeChar(s, start-1) && !isCodeChar(s, end) {
			return true
		}
		if len(code) == 9 && start >= 2 && s[start-2:start] == "US" && !isCodeChar(s, start-3) &&
			end < len(s) && s[end] >= '0' && s[end] <= '9' && !isCodeChar(s, end+1) {
			return true
		}
		from = start + 1
	}
}

func isCodeChar(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return false
	}
	c := s[i]
	return c >= '0' && c <= '9' || c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z'
}

// DescriptionStrategy matches canonical note descriptions built from the
// instrument's name ("5.75% notes 2029") against the document.
func DescriptionStrategy() Strategy {
	return strategy{name: "description", score: func(p *Pair) []Signal {
		for _, d := range p.Inst.Descriptions {
			if contains(p.Doc.TitleDescriptions, d) {
				return one(newSignal(Exclusive, "description", "description", model.MethodNoteDescription, model.LocationTitle, descriptionTitleWeight, d, d))
			}
		}
		for _, d := range p.Inst.Descriptions {
			if contains(p.Doc.BodyDescriptions, d) {
				return one(newSignal(Exclusive, "description", "description", model.MethodNoteDescription, model.LocationBody, descriptionBodyWeight, d, d))
			}
		}
		return nil
	}}
}

// MultiTrancheStrategy matches the instrument's coupon and maturity against
// one tranche of a document that names several.
func MultiTrancheStrategy() Strategy {
	return strategy{name: "multi_tranche", score: func(p *Pair) []Signal {
		if !p.Inst.HasCoupon || p.Inst.Year == 0 || len(p.Doc.Tranches) < 2 {
			return nil
		}
		expected := extract.NoteDescription(p.Inst.Coupon, p.Inst.Year)
		var near *extract.Tranche
		for i, t := range p.Doc.Tranches {
			if t.Year != p.Inst.Year {
				continue
			}
			if extract.CouponsEqual(t.Coupon, p.Inst.Coupon) {
				return one(newSignal(Exclusive, "tranche_exact", "tranche", model.MethodMultiTranche, model.LocationBody, trancheExactWeight, t.Description(), expected))
			}
			if near == nil && math.Abs(t.Coupon-p.Inst.Coupon) <= trancheCouponTol+1e-9 {
				near = &p.Doc.Tranches[i]
			}
		}
		if near != nil {
			return one(newSignal(Exclusive, "tranche_near", "tranche", model.MethodMultiTranche, model.LocationBody, trancheNearWeight, near.Description(), expected))
		}
		return nil
	}}
}

// FilingProximityStrategy scores how close the document's filing date is to
// the instrument's issue date.
func FilingProximityStrategy(c model.Category) Strategy {
	return strategy{name: "filing_proximity", score: func(p *Pair) []Signal {
		days, ok := p.filingDays()
		if !ok {
			return nil
		}
		var conf float64
		switch {
		case days == 0:
			conf = pick(c, proximityExactBond, proximityExactLoan)
		case days <= 3:
			conf = proximity3Days
		case days <= 7:
			conf = pick(c, proximity7DaysBond, proximity7DaysLoan)
		case days <= 30:
			conf = pick(c, proximity30Bond, proximity30Loan)
		default:
			return nil
		}
		return one(newSignal(Exclusive, "filing_proximity", "filing_proximity", model.MethodFilingDate, model.LocationMetadata, conf,
			p.Document.FilingDate.Format("2006-01-02"), p.Inst.IssueDate.Format("2006-01-02")))
	}}
}

// IssuerDateStrategy is the fallback for instruments without identifiers:
// the document's issuer must name the instrument's issuer, and a date fact
// must line up.
func IssuerDateStrategy(c model.Category) Strategy {
	return strategy{name: "issuer_date", score: func(p *Pair) []Signal {
		if p.Instrument.HasIdentifiers() || p.Inst.Issuer == "" || p.Doc.Issuer == "" {
			return nil
		}
		if !resolve.NamesMatch(p.Inst.Issuer, p.Doc.Issuer) {
			return nil
		}
		var conf float64
		days, hasDays := p.filingDays()
		if hasDays && days == 0 {
			conf = issuerExactDate
		}
		if p.Inst.Year > 0 && (containsInt(p.Doc.BodyYears, p.Inst.Year) || containsInt(p.Doc.TitleYears, p.Inst.Year)) {
			conf = math.Max(conf, pick(c, issuerMaturityBond, issuerMaturityLoan))
		}
		if hasDays && days <= nearIssueDays {
			conf = math.Max(conf, issuerNearDate)
		}
		if conf == 0 {
			return nil
		}
		return one(newSignal(Exclusive, "issuer_date", "issuer_date", model.MethodIssuerDate, model.LocationBody, conf, p.Doc.Issuer, p.Inst.Issuer))
	}}
}

// CouponStrategy matches the coupon rate, title first.
func CouponStrategy() Strategy {
	return strategy{name: "coupon", score: func(p *Pair) []Signal {
		if !p.Inst.HasCoupon {
			return nil
		}
		want := pct(p.Inst.Coupon)
		for _, got := range p.Doc.TitleCoupons {
			if extract.CouponsEqual(got, p.Inst.Coupon) {
				return one(newSignal(Additive, "coupon_title", groupCoupon, model.MethodCouponMaturity, model.LocationTitle, couponTitleWeight, pct(got), want))
			}
		}
		for _, got := range p.Doc.BodyCoupons {
			if extract.CouponsEqual(got, p.Inst.Coupon) {
				return one(newSignal(Additive, "coupon_body", groupCoupon, model.MethodCouponMaturity, model.LocationBody, couponBodyWeight, pct(got), want))
			}
		}
		return nil
	}}
}

// MaturityStrategy matches the maturity year, title first.
func MaturityStrategy() Strategy {
	return strategy{name: "maturity", score: func(p *Pair) []Signal {
		if p.Inst.Year == 0 {
			return nil
		}
		y := strconv.Itoa(p.Inst.Year)
		if containsInt(p.Doc.TitleYears, p.Inst.Year) {
			return one(newSignal(Additive, "maturity_title", groupMaturity, model.MethodCouponMaturity, model.LocationTitle, maturityTitleWeight, y, y))
		}
		if containsInt(p.Doc.BodyYears, p.Inst.Year) {
			return one(newSignal(Additive, "maturity_body", groupMaturity, model.MethodCouponMaturity, model.LocationBody, maturityBodyWeight, y, y))
		}
		return nil
	}}
}

// SeniorityStrategy rewards a title seniority term compatible with the
// instrument's.
func SeniorityStrategy() Strategy {
	return strategy{name: "seniority", score: func(p *Pair) []Signal {
		for _, s := range p.Inst.Seniority {
			for _, d := range p.Doc.TitleSeniority {
				if extract.SeniorityCompatible(s, d) {
					return one(newSignal(Additive, "seniority", groupSeniority, model.MethodNameTerms, model.LocationTitle, seniorityWeight, d, s))
				}
			}
		}
		return nil
	}}
}

// NameOverlapStrategy rewards at least two distinctive name words in the title.
func NameOverlapStrategy() Strategy {
	return strategy{name: "name_overlap", score: func(p *Pair) []Signal {
		var shared []string
		for w := range p.Inst.Words {
			if p.Doc.TitleWords[w] {
				shared = append(shared, w)
			}
		}
		if len(shared) < minNameOverlap {
			return nil
		}
		sort.Strings(shared)
		return one(newSignal(Additive, "name_overlap", groupName, model.MethodNameTerms, model.LocationTitle, nameOverlapWeight,
			strings.Join(shared, " "), p.Instrument.Name))
	}}
}

// FacilityStrategy matches loan facility types, title first.
func FacilityStrategy() Strategy {
	return strategy{name: "facility", score: func(p *Pair) []Signal {
		if tok, ok := facilityOverlap(p.Inst.Facilities, p.Doc.TitleFacilities); ok {
			return one(newSignal(Additive, "facility_title", groupFacility, model.MethodFacilityTerms, model.LocationTitle, facilityTitleWeight, tok, tok))
		}
		if tok, ok := facilityOverlap(p.Inst.Facilities, p.Doc.BodyFacilities); ok {
			return one(newSignal(Additive, "facility_body", groupFacility, model.MethodFacilityTerms, model.LocationBody, facilityBodyWeight, tok, tok))
		}
		return nil
	}}
}

// facilityOverlap treats the generic term loan token as matching any
// lettered term loan.
func facilityOverlap(inst, doc []string) (string, bool) {
	for _, a := range inst {
		for _, b := range doc {
			if a == b {
				return a, true
			}
			if (a == extract.FacilityTermLoan && strings.HasPrefix(b, extract.FacilityTermLoan)) ||
				(b == extract.FacilityTermLoan && strings.HasPrefix(a, extract.FacilityTermLoan)) {
				return b, true
			}
		}
	}
	return "", false
}

// CommitmentStrategy matches a loan's commitment amount within ±10%.
func CommitmentStrategy() Strategy {
	return strategy{name: "commitment", score: func(p *Pair) []Signal {
		if p.Inst.Commitment <= 0 {
			return nil
		}
		for _, a := range p.Doc.Amounts {
			if extract.WithinTolerance(a, p.Inst.Commitment, commitmentTolerance) {
				return one(newSignal(Additive, "commitment", groupCommitment, model.MethodAmount, model.LocationBody, commitmentWeight,
					formatCents(a), formatCents(p.Inst.Commitment)))
			}
		}
		return nil
	}}
}

// FilingWindowStrategy adds a small bonus when the filing date falls within
// the category's tolerance of the issue date.
func FilingWindowStrategy(c model.Category, toleranceDays int) Strategy {
	return strategy{name: "filing_window", score: func(p *Pair) []Signal {
		days, ok := p.filingDays()
		if !ok || days > toleranceDays {
			return nil
		}
		return one(newSignal(Additive, "filing_window", groupFilingWindow, model.MethodFilingDate, model.LocationMetadata,
			pick(c, filingWindowBond, filingWindowLoan), strconv.Itoa(days)+"d", strconv.Itoa(toleranceDays)+"d"))
	}}
}

// AmendedRestatedStrategy rewards "Amended and Restated" credit agreements.
func AmendedRestatedStrategy() Strategy {
	return strategy{name: "amended_restated", score: func(p *Pair) []Signal {
		if !p.Doc.AmendedRestated {
			return nil
		}
		return one(newSignal(Additive, "amended_restated", groupAmended, model.MethodFacilityTerms, model.LocationTitle,
			amendedRestatedLoan, "amended and restated", ""))
	}}
}

// AmountStrategy matches principal or outstanding amount within ±5%. Alone
// it is an anchor; next to coupon, maturity or tranche evidence it boosts.
func AmountStrategy() Strategy {
	return strategy{name: "amount", score: func(p *Pair) []Signal {
		for _, want := range p.Inst.Amounts {
			for _, got := range p.Doc.Amounts {
				if !extract.WithinTolerance(got, want, amountTolerance) {
					continue
				}
				if p.fired(groupCoupon, groupMaturity, "tranche") {
					s := newSignal(Boost, "amount_boost", "amount", model.MethodAmount, model.LocationBody, amountBoost, formatCents(got), formatCents(want))
					s.Cap = amountBoostCap
					return one(s)
				}
				return one(newSignal(Exclusive, "amount", "amount", model.MethodAmount, model.LocationBody, amountAnchorWeight, formatCents(got), formatCents(want)))
			}
		}
		return nil
	}}
}

// SameCompanyStrategy is the weakest loan fallback: the company has a credit
// agreement and nothing else matched.
func SameCompanyStrategy() Strategy {
	return strategy{name: "same_company", score: func(p *Pair) []Signal {
		if len(p.signals) > 0 || p.Document.SectionType != model.SectionCreditAgreement {
			return nil
		}
		return one(newSignal(Exclusive, "same_company", "same_company", model.MethodSameCompany, model.LocationMetadata, sameCompanyWeight,
			strconv.FormatInt(p.Document.CompanyID, 10), strconv.FormatInt(p.Instrument.CompanyID, 10)))
	}}
}

func pick(c model.Category, bond, loan float64) float64 {
	if c == model.CategoryLoan {
		return loan
	}
	return bond
}

func containsInt(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func formatCents(c int64) string {
	return fmt.Sprintf("$%d.%02d", c/100, c%100)
}
