package extract

import (
	"regexp"
	"strings"
)

// DefaultBodyWindow is the number of leading body characters scanned for
// coupon, maturity and description evidence. Indenture boilerplate beyond
// this point rarely restates the series terms.
const DefaultBodyWindow = 50000

var amendedRestatedPattern = regexp.MustCompile(`(?i)\bamended\s+and\s+restated\b`)

var titleWordPattern = regexp.MustCompile(`[A-Za-z][A-Za-z0-9']+`)

// nameStopWords are dropped when comparing instrument names with titles.
var nameStopWords = map[string]bool{
	"the": true, "and": true, "of": true, "due": true, "to": true, "for": true,
	"a": true, "an": true, "in": true, "by": true, "with": true, "as": true,
	"inc": true, "corp": true, "llc": true, "ltd": true, "co": true, "lp": true,
	"plc": true, "company": true, "corporation": true,
}

// DocumentFacts are the document-side facts consumed by the scorers. They
// are computed once per document and shared read-only across instruments.
type DocumentFacts struct {
	Title      string
	TitleLow   string
	BodyLow    string // lowercased leading window of the body
	Searchable string // uppercased title + full content, for identifier lookups

	TitleCoupons []float64
	BodyCoupons  []float64
	TitleYears   []int
	BodyYears    []int

	TitleSeniority  []string
	TitleWords      map[string]bool
	TitleFacilities []string
	BodyFacilities  []string

	TitleDescriptions []string
	BodyDescriptions  []string
	Tranches          []Tranche

	Amounts []int64
	CUSIPs  []string
	ISINs   []string
	Issuer  string

	AmendedRestated bool
}

// Facts extracts DocumentFacts from a title and body. window bounds the body
// prefix used for term evidence; identifiers are searched in the full body.
func Facts(title, body string, window int) *DocumentFacts {
	if window <= 0 {
		window = DefaultBodyWindow
	}
	bodyWindow := body
	if len(bodyWindow) > window {
		bodyWindow = bodyWindow[:window]
	}

	f := &DocumentFacts{
		Title:      title,
		TitleLow:   strings.ToLower(title),
		BodyLow:    strings.ToLower(bodyWindow),
		Searchable: strings.ToUpper(title + "\n" + body),

		TitleCoupons: Coupons(title),
		BodyCoupons:  Coupons(bodyWindow),
		TitleYears:   MaturityYears(title),
		BodyYears:    MaturityYears(bodyWindow),

		TitleSeniority:  SeniorityTerms(title),
		TitleWords:      MeaningfulWords(title),
		TitleFacilities: FacilityTypes(title),
		BodyFacilities:  FacilityTypes(bodyWindow),

		TitleDescriptions: NoteDescriptions(title),
		BodyDescriptions:  NoteDescriptions(bodyWindow),
		Tranches:          Tranches(title + "\n" + bodyWindow),

		Amounts: Amounts(title + "\n" + bodyWindow),
		CUSIPs:  CUSIPs(title + "\n" + body),
		ISINs:   ISINs(title + "\n" + body),
		Issuer:  IssuerName(title + "\n" + body),

		AmendedRestated: amendedRestatedPattern.MatchString(title),
	}
	return f
}

// MeaningfulWords returns the lowercased words of s without stop words,
// numbers or one-letter tokens.
func MeaningfulWords(s string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range titleWordPattern.FindAllString(strings.ToLower(s), -1) {
		w = strings.TrimSuffix(w, "'s")
		if len(w) < 2 || nameStopWords[w] {
			continue
		}
		out[w] = true
	}
	return out
}
