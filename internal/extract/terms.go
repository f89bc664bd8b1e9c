package extract

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Coupons outside (0, 25) are treated as noise (percentages of principal,
// ownership stakes, etc.).
const (
	minCoupon = 0.0
	maxCoupon = 25.0

	minMaturityYear = 2000
	maxMaturityYear = 2100
)

// mixedFractionPattern matches "5 3/4%" and "5-3/4%".
var mixedFractionPattern = regexp.MustCompile(`(?i)\b(\d{1,2})(?:\s+|-)(\d)/(\d{1,2})\s*(?:%|percent\b|per\s+cent\b)`)

// unicodeFractionPattern matches "5¾%" and "¾%".
var unicodeFractionPattern = regexp.MustCompile(`(?i)(\d{1,2})?\s?([¼½¾⅛⅜⅝⅞])\s*(?:%|percent\b|per\s+cent\b)`)

// decimalCouponPattern matches "5.750%", "5%", "5.75 percent".
var decimalCouponPattern = regexp.MustCompile(`(?i)(?:^|[^\d.])(\d{1,2}(?:\.\d{1,5})?)\s*(?:%|percent\b|per\s+cent\b)`)

var unicodeFractions = map[string]float64{
	"¼": 0.25, "½": 0.5, "¾": 0.75,
	"⅛": 0.125, "⅜": 0.375, "⅝": 0.625, "⅞": 0.875,
}

// maturityPatterns capture a 4-digit year in group 1.
var maturityPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:due|maturing|matures?|maturity)(?:\s+(?:in|on|date))?\s+(?:(?:jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sept?(?:ember)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\.?\s+\d{1,2},?\s+)?(\d{4})\b`),
	regexp.MustCompile(`(?i)\bnotes\s+(?:due\s+)?(\d{4})\b`),
	regexp.MustCompile(`(?i)\b(\d{4})\s+(?:senior\s+|secured\s+|unsecured\s+|subordinated\s+)*notes\b`),
}

// couponSpan is a coupon with its byte offsets in the source text.
type couponSpan struct {
	value      float64
	start, end int
}

// Coupons returns distinct coupon rates (in percent) found in text, in
// order of appearance. Mixed fractions are resolved before decimals so
// "5 3/4%" never also yields "4%".
func Coupons(text string) []float64 {
	spans := couponSpans(text)
	var out []float64
	seen := make(map[float64]bool)
	for _, s := range spans {
		v := roundRate(s.value)
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func couponSpans(text string) []couponSpan {
	if text == "" {
		return nil
	}
	var spans []couponSpan
	masked := []byte(text)

	for _, m := range mixedFractionPattern.FindAllStringSubmatchIndex(text, -1) {
		whole, _ := strconv.Atoi(text[m[2]:m[3]])
		num, _ := strconv.Atoi(text[m[4]:m[5]])
		den, _ := strconv.Atoi(text[m[6]:m[7]])
		if den == 0 || num >= den {
			continue
		}
		spans = append(spans, couponSpan{value: float64(whole) + float64(num)/float64(den), start: m[0], end: m[1]})
		blank(masked, m[0], m[1])
	}

	for _, m := range unicodeFractionPattern.FindAllStringSubmatchIndex(string(masked), -1) {
		var whole float64
		if m[2] >= 0 {
			w, _ := strconv.Atoi(string(masked[m[2]:m[3]]))
			whole = float64(w)
		}
		frac := unicodeFractions[string(masked[m[4]:m[5]])]
		spans = append(spans, couponSpan{value: whole + frac, start: m[0], end: m[1]})
		blank(masked, m[0], m[1])
	}

	for _, m := range decimalCouponPattern.FindAllStringSubmatchIndex(string(masked), -1) {
		v, err := strconv.ParseFloat(string(masked[m[2]:m[3]]), 64)
		if err != nil {
			continue
		}
		spans = append(spans, couponSpan{value: v, start: m[2], end: m[1]})
	}

	var out []couponSpan
	for _, s := range spans {
		if s.value > minCoupon && s.value < maxCoupon {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].start < out[j].start })
	return out
}

// blank overwrites b[start:end] with spaces, keeping offsets stable.
func blank(b []byte, start, end int) {
	for i := start; i < end; i++ {
		b[i] = ' '
	}
}

// MaturityYears returns distinct maturity years found in text, in order of appearance.
func MaturityYears(text string) []int {
	if text == "" {
		return nil
	}
	type hit struct{ year, pos int }
	var hits []hit
	for _, re := range maturityPatterns {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			y, err := strconv.Atoi(text[m[2]:m[3]])
			if err != nil || y <= minMaturityYear || y >= maxMaturityYear {
				continue
			}
			hits = append(hits, hit{year: y, pos: m[2]})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	var out []int
	seen := make(map[int]bool)
	for _, h := range hits {
		if !seen[h.year] {
			seen[h.year] = true
			out = append(out, h.year)
		}
	}
	return out
}

// seniorityKeywords is checked longest-first; matched spans are masked so
// "senior secured" does not also produce "senior" or "secured".
var seniorityKeywords = []string{
	"senior subordinated",
	"junior subordinated",
	"senior unsecured",
	"senior secured",
	"second lien",
	"first lien",
	"subordinated",
	"unsecured",
	"secured",
	"senior",
}

var seniorityPatterns = func() map[string]*regexp.Regexp {
	out := make(map[string]*regexp.Regexp, len(seniorityKeywords))
	for _, k := range seniorityKeywords {
		out[k] = regexp.MustCompile(`(?i)\b` + strings.ReplaceAll(k, " ", `[\s-]+`) + `\b`)
	}
	return out
}()

// SeniorityTerms returns the seniority keywords present in text.
func SeniorityTerms(text string) []string {
	if text == "" {
		return nil
	}
	masked := []byte(text)
	var out []string
	for _, k := range seniorityKeywords {
		locs := seniorityPatterns[k].FindAllIndex(masked, -1)
		if len(locs) == 0 {
			continue
		}
		out = append(out, k)
		for _, l := range locs {
			blank(masked, l[0], l[1])
		}
	}
	return out
}

// SeniorityCompatible reports whether one seniority phrase is a word subset
// of the other, so a "senior" title agrees with a "senior unsecured"
// instrument while "secured" and "senior unsecured" do not.
func SeniorityCompatible(a, b string) bool {
	wa, wb := strings.Fields(a), strings.Fields(b)
	if len(wa) == 0 || len(wb) == 0 {
		return false
	}
	if len(wa) > len(wb) {
		wa, wb = wb, wa
	}
	for _, w := range wa {
		found := false
		for _, x := range wb {
			if w == x {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Canonical facility type tokens.
const (
	FacilityRevolving   = "revolving"
	FacilityTermLoanA   = "term_loan_a"
	FacilityTermLoanB   = "term_loan_b"
	FacilityTermLoan    = "term_loan"
	FacilityABL         = "abl"
	FacilityDelayedDraw = "delayed_draw"
)

var facilityPatterns = []struct {
	token string
	re    *regexp.Regexp
}{
	{FacilityRevolving, regexp.MustCompile(`(?i)\brevolv(?:ing|er)\b`)},
	{FacilityTermLoanA, regexp.MustCompile(`(?i)\bterm\s+(?:loan\s+a|a\s+(?:loans?|facility))\b`)},
	{FacilityTermLoanB, regexp.MustCompile(`(?i)\bterm\s+(?:loan\s+b|b\s+(?:loans?|facility))\b`)},
	{FacilityABL, regexp.MustCompile(`(?i)\b(?:abl|asset[\s-]based)\b`)},
	{FacilityDelayedDraw, regexp.MustCompile(`(?i)\bdelayed[\s-]draw\b`)},
}

var genericTermLoanPattern = regexp.MustCompile(`(?i)\bterm\s+loans?\b`)

// FacilityTypes returns canonical facility tokens found in text. The generic
// "term_loan" token is only emitted when no lettered tranche is present.
func FacilityTypes(text string) []string {
	if text == "" {
		return nil
	}
	var out []string
	lettered := false
	for _, p := range facilityPatterns {
		if p.re.MatchString(text) {
			out = append(out, p.token)
			if p.token == FacilityTermLoanA || p.token == FacilityTermLoanB {
				lettered = true
			}
		}
	}
	if !lettered && genericTermLoanPattern.MatchString(text) {
		out = append(out, FacilityTermLoan)
	}
	return out
}

// roundRate rounds a percentage to 4 decimal places to make equality stable.
func roundRate(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// Mention is a coupon occurrence with its byte offsets in the source text.
type Mention struct {
	Value      float64
	Start, End int
}

// CouponMentions returns every in-range coupon occurrence in text, ordered
// by position. Unlike Coupons it keeps repeats.
func CouponMentions(text string) []Mention {
	spans := couponSpans(text)
	if len(spans) == 0 {
		return nil
	}
	out := make([]Mention, len(spans))
	for i, s := range spans {
		out[i] = Mention{Value: roundRate(s.value), Start: s.start, End: s.end}
	}
	return out
}
