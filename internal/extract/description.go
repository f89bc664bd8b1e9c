package extract

import (
	"fmt"
	"math"
)

// trancheWindow bounds how far after a coupon a maturity year may appear
// to be read as the same series.
const trancheWindow = 120

// Tranche is one coupon/maturity series named in a document.
type Tranche struct {
	Coupon float64 `json:"coupon"`
	Year   int     `json:"year"`
}

// Description returns the canonical note description of the tranche.
func (t Tranche) Description() string {
	return NoteDescription(t.Coupon, t.Year)
}

// NoteDescription builds the canonical "R.RR% notes YYYY" form used to
// compare note series across documents. Returns "" when either part is missing.
func NoteDescription(coupon float64, year int) string {
	if coupon <= minCoupon || coupon >= maxCoupon || year <= minMaturityYear || year >= maxMaturityYear {
		return ""
	}
	return fmt.Sprintf("%.2f%% notes %d", coupon, year)
}

// Tranches pairs each coupon in text with the first maturity year that
// follows it within trancheWindow bytes and before the next coupon.
func Tranches(text string) []Tranche {
	spans := couponSpans(text)
	if len(spans) == 0 {
		return nil
	}
	var out []Tranche
	seen := make(map[Tranche]bool)
	for i, s := range spans {
		end := s.end + trancheWindow
		if i+1 < len(spans) && spans[i+1].start < end {
			end = spans[i+1].start
		}
		if end > len(text) {
			end = len(text)
		}
		if end <= s.end {
			continue
		}
		years := MaturityYears(text[s.end:end])
		if len(years) == 0 {
			continue
		}
		t := Tranche{Coupon: roundRate(s.value), Year: years[0]}
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// NoteDescriptions returns the canonical descriptions of every tranche in text.
func NoteDescriptions(text string) []string {
	var out []string
	for _, t := range Tranches(text) {
		if d := t.Description(); d != "" {
			out = append(out, d)
		}
	}
	return out
}

// CouponsEqual compares two percentages at basis-point precision.
func CouponsEqual(a, b float64) bool {
	return math.Abs(a-b) < 0.005
}
