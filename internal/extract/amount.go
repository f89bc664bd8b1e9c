package extract

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// amountPattern matches "$500 million", "$1.25 billion", "$750,000 thousand",
// "$500,000,000" and "500 million". Group 1 is the dollar sign, group 2 the
// number, group 3 the scale word.
var amountPattern = regexp.MustCompile(
	`(?i)(\$|US\$|USD\s?)?\s*(\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?)(?:\s*(million|billion|thousand|mm|bn)\b)?`,
)

// maxDollars bounds amounts well inside int64 cents; float-to-int conversion
// of anything larger is implementation-defined.
const maxDollars = 1e15

var amountScales = map[string]float64{
	"thousand": 1e3,
	"million":  1e6,
	"mm":       1e6,
	"billion":  1e9,
	"bn":       1e9,
}

// Amounts returns distinct positive dollar amounts in text as integer cents,
// in order of appearance. A bare number must carry a dollar sign or a scale
// word to count.
func Amounts(text string) []int64 {
	if text == "" {
		return nil
	}
	var out []int64
	seen := make(map[int64]bool)
	for _, m := range amountPattern.FindAllStringSubmatch(text, -1) {
		currency, number, scale := m[1], m[2], strings.ToLower(m[3])
		if currency == "" && scale == "" {
			continue
		}
		v, err := strconv.ParseFloat(strings.ReplaceAll(number, ",", ""), 64)
		if err != nil || v <= 0 {
			continue
		}
		if mul, ok := amountScales[scale]; ok {
			v *= mul
		}
		if v > maxDollars {
			continue
		}
		cents := int64(math.Round(v * 100))
		if cents <= 0 || seen[cents] {
			continue
		}
		seen[cents] = true
		out = append(out, cents)
	}
	return out
}

// WithinTolerance reports whether got is within frac (0.05 = ±5%) of want.
func WithinTolerance(got, want int64, frac float64) bool {
	if want <= 0 || got <= 0 {
		return false
	}
	return math.Abs(float64(got-want)) <= frac*float64(want)
}
