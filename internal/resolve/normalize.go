// Package resolve canonicalizes legal entity names for noise-tolerant comparison.
package resolve

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// legalSuffixes maps each corporate suffix variant to its canonical token.
var legalSuffixes = map[string]string{
	"inc":          "inc",
	"inc.":         "inc",
	"incorporated": "inc",
	"corp":         "corp",
	"corp.":        "corp",
	"corporation":  "corp",
	"llc":          "llc",
	"l.l.c.":       "llc",
	"l.l.c":        "llc",
	"ltd":          "ltd",
	"ltd.":         "ltd",
	"limited":      "ltd",
	"co":           "co",
	"co.":          "co",
	"company":      "co",
	"lp":           "lp",
	"l.p.":         "lp",
	"l.p":          "lp",
	"plc":          "plc",
	"p.l.c.":       "plc",
	"p.l.c":        "plc",
	"nv":           "nv",
	"n.v.":         "nv",
	"n.v":          "nv",
	"sa":           "sa",
	"s.a.":         "sa",
	"s.a":          "sa",
	"gmbh":         "gmbh",
}

var canonicalSuffixes = func() map[string]bool {
	out := make(map[string]bool)
	for _, v := range legalSuffixes {
		out[v] = true
	}
	return out
}()

var stopWords = map[string]bool{
	"the": true, "and": true, "of": true, "a": true, "an": true,
	"for": true, "in": true, "as": true,
}

// NormalizeName standardizes a legal name for matching by:
//  1. Folding accents and lowercasing
//  2. Replacing commas and ampersands, collapsing whitespace
//  3. Stripping a leading "the"
//  4. Collapsing each trailing corporate suffix ("Co., Inc.") to its
//     canonical token
//  5. Stripping trailing periods
//
// NormalizeName(NormalizeName(s)) == NormalizeName(s).
func NormalizeName(name string) string {
	name = fold(name)
	name = strings.ToLower(name)
	name = strings.NewReplacer(",", " ", "&", " and ").Replace(name)
	name = strings.Join(strings.Fields(name), " ")

	for strings.HasPrefix(name, "the ") {
		name = strings.TrimPrefix(name, "the ")
	}
	name = strings.TrimRight(name, ". ")
	if name == "" {
		return ""
	}

	words := strings.Fields(name)
	for i := len(words) - 1; i >= 0; i-- {
		canon, ok := suffixToken(words[i])
		if !ok {
			break
		}
		words[i] = canon
	}
	name = strings.Join(words, " ")

	return strings.TrimRight(name, ". ")
}

// suffixToken returns the canonical form of a corporate suffix variant,
// with or without periods.
func suffixToken(w string) (string, bool) {
	if canon, ok := legalSuffixes[w]; ok {
		return canon, true
	}
	canon, ok := legalSuffixes[strings.TrimRight(w, ".")]
	return canon, ok
}

// SignificantWords returns the normalized words of name without corporate
// suffixes and stop words, in order.
func SignificantWords(name string) []string {
	var out []string
	for _, w := range strings.Fields(NormalizeName(name)) {
		w = strings.Trim(w, ".-'\"()")
		if w == "" || stopWords[w] || canonicalSuffixes[w] {
			continue
		}
		out = append(out, w)
	}
	return out
}

// NamesMatch reports whether two legal names refer to the same entity:
// equal after normalization, or sharing their first two significant words.
func NamesMatch(a, b string) bool {
	na, nb := NormalizeName(a), NormalizeName(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}

	wa, wb := SignificantWords(a), SignificantWords(b)
	if len(wa) == 0 || len(wb) == 0 {
		return false
	}
	if len(wa) >= 2 && len(wb) >= 2 {
		return wa[0] == wb[0] && wa[1] == wb[1]
	}
	// Single-word names must agree entirely.
	return len(wa) == len(wb) && wa[0] == wb[0]
}

// fold strips diacritics so "Société Générale" compares equal to "Societe Generale".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
