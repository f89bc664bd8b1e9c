// Package extract pulls typed facts out of cleaned filing text. Every
// function is total: empty or malformed input yields an empty result.
package extract

import (
	"regexp"
	"strings"
)

// cusipPattern matches a 9-character CUSIP after a CUSIP label, allowing the
// issuer/issue/check segments to be split by a space or hyphen:
//   - "CUSIP No. 037833EP2"
//   - "CUSIP: 037833 EP2"
//   - "CUSIP Number 037833-EP-2"
var cusipPattern = regexp.MustCompile(
	`(?i)\bCUSIP(?:\s*(?:Nos?\.?|Numbers?|#))?\s*[:#.]?\s*([0-9A-Z]{6})[\s-]?([0-9A-Z]{2})[\s-]?([0-9])\b`,
)

// isinPattern matches a 12-character ISIN: 2-letter country, 9 alphanumerics, check digit.
var isinPattern = regexp.MustCompile(`\b([A-Z]{2}[A-Z0-9]{9}[0-9])\b`)

// CUSIPs returns the distinct CUSIPs labelled in text, uppercased, in order
// of first appearance.
func CUSIPs(text string) []string {
	if text == "" {
		return nil
	}
	var out []string
	seen := make(map[string]bool)
	for _, m := range cusipPattern.FindAllStringSubmatch(text, -1) {
		code := strings.ToUpper(m[1] + m[2] + m[3])
		if !hasDigit(code[:8]) || seen[code] {
			continue
		}
		seen[code] = true
		out = append(out, code)
	}
	return out
}

// ISINs returns the distinct ISINs in text in order of first appearance.
func ISINs(text string) []string {
	if text == "" {
		return nil
	}
	var out []string
	seen := make(map[string]bool)
	for _, m := range isinPattern.FindAllStringSubmatch(strings.ToUpper(text), -1) {
		code := m[1]
		if !isAlpha(code[:2]) || !hasDigit(code[2:11]) || seen[code] {
			continue
		}
		seen[code] = true
		out = append(out, code)
	}
	return out
}

// CUSIPFromISIN returns the embedded CUSIP of a US ISIN, or "" for any
// other country or malformed input.
func CUSIPFromISIN(isin string) string {
	isin = strings.ToUpper(strings.TrimSpace(isin))
	if len(isin) != 12 || !strings.HasPrefix(isin, "US") {
		return ""
	}
	return isin[2:11]
}

// NormalizeIdentifier uppercases and strips separators from a CUSIP or ISIN.
func NormalizeIdentifier(id string) string {
	return strings.ToUpper(strings.NewReplacer(" ", "", "-", "", ".", "").Replace(strings.TrimSpace(id)))
}

func hasDigit(s string) bool {
	for _, c := range s {
		if c >= '0' && c <= '9' {
			return true
		}
	}
	return false
}

func isAlpha(s string) bool {
	for _, c := range s {
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return s != ""
}
