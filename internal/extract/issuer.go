package extract

import (
	"regexp"
	"strings"
)

const (
	issuerPreambleChars = 5000
	maxIssuerLen        = 120
)

// issuerPatterns are tried in order against the document preamble; group 1
// is the issuer.
var issuerPatterns = []*regexp.Regexp{
	// "... between Acme Corp., as Issuer, and ..."
	regexp.MustCompile(`(?is)\bbetween\s+(.{3,150}?),?\s+as\s+(?:the\s+)?(?:issuer|company|borrower)\b`),
	// "... between Acme Corp. and U.S. Bank National Association, as Trustee"
	regexp.MustCompile(`(?is)\bbetween\s+(.{3,150}?),?\s+and\s+.{3,200}?,?\s+as\s+(?:the\s+)?trustee\b`),
	// "Acme Corp. Indenture" at the start of a line
	regexp.MustCompile(`(?m)^\s*([A-Z][A-Za-z0-9&.,'\- ]{2,100}?)\s+(?:Base\s+)?Indenture\b`),
	// "Issuer: Acme Corp."
	regexp.MustCompile(`(?im)\bissuer\s*:\s*([^\n;]{3,150})`),
}

var parentheticalPattern = regexp.MustCompile(`\s*\([^)]*\)`)

// trusteeClausePattern marks a capture that ran past the trustee party.
var trusteeClausePattern = regexp.MustCompile(`(?i)\bas\s+(?:the\s+)?trustee\b`)

// roleClausePattern strips a trailing ", as Issuer" left by the trustee pattern.
var roleClausePattern = regexp.MustCompile(`(?i),?\s+as\s+(?:the\s+)?(?:issuer|company|borrower)\s*$`)

// yearPattern rejects captures that describe a tranche ("Notes due 2029").
var yearPattern = regexp.MustCompile(`\b(?:19|20)\d{2}\b`)

// incorporationClausePattern strips ", a Delaware corporation" style tails.
var incorporationClausePattern = regexp.MustCompile(
	`(?i),?\s+an?\s+[a-z .]{2,40}?\s+(?:corporation|limited liability company|limited partnership|company|partnership|trust)\s*$`,
)

// genericIndentureWords are leading words of "X Indenture" that describe the
// document rather than name the issuer.
var genericIndentureWords = map[string]bool{
	"base": true, "supplemental": true, "the": true, "this": true, "first": true,
	"second": true, "third": true, "fourth": true, "fifth": true, "sixth": true,
	"seventh": true, "eighth": true, "ninth": true, "tenth": true, "amended": true,
	"restated": true, "senior": true, "subordinated": true, "trust": true, "form": true,
	"notes": true, "debentures": true, "bonds": true, "due": true,
}

// IssuerName extracts the issuer's legal name from indenture or agreement
// boilerplate. Only the first issuerPreambleChars of text are scanned.
func IssuerName(text string) string {
	if len(text) > issuerPreambleChars {
		text = text[:issuerPreambleChars]
	}
	if strings.TrimSpace(text) == "" {
		return ""
	}
	for _, re := range issuerPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if trusteeClausePattern.MatchString(m[1]) {
			continue
		}
		name := cleanIssuer(m[1])
		if name == "" || yearPattern.MatchString(name) {
			continue
		}
		first := strings.ToLower(strings.Fields(name)[0])
		if genericIndentureWords[first] {
			continue
		}
		return name
	}
	return ""
}

func cleanIssuer(s string) string {
	s = parentheticalPattern.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), " ")
	s = strings.Trim(s, " ,;:\"'")
	s = roleClausePattern.ReplaceAllString(s, "")
	s = incorporationClausePattern.ReplaceAllString(s, "")
	s = strings.Trim(s, " ,;:\"'")
	if len(s) > maxIssuerLen {
		s = strings.TrimSpace(s[:maxIssuerLen])
	}
	return s
}
