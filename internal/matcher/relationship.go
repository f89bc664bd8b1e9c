package matcher

import (
	"regexp"
	"sort"
	"strings"

	"github.com/sells-group/debtlink/internal/model"
)

// relationshipPreambleChars bounds the content scanned when a title is empty.
const relationshipPreambleChars = 1000

var supplementPattern = regexp.MustCompile(
	`(?i)\b(?:(?:first|second|third|fourth|fifth|sixth|seventh|eighth|ninth|tenth|eleventh|twelfth|\d+(?:st|nd|rd|th))\s+)?supplemental\s+indenture\b`,
)

var amendmentPattern = regexp.MustCompile(`(?i)\bamendment\b|\bamended\s+and\s+restated\b`)

var relatedPattern = regexp.MustCompile(
	`(?i)\bofficers?['’]?s?\s+certificate\b|\bform\s+of\s+(?:global\s+)?(?:senior\s+)?notes?\b|\bnotation\s+of\s+guarantee\b|\bguarantee\s+notation\b`,
)

// ClassifyRelationship derives how a document relates to the instruments it
// matches from its title, or from the content preamble when the title is empty.
func ClassifyRelationship(title, content string) model.Relationship {
	text := strings.TrimSpace(title)
	if text == "" {
		text = content
		if len(text) > relationshipPreambleChars {
			text = text[:relationshipPreambleChars]
		}
	}
	switch {
	case supplementPattern.MatchString(text):
		return model.RelationshipSupplements
	case amendmentPattern.MatchString(text):
		return model.RelationshipAmends
	case relatedPattern.MatchString(text):
		return model.RelationshipRelated
	default:
		return model.RelationshipGoverns
	}
}

// SortResults orders results by confidence descending, then relationship
// priority. Equal results keep their input order.
func SortResults(results []model.MatchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Confidence != results[j].Confidence {
			return results[i].Confidence > results[j].Confidence
		}
		return results[i].Relationship.Priority() < results[j].Relationship.Priority()
	})
}
