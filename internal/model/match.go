package model

// Location records where in a document a signal was observed.
type Location string

const (
	LocationTitle    Location = "title"
	LocationBody     Location = "body"
	LocationMetadata Location = "metadata"
)

// Method tags the evidence family that produced a match.
type Method string

const (
	MethodIdentifier      Method = "identifier"
	MethodNoteDescription Method = "note_description"
	MethodFilingDate      Method = "filing_date"
	MethodIssuerDate      Method = "issuer_date"
	MethodCouponMaturity  Method = "coupon_maturity"
	MethodNameTerms       Method = "name_terms"
	MethodFacilityTerms   Method = "facility_terms"
	MethodMultiTranche    Method = "multi_tranche"
	MethodAmount          Method = "amount"
	MethodSameCompany     Method = "same_company"
	MethodFootnote        Method = "footnote"
	MethodNone            Method = "none"
)

// Relationship describes how a document relates to an instrument.
type Relationship string

const (
	RelationshipGoverns     Relationship = "governs"
	RelationshipSupplements Relationship = "supplements"
	RelationshipAmends      Relationship = "amends"
	RelationshipRelated     Relationship = "related"
	RelationshipReferences  Relationship = "references"
)

// Priority orders relationships for tie-breaking: lower sorts first.
func (r Relationship) Priority() int {
	switch r {
	case RelationshipGoverns:
		return 0
	case RelationshipSupplements:
		return 1
	case RelationshipAmends:
		return 2
	case RelationshipRelated:
		return 3
	default:
		return 4
	}
}

// MatchSignal is one piece of evidence produced by a scorer for a single
// instrument/document pair.
type MatchSignal struct {
	Kind       string   `json:"kind"`
	Group      string   `json:"group"`
	Method     Method   `json:"method"`
	Observed   string   `json:"observed"`
	Expected   string   `json:"expected"`
	Confidence float64  `json:"confidence"`
	Location   Location `json:"location"`
}

// MatchResult is the aggregated outcome for one instrument/document pair.
type MatchResult struct {
	InstrumentID int64         `json:"instrument_id"`
	DocumentID   int64         `json:"document_id"`
	SectionType  SectionType   `json:"section_type"`
	Confidence   float64       `json:"confidence"`
	Method       Method        `json:"method"`
	Relationship Relationship  `json:"relationship"`
	Signals      []MatchSignal `json:"signals,omitempty"`
	TitleExcerpt string        `json:"title_excerpt,omitempty"`
	Snippets     []string      `json:"snippets,omitempty"`
}

// Key returns the (instrument, document) identity of the result.
func (m *MatchResult) Key() LinkKey {
	return LinkKey{InstrumentID: m.InstrumentID, DocumentID: m.DocumentID}
}
