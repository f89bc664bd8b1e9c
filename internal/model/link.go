package model

import "time"

// LinkKey identifies an instrument/document pairing.
type LinkKey struct {
	InstrumentID int64
	DocumentID   int64
}

// LinkSet is the set of pairings already present in storage.
type LinkSet map[LinkKey]struct{}

// Has reports whether the pairing exists.
func (s LinkSet) Has(k LinkKey) bool {
	_, ok := s[k]
	return ok
}

// Add records a pairing.
func (s LinkSet) Add(k LinkKey) {
	s[k] = struct{}{}
}

// DocumentIDs returns the distinct document IDs in the set.
func (s LinkSet) DocumentIDs() map[int64]bool {
	out := make(map[int64]bool, len(s))
	for k := range s {
		out[k.DocumentID] = true
	}
	return out
}

// Evidence is the audit record stored alongside a link. It has no
// behavioral role once written.
type Evidence struct {
	RunID        string        `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Signals      []MatchSignal `json:"signals" yaml:"signals,omitempty"`
	Snippets     []string      `json:"snippets,omitempty" yaml:"snippets,omitempty"`
	TitleExcerpt string        `json:"title_excerpt,omitempty" yaml:"title_excerpt,omitempty"`
}

// DocumentLink is the persistable subset of a MatchResult.
type DocumentLink struct {
	ID           int64        `json:"id,omitempty" yaml:"id,omitempty"`
	InstrumentID int64        `json:"instrument_id" yaml:"instrument_id"`
	DocumentID   int64        `json:"document_id" yaml:"document_id"`
	Relationship Relationship `json:"relationship_type" yaml:"relationship_type"`
	Confidence   float64      `json:"confidence" yaml:"confidence"`
	Method       Method       `json:"match_method" yaml:"match_method"`
	Evidence     Evidence     `json:"match_evidence" yaml:"match_evidence,omitempty"`
	Verified     bool         `json:"is_verified" yaml:"is_verified"`
	CreatedBy    string       `json:"created_by" yaml:"created_by"`
	CreatedAt    time.Time    `json:"created_at" yaml:"created_at,omitempty"`
}

// NewDocumentLink converts a match into an unverified link.
func NewDocumentLink(m MatchResult, runID, createdBy string) DocumentLink {
	return DocumentLink{
		InstrumentID: m.InstrumentID,
		DocumentID:   m.DocumentID,
		Relationship: m.Relationship,
		Confidence:   m.Confidence,
		Method:       m.Method,
		Evidence: Evidence{
			RunID:        runID,
			Signals:      m.Signals,
			Snippets:     m.Snippets,
			TitleExcerpt: m.TitleExcerpt,
		},
		Verified:  false,
		CreatedBy: createdBy,
	}
}
