package model

import (
	"sort"

	"github.com/rotisserie/eris"
)

// Bucket is the confidence band of an instrument's best match.
type Bucket string

const (
	BucketHigh      Bucket = "high"
	BucketLow       Bucket = "low"
	BucketUnmatched Bucket = "unmatched"
)

// UnmatchedInstrument records why an instrument has no qualifying match.
type UnmatchedInstrument struct {
	InstrumentID   int64    `json:"instrument_id"`
	Name           string   `json:"name"`
	Category       Category `json:"category"`
	Reason         string   `json:"reason"`
	BestConfidence float64  `json:"best_confidence"`
}

// Unmatched reasons.
const (
	ReasonNoCandidates = "no_candidate_documents"
	ReasonBelowMinimum = "below_minimum_confidence"
	ReasonUnclassified = "unclassified_instrument_type"
)

// BucketCounts tallies instruments per confidence band.
type BucketCounts struct {
	High      int `json:"high"`
	Low       int `json:"low"`
	Unmatched int `json:"unmatched"`
}

// CompanyMatchReport summarizes matching for one company. Every instrument
// appears in exactly one of Matches (by InstrumentID) or Unmatched.
type CompanyMatchReport struct {
	CompanyID        int64                 `json:"company_id"`
	CompanyName      string                `json:"company_name"`
	TotalInstruments int                   `json:"total_instruments"`
	Bonds            int                   `json:"bonds"`
	Loans            int                   `json:"loans"`
	Buckets          BucketCounts          `json:"buckets"`
	Matches          []MatchResult         `json:"matches"`
	Candidates       []MatchResult         `json:"candidates,omitempty"`
	Unmatched        []UnmatchedInstrument `json:"unmatched"`
}

// MatchedInstrumentIDs returns the sorted distinct instrument IDs with a match.
func (r *CompanyMatchReport) MatchedInstrumentIDs() []int64 {
	seen := make(map[int64]bool, len(r.Matches))
	var ids []int64
	for _, m := range r.Matches {
		if !seen[m.InstrumentID] {
			seen[m.InstrumentID] = true
			ids = append(ids, m.InstrumentID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Validate checks the matched/unmatched partition against the total.
func (r *CompanyMatchReport) Validate() error {
	matched := r.MatchedInstrumentIDs()
	inMatched := make(map[int64]bool, len(matched))
	for _, id := range matched {
		inMatched[id] = true
	}
	seen := make(map[int64]bool, len(r.Unmatched))
	for _, u := range r.Unmatched {
		if inMatched[u.InstrumentID] {
			return eris.Errorf("report: instrument %d is both matched and unmatched", u.InstrumentID)
		}
		if seen[u.InstrumentID] {
			return eris.Errorf("report: instrument %d listed twice as unmatched", u.InstrumentID)
		}
		seen[u.InstrumentID] = true
	}
	if got := len(matched) + len(r.Unmatched); got != r.TotalInstruments {
		return eris.Errorf("report: partition covers %d of %d instruments", got, r.TotalInstruments)
	}
	return nil
}
