package model

import "time"

// SectionType classifies a document section extracted from a filing.
type SectionType string

const (
	SectionIndenture       SectionType = "indenture"
	SectionCreditAgreement SectionType = "credit_agreement"
	SectionDebtFootnote    SectionType = "debt_footnote"
	SectionOther           SectionType = "other"
)

// PoolFor returns the governing-document section type searched for a category.
func PoolFor(c Category) (SectionType, bool) {
	switch c {
	case CategoryBond:
		return SectionIndenture, true
	case CategoryLoan:
		return SectionCreditAgreement, true
	default:
		return "", false
	}
}

// DocumentSection is plain text handed over by the filing cleanup step.
type DocumentSection struct {
	ID          int64       `json:"id" yaml:"id"`
	CompanyID   int64       `json:"company_id" yaml:"company_id"`
	SectionType SectionType `json:"section_type" yaml:"section_type"`
	Title       string      `json:"title" yaml:"title"`
	Content     string      `json:"content" yaml:"content"`
	FilingDate  *time.Time  `json:"filing_date,omitempty" yaml:"filing_date,omitempty"`
}
