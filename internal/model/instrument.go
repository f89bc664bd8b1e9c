package model

import (
	"strings"
	"time"
)

// Category partitions instruments into the document pool they are matched against.
type Category string

const (
	CategoryBond    Category = "bond"
	CategoryLoan    Category = "loan"
	CategoryUnknown Category = "unknown"
)

// bondTypes and loanTypes are the instrument_type vocabularies produced by
// the upstream extraction step.
var bondTypes = map[string]bool{
	"notes":              true,
	"note":               true,
	"senior_notes":       true,
	"secured_notes":      true,
	"unsecured_notes":    true,
	"subordinated_notes": true,
	"convertible_notes":  true,
	"convertible":        true,
	"exchangeable_notes": true,
	"bond":               true,
	"bonds":              true,
	"debenture":          true,
	"debentures":         true,
}

var loanTypes = map[string]bool{
	"loan":                      true,
	"term_loan":                 true,
	"term_loan_a":               true,
	"term_loan_b":               true,
	"revolver":                  true,
	"revolving_credit_facility": true,
	"credit_facility":           true,
	"abl":                       true,
	"abl_facility":              true,
	"delayed_draw":              true,
	"delayed_draw_term_loan":    true,
	"bridge_loan":               true,
}

// ClassifyInstrumentType maps an instrument_type value to its Category.
func ClassifyInstrumentType(instrumentType string) Category {
	t := strings.ToLower(strings.TrimSpace(instrumentType))
	t = strings.NewReplacer(" ", "_", "-", "_").Replace(t)
	switch {
	case bondTypes[t]:
		return CategoryBond
	case loanTypes[t]:
		return CategoryLoan
	default:
		return CategoryUnknown
	}
}

// DebtInstrument is a bond or loan produced by upstream extraction. Amounts
// are in cents. It is never mutated by the matching engine.
type DebtInstrument struct {
	ID                int64      `json:"id" yaml:"id"`
	CompanyID         int64      `json:"company_id" yaml:"company_id"`
	Name              string     `json:"name" yaml:"name"`
	InstrumentType    string     `json:"instrument_type" yaml:"instrument_type"`
	CUSIP             *string    `json:"cusip,omitempty" yaml:"cusip,omitempty"`
	ISIN              *string    `json:"isin,omitempty" yaml:"isin,omitempty"`
	CouponBps         *int       `json:"coupon_bps,omitempty" yaml:"coupon_bps,omitempty"`
	MaturityDate      *time.Time `json:"maturity_date,omitempty" yaml:"maturity_date,omitempty"`
	IssueDate         *time.Time `json:"issue_date,omitempty" yaml:"issue_date,omitempty"`
	Seniority         string     `json:"seniority,omitempty" yaml:"seniority,omitempty"`
	PrincipalAmount   *int64     `json:"principal_amount,omitempty" yaml:"principal_amount,omitempty"`
	OutstandingAmount *int64     `json:"outstanding_amount,omitempty" yaml:"outstanding_amount,omitempty"`
	CommitmentAmount  *int64     `json:"commitment_amount,omitempty" yaml:"commitment_amount,omitempty"`
	IssuerName        string     `json:"issuer_name,omitempty" yaml:"issuer_name,omitempty"`
	IssuerID          *int64     `json:"issuer_id,omitempty" yaml:"issuer_id,omitempty"`
	Active            bool       `json:"active" yaml:"active"`
}

// Category returns the bond/loan classification of the instrument type.
func (d *DebtInstrument) Category() Category {
	return ClassifyInstrumentType(d.InstrumentType)
}

// CouponPercent returns the coupon as a percentage (575 bps -> 5.75).
func (d *DebtInstrument) CouponPercent() (float64, bool) {
	if d.CouponBps == nil || *d.CouponBps <= 0 {
		return 0, false
	}
	return float64(*d.CouponBps) / 100, true
}

// MaturityYear returns the maturity year, or 0 when unknown.
func (d *DebtInstrument) MaturityYear() int {
	if d.MaturityDate == nil {
		return 0
	}
	return d.MaturityDate.Year()
}

// HasIdentifiers reports whether a CUSIP or ISIN is present.
func (d *DebtInstrument) HasIdentifiers() bool {
	return (d.CUSIP != nil && strings.TrimSpace(*d.CUSIP) != "") ||
		(d.ISIN != nil && strings.TrimSpace(*d.ISIN) != "")
}

// Amounts returns the non-empty principal and outstanding amounts, in that order.
func (d *DebtInstrument) Amounts() []int64 {
	var out []int64
	if d.PrincipalAmount != nil && *d.PrincipalAmount > 0 {
		out = append(out, *d.PrincipalAmount)
	}
	if d.OutstandingAmount != nil && *d.OutstandingAmount > 0 {
		if len(out) == 0 || out[0] != *d.OutstandingAmount {
			out = append(out, *d.OutstandingAmount)
		}
	}
	return out
}
