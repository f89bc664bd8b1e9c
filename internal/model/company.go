package model

import "time"

// RunStatus represents the current state of a matching run for one company.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusMatching RunStatus = "matching"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Company identifies the filer whose instruments and documents are matched.
type Company struct {
	ID     int64  `json:"id" yaml:"id"`
	Name   string `json:"name" yaml:"name"`
	Ticker string `json:"ticker,omitempty" yaml:"ticker,omitempty"`
	CIK    string `json:"cik,omitempty" yaml:"cik,omitempty"`
}

// CompanyResult is the batch driver's outcome for a single company.
type CompanyResult struct {
	CompanyID int64               `json:"company_id"`
	Status    RunStatus           `json:"status"`
	Report    *CompanyMatchReport `json:"report,omitempty"`
	Created   int                 `json:"links_created"`
	Skipped   int                 `json:"links_skipped"`
	Attempts  int                 `json:"attempts"`
	Error     string              `json:"error,omitempty"`
	Duration  time.Duration       `json:"duration"`
}
