package resilience

import (
	"math"
	"time"
)

// Dead letter error types.
const (
	ErrorTypeTransient = "transient"
	ErrorTypePermanent = "permanent"
)

// DLQEntry is a company whose batch run failed after exhausting in-run
// retries. It is replayed by a later `batch --retry-failed`.
type DLQEntry struct {
	CompanyID    int64     `json:"company_id"`
	RunID        string    `json:"run_id"`
	Error        string    `json:"error"`
	ErrorType    string    `json:"error_type"`
	RetryCount   int       `json:"retry_count"`
	MaxRetries   int       `json:"max_retries"`
	NextRetryAt  time.Time `json:"next_retry_at"`
	CreatedAt    time.Time `json:"created_at"`
	LastFailedAt time.Time `json:"last_failed_at"`
}

// DLQFilter selects due entries.
type DLQFilter struct {
	ErrorType string `json:"error_type,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// CanRetry reports whether the entry has replays left.
func (e *DLQEntry) CanRetry() bool {
	return e.RetryCount < e.MaxRetries
}

// Due reports whether the entry is eligible for replay at now.
func (e *DLQEntry) Due(now time.Time) bool {
	return e.CanRetry() && !e.NextRetryAt.After(now)
}

// NewDLQEntry builds an entry for a failed company. Permanent failures get
// no replays.
func NewDLQEntry(companyID int64, runID string, err error, maxRetries int, base time.Duration, now time.Time) DLQEntry {
	typ := ClassifyError(err)
	if typ == ErrorTypePermanent {
		maxRetries = 0
	}
	return DLQEntry{
		CompanyID:    companyID,
		RunID:        runID,
		Error:        err.Error(),
		ErrorType:    typ,
		MaxRetries:   maxRetries,
		NextRetryAt:  NextRetryAt(0, base, now),
		CreatedAt:    now,
		LastFailedAt: now,
	}
}

// NextRetryAt doubles the base delay for every replay already spent, capped
// at one day.
func NextRetryAt(retryCount int, base time.Duration, now time.Time) time.Time {
	d := time.Duration(float64(base) * math.Pow(2, float64(retryCount)))
	if d > 24*time.Hour || d < 0 {
		d = 24 * time.Hour
	}
	return now.Add(d)
}
