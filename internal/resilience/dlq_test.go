package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestNewDLQEntry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	e := NewDLQEntry(7, "run-1", &pgconn.PgError{Code: "40P01", Message: "deadlock"}, 3, 15*time.Minute, now)
	assert.Equal(t, int64(7), e.CompanyID)
	assert.Equal(t, ErrorTypeTransient, e.ErrorType)
	assert.Equal(t, 3, e.MaxRetries)
	assert.Equal(t, now.Add(15*time.Minute), e.NextRetryAt)
	assert.True(t, e.CanRetry())
	assert.False(t, e.Due(now))
	assert.True(t, e.Due(now.Add(15*time.Minute)))

	p := NewDLQEntry(8, "run-1", errors.New("report: partition covers 2 of 3 instruments"), 3, time.Minute, now)
	assert.Equal(t, ErrorTypePermanent, p.ErrorType)
	assert.False(t, p.CanRetry())
	assert.False(t, p.Due(now.Add(time.Hour)))
}

func TestNextRetryAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		retries int
		want    time.Duration
	}{
		{0, 10 * time.Minute},
		{1, 20 * time.Minute},
		{3, 80 * time.Minute},
		{20, 24 * time.Hour},
	}
	for _, tt := range tests {
		assert.Equal(t, now.Add(tt.want), NextRetryAt(tt.retries, 10*time.Minute, now))
	}
}

func TestDLQEntry_CanRetry(t *testing.T) {
	e := DLQEntry{RetryCount: 2, MaxRetries: 3}
	assert.True(t, e.CanRetry())
	e.RetryCount = 3
	assert.False(t, e.CanRetry())
}
