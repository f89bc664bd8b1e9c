// Package store persists companies, debt instruments, document sections and
// the links the matcher creates between them.
package store

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/debtlink/internal/model"
	"github.com/sells-group/debtlink/internal/resilience"
)

// ErrNotFound is returned for an unknown company.
var ErrNotFound = eris.New("store: not found")

// Store is the storage collaborator of the report builder and batch driver.
type Store interface {
	// Reads
	GetCompany(ctx context.Context, id int64) (*model.Company, error)
	ListCompanies(ctx context.Context) ([]model.Company, error)
	// ListInstruments returns the company's active instruments ordered by id.
	ListInstruments(ctx context.Context, companyID int64) ([]model.DebtInstrument, error)
	// ListDocuments returns sections of one type, newest filing first
	// (undated last), then by id.
	ListDocuments(ctx context.Context, companyID int64, sectionType model.SectionType) ([]model.DocumentSection, error)

	// Links
	ExistingLinks(ctx context.Context, instrumentIDs []int64) (model.LinkSet, error)
	// CreateLink inserts the link unless the (instrument, document) pair is
	// already stored. The bool reports whether a row was created.
	CreateLink(ctx context.Context, link model.DocumentLink) (bool, error)

	// Dead letter queue
	EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error
	DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error)
	RemoveDLQ(ctx context.Context, companyID int64) error
	CountDLQ(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Seeder loads a dataset into a database-backed store.
type Seeder interface {
	Seed(ctx context.Context, ds *Dataset) (SeedStats, error)
}

// SeedStats counts rows written by Seed.
type SeedStats struct {
	Companies   int64 `json:"companies"`
	Instruments int64 `json:"instruments"`
	Documents   int64 `json:"documents"`
	Links       int64 `json:"links"`
}

// sortDocuments orders sections newest filing first, undated last, then by id.
func sortDocuments(docs []model.DocumentSection) {
	sort.SliceStable(docs, func(i, j int) bool {
		a, b := docs[i].FilingDate, docs[j].FilingDate
		switch {
		case a != nil && b != nil && !a.Equal(*b):
			return a.After(*b)
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		}
		return docs[i].ID < docs[j].ID
	})
}

// dateOnly truncates t to a calendar date in UTC.
func dateOnly(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}

// dlqLimit applies the default page size to a dequeue.
func dlqLimit(f resilience.DLQFilter) int {
	if f.Limit <= 0 {
		return 100
	}
	return f.Limit
}
