package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/debtlink/internal/matcher"
	"github.com/sells-group/debtlink/internal/model"
	"github.com/sells-group/debtlink/internal/resilience"
)

type seedableStore interface {
	Store
	Seeder
}

func ptr[T any](v T) *T { return &v }

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func testDataset() *Dataset {
	return &Dataset{
		Companies: []model.Company{
			{ID: 1, Name: "Acme Holdings, Inc.", Ticker: "ACME"},
			{ID: 2, Name: "Globex Corp"},
		},
		Instruments: []model.DebtInstrument{
			{ID: 12, CompanyID: 1, Name: "Revolving Credit Facility", InstrumentType: "revolver", CommitmentAmount: ptr(int64(50_000_000_000)), Active: true},
			{ID: 10, CompanyID: 1, Name: "5.750% Senior Notes due 2029", InstrumentType: "senior_notes",
				CUSIP: ptr("037833EP2"), CouponBps: ptr(575), MaturityDate: day(2029, 3, 15), Seniority: "senior unsecured",
				PrincipalAmount: ptr(int64(50_000_000_000)), Active: true},
			{ID: 11, CompanyID: 1, Name: "Term Loan B", InstrumentType: "term_loan_b", Active: false},
			{ID: 20, CompanyID: 2, Name: "4.00% Notes due 2031", InstrumentType: "notes", CouponBps: ptr(400), Active: true},
		},
		Documents: []model.DocumentSection{
			{ID: 100, CompanyID: 1, SectionType: model.SectionIndenture, Title: "Base Indenture", FilingDate: day(2019, 3, 1)},
			{ID: 101, CompanyID: 1, SectionType: model.SectionIndenture, Title: "First Supplemental Indenture", FilingDate: day(2021, 6, 1)},
			{ID: 102, CompanyID: 1, SectionType: model.SectionIndenture, Title: "Form of Note"},
			{ID: 103, CompanyID: 1, SectionType: model.SectionCreditAgreement, Title: "Credit Agreement", FilingDate: day(2020, 1, 1)},
			{ID: 200, CompanyID: 2, SectionType: model.SectionIndenture, Title: "Indenture", FilingDate: day(2021, 1, 1)},
		},
	}
}

func newTestSQLite(t *testing.T) seedableStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func newTestMemory(t *testing.T) seedableStore {
	t.Helper()
	return NewMemory()
}

func storeTestSuite(t *testing.T, newStore func(t *testing.T) seedableStore) {
	seeded := func(t *testing.T) seedableStore {
		s := newStore(t)
		st, err := s.Seed(context.Background(), testDataset())
		require.NoError(t, err)
		assert.Equal(t, int64(2), st.Companies)
		assert.Equal(t, int64(4), st.Instruments)
		assert.Equal(t, int64(5), st.Documents)
		return s
	}

	t.Run("GetCompany", func(t *testing.T) {
		s := seeded(t)
		c, err := s.GetCompany(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, "Acme Holdings, Inc.", c.Name)
		assert.Equal(t, "ACME", c.Ticker)
	})

	t.Run("GetCompanyNotFound", func(t *testing.T) {
		s := seeded(t)
		_, err := s.GetCompany(context.Background(), 999)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("ListCompanies", func(t *testing.T) {
		s := seeded(t)
		cs, err := s.ListCompanies(context.Background())
		require.NoError(t, err)
		require.Len(t, cs, 2)
		assert.Equal(t, int64(1), cs[0].ID)
		assert.Equal(t, int64(2), cs[1].ID)
	})

	t.Run("ListInstrumentsActiveOnly", func(t *testing.T) {
		s := seeded(t)
		insts, err := s.ListInstruments(context.Background(), 1)
		require.NoError(t, err)
		require.Len(t, insts, 2)
		assert.Equal(t, int64(10), insts[0].ID)
		assert.Equal(t, int64(12), insts[1].ID)

		notes := insts[0]
		require.NotNil(t, notes.CUSIP)
		assert.Equal(t, "037833EP2", *notes.CUSIP)
		require.NotNil(t, notes.CouponBps)
		assert.Equal(t, 575, *notes.CouponBps)
		require.NotNil(t, notes.MaturityDate)
		assert.Equal(t, "2029-03-15", notes.MaturityDate.Format("2006-01-02"))
		assert.Nil(t, notes.ISIN)
		assert.Nil(t, notes.IssueDate)
		assert.Equal(t, "senior unsecured", notes.Seniority)
		assert.True(t, notes.Active)

		revolver := insts[1]
		require.NotNil(t, revolver.CommitmentAmount)
		assert.Equal(t, int64(50_000_000_000), *revolver.CommitmentAmount)
		assert.Nil(t, revolver.CouponBps)
	})

	t.Run("ListDocumentsOrdering", func(t *testing.T) {
		s := seeded(t)
		docs, err := s.ListDocuments(context.Background(), 1, model.SectionIndenture)
		require.NoError(t, err)
		var ids []int64
		for _, d := range docs {
			ids = append(ids, d.ID)
			assert.Equal(t, model.SectionIndenture, d.SectionType)
		}
		assert.Equal(t, []int64{101, 100, 102}, ids)
		assert.Nil(t, docs[2].FilingDate)

		none, err := s.ListDocuments(context.Background(), 1, model.SectionDebtFootnote)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("CreateLinkIdempotent", func(t *testing.T) {
		s := seeded(t)
		ctx := context.Background()
		link := model.DocumentLink{
			InstrumentID: 10, DocumentID: 100,
			Relationship: model.RelationshipGoverns, Confidence: 0.95, Method: model.MethodIdentifier,
			Evidence:  model.Evidence{RunID: "run-1", TitleExcerpt: "Base Indenture"},
			CreatedBy: "debtlink",
		}
		created, err := s.CreateLink(ctx, link)
		require.NoError(t, err)
		assert.True(t, created)

		created, err = s.CreateLink(ctx, link)
		require.NoError(t, err)
		assert.False(t, created)

		set, err := s.ExistingLinks(ctx, []int64{10, 12})
		require.NoError(t, err)
		assert.Len(t, set, 1)
		assert.True(t, set.Has(model.LinkKey{InstrumentID: 10, DocumentID: 100}))

		empty, err := s.ExistingLinks(ctx, []int64{12})
		require.NoError(t, err)
		assert.Empty(t, empty)

		none, err := s.ExistingLinks(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("SeedTwice", func(t *testing.T) {
		s := seeded(t)
		ds := testDataset()
		ds.Companies[1].Name = "Globex Corporation"
		_, err := s.Seed(context.Background(), ds)
		require.NoError(t, err)

		c, err := s.GetCompany(context.Background(), 2)
		require.NoError(t, err)
		assert.Equal(t, "Globex Corporation", c.Name)
		insts, err := s.ListInstruments(context.Background(), 1)
		require.NoError(t, err)
		assert.Len(t, insts, 2)
	})

	t.Run("DeadLetterQueue", func(t *testing.T) {
		s := seeded(t)
		ctx := context.Background()
		past := time.Now().UTC().Add(-time.Hour)

		require.NoError(t, s.EnqueueDLQ(ctx, resilience.DLQEntry{
			CompanyID: 1, RunID: "run-1", Error: "conn closed", ErrorType: resilience.ErrorTypeTransient,
			MaxRetries: 3, NextRetryAt: past, CreatedAt: past, LastFailedAt: past,
		}))
		require.NoError(t, s.EnqueueDLQ(ctx, resilience.DLQEntry{
			CompanyID: 2, RunID: "run-1", Error: "bad data", ErrorType: resilience.ErrorTypePermanent,
			MaxRetries: 0, NextRetryAt: past, CreatedAt: past, LastFailedAt: past,
		}))

		n, err := s.CountDLQ(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		due, err := s.DequeueDLQ(ctx, resilience.DLQFilter{})
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, int64(1), due[0].CompanyID)
		assert.Equal(t, "conn closed", due[0].Error)

		// Replay fails again: bump the count and push the retry out.
		e := due[0]
		e.RetryCount++
		e.NextRetryAt = time.Now().UTC().Add(time.Hour)
		require.NoError(t, s.EnqueueDLQ(ctx, e))
		due, err = s.DequeueDLQ(ctx, resilience.DLQFilter{ErrorType: resilience.ErrorTypeTransient})
		require.NoError(t, err)
		assert.Empty(t, due)

		require.NoError(t, s.RemoveDLQ(ctx, 1))
		n, err = s.CountDLQ(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}

func TestSQLiteStore(t *testing.T) {
	storeTestSuite(t, newTestSQLite)
}

func TestMemoryStore(t *testing.T) {
	storeTestSuite(t, newTestMemory)
}

func TestSQLiteStore_LinksRoundTrip(t *testing.T) {
	s := newTestSQLite(t).(*SQLiteStore)
	ctx := context.Background()
	_, err := s.Seed(ctx, testDataset())
	require.NoError(t, err)

	_, err = s.CreateLink(ctx, model.DocumentLink{
		InstrumentID: 10, DocumentID: 101,
		Relationship: model.RelationshipSupplements, Confidence: 0.70, Method: model.MethodCouponMaturity,
		Evidence: model.Evidence{
			RunID:   "run-7",
			Signals: []model.MatchSignal{{Kind: "coupon_title", Group: "coupon", Method: model.MethodCouponMaturity, Confidence: 0.35, Location: model.LocationTitle}},
		},
		CreatedBy: "debtlink",
	})
	require.NoError(t, err)

	links, err := s.Links(ctx)
	require.NoError(t, err)
	require.Len(t, links, 1)
	l := links[0]
	assert.Equal(t, model.RelationshipSupplements, l.Relationship)
	assert.Equal(t, model.MethodCouponMaturity, l.Method)
	assert.False(t, l.Verified)
	assert.Equal(t, "run-7", l.Evidence.RunID)
	require.Len(t, l.Evidence.Signals, 1)
	assert.Equal(t, "coupon", l.Evidence.Signals[0].Group)
	assert.False(t, l.CreatedAt.IsZero())
}

func TestSQLiteStore_UnparseableFilingDate(t *testing.T) {
	s := newTestSQLite(t).(*SQLiteStore)
	ctx := context.Background()
	_, err := s.Seed(ctx, testDataset())
	require.NoError(t, err)
	_, err = s.db.ExecContext(ctx, `UPDATE document_sections SET filing_date = 'not-a-date' WHERE id = 100`)
	require.NoError(t, err)

	docs, err := s.ListDocuments(ctx, 1, model.SectionIndenture)
	require.NoError(t, err)
	var doc *model.DocumentSection
	for i := range docs {
		if docs[i].ID == 100 {
			doc = &docs[i]
		}
	}
	require.NotNil(t, doc)
	assert.Nil(t, doc.FilingDate)

	inst := model.DebtInstrument{ID: 10, CompanyID: 1, Name: "Notes", InstrumentType: "senior_notes",
		IssueDate: day(2019, 3, 1), Active: true}
	pair := &matcher.Pair{
		Instrument: &inst,
		Inst:       matcher.NewInstrumentFacts(&inst),
		Document:   doc,
		Doc:        matcher.NewCandidate(doc, 0).Facts,
	}
	assert.Empty(t, matcher.FilingProximityStrategy(model.CategoryBond).Score(pair))
	assert.Empty(t, matcher.FilingWindowStrategy(model.CategoryBond, 30).Score(pair))

	r := matcher.New(matcher.DefaultConfig()).Score(&inst, matcher.NewCandidate(doc, 0))
	for _, sig := range r.Signals {
		assert.NotEqual(t, model.MethodFilingDate, sig.Method)
	}
}

func TestSQLiteStore_ExistingLinksChunks(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	_, err := s.Seed(ctx, testDataset())
	require.NoError(t, err)
	_, err = s.CreateLink(ctx, model.DocumentLink{InstrumentID: 12, DocumentID: 103, Relationship: model.RelationshipGoverns, Confidence: 0.8, Method: model.MethodFacilityTerms})
	require.NoError(t, err)

	ids := make([]int64, 0, 1200)
	for i := int64(1000); i < 2199; i++ {
		ids = append(ids, i)
	}
	ids = append(ids, 12)
	set, err := s.ExistingLinks(ctx, ids)
	require.NoError(t, err)
	assert.True(t, set.Has(model.LinkKey{InstrumentID: 12, DocumentID: 103}))
}

func TestMemoryStore_CreateLinkUnknownRefs(t *testing.T) {
	s := NewMemory()
	_, err := s.Seed(context.Background(), testDataset())
	require.NoError(t, err)

	_, err = s.CreateLink(context.Background(), model.DocumentLink{InstrumentID: 999, DocumentID: 100})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown instrument")

	_, err = s.CreateLink(context.Background(), model.DocumentLink{InstrumentID: 10, DocumentID: 999})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown document")
	assert.Empty(t, s.Links())
}

func TestSortDocuments(t *testing.T) {
	docs := []model.DocumentSection{
		{ID: 3},
		{ID: 2, FilingDate: day(2020, 1, 1)},
		{ID: 1},
		{ID: 5, FilingDate: day(2022, 1, 1)},
		{ID: 4, FilingDate: day(2020, 1, 1)},
	}
	sortDocuments(docs)
	var ids []int64
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []int64{5, 2, 4, 1, 3}, ids)
}
