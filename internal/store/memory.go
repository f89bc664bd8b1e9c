package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/debtlink/internal/model"
	"github.com/sells-group/debtlink/internal/resilience"
)

// MemoryStore is an in-process Store backed by maps. It serves the fixture
// driver and tests; contents are lost on exit.
type MemoryStore struct {
	mu          sync.RWMutex
	companies   map[int64]model.Company
	instruments map[int64]model.DebtInstrument
	documents   map[int64]model.DocumentSection
	links       []model.DocumentLink
	linkSet     model.LinkSet
	dlq         map[int64]resilience.DLQEntry

	now func() time.Time
}

// NewMemory returns an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		companies:   make(map[int64]model.Company),
		instruments: make(map[int64]model.DebtInstrument),
		documents:   make(map[int64]model.DocumentSection),
		linkSet:     make(model.LinkSet),
		dlq:         make(map[int64]resilience.DLQEntry),
		now:         time.Now,
	}
}

// NewFixture loads a YAML dataset into a MemoryStore.
func NewFixture(path string) (*MemoryStore, error) {
	ds, err := LoadDataset(path)
	if err != nil {
		return nil, err
	}
	m := NewMemory()
	if _, err := m.Seed(context.Background(), ds); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MemoryStore) Migrate(context.Context) error { return nil }
func (m *MemoryStore) Close() error                  { return nil }

// Seed validates ds and upserts it by id. Links already present are kept.
func (m *MemoryStore) Seed(ctx context.Context, ds *Dataset) (SeedStats, error) {
	if err := ds.Validate(); err != nil {
		return SeedStats{}, err
	}
	var st SeedStats
	m.mu.Lock()
	for _, c := range ds.Companies {
		m.companies[c.ID] = c
		st.Companies++
	}
	for _, i := range ds.Instruments {
		m.instruments[i.ID] = i
		st.Instruments++
	}
	for _, d := range ds.Documents {
		m.documents[d.ID] = d
		st.Documents++
	}
	m.mu.Unlock()

	for _, l := range ds.Links {
		created, err := m.CreateLink(ctx, l)
		if err != nil {
			return st, err
		}
		if created {
			st.Links++
		}
	}
	return st, nil
}

func (m *MemoryStore) GetCompany(_ context.Context, id int64) (*model.Company, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.companies[id]
	if !ok {
		return nil, eris.Wrapf(ErrNotFound, "memory: company %d", id)
	}
	return &c, nil
}

func (m *MemoryStore) ListCompanies(context.Context) ([]model.Company, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Company, 0, len(m.companies))
	for _, c := range m.companies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) ListInstruments(_ context.Context, companyID int64) ([]model.DebtInstrument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.DebtInstrument
	for _, i := range m.instruments {
		if i.CompanyID == companyID && i.Active {
			out = append(out, i)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out, nil
}

func (m *MemoryStore) ListDocuments(_ context.Context, companyID int64, sectionType model.SectionType) ([]model.DocumentSection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.DocumentSection
	for _, d := range m.documents {
		if d.CompanyID == companyID && d.SectionType == sectionType {
			out = append(out, d)
		}
	}
	sortDocuments(out)
	return out, nil
}

func (m *MemoryStore) ExistingLinks(_ context.Context, instrumentIDs []int64) (model.LinkSet, error) {
	want := make(map[int64]bool, len(instrumentIDs))
	for _, id := range instrumentIDs {
		want[id] = true
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	set := make(model.LinkSet)
	for k := range m.linkSet {
		if want[k.InstrumentID] {
			set.Add(k)
		}
	}
	return set, nil
}

func (m *MemoryStore) CreateLink(_ context.Context, link model.DocumentLink) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.instruments[link.InstrumentID]; !ok {
		return false, eris.Errorf("memory: create link: unknown instrument %d", link.InstrumentID)
	}
	if _, ok := m.documents[link.DocumentID]; !ok {
		return false, eris.Errorf("memory: create link: unknown document %d", link.DocumentID)
	}
	k := model.LinkKey{InstrumentID: link.InstrumentID, DocumentID: link.DocumentID}
	if m.linkSet.Has(k) {
		return false, nil
	}
	link.ID = int64(len(m.links) + 1)
	if link.CreatedAt.IsZero() {
		link.CreatedAt = m.now().UTC()
	}
	m.links = append(m.links, link)
	m.linkSet.Add(k)
	return true, nil
}

// Links returns a copy of every stored link in insertion order.
func (m *MemoryStore) Links() []model.DocumentLink {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.DocumentLink(nil), m.links...)
}

func (m *MemoryStore) EnqueueDLQ(_ context.Context, e resilience.DLQEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.dlq[e.CompanyID]; ok {
		e.CreatedAt = prev.CreatedAt
	}
	m.dlq[e.CompanyID] = e
	return nil
}

func (m *MemoryStore) DequeueDLQ(_ context.Context, f resilience.DLQFilter) ([]resilience.DLQEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := m.now()
	var out []resilience.DLQEntry
	for _, e := range m.dlq {
		if e.Due(now) && (f.ErrorType == "" || e.ErrorType == f.ErrorType) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].NextRetryAt.Equal(out[j].NextRetryAt) {
			return out[i].NextRetryAt.Before(out[j].NextRetryAt)
		}
		return out[i].CompanyID < out[j].CompanyID
	})
	if limit := dlqLimit(f); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) RemoveDLQ(_ context.Context, companyID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.dlq, companyID)
	return nil
}

func (m *MemoryStore) CountDLQ(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.dlq), nil
}
