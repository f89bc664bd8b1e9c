package store

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/sells-group/debtlink/internal/model"
)

// Cached memoizes the company, instrument and document reads a batch makes
// repeatedly (forward and reverse passes over the same company). Link and
// dead-letter calls always reach the backing store so existence checks stay
// fresh. Cached slices are shared and must not be mutated by callers.
type Cached struct {
	Store
	cache *gocache.Cache
}

// NewCached wraps s. A zero ttl disables expiry.
func NewCached(s Store, ttl, cleanup time.Duration) *Cached {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	return &Cached{Store: s, cache: gocache.New(ttl, cleanup)}
}

func (c *Cached) GetCompany(ctx context.Context, id int64) (*model.Company, error) {
	key := fmt.Sprintf("company:%d", id)
	if v, ok := c.cache.Get(key); ok {
		co := v.(model.Company)
		return &co, nil
	}
	co, err := c.Store.GetCompany(ctx, id)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(key, *co)
	return co, nil
}

func (c *Cached) ListInstruments(ctx context.Context, companyID int64) ([]model.DebtInstrument, error) {
	key := fmt.Sprintf("instruments:%d", companyID)
	if v, ok := c.cache.Get(key); ok {
		return v.([]model.DebtInstrument), nil
	}
	out, err := c.Store.ListInstruments(ctx, companyID)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(key, out)
	return out, nil
}

func (c *Cached) ListDocuments(ctx context.Context, companyID int64, sectionType model.SectionType) ([]model.DocumentSection, error) {
	key := fmt.Sprintf("documents:%d:%s", companyID, sectionType)
	if v, ok := c.cache.Get(key); ok {
		return v.([]model.DocumentSection), nil
	}
	out, err := c.Store.ListDocuments(ctx, companyID, sectionType)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(key, out)
	return out, nil
}

// Invalidate drops every cached read for a company.
func (c *Cached) Invalidate(companyID int64) {
	c.cache.Delete(fmt.Sprintf("company:%d", companyID))
	c.cache.Delete(fmt.Sprintf("instruments:%d", companyID))
	for _, t := range []model.SectionType{model.SectionIndenture, model.SectionCreditAgreement, model.SectionDebtFootnote, model.SectionOther} {
		c.cache.Delete(fmt.Sprintf("documents:%d:%s", companyID, t))
	}
}

// Flush drops all cached reads.
func (c *Cached) Flush() { c.cache.Flush() }

// ItemCount reports the number of cached entries.
func (c *Cached) ItemCount() int { return c.cache.ItemCount() }
