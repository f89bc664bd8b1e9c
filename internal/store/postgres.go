package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/debtlink/internal/db"
	"github.com/sells-group/debtlink/internal/model"
	"github.com/sells-group/debtlink/internal/resilience"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const (
	pgGetCompany = `SELECT id, name, ticker, cik FROM companies WHERE id = $1`

	pgListCompanies = `SELECT id, name, ticker, cik FROM companies ORDER BY id`

	pgListInstruments = `SELECT id, company_id, name, instrument_type, cusip, isin, coupon_bps,
	maturity_date, issue_date, seniority, principal_amount, outstanding_amount,
	commitment_amount, issuer_name, issuer_id, is_active
FROM debt_instruments WHERE company_id = $1 AND is_active ORDER BY id`

	pgListDocuments = `SELECT id, company_id, section_type, title, content, filing_date
FROM document_sections WHERE company_id = $1 AND section_type = $2
ORDER BY filing_date DESC NULLS LAST, id`

	pgExistingLinks = `SELECT instrument_id, document_id FROM document_links WHERE instrument_id = ANY($1)`

	pgCreateLink = `INSERT INTO document_links
	(instrument_id, document_id, relationship_type, confidence, match_method, match_evidence, is_verified, created_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (instrument_id, document_id) DO NOTHING`
)

// preparedStatements are prepared on each new connection; they cover the
// per-instrument hot path of a batch run.
var preparedStatements = map[string]string{
	"list_instruments": pgListInstruments,
	"list_documents":   pgListDocuments,
	"existing_links":   pgExistingLinks,
	"create_link":      pgCreateLink,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id     BIGINT PRIMARY KEY,
	name   TEXT NOT NULL,
	ticker TEXT NOT NULL DEFAULT '',
	cik    TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS debt_instruments (
	id                 BIGINT PRIMARY KEY,
	company_id         BIGINT NOT NULL REFERENCES companies(id),
	name               TEXT NOT NULL DEFAULT '',
	instrument_type    TEXT NOT NULL DEFAULT '',
	cusip              TEXT,
	isin               TEXT,
	coupon_bps         INTEGER,
	maturity_date      DATE,
	issue_date         DATE,
	seniority          TEXT NOT NULL DEFAULT '',
	principal_amount   BIGINT,
	outstanding_amount BIGINT,
	commitment_amount  BIGINT,
	issuer_name        TEXT NOT NULL DEFAULT '',
	issuer_id          BIGINT,
	is_active          BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS document_sections (
	id           BIGINT PRIMARY KEY,
	company_id   BIGINT NOT NULL REFERENCES companies(id),
	section_type TEXT NOT NULL,
	title        TEXT NOT NULL DEFAULT '',
	content      TEXT NOT NULL DEFAULT '',
	filing_date  DATE
);

CREATE TABLE IF NOT EXISTS document_links (
	id                BIGSERIAL PRIMARY KEY,
	instrument_id     BIGINT NOT NULL REFERENCES debt_instruments(id),
	document_id       BIGINT NOT NULL REFERENCES document_sections(id),
	relationship_type TEXT NOT NULL,
	confidence        DOUBLE PRECISION NOT NULL CHECK (confidence >= 0 AND confidence <= 1),
	match_method      TEXT NOT NULL,
	match_evidence    JSONB NOT NULL DEFAULT '{}',
	is_verified       BOOLEAN NOT NULL DEFAULT FALSE,
	created_by        TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (instrument_id, document_id)
);

CREATE INDEX IF NOT EXISTS idx_debt_instruments_company ON debt_instruments(company_id) WHERE is_active;
CREATE INDEX IF NOT EXISTS idx_document_sections_company_type ON document_sections(company_id, section_type, filing_date DESC);
CREATE INDEX IF NOT EXISTS idx_document_links_document ON document_links(document_id);

CREATE TABLE IF NOT EXISTS dead_letter_queue (
	company_id     BIGINT PRIMARY KEY REFERENCES companies(id),
	run_id         TEXT NOT NULL DEFAULT '',
	error          TEXT NOT NULL,
	error_type     TEXT NOT NULL DEFAULT 'transient',
	retry_count    INTEGER NOT NULL DEFAULT 0,
	max_retries    INTEGER NOT NULL DEFAULT 3,
	next_retry_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_failed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_dlq_next_retry ON dead_letter_queue(next_retry_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) GetCompany(ctx context.Context, id int64) (*model.Company, error) {
	var c model.Company
	err := s.pool.QueryRow(ctx, pgGetCompany, id).Scan(&c.ID, &c.Name, &c.Ticker, &c.CIK)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "postgres: company %d", id)
		}
		return nil, eris.Wrapf(err, "postgres: get company %d", id)
	}
	return &c, nil
}

func (s *PostgresStore) ListCompanies(ctx context.Context) ([]model.Company, error) {
	rows, err := s.pool.Query(ctx, pgListCompanies)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list companies")
	}
	defer rows.Close()

	var out []model.Company
	for rows.Next() {
		var c model.Company
		if err := rows.Scan(&c.ID, &c.Name, &c.Ticker, &c.CIK); err != nil {
			return nil, eris.Wrap(err, "postgres: scan company")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list companies iterate")
}

func (s *PostgresStore) ListInstruments(ctx context.Context, companyID int64) ([]model.DebtInstrument, error) {
	rows, err := s.pool.Query(ctx, pgListInstruments, companyID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list instruments for company %d", companyID)
	}
	defer rows.Close()

	var out []model.DebtInstrument
	for rows.Next() {
		var i model.DebtInstrument
		if err := rows.Scan(&i.ID, &i.CompanyID, &i.Name, &i.InstrumentType, &i.CUSIP, &i.ISIN,
			&i.CouponBps, &i.MaturityDate, &i.IssueDate, &i.Seniority, &i.PrincipalAmount,
			&i.OutstandingAmount, &i.CommitmentAmount, &i.IssuerName, &i.IssuerID, &i.Active); err != nil {
			return nil, eris.Wrap(err, "postgres: scan instrument")
		}
		out = append(out, i)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list instruments iterate")
}

func (s *PostgresStore) ListDocuments(ctx context.Context, companyID int64, sectionType model.SectionType) ([]model.DocumentSection, error) {
	rows, err := s.pool.Query(ctx, pgListDocuments, companyID, string(sectionType))
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list %s documents for company %d", sectionType, companyID)
	}
	defer rows.Close()

	var out []model.DocumentSection
	for rows.Next() {
		var d model.DocumentSection
		var section string
		if err := rows.Scan(&d.ID, &d.CompanyID, &section, &d.Title, &d.Content, &d.FilingDate); err != nil {
			return nil, eris.Wrap(err, "postgres: scan document")
		}
		d.SectionType = model.SectionType(section)
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list documents iterate")
}

func (s *PostgresStore) ExistingLinks(ctx context.Context, instrumentIDs []int64) (model.LinkSet, error) {
	set := make(model.LinkSet)
	if len(instrumentIDs) == 0 {
		return set, nil
	}
	rows, err := s.pool.Query(ctx, pgExistingLinks, instrumentIDs)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: existing links")
	}
	defer rows.Close()

	for rows.Next() {
		var k model.LinkKey
		if err := rows.Scan(&k.InstrumentID, &k.DocumentID); err != nil {
			return nil, eris.Wrap(err, "postgres: scan link")
		}
		set.Add(k)
	}
	return set, eris.Wrap(rows.Err(), "postgres: existing links iterate")
}

func (s *PostgresStore) CreateLink(ctx context.Context, link model.DocumentLink) (bool, error) {
	evidence, err := json.Marshal(link.Evidence)
	if err != nil {
		return false, eris.Wrap(err, "postgres: marshal evidence")
	}
	createdAt := link.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	tag, err := s.pool.Exec(ctx, pgCreateLink,
		link.InstrumentID, link.DocumentID, string(link.Relationship), link.Confidence,
		string(link.Method), evidence, link.Verified, link.CreatedBy, createdAt,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: create link %d/%d", link.InstrumentID, link.DocumentID)
	}
	return tag.RowsAffected() == 1, nil
}

// Dead letter queue methods

func (s *PostgresStore) EnqueueDLQ(ctx context.Context, e resilience.DLQEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO dead_letter_queue
		 (company_id, run_id, error, error_type, retry_count, max_retries, next_retry_at, created_at, last_failed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (company_id) DO UPDATE SET
		   run_id = $2, error = $3, error_type = $4, retry_count = $5, max_retries = $6,
		   next_retry_at = $7, last_failed_at = $9`,
		e.CompanyID, e.RunID, e.Error, e.ErrorType, e.RetryCount, e.MaxRetries,
		e.NextRetryAt, e.CreatedAt, e.LastFailedAt,
	)
	return eris.Wrapf(err, "postgres: enqueue dlq company %d", e.CompanyID)
}

func (s *PostgresStore) DequeueDLQ(ctx context.Context, f resilience.DLQFilter) ([]resilience.DLQEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT company_id, run_id, error, error_type, retry_count, max_retries, next_retry_at, created_at, last_failed_at
		 FROM dead_letter_queue
		 WHERE next_retry_at <= now() AND retry_count < max_retries AND ($1 = '' OR error_type = $1)
		 ORDER BY next_retry_at, company_id
		 LIMIT $2`,
		f.ErrorType, dlqLimit(f),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: dequeue dlq")
	}
	defer rows.Close()

	var out []resilience.DLQEntry
	for rows.Next() {
		var e resilience.DLQEntry
		if err := rows.Scan(&e.CompanyID, &e.RunID, &e.Error, &e.ErrorType, &e.RetryCount,
			&e.MaxRetries, &e.NextRetryAt, &e.CreatedAt, &e.LastFailedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan dlq entry")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: dequeue dlq iterate")
}

func (s *PostgresStore) RemoveDLQ(ctx context.Context, companyID int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM dead_letter_queue WHERE company_id = $1`, companyID)
	return eris.Wrapf(err, "postgres: remove dlq company %d", companyID)
}

func (s *PostgresStore) CountDLQ(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM dead_letter_queue`).Scan(&count)
	return count, eris.Wrap(err, "postgres: count dlq")
}

// Seed upserts a dataset by primary key. Existing links are left alone.
func (s *PostgresStore) Seed(ctx context.Context, ds *Dataset) (SeedStats, error) {
	var st SeedStats
	var err error

	companies := make([][]any, len(ds.Companies))
	for i, c := range ds.Companies {
		companies[i] = []any{c.ID, c.Name, c.Ticker, c.CIK}
	}
	if st.Companies, err = db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "companies",
		Columns:      []string{"id", "name", "ticker", "cik"},
		ConflictKeys: []string{"id"},
	}, companies); err != nil {
		return st, eris.Wrap(err, "postgres: seed companies")
	}

	instruments := make([][]any, len(ds.Instruments))
	for n, i := range ds.Instruments {
		instruments[n] = []any{i.ID, i.CompanyID, i.Name, i.InstrumentType, i.CUSIP, i.ISIN,
			i.CouponBps, dateOnly(i.MaturityDate), dateOnly(i.IssueDate), i.Seniority, i.PrincipalAmount,
			i.OutstandingAmount, i.CommitmentAmount, i.IssuerName, i.IssuerID, i.Active}
	}
	if st.Instruments, err = db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table: "debt_instruments",
		Columns: []string{"id", "company_id", "name", "instrument_type", "cusip", "isin",
			"coupon_bps", "maturity_date", "issue_date", "seniority", "principal_amount",
			"outstanding_amount", "commitment_amount", "issuer_name", "issuer_id", "is_active"},
		ConflictKeys: []string{"id"},
	}, instruments); err != nil {
		return st, eris.Wrap(err, "postgres: seed instruments")
	}

	documents := make([][]any, len(ds.Documents))
	for i, d := range ds.Documents {
		documents[i] = []any{d.ID, d.CompanyID, string(d.SectionType), d.Title, d.Content, dateOnly(d.FilingDate)}
	}
	if st.Documents, err = db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "document_sections",
		Columns:      []string{"id", "company_id", "section_type", "title", "content", "filing_date"},
		ConflictKeys: []string{"id"},
	}, documents); err != nil {
		return st, eris.Wrap(err, "postgres: seed documents")
	}

	links := make([][]any, len(ds.Links))
	for i, l := range ds.Links {
		evidence, err := json.Marshal(l.Evidence)
		if err != nil {
			return st, eris.Wrap(err, "postgres: marshal seed evidence")
		}
		createdAt := l.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		links[i] = []any{l.InstrumentID, l.DocumentID, string(l.Relationship), l.Confidence,
			string(l.Method), evidence, l.Verified, l.CreatedBy, createdAt}
	}
	if st.Links, err = db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table: "document_links",
		Columns: []string{"instrument_id", "document_id", "relationship_type", "confidence",
			"match_method", "match_evidence", "is_verified", "created_by", "created_at"},
		ConflictKeys: []string{"instrument_id", "document_id"},
		UpdateCols:   []string{},
	}, links); err != nil {
		return st, eris.Wrap(err, "postgres: seed links")
	}

	return st, nil
}
