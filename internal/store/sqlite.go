package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/debtlink/internal/model"
	"github.com/sells-group/debtlink/internal/resilience"
)

// Dates are stored as ISO text. Timestamps use a fixed-width layout so they
// compare correctly as strings.
const (
	sqliteDateFormat = "2006-01-02"
	sqliteTimeFormat = "2006-01-02 15:04:05.000000000"
)

// sqliteMaxVars keeps IN lists under SQLite's bound-parameter limit.
const sqliteMaxVars = 500

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id     INTEGER PRIMARY KEY,
	name   TEXT NOT NULL,
	ticker TEXT NOT NULL DEFAULT '',
	cik    TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS debt_instruments (
	id                 INTEGER PRIMARY KEY,
	company_id         INTEGER NOT NULL REFERENCES companies(id),
	name               TEXT NOT NULL DEFAULT '',
	instrument_type    TEXT NOT NULL DEFAULT '',
	cusip              TEXT,
	isin               TEXT,
	coupon_bps         INTEGER,
	maturity_date      TEXT,
	issue_date         TEXT,
	seniority          TEXT NOT NULL DEFAULT '',
	principal_amount   INTEGER,
	outstanding_amount INTEGER,
	commitment_amount  INTEGER,
	issuer_name        TEXT NOT NULL DEFAULT '',
	issuer_id          INTEGER,
	is_active          INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS document_sections (
	id           INTEGER PRIMARY KEY,
	company_id   INTEGER NOT NULL REFERENCES companies(id),
	section_type TEXT NOT NULL,
	title        TEXT NOT NULL DEFAULT '',
	content      TEXT NOT NULL DEFAULT '',
	filing_date  TEXT
);

CREATE TABLE IF NOT EXISTS document_links (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	instrument_id     INTEGER NOT NULL REFERENCES debt_instruments(id),
	document_id       INTEGER NOT NULL REFERENCES document_sections(id),
	relationship_type TEXT NOT NULL,
	confidence        REAL NOT NULL CHECK (confidence >= 0 AND confidence <= 1),
	match_method      TEXT NOT NULL,
	match_evidence    TEXT NOT NULL DEFAULT '{}',
	is_verified       INTEGER NOT NULL DEFAULT 0,
	created_by        TEXT NOT NULL DEFAULT '',
	created_at        TEXT NOT NULL,
	UNIQUE (instrument_id, document_id)
);

CREATE INDEX IF NOT EXISTS idx_debt_instruments_company ON debt_instruments(company_id);
CREATE INDEX IF NOT EXISTS idx_document_sections_company_type ON document_sections(company_id, section_type);
CREATE INDEX IF NOT EXISTS idx_document_links_document ON document_links(document_id);

CREATE TABLE IF NOT EXISTS dead_letter_queue (
	company_id     INTEGER PRIMARY KEY REFERENCES companies(id),
	run_id         TEXT NOT NULL DEFAULT '',
	error          TEXT NOT NULL,
	error_type     TEXT NOT NULL DEFAULT 'transient',
	retry_count    INTEGER NOT NULL DEFAULT 0,
	max_retries    INTEGER NOT NULL DEFAULT 3,
	next_retry_at  TEXT NOT NULL,
	created_at     TEXT NOT NULL,
	last_failed_at TEXT NOT NULL
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetCompany(ctx context.Context, id int64) (*model.Company, error) {
	var c model.Company
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, ticker, cik FROM companies WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.Ticker, &c.CIK)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: company %d", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get company %d", id)
	}
	return &c, nil
}

func (s *SQLiteStore) ListCompanies(ctx context.Context) ([]model.Company, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, ticker, cik FROM companies ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list companies")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Company
	for rows.Next() {
		var c model.Company
		if err := rows.Scan(&c.ID, &c.Name, &c.Ticker, &c.CIK); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan company")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list companies iterate")
}

func (s *SQLiteStore) ListInstruments(ctx context.Context, companyID int64) ([]model.DebtInstrument, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, company_id, name, instrument_type, cusip, isin, coupon_bps, maturity_date,
		        issue_date, seniority, principal_amount, outstanding_amount, commitment_amount,
		        issuer_name, issuer_id, is_active
		 FROM debt_instruments WHERE company_id = ? AND is_active = 1 ORDER BY id`, companyID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list instruments for company %d", companyID)
	}
	defer rows.Close() //nolint:errcheck

	var out []model.DebtInstrument
	for rows.Next() {
		var (
			i                                  model.DebtInstrument
			cusip, isin, maturity, issue       sql.NullString
			coupon                             sql.NullInt64
			principal, outstanding, commitment sql.NullInt64
			issuerID                           sql.NullInt64
		)
		if err := rows.Scan(&i.ID, &i.CompanyID, &i.Name, &i.InstrumentType, &cusip, &isin, &coupon,
			&maturity, &issue, &i.Seniority, &principal, &outstanding, &commitment,
			&i.IssuerName, &issuerID, &i.Active); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan instrument")
		}
		i.CUSIP = nullString(cusip)
		i.ISIN = nullString(isin)
		if coupon.Valid {
			v := int(coupon.Int64)
			i.CouponBps = &v
		}
		i.MaturityDate = parseDate(maturity)
		i.IssueDate = parseDate(issue)
		i.PrincipalAmount = nullInt(principal)
		i.OutstandingAmount = nullInt(outstanding)
		i.CommitmentAmount = nullInt(commitment)
		i.IssuerID = nullInt(issuerID)
		out = append(out, i)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list instruments iterate")
}

func (s *SQLiteStore) ListDocuments(ctx context.Context, companyID int64, sectionType model.SectionType) ([]model.DocumentSection, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, company_id, section_type, title, content, filing_date
		 FROM document_sections WHERE company_id = ? AND section_type = ?
		 ORDER BY filing_date IS NULL, filing_date DESC, id`, companyID, string(sectionType))
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list %s documents for company %d", sectionType, companyID)
	}
	defer rows.Close() //nolint:errcheck

	var out []model.DocumentSection
	for rows.Next() {
		var d model.DocumentSection
		var section string
		var filed sql.NullString
		if err := rows.Scan(&d.ID, &d.CompanyID, &section, &d.Title, &d.Content, &filed); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan document")
		}
		d.SectionType = model.SectionType(section)
		d.FilingDate = parseDate(filed)
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list documents iterate")
}

func (s *SQLiteStore) ExistingLinks(ctx context.Context, instrumentIDs []int64) (model.LinkSet, error) {
	set := make(model.LinkSet)
	for start := 0; start < len(instrumentIDs); start += sqliteMaxVars {
		chunk := instrumentIDs[start:min(start+sqliteMaxVars, len(instrumentIDs))]
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")

		rows, err := s.db.QueryContext(ctx,
			`SELECT instrument_id, document_id FROM document_links WHERE instrument_id IN (`+placeholders+`)`,
			args...)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: existing links")
		}
		for rows.Next() {
			var k model.LinkKey
			if err := rows.Scan(&k.InstrumentID, &k.DocumentID); err != nil {
				rows.Close() //nolint:errcheck
				return nil, eris.Wrap(err, "sqlite: scan link")
			}
			set.Add(k)
		}
		err = rows.Err()
		rows.Close() //nolint:errcheck
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: existing links iterate")
		}
	}
	return set, nil
}

func (s *SQLiteStore) CreateLink(ctx context.Context, link model.DocumentLink) (bool, error) {
	return s.insertLink(ctx, s.db, link)
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) insertLink(ctx context.Context, ex execer, link model.DocumentLink) (bool, error) {
	evidence, err := json.Marshal(link.Evidence)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: marshal evidence")
	}
	createdAt := link.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	res, err := ex.ExecContext(ctx,
		`INSERT OR IGNORE INTO document_links
		 (instrument_id, document_id, relationship_type, confidence, match_method, match_evidence, is_verified, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		link.InstrumentID, link.DocumentID, string(link.Relationship), link.Confidence,
		string(link.Method), string(evidence), link.Verified, link.CreatedBy, formatTime(createdAt),
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: create link %d/%d", link.InstrumentID, link.DocumentID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n == 1, nil
}

// Links returns every stored link ordered by id.
func (s *SQLiteStore) Links(ctx context.Context) ([]model.DocumentLink, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, instrument_id, document_id, relationship_type, confidence, match_method,
		        match_evidence, is_verified, created_by, created_at
		 FROM document_links ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list links")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.DocumentLink
	for rows.Next() {
		var l model.DocumentLink
		var rel, method, evidence, created string
		if err := rows.Scan(&l.ID, &l.InstrumentID, &l.DocumentID, &rel, &l.Confidence, &method,
			&evidence, &l.Verified, &l.CreatedBy, &created); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan link")
		}
		l.Relationship = model.Relationship(rel)
		l.Method = model.Method(method)
		if err := json.Unmarshal([]byte(evidence), &l.Evidence); err != nil {
			return nil, eris.Wrapf(err, "sqlite: unmarshal evidence for link %d", l.ID)
		}
		l.CreatedAt = parseTime(created)
		out = append(out, l)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list links iterate")
}

// Dead letter queue methods

func (s *SQLiteStore) EnqueueDLQ(ctx context.Context, e resilience.DLQEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dead_letter_queue
		 (company_id, run_id, error, error_type, retry_count, max_retries, next_retry_at, created_at, last_failed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (company_id) DO UPDATE SET
		   run_id = excluded.run_id, error = excluded.error, error_type = excluded.error_type,
		   retry_count = excluded.retry_count, max_retries = excluded.max_retries,
		   next_retry_at = excluded.next_retry_at, last_failed_at = excluded.last_failed_at`,
		e.CompanyID, e.RunID, e.Error, e.ErrorType, e.RetryCount, e.MaxRetries,
		formatTime(e.NextRetryAt), formatTime(e.CreatedAt), formatTime(e.LastFailedAt),
	)
	return eris.Wrapf(err, "sqlite: enqueue dlq company %d", e.CompanyID)
}

func (s *SQLiteStore) DequeueDLQ(ctx context.Context, f resilience.DLQFilter) ([]resilience.DLQEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT company_id, run_id, error, error_type, retry_count, max_retries, next_retry_at, created_at, last_failed_at
		 FROM dead_letter_queue
		 WHERE next_retry_at <= ? AND retry_count < max_retries AND (? = '' OR error_type = ?)
		 ORDER BY next_retry_at, company_id
		 LIMIT ?`,
		formatTime(s.now()), f.ErrorType, f.ErrorType, dlqLimit(f))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: dequeue dlq")
	}
	defer rows.Close() //nolint:errcheck

	var out []resilience.DLQEntry
	for rows.Next() {
		var e resilience.DLQEntry
		var next, created, last string
		if err := rows.Scan(&e.CompanyID, &e.RunID, &e.Error, &e.ErrorType, &e.RetryCount,
			&e.MaxRetries, &next, &created, &last); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan dlq entry")
		}
		e.NextRetryAt, e.CreatedAt, e.LastFailedAt = parseTime(next), parseTime(created), parseTime(last)
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: dequeue dlq iterate")
}

func (s *SQLiteStore) RemoveDLQ(ctx context.Context, companyID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM dead_letter_queue WHERE company_id = ?`, companyID)
	return eris.Wrapf(err, "sqlite: remove dlq company %d", companyID)
}

func (s *SQLiteStore) CountDLQ(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dead_letter_queue`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count dlq")
}

// Seed upserts a dataset by primary key in one transaction. Existing links
// are left alone.
func (s *SQLiteStore) Seed(ctx context.Context, ds *Dataset) (SeedStats, error) {
	var st SeedStats
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return st, eris.Wrap(err, "sqlite: seed begin")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, c := range ds.Companies {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO companies (id, name, ticker, cik) VALUES (?, ?, ?, ?)
			 ON CONFLICT (id) DO UPDATE SET name = excluded.name, ticker = excluded.ticker, cik = excluded.cik`,
			c.ID, c.Name, c.Ticker, c.CIK); err != nil {
			return st, eris.Wrapf(err, "sqlite: seed company %d", c.ID)
		}
		st.Companies++
	}

	for _, i := range ds.Instruments {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO debt_instruments (id, company_id, name, instrument_type, cusip, isin, coupon_bps,
			   maturity_date, issue_date, seniority, principal_amount, outstanding_amount,
			   commitment_amount, issuer_name, issuer_id, is_active)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (id) DO UPDATE SET company_id = excluded.company_id, name = excluded.name,
			   instrument_type = excluded.instrument_type, cusip = excluded.cusip, isin = excluded.isin,
			   coupon_bps = excluded.coupon_bps, maturity_date = excluded.maturity_date,
			   issue_date = excluded.issue_date, seniority = excluded.seniority,
			   principal_amount = excluded.principal_amount, outstanding_amount = excluded.outstanding_amount,
			   commitment_amount = excluded.commitment_amount, issuer_name = excluded.issuer_name,
			   issuer_id = excluded.issuer_id, is_active = excluded.is_active`,
			i.ID, i.CompanyID, i.Name, i.InstrumentType, deref(i.CUSIP), deref(i.ISIN), couponArg(i.CouponBps),
			formatDate(i.MaturityDate), formatDate(i.IssueDate), i.Seniority, deref(i.PrincipalAmount),
			deref(i.OutstandingAmount), deref(i.CommitmentAmount), i.IssuerName, deref(i.IssuerID), i.Active); err != nil {
			return st, eris.Wrapf(err, "sqlite: seed instrument %d", i.ID)
		}
		st.Instruments++
	}

	for _, d := range ds.Documents {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO document_sections (id, company_id, section_type, title, content, filing_date)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT (id) DO UPDATE SET company_id = excluded.company_id, section_type = excluded.section_type,
			   title = excluded.title, content = excluded.content, filing_date = excluded.filing_date`,
			d.ID, d.CompanyID, string(d.SectionType), d.Title, d.Content, formatDate(d.FilingDate)); err != nil {
			return st, eris.Wrapf(err, "sqlite: seed document %d", d.ID)
		}
		st.Documents++
	}

	for _, l := range ds.Links {
		created, err := s.insertLink(ctx, tx, l)
		if err != nil {
			return st, err
		}
		if created {
			st.Links++
		}
	}

	return st, eris.Wrap(tx.Commit(), "sqlite: seed commit")
}

// deref turns an optional field into a bind argument, nil for NULL.
func deref[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func couponArg(p *int) any {
	if p == nil {
		return nil
	}
	return int64(*p)
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

// parseDate reads an ISO date. Unparseable values are treated as unknown.
func parseDate(v sql.NullString) *time.Time {
	if !v.Valid || v.String == "" {
		return nil
	}
	raw := v.String
	if len(raw) > len(sqliteDateFormat) {
		raw = raw[:len(sqliteDateFormat)]
	}
	t, err := time.Parse(sqliteDateFormat, raw)
	if err != nil {
		return nil
	}
	return &t
}

func formatDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(sqliteDateFormat)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeFormat)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(sqliteTimeFormat, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
