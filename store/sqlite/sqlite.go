/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements every persistence interface of the engine using SQLite. The
  postgres package mirrors it with pgx for server deployments; only the SQL
  dialect differs.

INTERFACES IMPLEMENTED:
  contract.Store:   Contract records
  fixedterm.Store:  Period ledgers (full rewrite per contract)
  benefit.TxStore:  Benefit assignments, with WithTx for atomic changes
  params.Store:     Annual parameters
  generic.AuditLog: Append-only audit entries

KEY TABLES:
  contracts:           One row per contract; allowances and onboarding as JSON
  contract_periods:    Fixed-term ledger rows
  benefit_assignments: Provider windows per (kind, employer, location)
  annual_parameters:   Year-scoped constants
  audit_log:           Who did what when

INDEXES:
  - idx_contracts_document_active: (document type, number) unique among
    non-archived contracts
  - idx_periods_contract_sequence: one row per sequence number
  - idx_periods_single_current: at most one current period per contract
  - idx_assignments_single_active: at most one active assignment per key
  - idx_parameters_type_year_active: (type, year) unique among active rows

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. With PostgreSQL the database handles
  this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/contracts.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - store/codec.go: shared row encoding
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/warp/contract-engine/benefit"
	"github.com/warp/contract-engine/contract"
	"github.com/warp/contract-engine/fixedterm"
	"github.com/warp/contract-engine/generic"
	"github.com/warp/contract-engine/params"
	"github.com/warp/contract-engine/store"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A second connection to ":memory:" would see an empty database.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS contracts (
		id TEXT PRIMARY KEY,
		document_type TEXT NOT NULL DEFAULT '',
		document_number TEXT NOT NULL DEFAULT '',
		company_id TEXT NOT NULL DEFAULT '',
		location_id TEXT NOT NULL DEFAULT '',
		contract_type TEXT NOT NULL DEFAULT '',
		start_date TEXT NOT NULL DEFAULT '',
		end_date TEXT,
		approval_status TEXT NOT NULL DEFAULT 'draft',
		approved_by TEXT NOT NULL DEFAULT '',
		approved_at TEXT,
		archived_at TEXT,
		annulment_reason TEXT NOT NULL DEFAULT '',
		currency TEXT NOT NULL DEFAULT 'COP',
		base_salary TEXT NOT NULL DEFAULT '0',
		transport_subsidy TEXT NOT NULL DEFAULT '0',
		allowances_json TEXT NOT NULL DEFAULT '[]',
		onboarding_json TEXT NOT NULL DEFAULT '{}',
		created_by TEXT NOT NULL,
		updated_by TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_contracts_document_active
		ON contracts(document_type, document_number)
		WHERE archived_at IS NULL AND document_type <> '' AND document_number <> '';
	CREATE INDEX IF NOT EXISTS idx_contracts_company
		ON contracts(company_id);

	CREATE TABLE IF NOT EXISTS contract_periods (
		id TEXT PRIMARY KEY,
		contract_id TEXT NOT NULL REFERENCES contracts(id),
		sequence INTEGER NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		kind TEXT NOT NULL,
		is_current BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_periods_contract_sequence
		ON contract_periods(contract_id, sequence);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_periods_single_current
		ON contract_periods(contract_id) WHERE is_current;

	CREATE TABLE IF NOT EXISTS benefit_assignments (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		employer_id TEXT NOT NULL,
		location_id TEXT NOT NULL DEFAULT '',
		provider_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT,
		state TEXT NOT NULL,
		created_by TEXT NOT NULL,
		updated_by TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_assignments_key
		ON benefit_assignments(kind, employer_id, location_id, start_date);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_assignments_single_active
		ON benefit_assignments(kind, employer_id, location_id) WHERE state = 'active';

	CREATE TABLE IF NOT EXISTS annual_parameters (
		id TEXT PRIMARY KEY,
		param_type TEXT NOT NULL,
		year INTEGER NOT NULL,
		value TEXT NOT NULL,
		archived BOOLEAN NOT NULL DEFAULT FALSE,
		created_by TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_parameters_type_year_active
		ON annual_parameters(param_type, year) WHERE NOT archived;

	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		occurred_at TEXT NOT NULL,
		actor TEXT NOT NULL,
		action TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		payload_json TEXT NOT NULL DEFAULT '{}'
	);

	CREATE INDEX IF NOT EXISTS idx_audit_entity
		ON audit_log(entity_id, occurred_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// CONTRACTS (contract.Store interface)
// =============================================================================

const contractColumns = `
	id, document_type, document_number, company_id, location_id, contract_type,
	start_date, end_date, approval_status, approved_by, approved_at, archived_at,
	annulment_reason, currency, base_salary, transport_subsidy, allowances_json,
	onboarding_json, created_by, updated_by, created_at, updated_at`

func (s *Store) GetContract(ctx context.Context, id string) (*contract.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+contractColumns+" FROM contracts WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query contract: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, &generic.NotFoundError{Entity: "contract", Key: id}
	}
	c, err := scanContract(rows)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) ListContracts(ctx context.Context, filter contract.ListFilter) ([]contract.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		where []string
		args  []any
	)
	if filter.CompanyID != "" {
		where = append(where, "company_id = ?")
		args = append(args, filter.CompanyID)
	}
	if filter.Document != nil {
		where = append(where, "document_type = ? AND document_number = ?")
		args = append(args, filter.Document.Type, filter.Document.Number)
	}
	if !filter.IncludeArchived {
		where = append(where, "archived_at IS NULL")
	}

	query := "SELECT " + contractColumns + " FROM contracts"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query contracts: %w", err)
	}
	defer rows.Close()

	var result []contract.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (s *Store) InsertContract(ctx context.Context, c contract.Contract) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	args, err := contractArgs(c)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO contracts (`+contractColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, args...)
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.NewValidationError("document_number", "already used by another active contract")
		}
		return fmt.Errorf("failed to insert contract: %w", err)
	}
	return nil
}

func (s *Store) UpdateContract(ctx context.Context, c contract.Contract) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	args, err := contractArgs(c)
	if err != nil {
		return err
	}
	// id moves from first to last for the WHERE clause
	args = append(args[1:], args[0])

	res, err := s.db.ExecContext(ctx, `
		UPDATE contracts SET
			document_type = ?, document_number = ?, company_id = ?, location_id = ?,
			contract_type = ?, start_date = ?, end_date = ?, approval_status = ?,
			approved_by = ?, approved_at = ?, archived_at = ?, annulment_reason = ?,
			currency = ?, base_salary = ?, transport_subsidy = ?, allowances_json = ?,
			onboarding_json = ?, created_by = ?, updated_by = ?, created_at = ?, updated_at = ?
		WHERE id = ?
	`, args...)
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.NewValidationError("document_number", "already used by another active contract")
		}
		return fmt.Errorf("failed to update contract: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &generic.NotFoundError{Entity: "contract", Key: c.ID}
	}
	return nil
}

func contractArgs(c contract.Contract) ([]any, error) {
	allowances, err := store.EncodeAllowances(c.Allowances)
	if err != nil {
		return nil, err
	}
	onboarding, err := store.EncodeOnboarding(c.Onboarding)
	if err != nil {
		return nil, err
	}
	currency := c.BaseSalary.Currency
	if currency == "" {
		currency = generic.DefaultCurrency
	}
	return []any{
		c.ID,
		c.Document.Type,
		c.Document.Number,
		c.CompanyID,
		c.LocationID,
		string(c.Type),
		store.DateString(c.StartDate),
		store.NullDate(c.EndDate),
		string(c.ApprovalStatus),
		string(c.ApprovedBy),
		nullTime(c.ApprovedAt),
		nullTime(c.ArchivedAt),
		c.AnnulmentReason,
		string(currency),
		c.BaseSalary.Amount.String(),
		c.TransportSubsidy.Amount.String(),
		allowances,
		onboarding,
		string(c.CreatedBy),
		string(c.UpdatedBy),
		formatTime(c.CreatedAt),
		formatTime(c.UpdatedAt),
	}, nil
}

func scanContract(rows *sql.Rows) (contract.Contract, error) {
	var (
		c                              contract.Contract
		contractType, status, currency string
		startDate                      string
		endDate, approvedAt, archived  sql.NullString
		salary, subsidy                string
		allowances, onboarding         string
		approvedBy, createdBy          string
		updatedBy, createdAt           string
		updatedAt                      string
	)

	err := rows.Scan(
		&c.ID, &c.Document.Type, &c.Document.Number, &c.CompanyID, &c.LocationID, &contractType,
		&startDate, &endDate, &status, &approvedBy, &approvedAt, &archived,
		&c.AnnulmentReason, &currency, &salary, &subsidy, &allowances,
		&onboarding, &createdBy, &updatedBy, &createdAt, &updatedAt,
	)
	if err != nil {
		return c, fmt.Errorf("failed to scan contract: %w", err)
	}

	c.Type = contract.Type(contractType)
	c.ApprovalStatus = contract.ApprovalStatus(status)
	c.ApprovedBy = generic.Actor(approvedBy)
	c.CreatedBy = generic.Actor(createdBy)
	c.UpdatedBy = generic.Actor(updatedBy)
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	c.ApprovedAt = parseNullTime(approvedAt)
	c.ArchivedAt = parseNullTime(archived)

	if c.StartDate, err = store.ParseDate(startDate); err != nil {
		return c, err
	}
	if c.EndDate, err = store.ParseNullDate(endDate); err != nil {
		return c, err
	}
	amount, err := store.ParseDecimal(salary)
	if err != nil {
		return c, err
	}
	c.BaseSalary = generic.NewMoney(amount, generic.Currency(currency))
	amount, err = store.ParseDecimal(subsidy)
	if err != nil {
		return c, err
	}
	c.TransportSubsidy = generic.NewMoney(amount, generic.Currency(currency))
	if c.Allowances, err = store.DecodeAllowances(allowances); err != nil {
		return c, err
	}
	if c.Onboarding, err = store.DecodeOnboarding(onboarding); err != nil {
		return c, err
	}
	return c, nil
}

// =============================================================================
// PERIODS (fixedterm.Store interface)
// =============================================================================

func (s *Store) ListPeriods(ctx context.Context, contractID string) ([]fixedterm.Period, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, contract_id, sequence, start_date, end_date, kind, is_current
		FROM contract_periods
		WHERE contract_id = ?
		ORDER BY sequence ASC
	`, contractID)
	if err != nil {
		return nil, fmt.Errorf("failed to query periods: %w", err)
	}
	defer rows.Close()

	var result []fixedterm.Period
	for rows.Next() {
		var (
			p          fixedterm.Period
			start, end string
			kind       string
		)
		if err := rows.Scan(&p.ID, &p.ContractID, &p.Sequence, &start, &end, &kind, &p.Current); err != nil {
			return nil, fmt.Errorf("failed to scan period: %w", err)
		}
		p.Kind = fixedterm.Kind(kind)
		if p.Start, err = store.ParseDate(start); err != nil {
			return nil, err
		}
		if p.End, err = store.ParseDate(end); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// ReplacePeriods rewrites the ledger of a contract in one transaction.
func (s *Store) ReplacePeriods(ctx context.Context, contractID string, periods []fixedterm.Period) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if _, err := sqlTx.ExecContext(ctx, "DELETE FROM contract_periods WHERE contract_id = ?", contractID); err != nil {
		return fmt.Errorf("failed to clear periods: %w", err)
	}
	for _, p := range periods {
		_, err := sqlTx.ExecContext(ctx, `
			INSERT INTO contract_periods (id, contract_id, sequence, start_date, end_date, kind, is_current)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, p.ID, contractID, p.Sequence, store.DateString(p.Start), store.DateString(p.End), string(p.Kind), p.Current)
		if err != nil {
			if isForeignKeyError(err) {
				return &generic.NotFoundError{Entity: "contract", Key: contractID}
			}
			return fmt.Errorf("failed to insert period %d: %w", p.Sequence, err)
		}
	}

	return sqlTx.Commit()
}

// =============================================================================
// BENEFIT ASSIGNMENTS (benefit.TxStore interface)
// =============================================================================

func (s *Store) ListAssignments(ctx context.Context, key benefit.Key) ([]benefit.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listAssignments(ctx, s.db, key)
}

func (s *Store) InsertAssignment(ctx context.Context, a benefit.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertAssignment(ctx, s.db, a)
}

func (s *Store) UpdateAssignment(ctx context.Context, a benefit.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateAssignment(ctx, s.db, a)
}

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(benefit.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) ListAssignments(ctx context.Context, key benefit.Key) ([]benefit.Assignment, error) {
	return listAssignments(ctx, ts.tx, key)
}

func (ts *txStore) InsertAssignment(ctx context.Context, a benefit.Assignment) error {
	return insertAssignment(ctx, ts.tx, a)
}

func (ts *txStore) UpdateAssignment(ctx context.Context, a benefit.Assignment) error {
	return updateAssignment(ctx, ts.tx, a)
}

func listAssignments(ctx context.Context, q querier, key benefit.Key) ([]benefit.Assignment, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, kind, employer_id, location_id, provider_id, start_date, end_date,
		       state, created_by, updated_by, created_at, updated_at
		FROM benefit_assignments
		WHERE kind = ? AND employer_id = ? AND location_id = ?
		ORDER BY start_date ASC
	`, string(key.Kind), key.EmployerID, key.LocationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()

	var result []benefit.Assignment
	for rows.Next() {
		var (
			a                    benefit.Assignment
			kind, state          string
			start                string
			end                  sql.NullString
			createdBy, updatedBy string
			createdAt, updatedAt string
		)
		err := rows.Scan(&a.ID, &kind, &a.EmployerID, &a.LocationID, &a.ProviderID, &start, &end,
			&state, &createdBy, &updatedBy, &createdAt, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		a.Kind = benefit.Kind(kind)
		a.State = benefit.State(state)
		a.CreatedBy = generic.Actor(createdBy)
		a.UpdatedBy = generic.Actor(updatedBy)
		a.CreatedAt = parseTime(createdAt)
		a.UpdatedAt = parseTime(updatedAt)
		if a.Start, err = store.ParseDate(start); err != nil {
			return nil, err
		}
		if a.End, err = store.ParseNullDate(end); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func insertAssignment(ctx context.Context, q querier, a benefit.Assignment) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO benefit_assignments
		(id, kind, employer_id, location_id, provider_id, start_date, end_date,
		 state, created_by, updated_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		a.ID, string(a.Kind), a.EmployerID, a.LocationID, a.ProviderID,
		store.DateString(a.Start), store.NullDate(a.End), string(a.State),
		string(a.CreatedBy), string(a.UpdatedBy), formatTime(a.CreatedAt), formatTime(a.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &generic.OverlapError{
				Key:       a.Key().String(),
				Existing:  generic.Window{Start: a.Start},
				Requested: a.Start,
				Reason:    "another active assignment exists",
			}
		}
		return fmt.Errorf("failed to insert assignment: %w", err)
	}
	return nil
}

func updateAssignment(ctx context.Context, q querier, a benefit.Assignment) error {
	res, err := q.ExecContext(ctx, `
		UPDATE benefit_assignments
		SET provider_id = ?, start_date = ?, end_date = ?, state = ?, updated_by = ?, updated_at = ?
		WHERE id = ?
	`,
		a.ProviderID, store.DateString(a.Start), store.NullDate(a.End), string(a.State),
		string(a.UpdatedBy), formatTime(a.UpdatedAt), a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update assignment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &generic.NotFoundError{Entity: "benefit assignment", Key: a.ID}
	}
	return nil
}

// =============================================================================
// ANNUAL PARAMETERS (params.Store interface)
// =============================================================================

func (s *Store) ListParameters(ctx context.Context, t params.Type) ([]params.AnnualParameter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, param_type, year, value, archived, created_by, created_at
		FROM annual_parameters
		WHERE NOT archived`
	var args []any
	if t != "" {
		query += " AND param_type = ?"
		args = append(args, string(t))
	}
	query += " ORDER BY param_type ASC, year ASC"

	return s.queryParameters(ctx, query, args...)
}

func (s *Store) GetParameter(ctx context.Context, id string) (*params.AnnualParameter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result, err := s.queryParameters(ctx, `
		SELECT id, param_type, year, value, archived, created_by, created_at
		FROM annual_parameters
		WHERE id = ?
	`, id)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, &generic.NotFoundError{Entity: "annual parameter", Key: id}
	}
	return &result[0], nil
}

func (s *Store) queryParameters(ctx context.Context, query string, args ...any) ([]params.AnnualParameter, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query parameters: %w", err)
	}
	defer rows.Close()

	var result []params.AnnualParameter
	for rows.Next() {
		var (
			p                  params.AnnualParameter
			paramType, value   string
			createdBy, created string
		)
		if err := rows.Scan(&p.ID, &paramType, &p.Year, &value, &p.Archived, &createdBy, &created); err != nil {
			return nil, fmt.Errorf("failed to scan parameter: %w", err)
		}
		p.Type = params.Type(paramType)
		p.CreatedBy = generic.Actor(createdBy)
		p.CreatedAt = parseTime(created)
		if p.Value, err = store.ParseDecimal(value); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (s *Store) InsertParameter(ctx context.Context, p params.AnnualParameter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO annual_parameters (id, param_type, year, value, archived, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, p.ID, string(p.Type), p.Year, p.Value.String(), p.Archived, string(p.CreatedBy), formatTime(p.CreatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.NewValidationError("year", "parameter already registered for this year")
		}
		return fmt.Errorf("failed to insert parameter: %w", err)
	}
	return nil
}

func (s *Store) ArchiveParameter(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "UPDATE annual_parameters SET archived = TRUE WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to archive parameter: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &generic.NotFoundError{Entity: "annual parameter", Key: id}
	}
	return nil
}

// =============================================================================
// AUDIT LOG (generic.AuditLog interface)
// =============================================================================

func (s *Store) AppendAudit(ctx context.Context, e generic.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := store.EncodePayload(e.Payload)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, occurred_at, actor, action, entity_type, entity_id, payload_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.ID, formatTime(e.Timestamp), string(e.Actor), string(e.Action), e.EntityType, e.EntityID, payload)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

func (s *Store) QueryAudit(ctx context.Context, filter generic.AuditFilter) ([]generic.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, occurred_at, actor, action, entity_type, entity_id, payload_json
		FROM audit_log`
	var args []any
	if filter.EntityID != nil {
		query += " WHERE entity_id = ?"
		args = append(args, *filter.EntityID)
	}
	query += " ORDER BY occurred_at ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var result []generic.AuditEntry
	for rows.Next() {
		var (
			e                       generic.AuditEntry
			occurred, actor, action string
			payload                 string
		)
		if err := rows.Scan(&e.ID, &occurred, &actor, &action, &e.EntityType, &e.EntityID, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.Timestamp = parseTime(occurred)
		e.Actor = generic.Actor(actor)
		e.Action = generic.AuditAction(action)
		e.Payload = store.DecodePayload(payload)
		if filter.Matches(e) {
			result = append(result, e)
		}
	}
	return result, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"contract_periods", "contracts", "benefit_assignments", "annual_parameters", "audit_log"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) &&
		(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
}

func isForeignKeyError(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
}

// Compile-time interface checks.
var (
	_ contract.Store   = (*Store)(nil)
	_ fixedterm.Store  = (*Store)(nil)
	_ benefit.TxStore  = (*Store)(nil)
	_ params.Store     = (*Store)(nil)
	_ generic.AuditLog = (*Store)(nil)
)
