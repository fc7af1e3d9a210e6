/*
Package postgres provides a PostgreSQL-backed implementation of the storage
interfaces, built on pgx.

PURPOSE:
  Server deployments run against PostgreSQL. The tables match store/sqlite
  column for column; dates are DATE, instants TIMESTAMPTZ and sub-records
  JSONB. Money stays TEXT so amounts round-trip exactly through the same
  codec as SQLite.

CONCURRENCY:
  Unlike the SQLite store there is no process-wide mutex. Uniqueness is
  enforced by partial unique indexes and benefit changes run in a real
  transaction (WithTx).

SEE ALSO:
  - store/sqlite/sqlite.go: same schema, SQLite dialect
  - store/codec.go: shared row encoding
*/
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/warp/contract-engine/benefit"
	"github.com/warp/contract-engine/contract"
	"github.com/warp/contract-engine/fixedterm"
	"github.com/warp/contract-engine/generic"
	"github.com/warp/contract-engine/params"
	"github.com/warp/contract-engine/store"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// Store implements all storage interfaces on a pgx pool.
type Store struct {
	db *DB
}

// New wraps an open DB. Call Migrate before first use.
func New(db *DB) *Store {
	return &Store{db: db}
}

// Open connects to dsn and migrates the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := NewDB(ctx, dsn)
	if err != nil {
		return nil, err
	}
	s := New(db)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.db.Close()
	return nil
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS contracts (
		id TEXT PRIMARY KEY,
		document_type TEXT NOT NULL DEFAULT '',
		document_number TEXT NOT NULL DEFAULT '',
		company_id TEXT NOT NULL DEFAULT '',
		location_id TEXT NOT NULL DEFAULT '',
		contract_type TEXT NOT NULL DEFAULT '',
		start_date DATE,
		end_date DATE,
		approval_status TEXT NOT NULL DEFAULT 'draft',
		approved_by TEXT NOT NULL DEFAULT '',
		approved_at TIMESTAMPTZ,
		archived_at TIMESTAMPTZ,
		annulment_reason TEXT NOT NULL DEFAULT '',
		currency TEXT NOT NULL DEFAULT 'COP',
		base_salary TEXT NOT NULL DEFAULT '0',
		transport_subsidy TEXT NOT NULL DEFAULT '0',
		allowances_json JSONB NOT NULL DEFAULT '[]',
		onboarding_json JSONB NOT NULL DEFAULT '{}',
		created_by TEXT NOT NULL,
		updated_by TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_contracts_document_active
		ON contracts(document_type, document_number)
		WHERE archived_at IS NULL AND document_type <> '' AND document_number <> '';
	CREATE INDEX IF NOT EXISTS idx_contracts_company ON contracts(company_id);

	CREATE TABLE IF NOT EXISTS contract_periods (
		id TEXT PRIMARY KEY,
		contract_id TEXT NOT NULL REFERENCES contracts(id),
		sequence INTEGER NOT NULL,
		start_date DATE NOT NULL,
		end_date DATE NOT NULL,
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
		start_date DATE NOT NULL,
		end_date DATE,
		state TEXT NOT NULL,
		created_by TEXT NOT NULL,
		updated_by TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
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
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_parameters_type_year_active
		ON annual_parameters(param_type, year) WHERE NOT archived;

	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		occurred_at TIMESTAMPTZ NOT NULL,
		actor TEXT NOT NULL,
		action TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		payload_json JSONB NOT NULL DEFAULT '{}'
	);

	CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_log(entity_id, occurred_at);
	`
	_, err := s.db.Exec(ctx, schema)
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

const contractSelect = `
	SELECT id, document_type, document_number, company_id, location_id, contract_type,
	       start_date::text, end_date::text, approval_status, approved_by, approved_at, archived_at,
	       annulment_reason, currency, base_salary, transport_subsidy, allowances_json::text,
	       onboarding_json::text, created_by, updated_by, created_at, updated_at
	FROM contracts`

func (s *Store) GetContract(ctx context.Context, id string) (*contract.Contract, error) {
	rows, err := s.db.Query(ctx, contractSelect+" WHERE id = $1", id)
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
	var (
		where []string
		args  []any
	)
	if filter.CompanyID != "" {
		args = append(args, filter.CompanyID)
		where = append(where, fmt.Sprintf("company_id = $%d", len(args)))
	}
	if filter.Document != nil {
		args = append(args, filter.Document.Type, filter.Document.Number)
		where = append(where, fmt.Sprintf("document_type = $%d AND document_number = $%d", len(args)-1, len(args)))
	}
	if !filter.IncludeArchived {
		where = append(where, "archived_at IS NULL")
	}

	query := contractSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC"

	rows, err := s.db.Query(ctx, query, args...)
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
	args, err := contractArgs(c)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO contracts (`+contractColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
		        $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	`, args...)
	if err != nil {
		if isPgError(err, uniqueViolation) {
			return generic.NewValidationError("document_number", "already used by another active contract")
		}
		return fmt.Errorf("failed to insert contract: %w", err)
	}
	return nil
}

func (s *Store) UpdateContract(ctx context.Context, c contract.Contract) error {
	args, err := contractArgs(c)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE contracts SET
			document_type = $2, document_number = $3, company_id = $4, location_id = $5,
			contract_type = $6, start_date = $7, end_date = $8, approval_status = $9,
			approved_by = $10, approved_at = $11, archived_at = $12, annulment_reason = $13,
			currency = $14, base_salary = $15, transport_subsidy = $16, allowances_json = $17,
			onboarding_json = $18, created_by = $19, updated_by = $20, created_at = $21, updated_at = $22
		WHERE id = $1
	`, args...)
	if err != nil {
		if isPgError(err, uniqueViolation) {
			return generic.NewValidationError("document_number", "already used by another active contract")
		}
		return fmt.Errorf("failed to update contract: %w", err)
	}
	if tag.RowsAffected() == 0 {
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
	var start any
	if !c.StartDate.IsZero() {
		start = c.StartDate.Time()
	}
	return []any{
		c.ID,
		c.Document.Type,
		c.Document.Number,
		c.CompanyID,
		c.LocationID,
		string(c.Type),
		start,
		dateArg(c.EndDate),
		string(c.ApprovalStatus),
		string(c.ApprovedBy),
		c.ApprovedAt,
		c.ArchivedAt,
		c.AnnulmentReason,
		string(currency),
		c.BaseSalary.Amount.String(),
		c.TransportSubsidy.Amount.String(),
		allowances,
		onboarding,
		string(c.CreatedBy),
		string(c.UpdatedBy),
		c.CreatedAt,
		c.UpdatedAt,
	}, nil
}

func scanContract(rows pgx.Rows) (contract.Contract, error) {
	var (
		c                              contract.Contract
		contractType, status, currency string
		startDate, endDate             sql.NullString
		approvedAt, archivedAt         *time.Time
		salary, subsidy                string
		allowances, onboarding         string
		approvedBy, createdBy          string
		updatedBy                      string
	)

	err := rows.Scan(
		&c.ID, &c.Document.Type, &c.Document.Number, &c.CompanyID, &c.LocationID, &contractType,
		&startDate, &endDate, &status, &approvedBy, &approvedAt, &archivedAt,
		&c.AnnulmentReason, &currency, &salary, &subsidy, &allowances,
		&onboarding, &createdBy, &updatedBy, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return c, fmt.Errorf("failed to scan contract: %w", err)
	}

	c.Type = contract.Type(contractType)
	c.ApprovalStatus = contract.ApprovalStatus(status)
	c.ApprovedBy = generic.Actor(approvedBy)
	c.CreatedBy = generic.Actor(createdBy)
	c.UpdatedBy = generic.Actor(updatedBy)
	c.ApprovedAt = approvedAt
	c.ArchivedAt = archivedAt

	if c.StartDate, err = store.ParseDate(startDate.String); err != nil {
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
	rows, err := s.db.Query(ctx, `
		SELECT id, contract_id, sequence, start_date::text, end_date::text, kind, is_current
		FROM contract_periods
		WHERE contract_id = $1
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
	return WithTransaction(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "DELETE FROM contract_periods WHERE contract_id = $1", contractID); err != nil {
			return fmt.Errorf("failed to clear periods: %w", err)
		}
		for _, p := range periods {
			_, err := tx.Exec(ctx, `
				INSERT INTO contract_periods (id, contract_id, sequence, start_date, end_date, kind, is_current)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, p.ID, contractID, p.Sequence, p.Start.Time(), p.End.Time(), string(p.Kind), p.Current)
			if err != nil {
				if isPgError(err, foreignKeyViolation) {
					return &generic.NotFoundError{Entity: "contract", Key: contractID}
				}
				return fmt.Errorf("failed to insert period %d: %w", p.Sequence, err)
			}
		}
		return nil
	})
}

// =============================================================================
// BENEFIT ASSIGNMENTS (benefit.TxStore interface)
// =============================================================================

func (s *Store) ListAssignments(ctx context.Context, key benefit.Key) ([]benefit.Assignment, error) {
	return listAssignments(ctx, s.db, key)
}

func (s *Store) InsertAssignment(ctx context.Context, a benefit.Assignment) error {
	return insertAssignment(ctx, s.db, a)
}

func (s *Store) UpdateAssignment(ctx context.Context, a benefit.Assignment) error {
	return updateAssignment(ctx, s.db, a)
}

// WithTx runs fn against a transaction-scoped view of the store.
func (s *Store) WithTx(ctx context.Context, fn func(benefit.Store) error) error {
	return WithTransaction(ctx, s.db, func(tx pgx.Tx) error {
		return fn(&txStore{q: tx})
	})
}

type txStore struct {
	q Querier
}

func (ts *txStore) ListAssignments(ctx context.Context, key benefit.Key) ([]benefit.Assignment, error) {
	return listAssignments(ctx, ts.q, key)
}

func (ts *txStore) InsertAssignment(ctx context.Context, a benefit.Assignment) error {
	return insertAssignment(ctx, ts.q, a)
}

func (ts *txStore) UpdateAssignment(ctx context.Context, a benefit.Assignment) error {
	return updateAssignment(ctx, ts.q, a)
}

func listAssignments(ctx context.Context, q Querier, key benefit.Key) ([]benefit.Assignment, error) {
	rows, err := q.Query(ctx, `
		SELECT id, kind, employer_id, location_id, provider_id, start_date::text, end_date::text,
		       state, created_by, updated_by, created_at, updated_at
		FROM benefit_assignments
		WHERE kind = $1 AND employer_id = $2 AND location_id = $3
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
			kind, state, start   string
			end                  sql.NullString
			createdBy, updatedBy string
		)
		err := rows.Scan(&a.ID, &kind, &a.EmployerID, &a.LocationID, &a.ProviderID, &start, &end,
			&state, &createdBy, &updatedBy, &a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		a.Kind = benefit.Kind(kind)
		a.State = benefit.State(state)
		a.CreatedBy = generic.Actor(createdBy)
		a.UpdatedBy = generic.Actor(updatedBy)
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

func insertAssignment(ctx context.Context, q Querier, a benefit.Assignment) error {
	_, err := q.Exec(ctx, `
		INSERT INTO benefit_assignments
		(id, kind, employer_id, location_id, provider_id, start_date, end_date,
		 state, created_by, updated_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		a.ID, string(a.Kind), a.EmployerID, a.LocationID, a.ProviderID,
		a.Start.Time(), dateArg(a.End), string(a.State),
		string(a.CreatedBy), string(a.UpdatedBy), a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if isPgError(err, uniqueViolation) {
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

func updateAssignment(ctx context.Context, q Querier, a benefit.Assignment) error {
	tag, err := q.Exec(ctx, `
		UPDATE benefit_assignments
		SET provider_id = $1, start_date = $2, end_date = $3, state = $4, updated_by = $5, updated_at = $6
		WHERE id = $7
	`,
		a.ProviderID, a.Start.Time(), dateArg(a.End), string(a.State),
		string(a.UpdatedBy), a.UpdatedAt, a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update assignment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &generic.NotFoundError{Entity: "benefit assignment", Key: a.ID}
	}
	return nil
}

// =============================================================================
// ANNUAL PARAMETERS (params.Store interface)
// =============================================================================

const parameterSelect = `
	SELECT id, param_type, year, value, archived, created_by, created_at
	FROM annual_parameters`

func (s *Store) ListParameters(ctx context.Context, t params.Type) ([]params.AnnualParameter, error) {
	query := parameterSelect + " WHERE NOT archived"
	var args []any
	if t != "" {
		query += " AND param_type = $1"
		args = append(args, string(t))
	}
	query += " ORDER BY param_type ASC, year ASC"
	return s.queryParameters(ctx, query, args...)
}

func (s *Store) GetParameter(ctx context.Context, id string) (*params.AnnualParameter, error) {
	result, err := s.queryParameters(ctx, parameterSelect+" WHERE id = $1", id)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, &generic.NotFoundError{Entity: "annual parameter", Key: id}
	}
	return &result[0], nil
}

func (s *Store) queryParameters(ctx context.Context, query string, args ...any) ([]params.AnnualParameter, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query parameters: %w", err)
	}
	defer rows.Close()

	var result []params.AnnualParameter
	for rows.Next() {
		var (
			p                           params.AnnualParameter
			paramType, value, createdBy string
		)
		if err := rows.Scan(&p.ID, &paramType, &p.Year, &value, &p.Archived, &createdBy, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan parameter: %w", err)
		}
		p.Type = params.Type(paramType)
		p.CreatedBy = generic.Actor(createdBy)
		if p.Value, err = store.ParseDecimal(value); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (s *Store) InsertParameter(ctx context.Context, p params.AnnualParameter) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO annual_parameters (id, param_type, year, value, archived, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, p.ID, string(p.Type), p.Year, p.Value.String(), p.Archived, string(p.CreatedBy), p.CreatedAt)
	if err != nil {
		if isPgError(err, uniqueViolation) {
			return generic.NewValidationError("year", "parameter already registered for this year")
		}
		return fmt.Errorf("failed to insert parameter: %w", err)
	}
	return nil
}

func (s *Store) ArchiveParameter(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, "UPDATE annual_parameters SET archived = TRUE WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to archive parameter: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &generic.NotFoundError{Entity: "annual parameter", Key: id}
	}
	return nil
}

// =============================================================================
// AUDIT LOG (generic.AuditLog interface)
// =============================================================================

func (s *Store) AppendAudit(ctx context.Context, e generic.AuditEntry) error {
	payload, err := store.EncodePayload(e.Payload)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO audit_log (id, occurred_at, actor, action, entity_type, entity_id, payload_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.ID, e.Timestamp, string(e.Actor), string(e.Action), e.EntityType, e.EntityID, payload)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

func (s *Store) QueryAudit(ctx context.Context, filter generic.AuditFilter) ([]generic.AuditEntry, error) {
	query := `
		SELECT id, occurred_at, actor, action, entity_type, entity_id, payload_json::text
		FROM audit_log`
	var args []any
	if filter.EntityID != nil {
		query += " WHERE entity_id = $1"
		args = append(args, *filter.EntityID)
	}
	query += " ORDER BY occurred_at ASC, id ASC"

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var result []generic.AuditEntry
	for rows.Next() {
		var (
			e                      generic.AuditEntry
			actor, action, payload string
		)
		if err := rows.Scan(&e.ID, &e.Timestamp, &actor, &action, &e.EntityType, &e.EntityID, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
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

// Reset clears all data (for testing).
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		TRUNCATE contract_periods, contracts, benefit_assignments, annual_parameters, audit_log
	`)
	return err
}

func dateArg(d *generic.Date) any {
	if d == nil || d.IsZero() {
		return nil
	}
	return d.Time()
}

func isPgError(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// Compile-time interface checks.
var (
	_ contract.Store   = (*Store)(nil)
	_ fixedterm.Store  = (*Store)(nil)
	_ benefit.TxStore  = (*Store)(nil)
	_ params.Store     = (*Store)(nil)
	_ generic.AuditLog = (*Store)(nil)
)
