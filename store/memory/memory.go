// Package memory provides an in-memory store for tests and development.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/contract-engine/benefit"
	"github.com/warp/contract-engine/contract"
	"github.com/warp/contract-engine/fixedterm"
	"github.com/warp/contract-engine/generic"
	"github.com/warp/contract-engine/params"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Store implements contract.Store, fixedterm.Store, benefit.TxStore,
// params.Store and generic.AuditLog.
type Store struct {
	mu          sync.RWMutex
	contracts   map[string]contract.Contract
	periods     map[string][]fixedterm.Period
	assignments map[string]benefit.Assignment
	parameters  map[string]params.AnnualParameter
	audit       []generic.AuditEntry
}

func New() *Store {
	return &Store{
		contracts:   make(map[string]contract.Contract),
		periods:     make(map[string][]fixedterm.Period),
		assignments: make(map[string]benefit.Assignment),
		parameters:  make(map[string]params.AnnualParameter),
	}
}

// =============================================================================
// CONTRACTS
// =============================================================================

func (m *Store) GetContract(_ context.Context, id string) (*contract.Contract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.contracts[id]
	if !ok {
		return nil, &generic.NotFoundError{Entity: "contract", Key: id}
	}
	c = cloneContract(c)
	return &c, nil
}

func (m *Store) ListContracts(_ context.Context, filter contract.ListFilter) ([]contract.Contract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []contract.Contract
	for _, c := range m.contracts {
		if filter.CompanyID != "" && c.CompanyID != filter.CompanyID {
			continue
		}
		if filter.Document != nil && c.Document != *filter.Document {
			continue
		}
		if !filter.IncludeArchived && c.IsArchived() {
			continue
		}
		result = append(result, cloneContract(c))
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *Store) InsertContract(_ context.Context, c contract.Contract) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.contracts[c.ID]; exists {
		return generic.NewValidationError("id", "contract "+c.ID+" already exists")
	}
	m.contracts[c.ID] = cloneContract(c)
	return nil
}

func (m *Store) UpdateContract(_ context.Context, c contract.Contract) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.contracts[c.ID]; !exists {
		return &generic.NotFoundError{Entity: "contract", Key: c.ID}
	}
	m.contracts[c.ID] = cloneContract(c)
	return nil
}

func cloneContract(c contract.Contract) contract.Contract {
	if c.Allowances != nil {
		c.Allowances = append(c.Allowances[:0:0], c.Allowances...)
	}
	if c.Onboarding != nil {
		o := make(contract.Onboarding, len(c.Onboarding))
		for k, v := range c.Onboarding {
			o[k] = v
		}
		c.Onboarding = o
	}
	return c
}

// =============================================================================
// PERIODS
// =============================================================================

func (m *Store) ListPeriods(_ context.Context, contractID string) ([]fixedterm.Period, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]fixedterm.Period, len(m.periods[contractID]))
	copy(result, m.periods[contractID])
	return result, nil
}

// ReplacePeriods swaps the whole ledger in one step.
func (m *Store) ReplacePeriods(_ context.Context, contractID string, periods []fixedterm.Period) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.contracts[contractID]; !exists {
		return &generic.NotFoundError{Entity: "contract", Key: contractID}
	}
	rows := make([]fixedterm.Period, len(periods))
	copy(rows, periods)
	m.periods[contractID] = rows
	return nil
}

// =============================================================================
// BENEFIT ASSIGNMENTS
// =============================================================================

func (m *Store) ListAssignments(_ context.Context, key benefit.Key) ([]benefit.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listAssignmentsLocked(key), nil
}

func (m *Store) InsertAssignment(_ context.Context, a benefit.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertAssignmentLocked(a)
}

func (m *Store) UpdateAssignment(_ context.Context, a benefit.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateAssignmentLocked(a)
}

func (m *Store) listAssignmentsLocked(key benefit.Key) []benefit.Assignment {
	var result []benefit.Assignment
	for _, a := range m.assignments {
		if a.Key() == key {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Start.Before(result[j].Start) })
	return result
}

func (m *Store) insertAssignmentLocked(a benefit.Assignment) error {
	if _, exists := m.assignments[a.ID]; exists {
		return generic.NewValidationError("id", "assignment "+a.ID+" already exists")
	}
	m.assignments[a.ID] = a
	return nil
}

func (m *Store) updateAssignmentLocked(a benefit.Assignment) error {
	if _, exists := m.assignments[a.ID]; !exists {
		return &generic.NotFoundError{Entity: "benefit assignment", Key: a.ID}
	}
	m.assignments[a.ID] = a
	return nil
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Store) WithTx(_ context.Context, fn func(benefit.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := make(map[string]benefit.Assignment, len(m.assignments))
	for k, v := range m.assignments {
		snapshot[k] = v
	}

	if err := fn(&txView{parent: m}); err != nil {
		m.assignments = snapshot
		return err
	}
	return nil
}

// txView runs against the locked parent.
type txView struct {
	parent *Store
}

func (tv *txView) ListAssignments(_ context.Context, key benefit.Key) ([]benefit.Assignment, error) {
	return tv.parent.listAssignmentsLocked(key), nil
}

func (tv *txView) InsertAssignment(_ context.Context, a benefit.Assignment) error {
	return tv.parent.insertAssignmentLocked(a)
}

func (tv *txView) UpdateAssignment(_ context.Context, a benefit.Assignment) error {
	return tv.parent.updateAssignmentLocked(a)
}

// =============================================================================
// ANNUAL PARAMETERS
// =============================================================================

func (m *Store) ListParameters(_ context.Context, t params.Type) ([]params.AnnualParameter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []params.AnnualParameter
	for _, p := range m.parameters {
		if p.Archived || (t != "" && p.Type != t) {
			continue
		}
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Type != result[j].Type {
			return result[i].Type < result[j].Type
		}
		return result[i].Year < result[j].Year
	})
	return result, nil
}

func (m *Store) GetParameter(_ context.Context, id string) (*params.AnnualParameter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.parameters[id]
	if !ok {
		return nil, &generic.NotFoundError{Entity: "annual parameter", Key: id}
	}
	return &p, nil
}

func (m *Store) InsertParameter(_ context.Context, p params.AnnualParameter) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.parameters {
		if !existing.Archived && existing.Type == p.Type && existing.Year == p.Year {
			return generic.NewValidationError("year", "parameter already registered for this year")
		}
	}
	m.parameters[p.ID] = p
	return nil
}

func (m *Store) ArchiveParameter(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.parameters[id]
	if !ok {
		return &generic.NotFoundError{Entity: "annual parameter", Key: id}
	}
	p.Archived = true
	m.parameters[id] = p
	return nil
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func (m *Store) AppendAudit(_ context.Context, entry generic.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, entry)
	return nil
}

func (m *Store) QueryAudit(_ context.Context, filter generic.AuditFilter) ([]generic.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []generic.AuditEntry
	for _, e := range m.audit {
		if filter.Matches(e) {
			result = append(result, e)
		}
	}
	return result, nil
}

// Compile-time interface checks.
var (
	_ contract.Store   = (*Store)(nil)
	_ fixedterm.Store  = (*Store)(nil)
	_ benefit.TxStore  = (*Store)(nil)
	_ params.Store     = (*Store)(nil)
	_ generic.AuditLog = (*Store)(nil)
)
