/*
Package store holds the row encoding shared by the SQL-backed stores.

PURPOSE:
  store/sqlite and store/postgres persist the same records. Dates, money and
  the variable-shape sub-records of a contract (allowances, onboarding steps)
  are encoded identically by both so a database can be moved between them.

ENCODING:
  Date         -> TEXT "YYYY-MM-DD", NULL for optional dates left unset
  decimal      -> TEXT (exact, never float)
  allowances   -> JSON array
  onboarding   -> JSON object keyed by track ID
  audit payload-> JSON object

SEE ALSO:
  - store/sqlite/sqlite.go
  - store/postgres/postgres.go
  - store/memory/memory.go: keeps values as-is, no encoding
*/
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/contract-engine/compensation"
	"github.com/warp/contract-engine/contract"
	"github.com/warp/contract-engine/generic"
)

// =============================================================================
// DATES
// =============================================================================

// NullDate encodes an optional date.
func NullDate(d *generic.Date) sql.NullString {
	if d == nil || d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

// DateString encodes a required date, "" for the zero date.
func DateString(d generic.Date) string { return d.String() }

// ParseDate decodes a stored date. An empty value is the zero date.
func ParseDate(s string) (generic.Date, error) {
	if s == "" {
		return generic.Date{}, nil
	}
	return generic.ParseDate(s)
}

// ParseNullDate decodes an optional stored date.
func ParseNullDate(s sql.NullString) (*generic.Date, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	d, err := generic.ParseDate(s.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ParseDecimal decodes a stored amount; empty is zero.
func ParseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid stored amount %q: %w", s, err)
	}
	return d, nil
}

// =============================================================================
// CONTRACT SUB-RECORDS
// =============================================================================

type allowanceRecord struct {
	Category    string `json:"category"`
	Description string `json:"description,omitempty"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
}

type stepRecord struct {
	Initiated   bool   `json:"initiated"`
	Reference   string `json:"reference,omitempty"`
	ConfirmedOn string `json:"confirmed_on,omitempty"`
}

func EncodeAllowances(allowances []compensation.Allowance) (string, error) {
	records := make([]allowanceRecord, len(allowances))
	for i, a := range allowances {
		records[i] = allowanceRecord{
			Category:    string(a.Category),
			Description: a.Description,
			Amount:      a.Amount.Amount.String(),
			Currency:    string(a.Amount.Currency),
		}
	}
	b, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("failed to encode allowances: %w", err)
	}
	return string(b), nil
}

func DecodeAllowances(raw string) ([]compensation.Allowance, error) {
	if raw == "" {
		return nil, nil
	}
	var records []allowanceRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, fmt.Errorf("failed to decode allowances: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	allowances := make([]compensation.Allowance, len(records))
	for i, r := range records {
		amount, err := ParseDecimal(r.Amount)
		if err != nil {
			return nil, err
		}
		allowances[i] = compensation.Allowance{
			Category:    compensation.Category(r.Category),
			Description: r.Description,
			Amount:      generic.NewMoney(amount, generic.Currency(r.Currency)),
		}
	}
	return allowances, nil
}

func EncodeOnboarding(o contract.Onboarding) (string, error) {
	records := make(map[string]stepRecord, len(o))
	for id, s := range o {
		r := stepRecord{Initiated: s.Initiated, Reference: s.Reference}
		if s.ConfirmedOn != nil {
			r.ConfirmedOn = s.ConfirmedOn.String()
		}
		records[string(id)] = r
	}
	b, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("failed to encode onboarding: %w", err)
	}
	return string(b), nil
}

func DecodeOnboarding(raw string) (contract.Onboarding, error) {
	o := contract.Onboarding{}
	if raw == "" {
		return o, nil
	}
	var records map[string]stepRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, fmt.Errorf("failed to decode onboarding: %w", err)
	}
	for id, r := range records {
		s := contract.Step{Initiated: r.Initiated, Reference: r.Reference}
		if r.ConfirmedOn != "" {
			d, err := generic.ParseDate(r.ConfirmedOn)
			if err != nil {
				return nil, err
			}
			s.ConfirmedOn = &d
		}
		o[contract.TrackID(id)] = s
	}
	return o, nil
}

// =============================================================================
// AUDIT PAYLOAD
// =============================================================================

func EncodePayload(payload map[string]any) (string, error) {
	if len(payload) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode audit payload: %w", err)
	}
	return string(b), nil
}

func DecodePayload(raw string) map[string]any {
	payload := map[string]any{}
	if raw != "" {
		_ = json.Unmarshal([]byte(raw), &payload)
	}
	return payload
}
