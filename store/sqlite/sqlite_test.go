package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/warp/contract-engine/generic"
	"github.com/warp/contract-engine/store/sqlite"
	"github.com/warp/contract-engine/store/storetest"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(filepath.Join(t.TempDir(), "contracts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore(t *testing.T) {
	suite.Run(t, &storetest.Suite{
		NewStore: func(t *testing.T) storetest.Backend { return newStore(t) },
	})
}

func TestSQLiteStore_ReopenKeepsSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contracts.db")

	s, err := sqlite.New(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// migrate is idempotent
	s, err = sqlite.New(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.GetContract(context.Background(), "missing")
	require.ErrorIs(t, err, generic.ErrNotFound)
}

func TestSQLiteStore_EmptyRewriteOfUnknownContract(t *testing.T) {
	s := newStore(t)
	err := s.ReplacePeriods(context.Background(), "missing", nil)
	require.NoError(t, err, "an empty rewrite touches no rows")
}

func TestSQLiteStore_Reset(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.AppendAudit(ctx, generic.AuditEntry{ID: "a1", Actor: "hr", Action: generic.AuditContractCreated, EntityType: "contract", EntityID: "c1"}))

	require.NoError(t, s.Reset(ctx))

	entries, err := s.QueryAudit(ctx, generic.AuditFilter{})
	require.NoError(t, err)
	require.Empty(t, entries)
}
