package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/warp/contract-engine/store/postgres"
	"github.com/warp/contract-engine/store/storetest"
)

// Runs against a real server: TEST_DATABASE_URL=postgres://... go test ./store/postgres
func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	store, err := postgres.Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	suite.Run(t, &storetest.Suite{
		NewStore: func(t *testing.T) storetest.Backend {
			require.NoError(t, store.Reset(ctx))
			return store
		},
	})
}
