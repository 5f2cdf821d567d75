package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

func TestStore_Postgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		t.Skip("Docker not available, skipping container tests")
	}
	defer provider.Close()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("plugingate_test"),
		postgres.WithUsername("plugingate"),
		postgres.WithPassword("plugingate_test_password"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Skipf("Failed to start PostgreSQL container: %v", err)
	}
	defer func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}()

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.Equal(t, DriverPostgres, DriverFor(dsn))

	store, err := Open(ctx, dsn)
	require.NoError(t, err)
	defer store.Close()

	startedAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.Record(ctx, sampleReport("run-pg", startedAt)))

	runs, err := store.List(ctx, "gongwen", 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "/opt/plugins/gongwen", runs[0].Binary)

	loaded, err := store.Get(ctx, "run-pg")
	require.NoError(t, err)
	require.Len(t, loaded.Verdicts, 2)
	assert.Equal(t, []string{"reqwest v0.11.27"}, loaded.Verdicts[1].Evidence)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}
