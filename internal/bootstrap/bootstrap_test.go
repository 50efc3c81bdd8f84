package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/lead-dispatch/internal/config"
)

func TestNewWithMemoryStore(t *testing.T) {
	mr := miniredis.RunT(t)
	seed := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(seed, []byte(`{
		"properties": [{"id": "prop-1", "state": "SP"}],
		"brokers": [{"id": "ext-1", "kind": "EXTERNAL", "coverage": [{"state": "SP"}]}],
		"prospects": [{"id": "pros-1", "property_id": "prop-1"}]
	}`), 0o600))

	cfg := &config.Config{
		App:      config.AppConfig{SeedFile: seed},
		Redis:    config.RedisConfig{Addr: mr.Addr()},
		Dispatch: config.DispatchConfig{ExternalSLAMinutes: 15, InternalSLAMinutes: 30, MaxExternalAttempts: 3, MaxInternalAttempts: 2, SettingsKey: "dispatch:settings"},
		Sweeper:  config.SweeperConfig{IntervalSeconds: 1, LockKey: "dispatch:sweeper:lock"},
	}
	app, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(app.Close)
	assert.Nil(t, app.Postgres)

	outcome, err := app.Dispatch.Dispatch(context.Background(), "pros-1", "")
	require.NoError(t, err)
	assert.Equal(t, "ext-1", outcome.Assignment.BrokerID)

	require.Eventually(t, func() bool {
		records, err := app.Repos.Audit.ListByAssignment(context.Background(), outcome.Assignment.ID)
		return err == nil && len(records) == 1
	}, time.Second, 10*time.Millisecond, "audit worker is subscribed and writing")

	result, err := app.Sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Skipped)
}
