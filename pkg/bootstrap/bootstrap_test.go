package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threshingfloor/roastery-backend/pkg/config"
	"github.com/threshingfloor/roastery-backend/pkg/logger"
)

func setSQLiteEnv(t *testing.T) {
	t.Helper()
	t.Setenv(config.EnvAppEnv, config.AppEnvDev)
	t.Setenv(config.EnvPort, "8080")
	t.Setenv(config.EnvDBDSN, "file:bootstrap_test?mode=memory&cache=shared")
	t.Setenv("ROASTERY_USE_SQLITE", "true")
	t.Setenv("ROASTERY_AUTO_MIGRATE", "true")
	t.Setenv(config.EnvRedisURL, "redis://localhost:6379/0")
	t.Setenv(config.EnvJWTSecret, "secret")
	t.Setenv(config.EnvJWTIssuer, "roastery")
	t.Setenv(config.EnvJWTExpMins, "15")
	t.Setenv(config.EnvAdminEmail, "admin@coffeeshop.com")
	t.Setenv(config.EnvPickupAddress, "1234 Roasting Lane, Coffee City, CA 90210")
}

func TestStartOpensDatabaseAndMigrates(t *testing.T) {
	setSQLiteEnv(t)

	p, err := Start(context.Background(), "cron-worker")
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	assert.Equal(t, "cron-worker", p.Kind)
	assert.Equal(t, "cron-worker", p.Config.Service.Kind)
	require.NotNil(t, p.DB)
	assert.NoError(t, p.DB.Ping(context.Background()))
	assert.True(t, p.DB.DB().Migrator().HasTable("outbox_events"))
}

func TestStartFailsWithoutConfig(t *testing.T) {
	for _, key := range []string{config.EnvAppEnv, config.EnvJWTSecret, config.EnvRedisURL} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	p, err := Start(context.Background(), "api")
	assert.Error(t, err)
	assert.Nil(t, p)
}

func TestCloseRunsNewestFirstAndJoinsErrors(t *testing.T) {
	var buf bytes.Buffer
	p := &Process{Logger: logger.New(logger.Options{Output: &buf})}

	var order []string
	boom := errors.New("boom")
	p.OnClose("first", func() error { order = append(order, "first"); return nil })
	p.OnClose("second", func() error { order = append(order, "second"); return boom })
	p.OnClose("third", func() error { order = append(order, "third"); return nil })

	err := p.Close()
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"third", "second", "first"}, order)
	assert.Contains(t, buf.String(), `"resource":"second"`)

	assert.NoError(t, p.Close(), "closers run once")
}
