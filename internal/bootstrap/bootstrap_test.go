package bootstrap

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"gestorbrecho/backend/internal/config"
	"gestorbrecho/backend/internal/logger"
	"gestorbrecho/backend/internal/store/memory"
)

func TestValidateSecurity(t *testing.T) {
	assert.Error(t, ValidateSecurity(config.Config{AuthSecret: "short"}))
	assert.NoError(t, ValidateSecurity(config.Config{AuthSecret: "0123456789abcdef0123456789abcdef"}))
}

func TestNewWithoutDatabaseUsesMemoryStore(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Config{
		RedisAddr:              mr.Addr(),
		SummaryCacheTTLSeconds: 60,
		MediaDir:               t.TempDir(),
		MediaBaseURL:           "http://127.0.0.1:8080/media",
		BulkConcurrency:        4,
	}

	rt, err := New(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })

	assert.IsType(t, &memory.Store{}, rt.Repo)
	assert.NotNil(t, rt.Service)
	assert.NotNil(t, rt.Metrics)
	require.NotNil(t, rt.Telemetry)
	assert.Same(t, rt.Telemetry.TracerProvider, otel.GetTracerProvider())
	assert.Same(t, rt.Telemetry.MeterProvider, otel.GetMeterProvider())
	assert.NoError(t, rt.Service.SeedTenant(context.Background(), "owner-1"))
}

func TestNewFallsBackWhenRedisIsDown(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	rt, err := New(context.Background(), config.Config{RedisAddr: addr}, logger.Nop())
	require.NoError(t, err)
	assert.Empty(t, rt.closers)
	assert.NoError(t, rt.Close())
}
