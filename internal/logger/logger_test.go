package logger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observed() (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return &Logger{zap.New(core, zap.AddCaller()).Sugar()}, logs
}

func TestCallerPointsAtCallSite(t *testing.T) {
	lg, logs := observed()

	lg.Infow("direct")
	Info(WithLogger(context.Background(), lg), "through context")
	lg.WithComponent("worker").Warnw("scoped")

	entries := logs.All()
	require.Len(t, entries, 3)
	for _, entry := range entries {
		require.True(t, entry.Caller.Defined, entry.Message)
		assert.Equal(t, "logger_test.go", filepath.Base(entry.Caller.File), entry.Message)
	}
	assert.Equal(t, "worker", entries[2].ContextMap()["component"])
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	assert.Same(t, Default(), FromContext(context.Background()))

	lg, _ := observed()
	assert.Same(t, lg, FromContext(WithLogger(context.Background(), lg)))
}
