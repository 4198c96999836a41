package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		development bool
		debug       bool
	}{
		{development: true, debug: true},
		{development: false, debug: false},
	}

	for _, tt := range tests {
		log, err := New(tt.development)
		require.NoError(t, err)
		assert.Equal(t, tt.debug, log.Core().Enabled(zapcore.DebugLevel), "development=%v", tt.development)
		assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
	}
}

func TestMust(t *testing.T) {
	assert.NotPanics(t, func() { Must(false).Info("started") })
}

func TestComponent_NilBase(t *testing.T) {
	log := Component(nil, "engine")
	require.NotNil(t, log)
	assert.False(t, log.Core().Enabled(zapcore.ErrorLevel))
}

func TestComponent_Named(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	Component(zap.New(core), "feed").Info("reconnect")
	Component(zap.New(core).Named("serve"), "live").Info("halted")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "feed", entries[0].LoggerName)
	assert.Equal(t, "serve.live", entries[1].LoggerName)
}
