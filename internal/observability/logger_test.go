package observability

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/crossflow/internal/config"
)

func TestNewLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		level        string
		debugEnabled bool
		infoEnabled  bool
	}{
		{"debug", true, true},
		{"info", false, true},
		{"warn", false, false},
		{"error", false, false},
		{"nonsense", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := NewLogger(&config.Config{LogLevel: tt.level, LogFormat: "json"})
			require.NotNil(t, logger)
			assert.Equal(t, tt.debugEnabled, logger.Enabled(context.Background(), slog.LevelDebug))
			assert.Equal(t, tt.infoEnabled, logger.Enabled(context.Background(), slog.LevelInfo))
		})
	}
}

func TestNewLogger_TextFormat(t *testing.T) {
	logger := NewLogger(&config.Config{LogLevel: "info", LogFormat: "text"})
	require.NotNil(t, logger)
	assert.True(t, logger.Enabled(context.Background(), slog.LevelInfo))
}
