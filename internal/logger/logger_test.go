package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewFormats(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{format: FormatConsole, want: "task created"},
		{format: FormatJSON, want: `"msg":"task created"`},
		{format: FormatLogfmt, want: `msg="task created"`},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			log, err := New(&buf, Config{Format: tt.format, Level: zapcore.InfoLevel})
			require.NoError(t, err)

			log.Info("task created", zap.String("tenant", "acme"))
			require.NoError(t, log.Sync())

			assert.Contains(t, buf.String(), tt.want)
			assert.Contains(t, buf.String(), "acme")
		})
	}
}

func TestNewUnknownFormat(t *testing.T) {
	_, err := New(&bytes.Buffer{}, Config{Format: "xml"})
	assert.Error(t, err)
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, Config{Format: FormatJSON, Level: zapcore.WarnLevel})
	require.NoError(t, err)

	log.Debug("hidden")
	log.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	log := zap.NewExample()
	ctx := NewContext(context.Background(), log)
	assert.Same(t, log, FromContext(ctx))
}

func TestFromContextOr(t *testing.T) {
	fallback := zap.NewNop()
	assert.Same(t, fallback, FromContextOr(context.Background(), fallback))

	log := zap.NewExample()
	ctx := NewContext(context.Background(), log)
	assert.Same(t, log, FromContextOr(ctx, fallback))
}
