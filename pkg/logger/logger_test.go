package logger_test

import (
	"bytes"
	"context"
	"testing"

	charmlog "github.com/charmbracelet/log"
	"github.com/fluxgraph/fluxgraph/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogLevel_ToCharmlogLevel(t *testing.T) {
	cases := []struct {
		level logger.LogLevel
		want  charmlog.Level
	}{
		{logger.DebugLevel, charmlog.DebugLevel},
		{logger.InfoLevel, charmlog.InfoLevel},
		{logger.WarnLevel, charmlog.WarnLevel},
		{logger.ErrorLevel, charmlog.ErrorLevel},
		{logger.DisabledLevel, charmlog.Level(1000)},
		{logger.LogLevel(99), charmlog.InfoLevel},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.level.ToCharmlogLevel())
	}
}

func TestContextWithLogger_FromContext(t *testing.T) {
	t.Run("Should round-trip a logger through context", func(t *testing.T) {
		var buf bytes.Buffer
		l := logger.New(&buf, logger.InfoLevel)
		ctx := logger.ContextWithLogger(context.Background(), l)
		got := logger.FromContext(ctx)
		require.NotNil(t, got)
		got.Info("hello")
		assert.Contains(t, buf.String(), "hello")
	})

	t.Run("Should return a default logger when context has none", func(t *testing.T) {
		got := logger.FromContext(context.Background())
		assert.NotNil(t, got)
	})
}
