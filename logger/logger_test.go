package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name string
		want LogLevel
	}{
		{"debug", DebugLevel},
		{"INFO", InfoLevel},
		{"", InfoLevel},
		{"warning", WarnLevel},
		{"error", ErrorLevel},
		{"fatal", FatalLevel},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.name)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, got, tt.name)
	}

	_, err := ParseLevel("verbose")
	require.Error(t, err)
}

func TestSlogLogger_LevelFiltering(t *testing.T) {
	t.Setenv("ENV", "")

	var buf bytes.Buffer
	l := NewSlogWithWriter(&buf, WarnLevel, false)

	l.Info("hidden", "k", 1)
	assert.Zero(t, buf.Len())

	l.Warn("shown", "k", 2)
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"ts"`)

	l.SetLevel(DebugLevel)
	assert.Equal(t, DebugLevel, l.Level())

	buf.Reset()
	l.With("component", "master").Debug("child")
	assert.Contains(t, buf.String(), `"component":"master"`)
}
