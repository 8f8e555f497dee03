package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(t *testing.T, cfg *Config) (*Logger, *bytes.Buffer) {
	t.Helper()

	buf := &bytes.Buffer{}
	opts := &slog.HandlerOptions{
		Level: cfg.Level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if shouldRedact(a.Key) {
				a.Value = slog.StringValue("[REDACTED]")
			}
			return a
		},
	}

	var handler slog.Handler
	if cfg.Format == FormatJSON {
		handler = slog.NewJSONHandler(buf, opts)
	} else {
		handler = slog.NewTextHandler(buf, opts)
	}

	return &Logger{Logger: slog.New(handler), config: cfg}, buf
}

func TestRedaction(t *testing.T) {
	tests := []struct {
		key      string
		redacted bool
	}{
		{"password", true},
		{"typed_secret", true},
		{"credential_len", true},
		{"password_hash", true},
		{"screen", false},
		{"keycode", false},
		{"backend", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.redacted, shouldRedact(tt.key))
		})
	}
}

func TestRedactionInOutput(t *testing.T) {
	l, buf := newBufferLogger(t, &Config{Level: LevelInfo, Format: FormatJSON})

	l.Info("attempt finished", "password", "hunter2", "verdict", "incorrect")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "[REDACTED]", entry["password"])
	assert.Equal(t, "incorrect", entry["verdict"])
	assert.NotContains(t, buf.String(), "hunter2")
}

func TestLevelFiltering(t *testing.T) {
	l, buf := newBufferLogger(t, &Config{Level: LevelWarn, Format: FormatText})

	l.Debug("debug message")
	l.Info("info message")
	l.Warn("warn message")

	out := buf.String()
	assert.NotContains(t, out, "debug message")
	assert.NotContains(t, out, "info message")
	assert.Contains(t, out, "warn message")
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "shadelock.log")
	l, err := New(&Config{
		Level:    LevelInfo,
		Format:   FormatText,
		Output:   "file",
		FilePath: path,
	})
	require.NoError(t, err)

	l.Info("session locked")
	require.NoError(t, l.Close())

	assert.FileExists(t, path)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseFormat(t *testing.T) {
	got, err := ParseFormat("json")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, got)

	got, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatText, got)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestWithComponent(t *testing.T) {
	l, buf := newBufferLogger(t, &Config{Level: LevelInfo, Format: FormatText})

	l.WithComponent("session").Info("grabs acquired")
	assert.True(t, strings.Contains(buf.String(), "component=session"))
}
