package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sigmabot/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{"info level", &config.LoggingConfig{Level: "info"}, false},
		{"debug level", &config.LoggingConfig{Level: "debug"}, false},
		{"invalid level", &config.LoggingConfig{Level: "invalid"}, true},
		{"file output", &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "bot.log")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestNewFileOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")
	l, err := NewFileOnly(&config.LoggingConfig{Level: "info", File: path})
	require.NoError(t, err)

	l.WithField("category", "search").Info("Quota exhausted")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"category":"search"`)

	quiet, err := NewFileOnly(&config.LoggingConfig{Level: "info"})
	require.NoError(t, err)
	assert.NotPanics(t, func() { quiet.Info("dropped") })
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"INFO", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			assert.Equal(t, tt.wantErr, err != nil)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	dec := json.NewDecoder(buf)
	for dec.More() {
		var m map[string]interface{}
		require.NoError(t, dec.Decode(&m))
		out = append(out, m)
	}
	return out
}

func TestWithFieldsDoNotLeak(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	var buf bytes.Buffer
	base := NewWithWriter(&buf)

	child := base.WithField("author", "alice")
	child.WithFields(map[string]interface{}{"post_id": "42", "wait": 2 * time.Second}).Info("replied")
	base.Info("plain")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "alice", lines[0]["author"])
	assert.Equal(t, "42", lines[0]["post_id"])
	assert.Equal(t, "sigmabot", lines[0]["app"])
	assert.NotContains(t, lines[1], "author")
}

func TestWithError(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	var buf bytes.Buffer
	l := NewWithWriter(&buf)

	l.WithError(errors.New("boom")).Error("failed")
	assert.Same(t, l, l.WithError(nil))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "boom", lines[0]["error"])
	assert.Equal(t, "error", lines[0]["level"])
}

func TestTestLoggerCapturesDerivedFields(t *testing.T) {
	tl := NewTestLogger()

	LogAction(tl, "favorite", "1", "alice", nil)
	LogAction(tl, "repost", "1", "alice", errors.New("already reposted"))
	LogQuotaWait(tl, "search", time.Minute)

	msgs := tl.GetMessages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "favorite", msgs[0].Field("action"))
	assert.Equal(t, "WARN", msgs[1].Level)
	assert.EqualError(t, msgs[1].Error, "already reposted")
	assert.Equal(t, "search", msgs[2].Field("category"))
	assert.True(t, tl.HasMessage("Quota exhausted"))
	assert.False(t, tl.HasError())

	tl.Clear()
	assert.Empty(t, tl.GetMessages())
}

func TestGlobalLogger(t *testing.T) {
	tl := NewTestLogger()
	SetLogger(tl)
	defer SetLogger(nil)

	WithField("k", "v").Info("hello")
	assert.Equal(t, "v", tl.GetMessages()[0].Field("k"))
}
