package logging_test

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/carnet-scolaire/carnet/internal/logging"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" WARN ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, logging.ParseLevel(tt.in), "ParseLevel(%q)", tt.in)
	}
}

func TestNew_FormatFollowsEnv(t *testing.T) {
	var buf bytes.Buffer
	logging.New(&buf, "info", "production").Info("hello", "k", "v")
	assert.True(t, strings.HasPrefix(buf.String(), "{"), "production logs should be JSON: %s", buf.String())

	buf.Reset()
	logging.New(&buf, "info", "development").Info("hello", "k", "v")
	assert.Contains(t, buf.String(), "msg=hello")
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logging.New(&buf, "warn", "production").Info("dropped")
	assert.Empty(t, buf.String())
}

func TestAttrHelpers_NilSafe(t *testing.T) {
	assert.Equal(t, slog.Attr{}, logging.Error(nil))
	assert.Equal(t, slog.Attr{}, logging.UserID(0))
	assert.Equal(t, slog.Attr{}, logging.ClientIP(""))

	a := logging.Error(errors.New("boom"))
	assert.Equal(t, "error", a.Key)
}
