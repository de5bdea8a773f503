package logging_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgpage/hillshade-converter/internal/logging"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		"debug":      {in: "debug", want: slog.LevelDebug},
		"upper case": {in: "INFO", want: slog.LevelInfo},
		"warning":    {in: "warning", want: slog.LevelWarn},
		"error":      {in: "error", want: slog.LevelError},
		"unknown":    {in: "verbose", wantErr: true},
		"empty":      {in: "", wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := logging.ParseLevel(tc.in)
			if tc.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNewJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger, err := logging.New(&buf, logging.Config{Level: "warn", Format: "json"})
	require.NoError(t, err)

	logger.Info("dropped")
	logger.Warn("kept", slog.String("tool", "gdaldem"))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "kept", record["msg"])
	assert.Equal(t, "gdaldem", record["tool"])
}

func TestNewText(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger, err := logging.New(&buf, logging.Config{Level: "debug", Format: "text"})
	require.NoError(t, err)

	logger.Debug("probing", slog.String("path", "/usr/bin/gdalinfo"))
	assert.Contains(t, buf.String(), "msg=probing path=/usr/bin/gdalinfo")
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	t.Parallel()

	_, err := logging.New(&bytes.Buffer{}, logging.Config{Level: "info", Format: "xml"})
	require.ErrorIs(t, err, logging.ErrUnknownFormat)
}
