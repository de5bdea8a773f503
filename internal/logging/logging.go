// Package logging builds the structured logger of the command line tools.
package logging

import (
	"io"
	"log/slog"
	"strings"

	"github.com/pkg/errors"
)

// Formats accepted by New.
const (
	FormatText = "text"
	FormatJSON = "json"
)

var ErrUnknownFormat = errors.New("unknown log format")

// Config selects the level and encoding of log records.
type Config struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// ParseLevel accepts debug, info, warn (or warning) and error, in any case.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level

	if strings.EqualFold(s, "warning") {
		s = "warn"
	}

	err := level.UnmarshalText([]byte(s))
	if err != nil {
		return slog.LevelInfo, errors.Wrapf(err, "invalid log level %q", s)
	}

	return level, nil
}

func (c Config) Validate() error {
	_, err := ParseLevel(c.Level)
	if err != nil {
		return err
	}

	switch strings.ToLower(c.Format) {
	case FormatText, FormatJSON, "":
		return nil
	default:
		return errors.Wrap(ErrUnknownFormat, c.Format)
	}
}

// New creates a logger writing records of at least the configured level to w.
func New(w io.Writer, cfg Config) (*slog.Logger, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	level, _ := ParseLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, FormatJSON) {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler), nil
}
