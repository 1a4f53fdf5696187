// Package logging builds the zap loggers used across prr.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ParseLevel maps a config level name onto a zap level.
func ParseLevel(level string) (zapcore.Level, error) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return l, fmt.Errorf("unknown log level %q", level)
	}
	return l, nil
}

// New returns a JSON logger writing to w at the given level.
func New(level string, w io.Writer) (*zap.Logger, error) {
	l, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	ec := zap.NewProductionEncoderConfig()
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.EncodeDuration = zapcore.StringDurationEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(ec), zapcore.AddSync(w), l)
	return zap.New(core), nil
}

// Open logs to file when set, otherwise to fallback. A nil fallback with
// no file yields a no-op logger so full-screen UIs stay clean. The
// returned close func releases the file.
func Open(level, file string, fallback io.Writer) (*zap.Logger, func() error, error) {
	nop := func() error { return nil }
	if file == "" {
		if fallback == nil {
			if _, err := ParseLevel(level); err != nil {
				return nil, nop, err
			}
			return zap.NewNop(), nop, nil
		}
		log, err := New(level, fallback)
		return log, nop, err
	}

	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nop, fmt.Errorf("open log file: %w", err)
	}
	log, err := New(level, f)
	if err != nil {
		f.Close()
		return nil, nop, err
	}
	return log, func() error {
		_ = log.Sync()
		return f.Close()
	}, nil
}
