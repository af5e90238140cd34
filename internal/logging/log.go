package logging

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

var current atomic.Pointer[zerolog.Logger]

func init() {
	l := build(os.Stderr, defaultConfig(ProfileRuntime))
	current.Store(&l)
}

func apply(cfg Config) {
	l := build(os.Stderr, cfg)
	current.Store(&l)
}

func build(out io.Writer, cfg Config) zerolog.Logger {
	w := out
	if !cfg.Bypass {
		cw := zerolog.ConsoleWriter{
			Out:        out,
			NoColor:    cfg.NoColor,
			TimeFormat: time.RFC3339,
		}
		if !cfg.Timestamp {
			cw.PartsExclude = []string{zerolog.TimestampFieldName}
		}
		w = cw
	}
	ctx := zerolog.New(w).Level(cfg.Level).With()
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}
	return ctx.Logger()
}

// Logger returns the process logger for structured call sites (HTTP middleware).
func Logger() zerolog.Logger {
	return *current.Load()
}

// SetOutput redirects the process logger; used by tests capturing output.
func SetOutput(out io.Writer, cfg Config) {
	l := build(out, cfg)
	current.Store(&l)
}

func Tracef(format string, args ...any) { emit(zerolog.TraceLevel, format, args...) }
func Debugf(format string, args ...any) { emit(zerolog.DebugLevel, format, args...) }
func Infof(format string, args ...any)  { emit(zerolog.InfoLevel, format, args...) }
func Warnf(format string, args ...any)  { emit(zerolog.WarnLevel, format, args...) }
func Errorf(format string, args ...any) { emit(zerolog.ErrorLevel, format, args...) }

// Logf writes at info level without a level tag; tests use it as a narration channel.
func Logf(format string, args ...any) {
	l := current.Load()
	l.Log().Msg(fmt.Sprintf(format, args...))
}

func emit(level zerolog.Level, format string, args ...any) {
	l := current.Load()
	l.WithLevel(level).Msg(fmt.Sprintf(format, args...))
}
