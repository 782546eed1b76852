// Package log provides structured logging for microscope pipeline
// operations, backed by zerolog. Loggers carry contextual fields (the
// component, the fold, the data shape) so a cross-validation run can be
// followed from the log stream alone.
package log

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"

	mserrors "github.com/epimetry/microscope/pkg/errors"
)

// Standard attribute keys. Using these consistently keeps run logs
// filterable by component and operation.
const (
	// ComponentKey identifies the package performing the operation.
	// Examples: "dataset", "preprocessing", "crossval"
	ComponentKey = "ml.component"

	// OperationKey names the operation being performed.
	// Standard values: "fit", "predict", "transform", "select", "split"
	OperationKey = "ml.operation"

	// FoldKey is the zero-based index of the current cross-validation fold.
	FoldKey = "cv.fold"

	// SamplesKey is the number of samples (rows) being processed.
	SamplesKey = "data.samples"

	// FeaturesKey is the number of features (columns) being processed.
	FeaturesKey = "data.features"

	// DurationMsKey records an operation's elapsed time in milliseconds.
	DurationMsKey = "perf.duration_ms"
)

// Logger is a minimal structured logging interface. Fields are key-value
// pairs; keys must be strings.
type Logger interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, fields ...any)

	// With returns a child logger with the given fields pre-populated.
	With(fields ...any) Logger
}

type zerologLogger struct {
	zl zerolog.Logger
}

var (
	mu            sync.RWMutex
	defaultLogger = newDefaultLogger()
)

func newDefaultLogger() *zerologLogger {
	zl := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Logger().
		Level(zerolog.InfoLevel)
	return &zerologLogger{zl: zl}
}

func init() {
	// Route pkg/errors warnings through the structured logger.
	mserrors.SetZerologWarnFunc(func(warning error) {
		l := GetLogger().(*zerologLogger)
		ev := l.zl.Warn()
		if obj, ok := warning.(zerolog.LogObjectMarshaler); ok {
			ev.Object("warning", obj)
		}
		ev.Msg(warning.Error())
	})
}

// GetLogger returns the process-wide default logger.
func GetLogger() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

// GetLoggerWithName returns a logger tagged with a component name.
func GetLoggerWithName(name string) Logger {
	return GetLogger().With(ComponentKey, name)
}

// SetLevel sets the minimum level emitted by the default logger.
// Accepted: "debug", "info", "warn", "error", "disabled".
func SetLevel(level string) error {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		return mserrors.NewValidationError("level", "unrecognized log level", level)
	}
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = &zerologLogger{zl: defaultLogger.zl.Level(parsed)}
	return nil
}

// SetOutput redirects the default logger, mainly for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = &zerologLogger{zl: zerolog.New(w).With().Timestamp().Logger()}
}

func (l *zerologLogger) event(ev *zerolog.Event, msg string, fields []any) {
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		switch v := fields[i+1].(type) {
		case error:
			ev = ev.AnErr(key, v)
		default:
			ev = ev.Interface(key, v)
		}
	}
	ev.Msg(msg)
}

func (l *zerologLogger) Debug(msg string, fields ...any) { l.event(l.zl.Debug(), msg, fields) }
func (l *zerologLogger) Info(msg string, fields ...any)  { l.event(l.zl.Info(), msg, fields) }
func (l *zerologLogger) Warn(msg string, fields ...any)  { l.event(l.zl.Warn(), msg, fields) }
func (l *zerologLogger) Error(msg string, fields ...any) { l.event(l.zl.Error(), msg, fields) }

func (l *zerologLogger) With(fields ...any) Logger {
	ctx := l.zl.With()
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		ctx = ctx.Interface(key, fields[i+1])
	}
	return &zerologLogger{zl: ctx.Logger()}
}
