package logging

import (
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

// KgoLogger adapts a *zap.Logger to kgo.Logger. franz-go calls Log with an
// interleaved key/value slice, so this adapter forwards that convention
// into zap's structured fields instead of reimplementing leveled logging
// from scratch.
type KgoLogger struct {
	zl *zap.Logger
}

// NewKgoLogger wraps zl for use as a kgo.Logger.
func NewKgoLogger(zl *zap.Logger) *KgoLogger {
	return &KgoLogger{zl: zl.WithOptions(zap.AddCallerSkip(1))}
}

// Level reports the minimum level this logger wants from franz-go. Returning
// Debug means franz-go still calls Log for everything; zap's own level gate
// decides what's actually emitted.
func (l *KgoLogger) Level() kgo.LogLevel {
	return kgo.LogLevelDebug
}

// Log implements kgo.Logger.
func (l *KgoLogger) Log(level kgo.LogLevel, msg string, keyvals ...interface{}) {
	fields := make([]zap.Field, 0, len(keyvals)/2)
	for i := 0; i+1 < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", keyvals[i])
		}
		fields = append(fields, zap.Any(key, keyvals[i+1]))
	}

	switch level {
	case kgo.LogLevelError:
		l.zl.Error(msg, fields...)
	case kgo.LogLevelWarn:
		l.zl.Warn(msg, fields...)
	case kgo.LogLevelInfo:
		l.zl.Info(msg, fields...)
	default:
		l.zl.Debug(msg, fields...)
	}
}
