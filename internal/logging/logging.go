// Package logging builds the worker's structured logger and adapts it to
// the leveled, key-value call shape franz-go's kgo.Logger expects.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production zap.Logger at the given level ("debug", "info",
// "warn", "error"). An unrecognized level falls back to "info".
func New(level string) (*zap.Logger, error) {
	var zlvl zapcore.Level
	if err := zlvl.UnmarshalText([]byte(level)); err != nil {
		zlvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zlvl)
	return cfg.Build()
}
