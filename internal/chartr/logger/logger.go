package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger *zap.SugaredLogger

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// InitLogger initializes the global sugared logger at the given level.
func InitLogger(level string) error {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))

	z, err := cfg.Build()
	if err != nil {
		return err
	}

	logger = z.Sugar()
	return nil
}

// L returns the global sugared logger.
// If InitLogger has not been called, it initializes at info level.
func L() *zap.SugaredLogger {
	if logger == nil {
		_ = InitLogger("info")
	}
	return logger
}
