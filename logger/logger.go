package logger

import (
	"os"

	"github.com/princinho/eventhub/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var log = zap.NewNop()

// Init builds the process logger. Production writes JSON at info level,
// everything else writes a colored console stream at debug level.
func Init(cfg *config.Config) (*zap.Logger, error) {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	level := zapcore.DebugLevel
	encoder := zapcore.NewConsoleEncoder(withColor(encoderConfig))
	if cfg.IsProduction() {
		level = zapcore.InfoLevel
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	core := zapcore.NewTee(
		zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), levelBetween(level, zapcore.WarnLevel)),
		zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), zapcore.ErrorLevel),
	)

	log = zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)).
		With(zap.String("env", cfg.App.Environment))
	return log, nil
}

// L returns the process logger, a no-op logger before Init.
func L() *zap.Logger {
	return log
}

func Sync() {
	_ = log.Sync()
}

func withColor(c zapcore.EncoderConfig) zapcore.EncoderConfig {
	c.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return c
}

func levelBetween(min, max zapcore.Level) zap.LevelEnablerFunc {
	return func(l zapcore.Level) bool {
		return l >= min && l <= max
	}
}
