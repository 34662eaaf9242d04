package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	fileMaxSizeMegabytes = 100
	fileMaxAgeDays       = 28
	fileMaxBackups       = 5
)

// Options configures the process logger.
type Options struct {
	Level string
	// FilePath enables a rotating JSON log file in addition to stdout.
	FilePath string
}

// NewLogger returns a zap logger configured for structured production logging.
func NewLogger(options Options) (*zap.Logger, error) {
	level := ParseLevel(options.Level)
	if strings.TrimSpace(options.FilePath) == "" {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(level)
		return cfg.Build()
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderConfig)

	fileSink := zapcore.AddSync(&lumberjack.Logger{
		Filename:   options.FilePath,
		MaxSize:    fileMaxSizeMegabytes,
		MaxAge:     fileMaxAgeDays,
		MaxBackups: fileMaxBackups,
		Compress:   true,
	})
	core := zapcore.NewTee(
		zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level),
		zapcore.NewCore(encoder, fileSink, level),
	)
	return zap.New(core, zap.AddCaller()), nil
}

// ParseLevel maps a configured level name onto a zap level, defaulting to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
