// Package logging builds the zap logger used across ghri. Console output
// stays human-readable on stderr; an optional rotated file receives JSON.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls logger construction.
type Options struct {
	// Level is the minimum level: debug, info, warn, error.
	Level string
	// File enables JSON logging to a rotated file when non-empty.
	File string
	// Verbose raises console output to debug regardless of Level.
	Verbose bool
	// Quiet drops console output below the error level.
	Quiet bool
}

// New builds the logger. It never fails: a bad level falls back to info.
func New(opts Options) *zap.Logger {
	level := parseLevel(opts.Level)

	consoleLevel := level
	if opts.Verbose {
		consoleLevel = zapcore.DebugLevel
	}
	if opts.Quiet {
		consoleLevel = zapcore.ErrorLevel
	}

	consoleCfg := zap.NewDevelopmentEncoderConfig()
	consoleCfg.TimeKey = ""
	cores := []zapcore.Core{
		zapcore.NewCore(
			zapcore.NewConsoleEncoder(consoleCfg),
			zapcore.Lock(os.Stderr),
			consoleLevel,
		),
	}

	if opts.File != "" {
		fileSink := zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     30, // days
			Compress:   true,
		})
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			fileSink,
			level,
		))
	}

	return zap.New(zapcore.NewTee(cores...))
}

func parseLevel(s string) zapcore.Level {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return zapcore.InfoLevel
	}
	return level
}
