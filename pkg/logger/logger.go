// Package logger constructs the zap.SugaredLogger instance every package in
// this module accepts through its Config struct. Centralizing construction
// here keeps encoder/level policy in one place instead of each caller
// reaching for zap.NewProduction directly.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level selects a logger's minimum enabled severity.
type Level int8

const (
	// LevelDebug enables debug-and-above logging, intended for local
	// development and test runs.
	LevelDebug Level = iota
	// LevelInfo enables info-and-above logging.
	LevelInfo
	// LevelWarn enables warn-and-above logging.
	LevelWarn
)

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}

// New builds a *zap.SugaredLogger named after service, using a JSON
// production encoder with ISO8601 timestamps. The returned logger's Sync
// should be deferred by the caller.
func New(service string) (*zap.SugaredLogger, error) {
	return NewAtLevel(service, LevelInfo)
}

// NewAtLevel builds a *zap.SugaredLogger named after service at the given
// minimum level.
func NewAtLevel(service string, level Level) (*zap.SugaredLogger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Level = zap.NewAtomicLevelAt(level.zapLevel())

	log, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return log.Named(service).Sugar(), nil
}

// NewDevelopment builds a human-readable, colorized *zap.SugaredLogger
// suited for local development and tests.
func NewDevelopment(service string) (*zap.SugaredLogger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	log, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return log.Named(service).Sugar(), nil
}

// NewNop returns a *zap.SugaredLogger that discards everything, for use in
// tests that construct engines without caring about log output.
func NewNop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
