// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Package logging writes one structured log file per command run.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RunLogger logs one command run to its own JSON-lines file.
// A nil *RunLogger is valid and discards everything.
type RunLogger struct {
	file      *os.File
	logger    *zap.Logger
	startTime time.Time
	command   string
}

// NewRunLogger creates <dir>/<command>-<timestamp>.log and writes the run header.
func NewRunLogger(dir, command string, fields ...zap.Field) (*RunLogger, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	start := time.Now()
	timestamp := start.Format("2006-01-02-150405")
	logPath := filepath.Join(dir, fmt.Sprintf("%s-%s.log", command, timestamp))

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, fmt.Errorf("create log file: %w", err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(file), zap.DebugLevel)

	l := &RunLogger{
		file:      file,
		logger:    zap.New(core).With(zap.String("command", command)),
		startTime: start,
		command:   command,
	}
	l.logger.Info("run started", append(fields, zap.Time("started", start))...)
	return l, nil
}

// Logger returns the zap logger to hand to components.
func (l *RunLogger) Logger() *zap.Logger {
	if l == nil || l.logger == nil {
		return zap.NewNop()
	}
	return l.logger
}

// Section marks the start of a phase of the run.
func (l *RunLogger) Section(title string) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Info("section", zap.String("section", title))
}

// Log writes a free-form message.
func (l *RunLogger) Log(msg string, fields ...zap.Field) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Info(msg, fields...)
}

// Result writes the outcome of the run.
func (l *RunLogger) Result(err error, fields ...zap.Field) {
	if l == nil || l.logger == nil {
		return
	}
	fields = append(fields, zap.Duration("duration", time.Since(l.startTime).Round(time.Millisecond)))
	if err != nil {
		l.logger.Error("run failed", append(fields, zap.Error(err))...)
		return
	}
	l.logger.Info("run succeeded", fields...)
}

// Close flushes and closes the log file and returns its path.
func (l *RunLogger) Close() string {
	if l == nil || l.file == nil {
		return ""
	}

	l.logger.Info("run completed",
		zap.Time("completed", time.Now()),
		zap.Duration("duration", time.Since(l.startTime).Round(time.Millisecond)))
	_ = l.logger.Sync()

	path := l.file.Name()
	l.file.Close()
	l.file = nil
	l.logger = nil
	return path
}
