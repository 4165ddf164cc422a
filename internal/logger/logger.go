// Copyright 2023 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logger is the structured logging façade; cmd is its only caller,
// and the allocator, scheduler and collector packages do not log. It wraps log/slog with the
// severity ladder and output shapes cfg.LoggingConfig exposes (TRACE
// through OFF, text or json) and optional on-disk rotation via
// gopkg.in/natefinch/lumberjack.v2.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/netinmax/inko/cfg"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Severity levels. LevelTrace sits below slog's built-in Debug so it can be
// filtered independently; LevelOff sits above Error so nothing at all
// passes through once selected.
const (
	LevelTrace slog.Level = slog.LevelDebug - 4
	LevelDebug slog.Level = slog.LevelDebug
	LevelInfo  slog.Level = slog.LevelInfo
	LevelWarn  slog.Level = slog.LevelWarn
	LevelError slog.Level = slog.LevelError
	LevelOff   slog.Level = slog.LevelError + 4
)

var severityToLevel = map[string]slog.Level{
	cfg.TRACE:   LevelTrace,
	cfg.DEBUG:   LevelDebug,
	cfg.INFO:    LevelInfo,
	cfg.WARNING: LevelWarn,
	cfg.ERROR:   LevelError,
	cfg.OFF:     LevelOff,
}

var levelNames = map[slog.Level]string{
	LevelTrace: "TRACE",
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARNING",
	LevelError: "ERROR",
}

// loggerFactory holds everything needed to rebuild the default logger when
// its severity, format, or output changes at runtime.
type loggerFactory struct {
	file            *os.File
	sysWriter       io.Writer
	format          string
	level           string
	logRotateConfig cfg.LogRotateLoggingConfig
	prefix          string
}

var (
	defaultLoggerFactory = &loggerFactory{
		level:     cfg.INFO,
		format:    "text",
		sysWriter: os.Stderr,
	}
	defaultProgramLevel = new(slog.LevelVar)
	defaultLogger       = slog.New(defaultLoggerFactory.createJsonOrTextHandler(os.Stderr, defaultProgramLevel, ""))
)

func init() {
	setLoggingLevel(defaultLoggerFactory.level, defaultProgramLevel)
}

// setLoggingLevel maps a cfg severity string onto the slog.LevelVar driving
// a logger's filtering. Unrecognized severities fall back to INFO rather
// than panicking -- logging setup should never be the reason a VM instance
// fails to start.
func setLoggingLevel(severity string, programLevel *slog.LevelVar) {
	level, ok := severityToLevel[strings.ToUpper(severity)]
	if !ok {
		level = LevelInfo
	}
	programLevel.Set(level)
}

// createJsonOrTextHandler builds the slog.Handler matching format ("text"
// selects text output; anything else, including the empty string, selects
// structured JSON). The severity/message renaming and timestamp reshaping
// applies identically to both so InitLogFile and SetLogFormat can flip
// between them without touching callers.
func (f *loggerFactory) createJsonOrTextHandler(w io.Writer, programLevel *slog.LevelVar, prefix string) slog.Handler {
	asJSON := f.format != "text"

	replaceAttr := func(groups []string, a slog.Attr) slog.Attr {
		switch a.Key {
		case slog.LevelKey:
			level, _ := a.Value.Any().(slog.Level)
			name, ok := levelNames[level]
			if !ok {
				name = level.String()
			}
			return slog.String("severity", name)
		case slog.MessageKey:
			return slog.String("message", prefix+a.Value.String())
		case slog.TimeKey:
			t, _ := a.Value.Any().(time.Time)
			if asJSON {
				return slog.Group("timestamp",
					slog.Int64("seconds", t.Unix()),
					slog.Int64("nanos", int64(t.Nanosecond())))
			}
			return slog.String(slog.TimeKey, t.Format("2006/01/02 15:04:05.000000"))
		}
		return a
	}

	opts := &slog.HandlerOptions{Level: programLevel, ReplaceAttr: replaceAttr}
	if asJSON {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// InitLogFile points the default logger at a rotating on-disk file
// described by conf, or back at stderr when conf.Filename is empty.
// Rotation is delegated to lumberjack, matching the knobs
// cfg.LogRotateLoggingConfig exposes.
func InitLogFile(conf cfg.LoggingConfig) error {
	defaultLoggerFactory.format = conf.Format
	defaultLoggerFactory.level = string(conf.Severity)
	defaultLoggerFactory.logRotateConfig = conf.LogRotate

	var w io.Writer = os.Stderr
	defaultLoggerFactory.file = nil
	defaultLoggerFactory.sysWriter = os.Stderr

	if conf.Filename != "" {
		f, err := os.OpenFile(conf.Filename, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("logger: opening log file: %w", err)
		}
		defaultLoggerFactory.file = f
		defaultLoggerFactory.sysWriter = nil

		w = &lumberjack.Logger{
			Filename:   conf.Filename,
			MaxSize:    conf.LogRotate.MaxFileSizeMb,
			MaxBackups: conf.LogRotate.BackupFileCount,
			Compress:   conf.LogRotate.Compress,
		}
	}

	setLoggingLevel(defaultLoggerFactory.level, defaultProgramLevel)
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(w, defaultProgramLevel, defaultLoggerFactory.prefix))
	return nil
}

// SetLogFormat switches the default logger between "text" and "json"
// output without touching its current destination or severity.
func SetLogFormat(format string) {
	defaultLoggerFactory.format = format

	var w io.Writer = os.Stderr
	if defaultLoggerFactory.sysWriter != nil {
		w = defaultLoggerFactory.sysWriter
	} else if defaultLoggerFactory.file != nil {
		w = &lumberjack.Logger{
			Filename:   defaultLoggerFactory.file.Name(),
			MaxSize:    defaultLoggerFactory.logRotateConfig.MaxFileSizeMb,
			MaxBackups: defaultLoggerFactory.logRotateConfig.BackupFileCount,
			Compress:   defaultLoggerFactory.logRotateConfig.Compress,
		}
	}
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(w, defaultProgramLevel, defaultLoggerFactory.prefix))
}

func logAt(level slog.Level, msg string) {
	ctx := context.Background()
	if !defaultLogger.Enabled(ctx, level) {
		return
	}
	defaultLogger.Log(ctx, level, msg)
}

func Tracef(format string, v ...any) { logAt(LevelTrace, fmt.Sprintf(format, v...)) }
func Debugf(format string, v ...any) { logAt(LevelDebug, fmt.Sprintf(format, v...)) }
func Infof(format string, v ...any)  { logAt(LevelInfo, fmt.Sprintf(format, v...)) }
func Warnf(format string, v ...any)  { logAt(LevelWarn, fmt.Sprintf(format, v...)) }
func Errorf(format string, v ...any) { logAt(LevelError, fmt.Sprintf(format, v...)) }

func Trace(v ...any) { logAt(LevelTrace, fmt.Sprint(v...)) }
func Debug(v ...any) { logAt(LevelDebug, fmt.Sprint(v...)) }
func Info(v ...any)  { logAt(LevelInfo, fmt.Sprint(v...)) }
func Warn(v ...any)  { logAt(LevelWarn, fmt.Sprint(v...)) }
func Error(v ...any) { logAt(LevelError, fmt.Sprint(v...)) }
