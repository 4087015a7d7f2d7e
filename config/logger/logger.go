// Package logger builds the shared zap logger for the coordinator and
// worker binaries.
package logger

import (
	"log"
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	config "github.com/dafproject/daf/config/utils"
)

// level is shared between the routine core and SetLevel so the
// threshold can move without rebuilding the logger.
var level zap.AtomicLevel

// Build constructs the process logger. Routine output goes to stdout,
// error and above to stderr, and the level follows the watched config
// file at runtime.
func Build(cfg *config.Logger) *zap.Logger {
	lvl, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		log.Fatalf("invalid log level %q: %v", cfg.Level, err)
	}
	level = lvl

	enc := newEncoder(cfg)
	errOut := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l >= zapcore.ErrorLevel
	})
	stdOut := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return level.Enabled(l) && l < zapcore.ErrorLevel
	})

	core := zapcore.NewTee(
		zapcore.NewCore(enc, os.Stdout, stdOut),
		zapcore.NewCore(enc, os.Stderr, errOut),
	)
	logger := zap.New(core, zap.AddCaller())
	zap.ReplaceGlobals(logger)

	viper.OnConfigChange(func(in fsnotify.Event) {
		if in.Op&fsnotify.Create == 0 {
			SetLevel(viper.GetString("logger.level"))
		}
	})
	viper.WatchConfig()
	return logger
}

func newEncoder(cfg *config.Logger) zapcore.Encoder {
	if cfg.Encoding == "console" {
		return zapcore.NewConsoleEncoder(cfg.EncoderConfig)
	}
	return zapcore.NewJSONEncoder(cfg.EncoderConfig)
}

// SetLevel moves the routine-output threshold. Invalid levels are
// ignored with a warning, the previous threshold stays in effect.
func SetLevel(s string) {
	l, err := zapcore.ParseLevel(s)
	if err != nil {
		zap.L().Warn("ignoring invalid log level", zap.String("value", s), zap.Error(err))
		return
	}
	level.SetLevel(l)
	zap.L().Info("log level changed", zap.String("value", s))
}
