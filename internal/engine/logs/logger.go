// Package logs sets up the structured logger used by cortexlink.
// Records are written as JSON through log/slog, to stdout, stderr or a rotated file.
package logs

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/akyaiy/cortexlink/internal/engine/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogFileName is the file created inside a log directory.
const LogFileName = "cortexlink.log"

var GlobalLevel slog.Level

type levelsStruct struct {
	Available []string
	Fallback  string
}

var Levels = levelsStruct{
	Available: []string{
		"debug", "info", "warn", "error",
	},
	Fallback: "info",
}

type SlogWriter struct {
	Logger *slog.Logger
	Level  slog.Level
}

func (w *SlogWriter) Write(p []byte) (n int, err error) {
	msg := string(bytes.TrimSpace(p))
	w.Logger.Log(context.TODO(), w.Level, msg)
	return len(p), nil
}

// ParseLevel maps a configured level name to a slog level. Unknown names fall back to
// Levels.Fallback and report false.
func ParseLevel(name string) (slog.Level, bool) {
	ok := slices.Contains(Levels.Available, name)
	if !ok {
		name = Levels.Fallback
	}
	var l slog.Level
	_ = l.UnmarshalText([]byte(name))
	return l, ok
}

// Output returns the writer for a configured output: "stdout", "stderr", or a directory
// in which a rotated LogFileName is kept.
func Output(out string) io.Writer {
	switch out {
	case "", "stdout", "1":
		return os.Stdout
	case "stderr", "2":
		return os.Stderr
	}
	return &lumberjack.Logger{
		Filename:   filepath.Join(out, LogFileName),
		MaxSize:    10,
		MaxBackups: 5,
		MaxAge:     28,
		Compress:   true,
	}
}

// SetupLogger initializes and returns a logger based on the provided configuration.
func SetupLogger(o *config.Log) (*slog.Logger, error) {
	var level, out string
	if o != nil && o.Level != nil {
		level = *o.Level
	}
	if o != nil && o.OutPath != nil {
		out = *o.OutPath
	}

	GlobalLevel, _ = ParseLevel(level)
	handlerOpts := slog.HandlerOptions{Level: GlobalLevel}

	log := slog.New(slog.NewJSONHandler(Output(out), &handlerOpts))
	return log, nil
}
