// Package logging sets up the apex/log handler used by the commands.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/apex/log"
	"github.com/apex/log/handlers/json"
	"github.com/apex/log/handlers/text"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config selects level, format and destination of log output.
type Config struct {
	// Level is one of debug, info, warn, error, fatal. Empty means info.
	Level string `koanf:"level"`
	// Format is "text" (default) or "json".
	Format string `koanf:"format"`
	// File, when set, sends output to a size-rotated file instead of stderr.
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
}

// New builds a logger from cfg. The returned closer releases the rotated
// file, if any; it is never nil.
func New(cfg Config) (*log.Logger, io.Closer, error) {
	level := strings.ToLower(cfg.Level)
	if level == "" {
		level = "info"
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, nil, fmt.Errorf("logging: %w", err)
	}

	var (
		w      io.Writer = os.Stderr
		closer io.Closer = nopCloser{}
	)
	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}
		w, closer = lj, lj
	}

	var h log.Handler
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		h = text.New(w)
	case "json":
		h = json.New(w)
	default:
		_ = closer.Close()
		return nil, nil, fmt.Errorf("logging: unknown format %q", cfg.Format)
	}

	return &log.Logger{Handler: h, Level: lvl}, closer, nil
}

// Init builds a logger from cfg and installs it as the apex/log default,
// so components constructed without an explicit logger use it too.
func Init(cfg Config) (io.Closer, error) {
	l, closer, err := New(cfg)
	if err != nil {
		return nil, err
	}
	log.SetHandler(l.Handler)
	log.SetLevel(l.Level)
	return closer, nil
}

// SetLevel changes the level of the apex/log default logger, e.g. after a
// configuration reload.
func SetLevel(level string) error {
	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	log.SetLevel(lvl)
	return nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
