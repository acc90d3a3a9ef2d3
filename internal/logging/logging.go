package logging

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

type Config struct {
	// File, when set, receives a copy of every line with size-based rotation.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	// Stderr defaults to os.Stderr; tests pass a buffer.
	Stderr io.Writer
	Prefix string
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New returns a standard logger and the closer for its rotating file.
func New(cfg Config) (*log.Logger, io.Closer, error) {
	out := cfg.Stderr
	if out == nil {
		out = os.Stderr
	}
	file := strings.TrimSpace(cfg.File)
	if file == "" {
		return log.New(out, cfg.Prefix, log.LstdFlags), nopCloser{}, nil
	}
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return nil, nil, err
	}
	rotator := &lumberjack.Logger{
		Filename:   file,
		MaxSize:    orDefault(cfg.MaxSizeMB, 10),
		MaxBackups: orDefault(cfg.MaxBackups, 5),
		MaxAge:     orDefault(cfg.MaxAgeDays, 30),
		Compress:   true,
	}
	return log.New(io.MultiWriter(out, rotator), cfg.Prefix, log.LstdFlags), rotator, nil
}

// Discard is a logger that drops everything.
func Discard() *log.Logger { return log.New(io.Discard, "", 0) }

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
