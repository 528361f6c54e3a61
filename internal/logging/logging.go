package logging

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/fwiesel/pip-accel/internal/config"
	"github.com/fwiesel/pip-accel/internal/fsutil"
)

// Init builds the process logger from configuration. Without a log_file the
// logger writes human-readable lines to stderr; with one it writes JSON to a
// size-rotated file.
func Init(cfg *config.Provider) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(cfg.Get("log_level", "PIP_ACCEL_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	logger := logrus.New()
	logger.SetLevel(level)

	if path := cfg.Get("log_file", "PIP_ACCEL_LOG_FILE", ""); path != "" {
		if err := fsutil.MakeDirs(filepath.Dir(path)); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		logger.SetOutput(&lumberjack.Logger{
			Filename:   path,
			MaxSize:    50, // megabytes
			MaxBackups: 3,
		})
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	}

	return logger, nil
}
