package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/fwiesel/pip-accel/internal/cache"
	"github.com/fwiesel/pip-accel/internal/config"
	"github.com/fwiesel/pip-accel/internal/logging"
	"github.com/fwiesel/pip-accel/internal/state"
)

// Run executes one cache command. Resolved archive paths are written to
// stdout so the surrounding build tooling can consume them.
func Run(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("pip-accel-cache", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	configPath, err := state.ConfigPath()
	if err != nil {
		return err
	}
	fs.StringVar(&configPath, "config", configPath, "path to config file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	rest := fs.Args()
	if len(rest) == 0 {
		return usageError()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.Init(cfg)
	if err != nil {
		return err
	}

	manager, err := newManager(cfg, logger)
	if err != nil {
		return err
	}

	switch rest[0] {
	case "get":
		if len(rest) != 2 {
			return errors.New("usage: pip-accel-cache get <filename>")
		}
		return runGet(manager, rest[1], stdout)
	case "put":
		if len(rest) != 3 {
			return errors.New("usage: pip-accel-cache put <filename> <archive>")
		}
		return runPut(manager, rest[1], rest[2])
	default:
		return usageError()
	}
}

func usageError() error {
	return errors.New("usage: pip-accel-cache [-config path] get <filename> | put <filename> <archive>")
}

// newManager assembles the enabled backends: the local binary cache always,
// Swift when a container is configured, S3 when a bucket is configured.
func newManager(cfg *config.Provider, logger *logrus.Logger) (*cache.Manager, error) {
	dir, err := cfg.BinaryCacheDir()
	if err != nil {
		return nil, err
	}
	backends := []cache.Backend{cache.NewLocalBackend(dir, logger)}

	swiftBackend, err := cache.NewSwiftBackend(cfg, logger)
	if err != nil {
		return nil, err
	}
	if swiftBackend.ContainerName() != "" {
		backends = append(backends, swiftBackend)
	}

	s3Backend, err := cache.NewS3Backend(cfg, logger)
	if err != nil {
		return nil, err
	}
	if s3Backend.Bucket() != "" {
		backends = append(backends, s3Backend)
	}

	return cache.NewManager(logger, backends...), nil
}

func runGet(manager *cache.Manager, filename string, stdout io.Writer) error {
	path, err := manager.Get(filename)
	if err != nil {
		return err
	}
	if path == "" {
		return fmt.Errorf("distribution archive %s is not cached", filename)
	}
	fmt.Fprintln(stdout, path)
	return nil
}

func runPut(manager *cache.Manager, filename, archivePath string) error {
	handle, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive %s: %w", archivePath, err)
	}
	defer handle.Close()

	return manager.Put(filename, handle)
}
