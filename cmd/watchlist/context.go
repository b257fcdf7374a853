package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"watchlist/internal/config"
	"watchlist/internal/logging"
	"watchlist/internal/providerstore"
	"watchlist/internal/telemetry"
	"watchlist/internal/watchlist"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error

	storeOnce sync.Once
	store     *providerstore.Store
	storeErr  error

	lock      *flock.Flock
	requestID string
	shutdown  telemetry.ShutdownFunc
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
		requestID:    uuid.NewString(),
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil {
			if level := strings.ToLower(strings.TrimSpace(*c.logLevelFlag)); level != "" {
				cfg.Logging.Level = level
			}
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// baseContext stamps the invocation's correlation ID on ctx.
func (c *commandContext) baseContext(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return logging.WithRequestID(ctx, c.requestID)
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			c.loggerErr = fmt.Errorf("init logger: %w", err)
			return
		}
		c.logger = logger
	})
	return c.logger, c.loggerErr
}

func (c *commandContext) ensureStore() (*providerstore.Store, error) {
	c.storeOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.storeErr = err
			return
		}
		store, err := providerstore.Open(cfg.CachePath())
		if err != nil {
			c.storeErr = fmt.Errorf("open availability cache: %w", err)
			return
		}
		c.store = store
	})
	return c.store, c.storeErr
}

func (c *commandContext) library() (*watchlist.Library, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return watchlist.NewLibrary(cfg.Paths.UploadsDir)
}

// acquireWriteLock takes the cache writer lock so only one process refreshes
// or mutates the cache database at a time.
func (c *commandContext) acquireWriteLock() error {
	if c.lock != nil {
		return nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire cache lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("cache %s is in use by another watchlist process", cfg.CachePath())
	}
	c.lock = lock
	return nil
}

func (c *commandContext) startTelemetry(ctx context.Context) error {
	if c.shutdown != nil {
		return nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	c.shutdown = shutdown
	return nil
}

func (c *commandContext) close(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var errs []error
	if c.shutdown != nil {
		errs = append(errs, c.shutdown(ctx))
		c.shutdown = nil
	}
	if c.store != nil {
		errs = append(errs, c.store.Close())
		c.store = nil
	}
	if c.lock != nil {
		errs = append(errs, c.lock.Unlock())
		c.lock = nil
	}
	return errors.Join(errs...)
}

// withResources releases whatever the command opened once run returns,
// including on error paths.
func (c *commandContext) withResources(run func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		defer func() {
			if closeErr := c.close(cmd.Context()); closeErr != nil {
				err = errors.Join(err, closeErr)
			}
		}()
		return run(cmd, args)
	}
}
