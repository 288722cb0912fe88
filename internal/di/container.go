// Package di wires the command line tool: configuration, logger, MX
// resolver, SMTP prober and checker.
package di

import (
	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/optimode/mxprobe"
	"github.com/optimode/mxprobe/check"
	"github.com/optimode/mxprobe/internal/config"
	"github.com/optimode/mxprobe/internal/logging"
	"github.com/optimode/mxprobe/internal/render"
)

// RunID identifies one batch run in the logs.
type RunID string

// BuildContainer creates and configures a dependency injection container.
// configFile and fs are passed to config.Load.
func BuildContainer(configFile string, fs *pflag.FlagSet) (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(func() (*config.Config, error) {
		return config.Load(configFile, fs)
	}); err != nil {
		return nil, err
	}

	if err := container.Provide(func() RunID {
		return RunID(uuid.NewString())
	}); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(cfg *config.Config, id RunID) (*zap.Logger, error) {
		logger, err := logging.InitLogger(cfg.GetString(config.KeyLogLevel), cfg.GetString(config.KeyLogFormat))
		if err != nil {
			return nil, err
		}
		if used := cfg.ConfigFileUsed(); used != "" {
			logger.Info("Loaded configuration from file", zap.String("file", used))
		}
		return logger.With(zap.String("run_id", string(id))), nil
	}); err != nil {
		return nil, err
	}

	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) (mxprobe.Options, error) {
		opts, err := cfg.Options()
		if err != nil {
			return mxprobe.Options{}, err
		}
		opts.Logger = logger
		return opts, nil
	}); err != nil {
		return nil, err
	}

	if err := container.Provide(func(cfg *config.Config) (render.Format, error) {
		return render.ParseFormat(cfg.GetString(config.KeyFormat))
	}); err != nil {
		return nil, err
	}

	// Register probe components
	if err := container.Provide(mxprobe.NewResolver); err != nil {
		return nil, err
	}
	if err := container.Provide(mxprobe.NewProber); err != nil {
		return nil, err
	}
	if err := container.Provide(func(opts mxprobe.Options, r *check.Resolver, p *check.SMTPProber) (*mxprobe.Checker, error) {
		return mxprobe.NewWithComponents(opts, r, p)
	}); err != nil {
		return nil, err
	}

	return container, nil
}
