package di_test

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/optimode/mxprobe"
	"github.com/optimode/mxprobe/check"
	"github.com/optimode/mxprobe/internal/config"
	"github.com/optimode/mxprobe/internal/di"
	"github.com/optimode/mxprobe/internal/render"
)

func TestBuildContainer_ResolvesChecker(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--format=jsonl", "--dns-servers=192.0.2.53", "--timeout=1", "--log-level=error"}))

	container, err := di.BuildContainer("", fs)
	require.NoError(t, err)

	err = container.Invoke(func(
		c *mxprobe.Checker,
		r *check.Resolver,
		opts mxprobe.Options,
		format render.Format,
		logger *zap.Logger,
		id di.RunID,
	) {
		assert.NotNil(t, c)
		assert.NotNil(t, logger)
		assert.NotEmpty(t, id)
		assert.Equal(t, render.FormatJSONL, format)
		assert.Equal(t, time.Second, opts.Timeout)
		assert.Equal(t, []string{"192.0.2.53:53"}, r.Servers())
	})
	require.NoError(t, err)
}

func TestBuildContainer_BadFormat(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--format=xml"}))

	container, err := di.BuildContainer("", fs)
	require.NoError(t, err)

	err = container.Invoke(func(render.Format) {})
	assert.Error(t, err)
}

func TestBuildContainer_InvalidOptions(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--mail-from=nobody", "--log-level=error"}))

	container, err := di.BuildContainer("", fs)
	require.NoError(t, err)

	err = container.Invoke(func(*mxprobe.Checker) {})
	require.Error(t, err)
	assert.ErrorIs(t, dig.RootCause(err), mxprobe.ErrInvalidOptions)
}
