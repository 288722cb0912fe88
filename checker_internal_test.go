package mxprobe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optimode/mxprobe/check"
)

func TestNew_WiresNormalizedOptions(t *testing.T) {
	var slept []time.Duration
	c, err := New(Options{
		DomainPause: -time.Second,
		Sleep:       func(d time.Duration) { slept = append(slept, d) },
	})
	require.NoError(t, err)

	assert.IsType(t, &check.Resolver{}, c.resolver)
	assert.IsType(t, &check.SMTPProber{}, c.prober)
	assert.Zero(t, c.pause)
	require.NotNil(t, c.log)

	c.sleep(time.Millisecond)
	assert.Equal(t, []time.Duration{time.Millisecond}, slept)
}

func TestNewChecker_KeepsGivenOptions(t *testing.T) {
	opts, err := Options{DomainPause: 2 * time.Second}.normalize()
	require.NoError(t, err)

	c := newChecker(opts, newResolver(opts), newProber(opts))
	assert.Equal(t, 2*time.Second, c.pause)
	assert.Same(t, opts.Logger, c.log)
}
