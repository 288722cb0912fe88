package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optimode/mxprobe"
	"github.com/optimode/mxprobe/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("", nil)
	require.NoError(t, err)

	opts, err := cfg.Options()
	require.NoError(t, err)
	assert.Equal(t, mxprobe.DefaultOptions(), opts)

	assert.Equal(t, "info", cfg.GetString(config.KeyLogLevel))
	assert.Equal(t, "console", cfg.GetString(config.KeyLogFormat))
	assert.Equal(t, "table", cfg.GetString(config.KeyFormat))
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("MXPROBE_TIMEOUT", "2.5")
	t.Setenv("MXPROBE_DNS_SERVERS", "1.1.1.1, 8.8.8.8")
	t.Setenv("MXPROBE_LOG_LEVEL", "debug")
	t.Setenv("MXPROBE_TRY_STARTTLS", "false")

	cfg, err := config.Load("", nil)
	require.NoError(t, err)

	opts, err := cfg.Options()
	require.NoError(t, err)
	assert.Equal(t, 2500*time.Millisecond, opts.Timeout)
	assert.Equal(t, []string{"1.1.1.1", "8.8.8.8"}, opts.DNS.Servers)
	assert.True(t, opts.SMTP.SkipStartTLS)
	assert.Equal(t, "debug", cfg.GetString(config.KeyLogLevel))
}

func TestLoad_FlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("MXPROBE_TIMEOUT", "2")
	t.Setenv("MXPROBE_HELO_HOST", "env.example")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{
		"--timeout=3s",
		"--try-starttls=false",
		"--dns-servers=9.9.9.9",
		"--max-mx-tries=1",
		"--domain-pause=0",
		"--format=jsonl",
	}))

	cfg, err := config.Load("", fs)
	require.NoError(t, err)

	opts, err := cfg.Options()
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, opts.Timeout)
	assert.True(t, opts.SMTP.SkipStartTLS)
	assert.Equal(t, []string{"9.9.9.9"}, opts.DNS.Servers)
	assert.Equal(t, 1, opts.SMTP.MaxMXHosts)
	assert.Zero(t, opts.DomainPause)
	assert.Equal(t, "env.example", opts.SMTP.HeloHost)
	assert.Equal(t, "jsonl", cfg.GetString(config.KeyFormat))
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mxprobe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
timeout: 5
smtp_host_cooldown: 10m
mail_from: probe@example.org
dns_servers:
  - 192.0.2.53
log:
  level: warn
`), 0o600))

	cfg, err := config.Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.ConfigFileUsed())

	opts, err := cfg.Options()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, opts.Timeout)
	assert.Equal(t, 10*time.Minute, opts.SMTP.HostCooldown)
	assert.Equal(t, "probe@example.org", opts.SMTP.MailFrom)
	assert.Equal(t, []string{"192.0.2.53"}, opts.DNS.Servers)
	assert.Equal(t, "warn", cfg.GetString(config.KeyLogLevel))
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.Error(t, err)
}

func TestOptions_InvalidDuration(t *testing.T) {
	v := config.NewEmptyViper()
	v.Set(config.KeyDomainPause, "soon")

	_, err := config.NewFromViper(v).Options()
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.KeyDomainPause)
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"8", 8 * time.Second, false},
		{"0.3", 300 * time.Millisecond, false},
		{"0.35", 350 * time.Millisecond, false},
		{" 1.5 ", 1500 * time.Millisecond, false},
		{"250ms", 250 * time.Millisecond, false},
		{"5m", 5 * time.Minute, false},
		{"0", 0, false},
		{"-1", -time.Second, false},
		{"", 0, true},
		{"NaN", 0, true},
		{"Inf", 0, true},
		{"later", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := config.ParseDuration(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
