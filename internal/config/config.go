// Package config loads mxprobe settings from defaults, an optional YAML
// file, MXPROBE_* environment variables and command line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/optimode/mxprobe"
)

// Configuration keys.
const (
	KeyTimeout           = "timeout"
	KeyMaxMXTries        = "max_mx_tries"
	KeyDomainPause       = "domain_pause"
	KeyMailFrom          = "mail_from"
	KeyHeloHost          = "helo_host"
	KeyDNSServers        = "dns_servers"
	KeyDNSRetries        = "dns_retries"
	KeyDNSRetryDelay     = "dns_retry_delay"
	KeySMTPRetryAttempts = "smtp_retry_attempts"
	KeySMTPRetryDelay    = "smtp_retry_delay"
	KeySMTPHostCooldown  = "smtp_host_cooldown"
	KeyTryStartTLS       = "try_starttls"
	KeySMTPPort          = "smtp_port"
	KeyLogLevel          = "log.level"
	KeyLogFormat         = "log.format"
	KeyFormat            = "format"
)

const envPrefix = "MXPROBE"

// flagNames maps configuration keys to their command line flag.
var flagNames = map[string]string{
	KeyTimeout:           "timeout",
	KeyMaxMXTries:        "max-mx-tries",
	KeyDomainPause:       "domain-pause",
	KeyMailFrom:          "mail-from",
	KeyHeloHost:          "helo-host",
	KeyDNSServers:        "dns-servers",
	KeyDNSRetries:        "dns-retries",
	KeyDNSRetryDelay:     "dns-retry-delay",
	KeySMTPRetryAttempts: "smtp-retry-attempts",
	KeySMTPRetryDelay:    "smtp-retry-delay",
	KeySMTPHostCooldown:  "smtp-host-cooldown",
	KeyTryStartTLS:       "try-starttls",
	KeySMTPPort:          "smtp-port",
	KeyLogLevel:          "log-level",
	KeyLogFormat:         "log-format",
	KeyFormat:            "format",
}

// Config represents the application configuration.
type Config struct {
	v *viper.Viper
}

// NewFromViper creates a configuration from an existing Viper instance.
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a Viper instance holding only the defaults.
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyTimeout, "8")
	v.SetDefault(KeyMaxMXTries, 2)
	v.SetDefault(KeyDomainPause, "0.3")
	v.SetDefault(KeyMailFrom, "verify@yourdomain.test")
	v.SetDefault(KeyHeloHost, "localhost")
	v.SetDefault(KeyDNSServers, []string{})
	v.SetDefault(KeyDNSRetries, 2)
	v.SetDefault(KeyDNSRetryDelay, "0.25")
	v.SetDefault(KeySMTPRetryAttempts, 2)
	v.SetDefault(KeySMTPRetryDelay, "0.35")
	v.SetDefault(KeySMTPHostCooldown, "300")
	v.SetDefault(KeyTryStartTLS, true)
	v.SetDefault(KeySMTPPort, 25)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")
	v.SetDefault(KeyFormat, "table")
}

// RegisterFlags adds a flag for every configuration key to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(flagNames[KeyTimeout], "8", "Network timeout per DNS or SMTP attempt (seconds or Go duration)")
	fs.Int(flagNames[KeyMaxMXTries], 2, "Maximum MX hosts probed per address")
	fs.String(flagNames[KeyDomainPause], "0.3", "Pause between addresses (seconds or Go duration)")
	fs.String(flagNames[KeyMailFrom], "verify@yourdomain.test", "Sender address used in MAIL FROM")
	fs.String(flagNames[KeyHeloHost], "localhost", "Host name announced in EHLO")
	fs.StringSlice(flagNames[KeyDNSServers], nil, "DNS servers to query instead of the system resolvers")
	fs.Int(flagNames[KeyDNSRetries], 2, "Attempts per MX lookup on DNS timeout or unreachable nameservers")
	fs.String(flagNames[KeyDNSRetryDelay], "0.25", "Pause between DNS attempts (seconds or Go duration)")
	fs.Int(flagNames[KeySMTPRetryAttempts], 2, "Attempts per MX host on transport failures")
	fs.String(flagNames[KeySMTPRetryDelay], "0.35", "Pause between SMTP attempts (seconds or Go duration)")
	fs.String(flagNames[KeySMTPHostCooldown], "300", "How long a failing MX host is skipped (seconds or Go duration, 0 disables)")
	fs.Bool(flagNames[KeyTryStartTLS], true, "Upgrade SMTP sessions with STARTTLS when offered")
	fs.Int(flagNames[KeySMTPPort], 25, "SMTP port")
	fs.String(flagNames[KeyLogLevel], "info", "Log level (debug, info, warn, error)")
	fs.String(flagNames[KeyLogFormat], "console", "Log format (console, json)")
	fs.String(flagNames[KeyFormat], "table", "Output format (table, jsonl)")
}

// Load builds the configuration. configFile may be empty, in which case
// mxprobe.yaml is looked up in $HOME/.mxprobe and the working directory.
// fs may be nil; otherwise flags registered with RegisterFlags override
// every other source when set.
func Load(configFile string, fs *pflag.FlagSet) (*Config, error) {
	v := NewEmptyViper()

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for key, name := range flagNames {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		return &Config{v: v}, nil
	}

	v.SetConfigName("mxprobe")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME/.mxprobe")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return &Config{v: v}, nil
}

// GetString gets a string value from the configuration.
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration.
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetBool gets a boolean value from the configuration.
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a list from the configuration. Elements are also
// split on commas so that "a,b" from the environment yields two entries.
func (c *Config) GetStringSlice(key string) []string {
	var out []string
	for _, item := range c.v.GetStringSlice(key) {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// GetDuration reads key as plain seconds ("0.3") or a Go duration ("300ms").
func (c *Config) GetDuration(key string) (time.Duration, error) {
	d, err := ParseDuration(c.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

// ConfigFileUsed returns the path of the file that was read, if any.
func (c *Config) ConfigFileUsed() string {
	return c.v.ConfigFileUsed()
}

// ParseDuration accepts a number of seconds or a Go duration string.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		if math.IsNaN(secs) || math.IsInf(secs, 0) {
			return 0, fmt.Errorf("%q is not a finite number of seconds", s)
		}
		return time.Duration(math.Round(secs * float64(time.Second))), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%q is neither seconds nor a duration", s)
	}
	return d, nil
}

// Options converts the configuration into checker options.
func (c *Config) Options() (mxprobe.Options, error) {
	opts := mxprobe.DefaultOptions()

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{KeyTimeout, &opts.Timeout},
		{KeyDomainPause, &opts.DomainPause},
		{KeyDNSRetryDelay, &opts.DNS.RetryDelay},
		{KeySMTPRetryDelay, &opts.SMTP.RetryDelay},
		{KeySMTPHostCooldown, &opts.SMTP.HostCooldown},
	}
	for _, d := range durations {
		v, err := c.GetDuration(d.key)
		if err != nil {
			return mxprobe.Options{}, err
		}
		*d.dst = v
	}

	opts.DNS.Servers = c.GetStringSlice(KeyDNSServers)
	opts.DNS.Retries = c.GetInt(KeyDNSRetries)
	opts.SMTP.HeloHost = c.GetString(KeyHeloHost)
	opts.SMTP.MailFrom = c.GetString(KeyMailFrom)
	opts.SMTP.Port = c.GetInt(KeySMTPPort)
	opts.SMTP.MaxMXHosts = c.GetInt(KeyMaxMXTries)
	opts.SMTP.RetryAttempts = c.GetInt(KeySMTPRetryAttempts)
	opts.SMTP.SkipStartTLS = !c.GetBool(KeyTryStartTLS)
	return opts, nil
}
