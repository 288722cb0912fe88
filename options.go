package mxprobe

import (
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/optimode/mxprobe/check"
)

// DNSOptions configures MX resolution.
type DNSOptions struct {
	// Servers replaces the system resolvers, e.g. "1.1.1.1" or "[::1]:5353".
	Servers []string
	// Retries is the number of attempts on timeout or unreachable nameservers. Default: 2
	Retries int
	// RetryDelay is the pause between attempts. Default: 250ms
	RetryDelay time.Duration
}

// SMTPOptions configures the SMTP probe.
type SMTPOptions struct {
	// HeloHost is the name announced in EHLO. Default: "localhost"
	HeloHost string
	// MailFrom is the sender used in MAIL FROM. Default: "verify@yourdomain.test"
	MailFrom string
	// Port is the SMTP port. Default: 25
	Port int
	// MaxMXHosts is how many MX hosts are tried per address. Default: 2
	MaxMXHosts int
	// RetryAttempts is the number of attempts per host. Default: 2
	RetryAttempts int
	// RetryDelay is the pause between attempts on the same host. Default: 350ms
	RetryDelay time.Duration
	// HostCooldown is how long a host that failed at the transport level
	// is skipped. Zero disables it. Default: 5m
	HostCooldown time.Duration
	// SkipStartTLS disables the STARTTLS upgrade.
	SkipStartTLS bool
	// TLSConfig is used for STARTTLS. ServerName is set per host.
	TLSConfig *tls.Config
}

// Options configures a Checker. Start from DefaultOptions.
type Options struct {
	// Timeout bounds one DNS attempt and one SMTP attempt. Default: 8s
	Timeout time.Duration
	// DomainPause is the pause between two addresses. Default: 300ms
	DomainPause time.Duration
	DNS         DNSOptions
	SMTP        SMTPOptions
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
	// Sleep is used for every pause. Defaults to time.Sleep.
	Sleep func(time.Duration)
}

// DefaultOptions returns the options used by the command line tool.
func DefaultOptions() Options {
	return Options{
		Timeout:     8 * time.Second,
		DomainPause: 300 * time.Millisecond,
		DNS: DNSOptions{
			Retries:    2,
			RetryDelay: 250 * time.Millisecond,
		},
		SMTP: SMTPOptions{
			HeloHost:      "localhost",
			MailFrom:      "verify@yourdomain.test",
			Port:          25,
			MaxMXHosts:    2,
			RetryAttempts: 2,
			RetryDelay:    350 * time.Millisecond,
			HostCooldown:  5 * time.Minute,
		},
	}
}

// normalize fills empty names and a missing timeout from DefaultOptions,
// clamps negative pauses to zero and counts to at least one. A zero pause,
// delay or cooldown is kept as given.
func (o Options) normalize() (Options, error) {
	def := DefaultOptions()

	if o.Timeout <= 0 {
		o.Timeout = def.Timeout
	}
	o.DomainPause = max(o.DomainPause, 0)
	o.DNS.Retries = max(o.DNS.Retries, 1)
	o.DNS.RetryDelay = max(o.DNS.RetryDelay, 0)

	if o.SMTP.HeloHost == "" {
		o.SMTP.HeloHost = def.SMTP.HeloHost
	}
	if o.SMTP.MailFrom == "" {
		o.SMTP.MailFrom = def.SMTP.MailFrom
	}
	if o.SMTP.Port <= 0 {
		o.SMTP.Port = def.SMTP.Port
	}
	o.SMTP.MaxMXHosts = max(o.SMTP.MaxMXHosts, 1)
	o.SMTP.RetryAttempts = max(o.SMTP.RetryAttempts, 1)
	o.SMTP.RetryDelay = max(o.SMTP.RetryDelay, 0)
	o.SMTP.HostCooldown = max(o.SMTP.HostCooldown, 0)

	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Sleep == nil {
		o.Sleep = time.Sleep
	}

	if !check.IsValidAddress(o.SMTP.MailFrom) {
		return o, fmt.Errorf("%w: mail from %q is not a valid address", ErrInvalidOptions, o.SMTP.MailFrom)
	}
	if strings.ContainsAny(o.SMTP.HeloHost, " \t\r\n") {
		return o, fmt.Errorf("%w: helo host %q contains whitespace", ErrInvalidOptions, o.SMTP.HeloHost)
	}
	if o.SMTP.Port > 65535 {
		return o, fmt.Errorf("%w: port %d out of range", ErrInvalidOptions, o.SMTP.Port)
	}
	return o, nil
}
