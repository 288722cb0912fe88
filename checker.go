package mxprobe

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/optimode/mxprobe/check"
	"github.com/optimode/mxprobe/internal/parse"
	"github.com/optimode/mxprobe/types"
)

// Details reported when the SMTP probe does not run.
const (
	DetailInvalidFormat = "invalid address format"
	DetailSMTPSkipped   = "SMTP skipped"
)

// Resolver resolves a domain to its MX hosts. *check.Resolver implements it.
type Resolver interface {
	Lookup(ctx context.Context, domain string) types.MXResult
}

// Prober asks MX hosts whether they accept a recipient. *check.SMTPProber implements it.
type Prober interface {
	Verify(ctx context.Context, rcpt string, hosts []string) types.SMTPResult
}

// Checker drives the checks for a batch of addresses, one address at a time.
// Instantiate with New.
type Checker struct {
	resolver Resolver
	prober   Prober
	pause    time.Duration
	sleep    func(time.Duration)
	log      *zap.Logger
}

// New creates a Checker with its own MX cache and host cooldown table.
func New(opts Options) (*Checker, error) {
	opts, err := opts.normalize()
	if err != nil {
		return nil, err
	}
	return newChecker(opts, newResolver(opts), newProber(opts)), nil
}

// NewResolver creates the MX resolver New would use for opts.
func NewResolver(opts Options) (*check.Resolver, error) {
	opts, err := opts.normalize()
	if err != nil {
		return nil, err
	}
	return newResolver(opts), nil
}

// NewProber creates the SMTP prober New would use for opts.
func NewProber(opts Options) (*check.SMTPProber, error) {
	opts, err := opts.normalize()
	if err != nil {
		return nil, err
	}
	return newProber(opts), nil
}

// NewWithComponents creates a Checker around an existing resolver and prober.
// Only DomainPause, Logger and Sleep are taken from opts.
func NewWithComponents(opts Options, resolver Resolver, prober Prober) (*Checker, error) {
	if resolver == nil || prober == nil {
		return nil, fmt.Errorf("%w: resolver and prober are required", ErrInvalidOptions)
	}
	opts, err := opts.normalize()
	if err != nil {
		return nil, err
	}
	return newChecker(opts, resolver, prober), nil
}

// The constructors below expect options that already went through normalize.

func newResolver(opts Options) *check.Resolver {
	return check.NewResolver(check.DNSConfig{
		Timeout:    opts.Timeout,
		Servers:    opts.DNS.Servers,
		Retries:    opts.DNS.Retries,
		RetryDelay: opts.DNS.RetryDelay,
		Logger:     opts.Logger,
		Sleep:      opts.Sleep,
	})
}

func newProber(opts Options) *check.SMTPProber {
	return check.NewSMTPProber(check.SMTPConfig{
		HeloHost:      opts.SMTP.HeloHost,
		MailFrom:      opts.SMTP.MailFrom,
		Port:          opts.SMTP.Port,
		Timeout:       opts.Timeout,
		MaxMXHosts:    opts.SMTP.MaxMXHosts,
		RetryAttempts: opts.SMTP.RetryAttempts,
		RetryDelay:    opts.SMTP.RetryDelay,
		HostCooldown:  opts.SMTP.HostCooldown,
		StartTLS:      !opts.SMTP.SkipStartTLS,
		TLSConfig:     opts.SMTP.TLSConfig,
		Sleep:         opts.Sleep,
		Logger:        opts.Logger,
	})
}

func newChecker(opts Options, resolver Resolver, prober Prober) *Checker {
	return &Checker{
		resolver: resolver,
		prober:   prober,
		pause:    opts.DomainPause,
		sleep:    opts.Sleep,
		log:      opts.Logger,
	}
}

// Check runs the whole pipeline for one address: syntax, MX lookup and,
// when the domain has MX hosts, the SMTP probe. Invalid addresses cause no
// network traffic.
func (c *Checker) Check(ctx context.Context, address string) Result {
	email := parse.NewEmail(address)
	log := c.log.With(zap.String("email", address))

	if reason := check.ValidateSyntax(email); reason != "" {
		log.Debug("Invalid address", zap.String("reason", reason))
		return Result{
			Email:        address,
			Domain:       email.Domain,
			DomainStatus: types.DomainMissing,
			MXHosts:      []string{},
			SMTPStatus:   types.SMTPUnknown,
			SMTPDetail:   DetailInvalidFormat,
		}
	}

	mx := c.resolver.Lookup(ctx, email.Domain)
	result := Result{
		Email:        address,
		Domain:       email.Domain,
		DomainStatus: mx.Status,
		MXHosts:      mx.Hosts,
		SMTPStatus:   types.SMTPUnknown,
		SMTPDetail:   DetailSMTPSkipped,
	}
	if result.MXHosts == nil {
		result.MXHosts = []string{}
	}
	if mx.Status != types.DomainValid {
		log.Debug("SMTP skipped", zap.String("domain_status", mx.Status), zap.String("detail", mx.Detail))
		return result
	}

	smtp := c.prober.Verify(ctx, email.Address(), mx.Hosts)
	result.SMTPStatus = smtp.Status
	result.SMTPDetail = smtp.Detail
	log.Debug("Address checked",
		zap.String("domain_status", result.DomainStatus),
		zap.String("smtp_status", result.SMTPStatus),
		zap.Int("smtp_code", smtp.Code))
	return result
}

// CheckAll checks addresses sequentially and returns one Result per
// address, in input order. It pauses DomainPause between addresses.
//
// If ctx is done before the next address is started, CheckAll returns the
// results gathered so far together with ctx.Err().
func (c *Checker) CheckAll(ctx context.Context, addresses []string) ([]Result, error) {
	results := make([]Result, 0, len(addresses))

	for i, address := range addresses {
		if err := ctx.Err(); err != nil {
			c.log.Info("Batch stopped", zap.Int("checked", i), zap.Int("total", len(addresses)), zap.Error(err))
			return results, err
		}

		results = append(results, c.Check(ctx, address))

		if i < len(addresses)-1 && c.pause > 0 {
			c.sleep(c.pause)
		}
	}
	return results, nil
}
