package check

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/zap"

	"github.com/optimode/mxprobe/internal/dnscache"
	"github.com/optimode/mxprobe/types"
)

// MX lookup details. The last two describe transient failures and are never cached.
const (
	DetailMXFound               = "MX records found"
	DetailDomainMissing         = "domain does not exist"
	DetailNoMX                  = "no usable MX records"
	DetailNameserverUnreachable = "DNS nameserver unreachable"
	DetailDNSTimeout            = "DNS timeout while resolving MX"
)

var (
	errNoNameservers = errors.New("no nameserver answered")
	errDNSTimeout    = errors.New("dns query timed out")
)

// DNSConfig is the MX resolver configuration.
type DNSConfig struct {
	// Timeout bounds one attempt across all servers.
	Timeout time.Duration
	// Servers overrides the system resolvers ("host" or "host:port").
	Servers []string
	// Retries is the number of attempts on timeout or unreachable nameservers.
	Retries    int
	RetryDelay time.Duration
	Logger     *zap.Logger
	// Sleep is injectable for testing. Defaults to time.Sleep.
	Sleep func(time.Duration)
}

// Exchanger sends one DNS message to one server. *dns.Client implements it.
type Exchanger interface {
	ExchangeContext(ctx context.Context, m *dns.Msg, address string) (*dns.Msg, time.Duration, error)
}

// Resolver resolves domains to MX hosts ordered by preference.
// Results are cached for the lifetime of the Resolver, except transient failures.
type Resolver struct {
	cfg     DNSConfig
	servers []string
	udp     Exchanger
	tcp     Exchanger
	cache   *dnscache.Cache
}

// NewResolver creates a resolver that queries cfg.Servers, or the servers
// listed in /etc/resolv.conf when none are given.
func NewResolver(cfg DNSConfig) *Resolver {
	cfg = cfg.withDefaults()
	r := &Resolver{
		cfg:   cfg,
		udp:   &dns.Client{Net: "udp", Timeout: cfg.Timeout},
		tcp:   &dns.Client{Net: "tcp", Timeout: cfg.Timeout},
		cache: dnscache.New(DetailNameserverUnreachable, DetailDNSTimeout),
	}
	if len(cfg.Servers) > 0 {
		r.servers = normalizeServers(cfg.Servers)
		cfg.Logger.Info("Using custom DNS servers", zap.Strings("servers", r.servers))
	} else {
		r.servers = systemNameservers()
	}
	return r
}

// NewResolverWithExchanger is a test-oriented constructor that sends every
// query, UDP or TCP, through ex.
func NewResolverWithExchanger(cfg DNSConfig, ex Exchanger) *Resolver {
	r := NewResolver(cfg)
	r.udp, r.tcp = ex, ex
	return r
}

func (cfg DNSConfig) withDefaults() DNSConfig {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	if cfg.Retries < 1 {
		cfg.Retries = 1
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Sleep == nil {
		cfg.Sleep = time.Sleep
	}
	return cfg
}

// Servers returns the nameservers queried, in order.
func (r *Resolver) Servers() []string {
	return append([]string(nil), r.servers...)
}

// Lookup returns the MX result for domain. It never fails: every failure is
// encoded in the result's Status and Detail.
func (r *Resolver) Lookup(ctx context.Context, domain string) types.MXResult {
	domain = strings.ToLower(strings.TrimSuffix(domain, "."))
	log := r.cfg.Logger.With(zap.String("domain", domain))

	if cached, ok := r.cache.Get(domain); ok {
		log.Debug("MX cache hit")
		return cached
	}
	log.Debug("MX cache miss")

	result := r.lookupUncached(ctx, domain)
	if r.cache.Store(domain, result) {
		log.Debug("MX cached", zap.String("status", result.Status))
	} else {
		log.Debug("MX not cached", zap.String("detail", result.Detail))
	}
	return result
}

func (r *Resolver) lookupUncached(ctx context.Context, domain string) types.MXResult {
	log := r.cfg.Logger.With(zap.String("domain", domain))
	result := mxMissing(domain, DetailDNSTimeout)

	for attempt := 1; attempt <= r.cfg.Retries; attempt++ {
		started := time.Now()
		log.Debug("MX lookup start", zap.Int("attempt", attempt))

		resp, err := r.exchange(ctx, domain)
		elapsed := time.Since(started)
		switch {
		case err == nil:
			result = classifyMX(domain, resp)
			log.Debug("MX lookup done",
				zap.Int("attempt", attempt),
				zap.String("status", result.Status),
				zap.Int("hosts_count", len(result.Hosts)),
				zap.Duration("elapsed", elapsed))
			return result
		case errors.Is(err, errDNSTimeout):
			log.Warn("DNS timeout", zap.Int("attempt", attempt), zap.Duration("elapsed", elapsed), zap.Error(err))
			result = mxMissing(domain, DetailDNSTimeout)
		case errors.Is(err, errNoNameservers):
			log.Warn("No nameservers", zap.Int("attempt", attempt), zap.Duration("elapsed", elapsed), zap.Error(err))
			result = mxMissing(domain, DetailNameserverUnreachable)
		default:
			log.Error("DNS error", zap.Error(err))
			return mxMissing(domain, "DNS error: "+err.Error())
		}

		if attempt < r.cfg.Retries {
			r.cfg.Sleep(r.cfg.RetryDelay)
		}
	}
	return result
}

// exchange runs one attempt: the query goes to each server in turn until one
// gives an authoritative answer (NOERROR or NXDOMAIN).
func (r *Resolver) exchange(ctx context.Context, domain string) (*dns.Msg, error) {
	fqdn := dns.Fqdn(domain)
	if domain == "" {
		return nil, errors.New("empty domain name")
	}
	if _, ok := dns.IsDomainName(fqdn); !ok {
		return nil, fmt.Errorf("invalid domain name %q", domain)
	}

	m := new(dns.Msg)
	m.SetQuestion(fqdn, dns.TypeMX)
	m.RecursionDesired = true
	if _, err := m.Pack(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	var lastErr error
	timeouts := 0
	for _, server := range r.servers {
		if ctx.Err() != nil {
			break
		}
		resp, _, err := r.udp.ExchangeContext(ctx, m, server)
		if err == nil && resp.Truncated {
			resp, _, err = r.tcp.ExchangeContext(ctx, m, server)
		}
		if err != nil {
			if isTimeout(err) {
				timeouts++
			}
			lastErr = fmt.Errorf("%s: %w", server, err)
			continue
		}

		switch resp.Rcode {
		case dns.RcodeSuccess, dns.RcodeNameError:
			return resp, nil
		default:
			lastErr = fmt.Errorf("%s answered %s", server, dns.RcodeToString[resp.Rcode])
		}
	}

	if ctx.Err() != nil || (timeouts > 0 && timeouts == len(r.servers)) {
		return nil, fmt.Errorf("%w: %v", errDNSTimeout, lastErr)
	}
	return nil, fmt.Errorf("%w: %v", errNoNameservers, lastErr)
}

// classifyMX turns an authoritative answer into a result. Hosts are sorted
// by preference, ties keep answer order; empty names (null MX) are dropped.
func classifyMX(domain string, resp *dns.Msg) types.MXResult {
	if resp.Rcode == dns.RcodeNameError {
		return types.MXResult{Domain: domain, Status: types.DomainMissing, Hosts: []string{}, Detail: DetailDomainMissing}
	}

	var records []*dns.MX
	for _, rr := range resp.Answer {
		if mx, ok := rr.(*dns.MX); ok {
			records = append(records, mx)
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Preference < records[j].Preference
	})

	hosts := make([]string, 0, len(records))
	for _, mx := range records {
		if host := strings.TrimSuffix(mx.Mx, "."); host != "" {
			hosts = append(hosts, host)
		}
	}
	if len(hosts) == 0 {
		return mxMissing(domain, DetailNoMX)
	}
	return types.MXResult{Domain: domain, Status: types.DomainValid, Hosts: hosts, Detail: DetailMXFound}
}

func mxMissing(domain, detail string) types.MXResult {
	return types.MXResult{Domain: domain, Status: types.MXMissing, Hosts: []string{}, Detail: detail}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, os.ErrDeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout())
}

// normalizeServers adds the default port 53 where none is given.
func normalizeServers(servers []string) []string {
	out := make([]string, 0, len(servers))
	for _, s := range servers {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, _, err := net.SplitHostPort(s); err != nil {
			s = net.JoinHostPort(strings.Trim(s, "[]"), "53")
		}
		out = append(out, s)
	}
	return out
}

// systemNameservers reads /etc/resolv.conf, falling back to public resolvers.
func systemNameservers() []string {
	conf, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(conf.Servers) == 0 {
		return []string{"8.8.8.8:53", "1.1.1.1:53"}
	}
	servers := make([]string, 0, len(conf.Servers))
	for _, s := range conf.Servers {
		servers = append(servers, net.JoinHostPort(s, conf.Port))
	}
	return servers
}
