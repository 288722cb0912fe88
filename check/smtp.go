package check

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/optimode/mxprobe/internal/cooldown"
	"github.com/optimode/mxprobe/internal/smtpconn"
	"github.com/optimode/mxprobe/types"
)

// Details of inconclusive probes.
const (
	DetailNoHosts     = "no mail-exchange hosts to probe"
	DetailUnverified  = "could not verify"
	policyBlockPrefix = "policy/block: "
	blockingHint      = " Outbound SMTP connections on port 25 are probably blocked by the network or provider."
	maxNotes          = 4
)

// SMTPConfig is the SMTP prober configuration.
type SMTPConfig struct {
	HeloHost string
	MailFrom string
	Port     int
	// Timeout bounds one attempt against one host.
	Timeout time.Duration
	// MaxMXHosts is the number of MX hosts tried per address, at least 1.
	MaxMXHosts    int
	RetryAttempts int
	RetryDelay    time.Duration
	// HostCooldown is how long a host is skipped after a transport failure.
	// Zero disables the cooldown.
	HostCooldown time.Duration
	StartTLS     bool
	TLSConfig    *tls.Config

	// Dial, Sleep and Now are injectable for testing.
	Dial   func(network, address string, timeout time.Duration) (net.Conn, error)
	Sleep  func(time.Duration)
	Now    func() time.Time
	Logger *zap.Logger
}

// SMTPProber asks MX hosts whether they accept a recipient, without sending mail.
// It remembers hosts that failed at the transport level and skips them
// for the cooldown window.
type SMTPProber struct {
	cfg       SMTPConfig
	dialer    *smtpconn.Dialer
	cooldowns *cooldown.Table
}

// NewSMTPProber creates a prober with its own cooldown table.
func NewSMTPProber(cfg SMTPConfig) *SMTPProber {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	if cfg.MaxMXHosts < 1 {
		cfg.MaxMXHosts = 1
	}
	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = 1
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}
	if cfg.Port <= 0 {
		cfg.Port = 25
	}
	if cfg.Sleep == nil {
		cfg.Sleep = time.Sleep
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &SMTPProber{
		cfg: cfg,
		dialer: smtpconn.New(smtpconn.Config{
			HeloHost:  cfg.HeloHost,
			MailFrom:  cfg.MailFrom,
			Port:      strconv.Itoa(cfg.Port),
			Timeout:   cfg.Timeout,
			StartTLS:  cfg.StartTLS,
			TLSConfig: cfg.TLSConfig,
			Dial:      cfg.Dial,
			Logger:    cfg.Logger,
		}),
		cooldowns: cooldown.New(cfg.HostCooldown, cfg.Now),
	}
}

// Verify probes the first MaxMXHosts of hosts for rcpt and returns the first
// classified reply. Transport failures are retried, then the next host is tried.
// It never fails: inconclusive outcomes are reported as unknown.
func (p *SMTPProber) Verify(ctx context.Context, rcpt string, hosts []string) types.SMTPResult {
	if len(hosts) == 0 {
		return types.SMTPResult{Status: types.SMTPUnknown, Detail: DetailNoHosts}
	}

	log := p.cfg.Logger.With(zap.String("email", rcpt))
	log.Debug("SMTP verify start", zap.Strings("mx_hosts", hosts))

	candidates := hosts[:min(len(hosts), p.cfg.MaxMXHosts)]
	var notes []string

probe:
	for _, host := range candidates {
		if left, reason, cooling := p.cooldowns.Check(host); cooling {
			note := fmt.Sprintf("%s: skipped after recent %s (cooldown %ds left)", host, reason, int(left.Seconds()))
			log.Debug("SMTP host skipped by cooldown", zap.String("host", host), zap.String("note", note))
			notes = append(notes, note)
			continue
		}

		for attempt := 1; attempt <= p.cfg.RetryAttempts; attempt++ {
			if err := ctx.Err(); err != nil {
				notes = append(notes, "probe cancelled: "+err.Error())
				break probe
			}

			log.Debug("SMTP attempt start", zap.String("host", host), zap.Int("attempt", attempt))
			started := time.Now()
			reply, err := p.dialer.Verify(host, rcpt)
			if err == nil {
				result := classifyReply(reply)
				log.Debug("SMTP attempt success",
					zap.String("host", host),
					zap.Int("attempt", attempt),
					zap.String("status", result.Status),
					zap.Int("code", result.Code),
					zap.Duration("elapsed", time.Since(started)))
				return result
			}

			var te *smtpconn.TransportError
			if !errors.As(err, &te) {
				log.Warn("SMTP protocol error", zap.String("host", host), zap.Error(err))
				return types.SMTPResult{Status: types.SMTPUnknown, Detail: "SMTP error: " + err.Error()}
			}

			log.Warn("SMTP attempt failed",
				zap.String("host", host),
				zap.Int("attempt", attempt),
				zap.String("reason", te.Reason),
				zap.Duration("elapsed", time.Since(started)))
			if p.cooldowns.Mark(host, te.Reason) {
				log.Debug("SMTP host marked unavailable",
					zap.String("host", host),
					zap.String("reason", te.Reason),
					zap.Duration("cooldown", p.cfg.HostCooldown))
			}
			notes = append(notes, fmt.Sprintf("%s: attempt %d failed: %s", host, attempt, te.Reason))

			if attempt < p.cfg.RetryAttempts {
				p.cfg.Sleep(p.cfg.RetryDelay)
			}
		}
	}

	result := summarize(notes)
	log.Debug("SMTP verify finished", zap.String("status", result.Status), zap.String("detail", result.Detail))
	return result
}

// summarize builds the unknown result from the most recent failure notes.
func summarize(notes []string) types.SMTPResult {
	if len(notes) == 0 {
		return types.SMTPResult{Status: types.SMTPUnknown, Detail: DetailUnverified}
	}

	hint := ""
	for _, n := range notes {
		if strings.Contains(n, "timeout") || strings.Contains(n, "network error") {
			hint = blockingHint
			break
		}
	}
	recent := notes[max(0, len(notes)-maxNotes):]
	return types.SMTPResult{Status: types.SMTPUnknown, Detail: strings.Join(recent, "; ") + hint}
}

// classifyReply maps the reply that ended the conversation. Only a permanent
// MAIL FROM rejection stops short of RCPT TO.
func classifyReply(r smtpconn.Reply) types.SMTPResult {
	if r.Stage == smtpconn.StageMail {
		return types.SMTPResult{Status: types.SMTPUnknown, Detail: "MAIL FROM rejected: " + r.String(), Code: r.Code}
	}
	return ClassifyRcpt(r.Code, r.Message)
}

// ClassifyRcpt maps a RCPT TO reply to a result.
//
//	250, 251                   deliverable
//	550-554                    undeliverable
//	421, 450-452               tempfail
//	530, 535 and other >= 500  unknown, "policy/block: " detail
//	anything else              unknown
func ClassifyRcpt(code int, msg string) types.SMTPResult {
	detail := strings.TrimSpace(fmt.Sprintf("%d %s", code, smtpconn.Decode(msg)))

	switch {
	case code == 250 || code == 251:
		return types.SMTPResult{Status: types.SMTPDeliverable, Detail: detail, Code: code}
	case code >= 550 && code <= 554:
		return types.SMTPResult{Status: types.SMTPUndeliverable, Detail: detail, Code: code}
	case code == 450 || code == 451 || code == 452 || code == 421:
		return types.SMTPResult{Status: types.SMTPTempFail, Detail: detail, Code: code}
	case code == 530 || code == 535 || code >= 500:
		return types.SMTPResult{Status: types.SMTPUnknown, Detail: policyBlockPrefix + detail, Code: code}
	default:
		return types.SMTPResult{Status: types.SMTPUnknown, Detail: detail, Code: code}
	}
}
