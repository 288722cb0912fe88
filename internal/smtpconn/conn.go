// Package smtpconn runs a single SMTP conversation against one mail server:
// connect, EHLO, optional STARTTLS, MAIL FROM and RCPT TO. DATA is never sent.
package smtpconn

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-smtp"
	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// Config configures a Dialer.
type Config struct {
	HeloHost string
	MailFrom string
	Port     string
	// Timeout bounds one whole conversation, including the TCP connect.
	Timeout time.Duration
	// StartTLS upgrades the session when the server advertises STARTTLS.
	StartTLS bool
	// TLSConfig is cloned per host; ServerName is filled in when empty.
	TLSConfig *tls.Config
	// Dial is injectable for testing. Defaults to net.DialTimeout.
	Dial   func(network, address string, timeout time.Duration) (net.Conn, error)
	Logger *zap.Logger
}

// Stage is the command a Reply answers.
type Stage string

const (
	StageMail Stage = "MAIL FROM"
	StageRcpt Stage = "RCPT TO"
)

// Reply is a server answer that ends a conversation.
type Reply struct {
	Stage Stage
	Code  int
	// Enhanced is the RFC 3463 status code leading Message, or
	// smtp.NoEnhancedCode when the server sent none.
	Enhanced smtp.EnhancedCode
	// Message is the server text, multi-line replies folded into one line.
	Message string
}

// String renders the reply as "<code> <text>".
func (r Reply) String() string {
	return strings.TrimSpace(fmt.Sprintf("%d %s", r.Code, r.Message))
}

func newReply(stage Stage, code int, msg string) Reply {
	return Reply{
		Stage:    stage,
		Code:     code,
		Enhanced: enhancedCode(code, msg),
		Message:  Decode(strings.ReplaceAll(msg, "\n", " ")),
	}
}

// enhancedCode parses the "class.subject.detail" prefix of msg. The class
// must agree with the reply code.
func enhancedCode(code int, msg string) smtp.EnhancedCode {
	head, _, _ := strings.Cut(msg, " ")
	parts := strings.Split(head, ".")
	if len(parts) != 3 {
		return smtp.NoEnhancedCode
	}
	var ec smtp.EnhancedCode
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 999 {
			return smtp.NoEnhancedCode
		}
		ec[i] = n
	}
	if ec[0] != code/100 {
		return smtp.NoEnhancedCode
	}
	return ec
}

// TransportError means the host could not be talked to: the attempt failed
// before a reply could classify the recipient.
type TransportError struct {
	Reason string
	Err    error
}

func (e *TransportError) Error() string { return e.Reason }
func (e *TransportError) Unwrap() error { return e.Err }

// tlsError marks a failed upgrade after which the connection is unusable.
type tlsError struct{ err error }

func (e *tlsError) Error() string { return "STARTTLS: " + e.err.Error() }
func (e *tlsError) Unwrap() error { return e.err }

// Dialer opens conversations. It holds no per-host state.
type Dialer struct {
	cfg Config
}

// New creates a Dialer.
func New(cfg Config) *Dialer {
	if cfg.Dial == nil {
		cfg.Dial = net.DialTimeout
	}
	if cfg.Port == "" {
		cfg.Port = "25"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Dialer{cfg: cfg}
}

// Verify asks host whether it accepts rcpt.
//
// A nil error comes with a Reply: either the RCPT TO answer or a MAIL FROM
// rejection (code >= 500). A *TransportError means the host was unreachable
// or dropped the session. Any other error is a protocol violation by the
// server.
func (d *Dialer) Verify(host, rcpt string) (Reply, error) {
	deadline := time.Now().Add(d.cfg.Timeout)

	reply, err := d.converse(host, rcpt, deadline, d.cfg.StartTLS)
	var tlsErr *tlsError
	if errors.As(err, &tlsErr) {
		d.cfg.Logger.Info("STARTTLS not used", zap.String("host", host), zap.Error(tlsErr.err))
		reply, err = d.converse(host, rcpt, deadline, false)
	}
	return reply, err
}

func (d *Dialer) converse(host, rcpt string, deadline time.Time, tryTLS bool) (Reply, error) {
	log := d.cfg.Logger.With(zap.String("host", host))
	left := time.Until(deadline)
	if left <= 0 {
		return Reply{}, &TransportError{Reason: "timeout", Err: errDeadline}
	}

	log.Debug("SMTP connect", zap.Duration("timeout", left), zap.Bool("starttls", tryTLS))
	conn, err := d.cfg.Dial("tcp", net.JoinHostPort(host, d.cfg.Port), left)
	if err != nil {
		return Reply{}, transportError(err, true)
	}
	s := newSession(conn, deadline)
	defer s.close()

	if err := s.greet(); err != nil {
		return Reply{}, transportError(err, true)
	}
	if err := s.hello(d.cfg.HeloHost); err != nil {
		return Reply{}, transportError(err, true)
	}

	if _, ok := s.ext["STARTTLS"]; ok && tryTLS {
		if err := d.startTLS(s, host); err != nil {
			return Reply{}, err
		}
	}

	code, msg, err := s.cmd("MAIL FROM:<%s>", d.cfg.MailFrom)
	if err != nil {
		return Reply{}, commandError(err)
	}
	log.Debug("SMTP MAIL FROM", zap.Int("code", code), zap.String("msg", msg))
	if code >= 500 {
		s.quit()
		return newReply(StageMail, code, msg), nil
	}

	code, msg, err = s.cmd("RCPT TO:<%s>", rcpt)
	if err != nil {
		return Reply{}, commandError(err)
	}
	reply := newReply(StageRcpt, code, msg)
	log.Debug("SMTP RCPT",
		zap.String("rcpt", rcpt),
		zap.Int("code", reply.Code),
		zap.String("enhanced", enhancedString(reply.Enhanced)),
		zap.String("msg", reply.Message))

	s.quit()
	return reply, nil
}

// startTLS upgrades the session and re-issues EHLO. A refusal leaves the
// session in cleartext and is not an error; a failed handshake returns
// *tlsError because the connection can no longer be used.
func (d *Dialer) startTLS(s *session, host string) error {
	code, msg, err := s.cmd("STARTTLS")
	if err != nil {
		return commandError(err)
	}
	if code != 220 {
		d.cfg.Logger.Info("STARTTLS not used",
			zap.String("host", host), zap.Int("code", code), zap.String("msg", msg))
		return nil
	}

	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if d.cfg.TLSConfig != nil {
		cfg = d.cfg.TLSConfig.Clone()
	}
	if cfg.ServerName == "" {
		cfg.ServerName = host
	}

	tlsConn := tls.Client(s.conn, cfg)
	if err := tlsConn.Handshake(); err != nil {
		return &tlsError{err: err}
	}
	s.upgrade(tlsConn)

	if err := s.hello(d.cfg.HeloHost); err != nil {
		return &tlsError{err: err}
	}
	d.cfg.Logger.Debug("SMTP STARTTLS established",
		zap.String("host", host), zap.Uint16("tls_version", tlsConn.ConnectionState().Version))
	return nil
}

var errDeadline = errors.New("conversation deadline exceeded")

// commandError keeps malformed replies as protocol errors and tags
// everything else as a transport failure.
func commandError(err error) error {
	var protoErr textproto.ProtocolError
	if errors.As(err, &protoErr) {
		return err
	}
	return transportError(err, false)
}

func enhancedString(ec smtp.EnhancedCode) string {
	if ec == smtp.NoEnhancedCode || ec == smtp.EnhancedCodeNotSet {
		return ""
	}
	return fmt.Sprintf("%d.%d.%d", ec[0], ec[1], ec[2])
}

// Decode returns s as valid UTF-8, replacing undecodable bytes with U+FFFD.
func Decode(s string) string {
	out, _, err := transform.String(runes.ReplaceIllFormed(), s)
	if err != nil {
		return strings.ToValidUTF8(s, "�")
	}
	return out
}
