package smtpconn

import (
	"net"
	"net/textproto"
	"strings"
	"time"
)

// session is one open connection. Every read and write shares the
// conversation deadline set on the underlying connection.
type session struct {
	conn     net.Conn
	text     *textproto.Conn
	deadline time.Time
	ext      map[string]string
}

func newSession(conn net.Conn, deadline time.Time) *session {
	_ = conn.SetDeadline(deadline)
	return &session{conn: conn, text: textproto.NewConn(conn), deadline: deadline}
}

// upgrade switches the session to conn, which wraps the previous one.
// Extensions advertised before the switch no longer apply.
func (s *session) upgrade(conn net.Conn) {
	_ = conn.SetDeadline(s.deadline)
	s.conn = conn
	s.text = textproto.NewConn(conn)
	s.ext = nil
}

// greet reads the 220 banner.
func (s *session) greet() error {
	code, msg, err := s.text.ReadResponse(0)
	if err != nil {
		return err
	}
	if code != 220 {
		return &textproto.Error{Code: code, Msg: msg}
	}
	return nil
}

// hello sends EHLO, falling back to HELO for servers without ESMTP.
func (s *session) hello(name string) error {
	code, msg, err := s.cmd("EHLO %s", name)
	if err != nil {
		return err
	}
	if code == 250 {
		s.ext = extensions(msg)
		return nil
	}

	code, msg, err = s.cmd("HELO %s", name)
	if err != nil {
		return err
	}
	if code != 250 {
		return &textproto.Error{Code: code, Msg: msg}
	}
	s.ext = nil
	return nil
}

// cmd sends one command and returns the reply, whatever its code.
func (s *session) cmd(format string, args ...any) (int, string, error) {
	id, err := s.text.Cmd(format, args...)
	if err != nil {
		return 0, "", err
	}
	s.text.StartResponse(id)
	defer s.text.EndResponse(id)
	return s.text.ReadResponse(0)
}

// quit ends the session politely. Failures are irrelevant once a reply is in hand.
func (s *session) quit() {
	if time.Until(s.deadline) > 0 {
		_, _, _ = s.cmd("QUIT")
	}
}

func (s *session) close() {
	_ = s.conn.Close()
}

// extensions parses the EHLO reply; the first line is the server greeting.
func extensions(msg string) map[string]string {
	lines := strings.Split(msg, "\n")
	ext := make(map[string]string, len(lines))
	for _, line := range lines[1:] {
		k, v, _ := strings.Cut(line, " ")
		ext[strings.ToUpper(k)] = v
	}
	return ext
}
