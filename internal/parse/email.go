// Package parse splits and normalises candidate email addresses.
package parse

import (
	"net/mail"
	"strings"

	"golang.org/x/net/idna"
)

// Email is a candidate address split into its parts.
type Email struct {
	Raw           string // trimmed input
	Local         string // part before the last @
	Domain        string // lowercase ASCII/Punycode domain, used for DNS and SMTP
	DomainUnicode string // lowercase Unicode domain, used for display
	Valid         bool   // false if Raw could not be split into local@domain
}

// NewEmail splits raw into local part and domain.
// Valid=false means the input is not of the form local@domain at all;
// finer syntax rules are applied by check.ValidateSyntax.
func NewEmail(raw string) Email {
	raw = strings.TrimSpace(raw)
	e := Email{Raw: raw}

	local, domain, ok := split(raw)
	if !ok {
		e.Domain = ExtractDomain(raw)
		e.DomainUnicode = e.Domain
		return e
	}

	ascii, unicode, ok := convertDomain(strings.ToLower(domain))
	if !ok {
		e.Domain = strings.ToLower(domain)
		e.DomainUnicode = e.Domain
		return e
	}

	e.Local = local
	e.Domain = ascii
	e.DomainUnicode = unicode
	e.Valid = true
	return e
}

// Address returns the address as it should be sent in RCPT TO:
// the original local part with the ASCII domain.
func (e Email) Address() string {
	if !e.Valid {
		return e.Raw
	}
	return e.Local + "@" + e.Domain
}

// ExtractDomain returns the lowercase text after the last @, or "".
func ExtractDomain(raw string) string {
	at := strings.LastIndex(raw, "@")
	if at < 0 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(raw[at+1:]))
}

// split prefers net/mail so that display-name forms such as
// "Jane <jane@example.com>" are rejected rather than half-parsed.
func split(raw string) (local, domain string, ok bool) {
	if raw == "" || strings.ContainsAny(raw, " \t<>") {
		return "", "", false
	}
	if addr, err := mail.ParseAddress(raw); err == nil && addr.Name == "" {
		raw = addr.Address
	}
	at := strings.LastIndex(raw, "@")
	if at < 1 || at == len(raw)-1 {
		return "", "", false
	}
	return raw[:at], raw[at+1:], true
}

// convertDomain returns the ASCII and Unicode forms of domain.
// ok is false when a non-ASCII domain fails IDNA2008 validation.
func convertDomain(domain string) (ascii, unicode string, ok bool) {
	for _, r := range domain {
		if r > 127 {
			a, err := idna.Lookup.ToASCII(domain)
			if err != nil {
				return "", "", false
			}
			return a, domain, true
		}
	}

	u, err := idna.Display.ToUnicode(domain)
	if err != nil {
		u = domain
	}
	return domain, u, true
}
