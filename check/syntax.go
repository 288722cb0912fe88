package check

import (
	"strings"

	"github.com/optimode/mxprobe/internal/parse"
)

// atext characters allowed in an unquoted local part besides letters and digits (RFC 5321).
const localSpecials = "!#$%&'*+/=?^_`{|}~-."

// IsValidAddress reports whether raw is a syntactically acceptable address.
func IsValidAddress(raw string) bool {
	return ValidateSyntax(parse.NewEmail(raw)) == ""
}

// ValidateSyntax returns why email is not a probe-able address, or "" if it is.
// Only unquoted ASCII local parts are accepted: the probe never negotiates
// SMTPUTF8, so anything else could not be sent in RCPT TO.
func ValidateSyntax(email parse.Email) string {
	switch {
	case email.Raw == "":
		return "empty email address"
	case !email.Valid:
		return "invalid email syntax"
	case len(email.Address()) > 254:
		return "email address exceeds 254 characters"
	case len(email.Local) > 64:
		return "local part exceeds 64 characters"
	}
	if reason := checkLocal(email.Local); reason != "" {
		return reason
	}
	return checkDomain(email.Domain)
}

func checkLocal(local string) string {
	for i := 0; i < len(local); i++ {
		ch := local[i]
		if isAlnum(ch) || strings.IndexByte(localSpecials, ch) >= 0 {
			continue
		}
		return "local part contains invalid character: " + string(rune(ch))
	}
	if strings.HasPrefix(local, ".") || strings.HasSuffix(local, ".") {
		return "local part cannot start or end with a dot"
	}
	if strings.Contains(local, "..") {
		return "local part cannot contain consecutive dots"
	}
	return ""
}

// checkDomain validates the ASCII (Punycode) form, so IDN domains pass
// once converted.
func checkDomain(domain string) string {
	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return "domain must have at least two labels"
	}
	for _, label := range labels {
		switch {
		case label == "":
			return "domain contains empty label"
		case len(label) > 63:
			return "domain label exceeds 63 characters"
		case label[0] == '-' || label[len(label)-1] == '-':
			return "domain label cannot start or end with a hyphen"
		}
		for i := 0; i < len(label); i++ {
			if !isAlnum(label[i]) && label[i] != '-' {
				return "domain label contains invalid character: " + string(rune(label[i]))
			}
		}
	}

	tld := labels[len(labels)-1]
	if strings.Trim(tld, "0123456789") == "" {
		return "TLD cannot be all digits"
	}
	return ""
}

func isAlnum(ch byte) bool {
	return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch >= '0' && ch <= '9'
}
