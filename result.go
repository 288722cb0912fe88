package mxprobe

// Result is the outcome of checking one address.
// MXHosts is empty unless DomainStatus is DomainValid.
type Result struct {
	Email        string       `json:"email"`
	Domain       string       `json:"domain"`
	DomainStatus DomainStatus `json:"domain_status"`
	MXHosts      []string     `json:"mx_hosts"`
	SMTPStatus   SMTPStatus   `json:"smtp_status"`
	SMTPDetail   string       `json:"smtp_detail"`
}

// Conclusive reports whether the SMTP probe produced a definite answer
// about the mailbox.
func (r Result) Conclusive() bool {
	return r.SMTPStatus == SMTPDeliverable || r.SMTPStatus == SMTPUndeliverable
}
