// Package types contains the shared types for mxprobe.
// This package does not import anything from other mxprobe packages
// to avoid circular imports.
package types

// DomainStatus is the outcome of resolving a domain's MX records.
type DomainStatus = string

const (
	DomainValid   DomainStatus = "valid"
	DomainMissing DomainStatus = "domain_missing"
	MXMissing     DomainStatus = "mx_missing"
)

// SMTPStatus is the outcome of an SMTP handshake probe.
type SMTPStatus = string

const (
	SMTPDeliverable   SMTPStatus = "deliverable"
	SMTPUndeliverable SMTPStatus = "undeliverable"
	SMTPTempFail      SMTPStatus = "tempfail"
	SMTPUnknown       SMTPStatus = "unknown"
)

// MXResult is the outcome of an MX lookup for one domain.
// Hosts are ordered by ascending preference.
type MXResult struct {
	Domain string       `json:"domain"`
	Status DomainStatus `json:"status"`
	Hosts  []string     `json:"mxHosts"`
	Detail string       `json:"detail"`
}

// SMTPResult is the outcome of probing one recipient.
// Code is the last SMTP reply code observed, 0 when no reply was received.
type SMTPResult struct {
	Status SMTPStatus `json:"status"`
	Detail string     `json:"detail"`
	Code   int        `json:"code,omitempty"`
}
