// Package mxprobe checks whether email addresses are plausibly deliverable
// without sending mail: it resolves the domain's MX records and asks the
// mail servers, through an SMTP handshake that stops after RCPT TO, whether
// they accept the recipient.
//
// Basic usage:
//
//	c, err := mxprobe.New(mxprobe.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	results, err := c.CheckAll(ctx, []string{"user@example.com"})
//
// Addresses are probed one at a time, in input order, with a pause between
// them. A Checker caches MX results and remembers failing mail servers for
// its whole lifetime, so use one Checker per batch.
package mxprobe

import "github.com/optimode/mxprobe/types"

// DomainStatus is a re-export from the types package so that consumers
// don't need to import the types package directly.
type DomainStatus = types.DomainStatus

// SMTPStatus is a re-export.
type SMTPStatus = types.SMTPStatus

// MXResult is a re-export.
type MXResult = types.MXResult

// SMTPResult is a re-export.
type SMTPResult = types.SMTPResult

// Status constants re-exported.
const (
	DomainValid   = types.DomainValid
	DomainMissing = types.DomainMissing
	MXMissing     = types.MXMissing

	SMTPDeliverable   = types.SMTPDeliverable
	SMTPUndeliverable = types.SMTPUndeliverable
	SMTPTempFail      = types.SMTPTempFail
	SMTPUnknown       = types.SMTPUnknown
)
