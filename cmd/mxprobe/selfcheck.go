package main

import (
	"fmt"
	"io"
	"slices"

	"github.com/optimode/mxprobe"
	"github.com/optimode/mxprobe/check"
	"github.com/optimode/mxprobe/internal/parse"
	"github.com/optimode/mxprobe/internal/render"
)

// runSelfCheck exercises the offline parts of the tool and prints sample output.
func runSelfCheck(w io.Writer) int {
	normalized := parse.Collect([]string{"USER@example.com", "bad-email", " one@sample.org "}, nil)
	if !slices.Equal(normalized, []string{"user@example.com", "bad-email", "one@sample.org"}) {
		fmt.Fprintln(w, "SELF-CHECK FAILED: collect")
		return exitFailure
	}
	if !check.IsValidAddress("a.b+c@domain.tld") {
		fmt.Fprintln(w, "SELF-CHECK FAILED: valid format")
		return exitFailure
	}
	if check.IsValidAddress("wrong@@domain") {
		fmt.Fprintln(w, "SELF-CHECK FAILED: invalid format")
		return exitFailure
	}
	if r := check.ClassifyRcpt(550, "5.1.1 User unknown"); r.Status != mxprobe.SMTPUndeliverable {
		fmt.Fprintln(w, "SELF-CHECK FAILED: reply classification")
		return exitFailure
	}

	rows := []mxprobe.Result{{
		Email:        "user@example.com",
		Domain:       "example.com",
		DomainStatus: mxprobe.DomainValid,
		MXHosts:      []string{"mx1.example.com"},
		SMTPStatus:   mxprobe.SMTPUnknown,
		SMTPDetail:   "sample",
	}}
	fmt.Fprintln(w, "SELF-CHECK OK")
	if err := render.Table(w, rows); err != nil {
		return exitFailure
	}
	if err := render.JSONL(w, rows); err != nil {
		return exitFailure
	}
	return exitOK
}
