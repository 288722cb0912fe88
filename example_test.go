package mxprobe_test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/optimode/mxprobe"
)

func ExampleNew() {
	c, err := mxprobe.New(mxprobe.DefaultOptions())
	if err != nil {
		fmt.Println(err)
		return
	}

	// Malformed addresses are classified without any network traffic.
	res := c.Check(context.Background(), "not-an-address")
	fmt.Println(res.DomainStatus, res.SMTPStatus, res.SMTPDetail)
	// Output: domain_missing unknown invalid address format
}

func ExampleChecker_CheckAll() {
	resolver := &fakeResolver{results: map[string]mxprobe.MXResult{
		"example.com": validMX("example.com", "mx1.example.com"),
	}}
	prober := &fakeProber{results: map[string]mxprobe.SMTPResult{
		"user@example.com": {Status: mxprobe.SMTPDeliverable, Detail: "250 2.1.5 OK", Code: 250},
	}}

	opts := mxprobe.DefaultOptions()
	opts.Sleep = func(time.Duration) {}
	c, _ := mxprobe.NewWithComponents(opts, resolver, prober)

	results, _ := c.CheckAll(context.Background(), []string{
		"user@example.com",
		"user@missing.example",
		"invalid",
	})
	for _, r := range results {
		fmt.Println(r.Email, r.DomainStatus, r.SMTPStatus, r.SMTPDetail)
	}
	// Output:
	// user@example.com valid deliverable 250 2.1.5 OK
	// user@missing.example domain_missing unknown SMTP skipped
	// invalid domain_missing unknown invalid address format
}

func ExampleResult() {
	res := mxprobe.Result{
		Email:        "user@example.com",
		Domain:       "example.com",
		DomainStatus: mxprobe.DomainValid,
		MXHosts:      []string{"mx1.example.com"},
		SMTPStatus:   mxprobe.SMTPUndeliverable,
		SMTPDetail:   "550 5.1.1 User unknown",
	}
	_ = json.NewEncoder(os.Stdout).Encode(res)
	// Output: {"email":"user@example.com","domain":"example.com","domain_status":"valid","mx_hosts":["mx1.example.com"],"smtp_status":"undeliverable","smtp_detail":"550 5.1.1 User unknown"}
}
