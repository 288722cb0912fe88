package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optimode/mxprobe"
)

func TestRun_SelfCheck(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"--self-check"}, &stdout, &stderr)

	assert.Equal(t, exitOK, code)
	assert.True(t, strings.HasPrefix(stdout.String(), "SELF-CHECK OK\n"))
	assert.Contains(t, stdout.String(), `"smtp_detail":"sample"`)
}

func TestRun_NoAddresses(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), nil, &stdout, &stderr)

	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr.String(), "provide addresses")
	assert.Empty(t, stdout.String())
}

func TestRun_MissingFile(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"--file", filepath.Join(t.TempDir(), "missing.txt")}, &stdout, &stderr)

	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr.String(), "cannot read address file")
}

func TestRun_UnknownFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, exitUsage, run(context.Background(), []string{"--bogus"}, &stdout, &stderr))
}

func TestRun_InvalidAddressesNeedNoNetwork(t *testing.T) {
	path := filepath.Join(t.TempDir(), "emails.txt")
	require.NoError(t, os.WriteFile(path, []byte("BROKEN\n\nalso-broken@\n"), 0o600))

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{
		"--file", path,
		"--emails", "broken,x@@y",
		"plain",
		"--format", "jsonl",
		"--domain-pause", "0",
		"--log-level", "error",
	}, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	require.Len(t, lines, 4)

	var emails []string
	for _, line := range lines {
		var r mxprobe.Result
		require.NoError(t, json.Unmarshal([]byte(line), &r))
		assert.Equal(t, mxprobe.DetailInvalidFormat, r.SMTPDetail)
		emails = append(emails, r.Email)
	}
	assert.Equal(t, []string{"broken", "also-broken@", "x@@y", "plain"}, emails)
}

func TestRun_BadFormat(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"--emails", "bad", "--format", "xml", "--log-level", "error"}, &stdout, &stderr)
	assert.Equal(t, exitFailure, code)
}
