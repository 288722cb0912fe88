// Package render writes check results as a text table or as JSON lines.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/optimode/mxprobe"
)

// Format selects the output layout.
type Format string

const (
	FormatTable Format = "table"
	FormatJSONL Format = "jsonl"
)

var columns = []string{"email", "domain", "domain_status", "mx_hosts", "smtp_status", "smtp_detail"}

// ParseFormat accepts "table" or "jsonl", case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatJSONL:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table or jsonl)", s)
	}
}

// Write renders results to w in the given format.
func Write(w io.Writer, format Format, results []mxprobe.Result) error {
	if format == FormatJSONL {
		return JSONL(w, results)
	}
	return Table(w, results)
}

// JSONL writes one JSON object per result.
func JSONL(w io.Writer, results []mxprobe.Result) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, r := range results {
		if r.MXHosts == nil {
			r.MXHosts = []string{}
		}
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

// Table writes a header, a dashed separator and one row per result,
// columns padded to their widest cell and joined by " | ".
func Table(w io.Writer, results []mxprobe.Result) error {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			r.Email,
			r.Domain,
			r.DomainStatus,
			strings.Join(r.MXHosts, ","),
			r.SMTPStatus,
			r.SMTPDetail,
		})
	}

	widths := make([]int, len(columns))
	for i, c := range columns {
		widths[i] = utf8.RuneCountInString(c)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], utf8.RuneCountInString(cell))
		}
	}

	separator := make([]string, len(columns))
	for i, n := range widths {
		separator[i] = strings.Repeat("-", n)
	}

	var b strings.Builder
	writeRow(&b, columns, widths)
	b.WriteString(strings.Join(separator, " | "))
	b.WriteByte('\n')
	for _, row := range rows {
		writeRow(&b, row, widths)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeRow(b *strings.Builder, cells []string, widths []int) {
	for i, cell := range cells {
		if i > 0 {
			b.WriteString(" | ")
		}
		b.WriteString(cell)
		b.WriteString(strings.Repeat(" ", widths[i]-utf8.RuneCountInString(cell)))
	}
	b.WriteByte('\n')
}
