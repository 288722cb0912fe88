package parse

import (
	"bufio"
	"io"
	"strings"
)

// Normalize trims surrounding whitespace and lowercases the address.
func Normalize(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Collect merges addresses from a file and from the command line into one
// normalised list. File entries come first, empty entries are dropped and
// only the first occurrence of each address is kept.
func Collect(cli, file []string) []string {
	seen := make(map[string]struct{}, len(cli)+len(file))
	out := make([]string, 0, len(cli)+len(file))
	for _, group := range [][]string{file, cli} {
		for _, raw := range group {
			email := Normalize(raw)
			if email == "" {
				continue
			}
			if _, dup := seen[email]; dup {
				continue
			}
			seen[email] = struct{}{}
			out = append(out, email)
		}
	}
	return out
}

// ReadLines returns the non-blank lines of r, trimmed.
func ReadLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, sc.Err()
}
