package remote

import "strings"

// Script joins command lines into a shell script body that aborts on the
// first failing line. Stages build their remote work with this instead of
// embedding chained one-liners.
func Script(lines ...string) string {
	return "set -e\n" + strings.Join(lines, "\n") + "\n"
}

// Quote minimally quotes an argument for POSIX shells. Common safe
// characters stay unquoted; everything else is single-quoted with the
// standard `'\''` escape for embedded single quotes.
func Quote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.IndexFunc(s, func(r rune) bool {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			return false
		}
		switch r {
		case '-', '_', '.', '/', '@', ':', ',', '+', '=':
			return false
		}
		return true
	}) == -1 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", "'\\''") + "'"
}
