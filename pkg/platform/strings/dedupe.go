// Package strings holds small list helpers shared by config parsing.
package strings

import "strings"

// DedupeAndTrim trims each value and drops blanks and repeats, keeping the
// first occurrence order. A nil or empty input is returned unchanged.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]bool, len(values))
	out := values[:0:0]
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
