package index

import "strings"

// Tokenize splits content on whitespace and returns its unique lowercase words
// in first-seen order.
func Tokenize(content string) []string {
	fields := strings.Fields(strings.ToLower(content))
	if len(fields) < 2 {
		return fields
	}

	seen := make(map[string]struct{}, len(fields))
	words := fields[:0]
	for _, f := range fields {
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		words = append(words, f)
	}
	return words
}
