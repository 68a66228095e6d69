package emailutil

import "strings"

// Normalize normalizes an email address for consistent comparison
// by converting to lowercase and trimming whitespace
func Normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeAll normalizes a list of addresses, dropping empty entries.
// Used when loading the whitelist so membership checks are case-insensitive.
func NormalizeAll(emails []string) []string {
	normalized := make([]string, 0, len(emails))
	for _, email := range emails {
		if n := Normalize(email); n != "" {
			normalized = append(normalized, n)
		}
	}
	return normalized
}
