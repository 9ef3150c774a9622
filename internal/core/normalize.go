package core

import "strings"

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// NormalizeKey lowercases and trims a platform or client key.
func NormalizeKey(value string) string {
	return normalize(value)
}
