package utils

import "strings"

const (
	maskVisible = 4
	maskFill    = "*****"
)

// MaskSecret keeps only the first few characters of a credential for display. Empty stays empty.
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}
	r := []rune(strings.TrimSpace(s))
	if len(r) <= maskVisible {
		return maskFill
	}
	return string(r[:maskVisible]) + maskFill
}
