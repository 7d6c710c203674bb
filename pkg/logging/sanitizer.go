package logging

import (
	"regexp"
	"unicode/utf8"
)

const (
	// MaxValueLogLength is the maximum length of a sampled value to log
	MaxValueLogLength = 64
	// RedactedText is the replacement text for sensitive data
	RedactedText = "[REDACTED]"
)

var (
	// Email addresses in sample rows
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)

	// Phone numbers: optional +, then digits with common separators
	phonePattern = regexp.MustCompile(`\+?\(?\d{2,4}\)?[\s.-]\d{3,4}[\s.-]\d{3,4}`)

	// Long digit runs (card numbers, national identifiers). Short numeric
	// keys stay readable.
	longDigitsPattern = regexp.MustCompile(`\d{9,}`)
)

// SanitizeSampleValue truncates and redacts a sampled cell value for logging.
// Sample rows are real data; use this before logging any of them.
func SanitizeSampleValue(value string) string {
	if value == "" {
		return ""
	}

	sanitized := emailPattern.ReplaceAllString(value, RedactedText)
	sanitized = phonePattern.ReplaceAllString(sanitized, RedactedText)
	sanitized = longDigitsPattern.ReplaceAllString(sanitized, RedactedText)

	return TruncateString(sanitized, MaxValueLogLength)
}

// SanitizeSampleValues applies SanitizeSampleValue to each value.
func SanitizeSampleValues(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = SanitizeSampleValue(v)
	}
	return out
}

// TruncateString keeps the first maxLen runes of s and adds an ellipsis if
// anything was cut.
func TruncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen]) + "..."
}
