package service

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	minNameLength = 3
	maxNameLength = 120
)

// NormalizeName trims, collapses internal whitespace and applies Unicode
// NFC so that visually identical names compare equal.
func NormalizeName(raw string) string {
	return norm.NFC.String(strings.Join(strings.Fields(raw), " "))
}

// normalizeFullName normalizes raw and enforces the length bounds.
func normalizeFullName(raw string) (string, error) {
	name := NormalizeName(raw)
	n := utf8.RuneCountInString(name)
	if n < minNameLength {
		return "", validationError("full name must have at least %d characters", minNameLength)
	}
	if n > maxNameLength {
		return "", validationError("full name must have at most %d characters", maxNameLength)
	}
	return name, nil
}
