// Package validate checks domain names against the RFC-compatible hostname
// grammar used to reject malformed input on Control API write paths.
package validate

import "strings"

// Domain reports whether d satisfies the grammar required of a DomainList
// domain attribute: total length 1-253; each label 1-63 of [A-Za-z0-9-]
// not starting or ending with '-'; at least one dot; TLD label of letters
// only (one or more).
func Domain(d string) bool {
	if len(d) < 1 || len(d) > 253 {
		return false
	}
	if !strings.Contains(d, ".") {
		return false
	}

	labels := strings.Split(d, ".")
	for i, label := range labels {
		if !validLabel(label) {
			return false
		}
		if i == len(labels)-1 && !validTLD(label) {
			return false
		}
	}
	return true
}

func validLabel(label string) bool {
	if len(label) < 1 || len(label) > 63 {
		return false
	}
	if label[0] == '-' || label[len(label)-1] == '-' {
		return false
	}
	for _, r := range label {
		if !isAlphaNum(r) && r != '-' {
			return false
		}
	}
	return true
}

// validTLD accepts any all-alphabetic label. The accepted boundary case
// "a.b" has a one-letter TLD, so length is not enforced beyond validLabel's
// general 1-63 bound despite that being the typical shape of a TLD.
func validTLD(label string) bool {
	if len(label) < 1 {
		return false
	}
	for _, r := range label {
		if !isAlpha(r) {
			return false
		}
	}
	return true
}

func isAlpha(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isAlphaNum(r rune) bool {
	return isAlpha(r) || (r >= '0' && r <= '9')
}
