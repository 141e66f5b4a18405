package storage

import (
	"strings"
)

// MaxKeyLength is the longest normalized key accepted by any backend.
const MaxKeyLength = 1024

// Normalize canonicalizes a caller-supplied key: leading and trailing
// separators are stripped and runs of separators collapse to one, so two keys
// that normalize identically refer to the same object. Returns INVALID_KEY
// for empty results, oversized keys, control characters, and dot segments
// that could escape a storage root. Validation happens before any I/O.
func Normalize(key string) (string, error) {
	if strings.ContainsAny(key, "\x00") {
		return "", NewError(CodeInvalidKey, key)
	}
	for _, r := range key {
		if r < 0x20 || r == 0x7f {
			return "", NewError(CodeInvalidKey, key)
		}
	}

	segments := strings.Split(key, "/")
	kept := segments[:0]
	for _, seg := range segments {
		switch seg {
		case "":
			// collapses repeated and leading/trailing separators
		case ".", "..":
			return "", NewError(CodeInvalidKey, key)
		default:
			kept = append(kept, seg)
		}
	}

	normalized := strings.Join(kept, "/")
	if normalized == "" {
		return "", NewError(CodeInvalidKey, key)
	}
	if len(normalized) > MaxKeyLength {
		return "", NewError(CodeInvalidKey, key)
	}
	return normalized, nil
}
