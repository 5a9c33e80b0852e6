package imgcache

import "strings"

// fallbackKeyword is the cache key used when sanitization strips everything.
const fallbackKeyword = "image"

// SanitizeKeyword converts arbitrary search text to a filesystem-safe cache
// key: lowercased, internal spaces replaced by underscores, everything
// outside [a-z0-9_-] removed. Idempotent and total: an empty result maps to
// the fixed fallback "image".
//
//	SanitizeKeyword("Gaming Laptops!") == "gaming_laptops"
func SanitizeKeyword(keyword string) string {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	keyword = strings.ReplaceAll(keyword, " ", "_")

	var b strings.Builder
	b.Grow(len(keyword))
	for _, r := range keyword {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
	}

	if b.Len() == 0 {
		return fallbackKeyword
	}
	return b.String()
}
