package imgcache

import "strings"

// nonContentPatterns are URL substrings indicating page chrome or filler
// assets. A landing-page hero slot needs content photos; fetching these
// would waste a download only for the validator or selector to keep them
// anyway, so they are dropped before the request is made.
var nonContentPatterns = []string{
	"favicon", "logo", "icon", "banner", "sprite",
	"badge", "button", "widget", "avatar",
	"watermark", "placeholder",
}

// isNonContentURL checks a lowercased URL for non-content asset patterns.
func isNonContentURL(lower string) bool {
	for _, p := range nonContentPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
