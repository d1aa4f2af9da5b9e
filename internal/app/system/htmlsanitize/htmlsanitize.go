// internal/app/system/htmlsanitize/htmlsanitize.go
package htmlsanitize

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	// rich allows the formatting employers use in job descriptions.
	rich = bluemonday.UGCPolicy()
	// strict strips every tag; used for single-line fields like titles.
	strict = bluemonday.StrictPolicy()
)

// Sanitize returns description HTML with scripts, event handlers, and
// dangerous URLs removed.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	return rich.Sanitize(s)
}

// Plain strips all markup from s and trims the result.
func Plain(s string) string {
	return strings.TrimSpace(strict.Sanitize(s))
}
