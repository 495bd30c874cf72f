package utils

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strictPolicy = bluemonday.StrictPolicy()

// SanitizeText strips all markup from user supplied text. Entities are
// decoded before the policy runs so encoded tags are stripped too. The
// result is HTML-escaped and is never unescaped again.
func SanitizeText(s string) string {
	return strings.TrimSpace(strictPolicy.Sanitize(html.UnescapeString(s)))
}
