package core

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	ugcPolicy    = bluemonday.UGCPolicy()
	strictPolicy = bluemonday.StrictPolicy()
)

// SanitizeHTML keeps the safe subset of user generated HTML (formatting, links, lists).
func SanitizeHTML(s string) string {
	return strings.TrimSpace(ugcPolicy.Sanitize(s))
}

// StripTags removes every HTML tag from s.
func StripTags(s string) string {
	return strings.TrimSpace(strictPolicy.Sanitize(s))
}
