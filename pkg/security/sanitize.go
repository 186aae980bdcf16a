package security

import (
	"html"
	"strings"
)

// Sanitize trims s and escapes HTML metacharacters so it can be echoed to other clients.
func Sanitize(s string) string {
	return html.EscapeString(strings.TrimSpace(s))
}
