package utils

import "github.com/microcosm-cc/bluemonday"

// Share text is posted to a third party as plain text, so strip all markup.
var sanitizer = bluemonday.StrictPolicy()

// Sanitize removes any HTML from user supplied content.
func Sanitize(input string) string {
	return sanitizer.Sanitize(input)
}
