package service

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

const (
	// DefaultGuestName labels messages from anonymous viewers
	DefaultGuestName = "Invitado"

	guestNameMaxLength = 60
)

// stripMarkup removes every element, and the content of script-like ones
var stripMarkup = bluemonday.StrictPolicy()

// SanitizeBody drops invalid UTF-8 and markup, then trims surrounding space.
// Bodies are plain text: ampersands are escaped going in and the policy's
// entity output is decoded coming out, so text the user typed, entities
// included, survives unchanged.
func SanitizeBody(s string) string {
	s = strings.ToValidUTF8(s, "")
	s = stripMarkup.Sanitize(strings.ReplaceAll(s, "&", "&amp;"))
	return strings.TrimSpace(html.UnescapeString(s))
}

// SanitizeGuestName reduces a client-provided name to one short line
func SanitizeGuestName(s string) string {
	s = strings.Join(strings.Fields(SanitizeBody(s)), " ")
	if utf8.RuneCountInString(s) > guestNameMaxLength {
		s = strings.TrimSpace(string([]rune(s)[:guestNameMaxLength]))
	}
	if s == "" {
		return DefaultGuestName
	}
	return s
}

// preview shortens a body for notifications
func preview(body string, max int) string {
	if utf8.RuneCountInString(body) <= max {
		return body
	}
	return string([]rune(body)[:max]) + "…"
}
