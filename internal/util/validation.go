package util

import (
	"unicode"
	"unicode/utf8"
)

const MaxParticipantIDLength = 128

// IsValidParticipantID accepts any opaque client-generated id that is short,
// valid UTF-8 and free of whitespace and control characters.
func IsValidParticipantID(s string) bool {
	if s == "" || len(s) > MaxParticipantIDLength || !utf8.ValidString(s) {
		return false
	}
	for _, r := range s {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return false
		}
	}
	return true
}
