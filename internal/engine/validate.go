package engine

import (
	"regexp"
	"strings"
	"unicode"
)

// phonePattern is deliberately permissive: an optional leading plus, then
// 8 to 16 digits or common separators. Input that passes is stored verbatim.
var phonePattern = regexp.MustCompile(`^\+?[\d\s()\-]{8,16}$`)

// validFullName requires at least two whitespace-separated tokens and a
// minimal total length, enough to rule out a bare first name or a stray
// single character.
func validFullName(name string) bool {
	name = strings.TrimSpace(name)
	return len(name) >= 3 && len(strings.Fields(name)) >= 2
}

func validPhone(phone string) bool {
	phone = strings.TrimSpace(phone)
	if !phonePattern.MatchString(phone) {
		return false
	}
	// The pattern alone would accept strings made of separators only.
	digits := 0
	for _, r := range phone {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	return digits >= 8
}

func validCity(city string) bool {
	return len(strings.TrimSpace(city)) >= 2
}

// validUsername accepts a single non-empty token; a leading @ is allowed
// and stripped by the dialog before lookup.
func validUsername(username string) bool {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	return username != "" && len(strings.Fields(username)) == 1
}
