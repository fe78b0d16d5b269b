// Package validation holds the format checks of the account forms and a
// struct validation engine built on them.
package validation

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

var (
	firstNameRegex    = regexp.MustCompile(`^[A-Za-zĄąĆćĘęŁłŃńÓóŚśŹźŻż]+$`)
	usernameRegex     = regexp.MustCompile(`^[a-zA-Z0-9._-]{3,20}$`)
	passwordSignRegex = regexp.MustCompile(`[0-9!@#$%^&*]`)
	emailRegex        = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// FirstName accepts Latin and Polish letters only. Blank input is accepted;
// requiredness is checked separately.
func FirstName(s string) bool {
	if strings.TrimSpace(s) == "" {
		return true
	}
	return firstNameRegex.MatchString(s)
}

// Username accepts 3 to 20 letters, digits, dots, underscores and dashes.
// Blank input is accepted.
func Username(s string) bool {
	if strings.TrimSpace(s) == "" {
		return true
	}
	return usernameRegex.MatchString(s)
}

func PasswordLength(s string) bool {
	return utf8.RuneCountInString(s) >= MinPasswordLength
}

// PasswordSign requires at least one digit or one of !@#$%^&*.
func PasswordSign(s string) bool {
	return passwordSignRegex.MatchString(s)
}

// PasswordsMatch reports whether the confirmation equals the password. Two
// empty values do not match.
func PasswordsMatch(password, confirmation string) bool {
	if password == "" && confirmation == "" {
		return false
	}
	return password == confirmation
}

// Email accepts addresses in the .com and .pl domains. Blank input is
// accepted.
func Email(s string) bool {
	if strings.TrimSpace(s) == "" {
		return true
	}
	return emailRegex.MatchString(s) && (strings.HasSuffix(s, ".com") || strings.HasSuffix(s, ".pl"))
}

// PasswordChecklist is the live state of the password hints shown next to
// the password fields.
type PasswordChecklist struct {
	Length bool
	Sign   bool
	Match  bool
}

func CheckPassword(password, confirmation string) PasswordChecklist {
	return PasswordChecklist{
		Length: PasswordLength(password),
		Sign:   PasswordSign(password),
		Match:  PasswordsMatch(password, confirmation),
	}
}

// OK reports whether every hint is satisfied.
func (c PasswordChecklist) OK() bool {
	return c.Length && c.Sign && c.Match
}
