package validate

import (
	"fmt"
	"regexp"
)

const (
	minPasswordLength = 6
	minUsernameLength = 4
	maxUsernameLength = 20
)

var (
	usernameRegexp = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]*$`)
	emailRegexp    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	upperRegexp    = regexp.MustCompile(`[A-Z]`)
	digitRegexp    = regexp.MustCompile(`[0-9]`)
	specialRegexp  = regexp.MustCompile(`[^A-Za-z0-9]`)
)

// ValidationError is a client-side field check failure. It never reaches
// the network.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Username requires a leading letter, only letters and digits, and a length
// between 4 and 20 characters.
func Username(s string) bool {
	if len(s) < minUsernameLength || len(s) > maxUsernameLength {
		return false
	}
	return usernameRegexp.MatchString(s)
}

// Email requires a local part, an @ and a domain with a dot, no whitespace.
func Email(s string) bool {
	return emailRegexp.MatchString(s)
}

// Password requires at least 6 characters with an upper-case letter,
// a digit and a special character.
func Password(s string) bool {
	if len(s) < minPasswordLength {
		return false
	}
	return upperRegexp.MatchString(s) &&
		digitRegexp.MatchString(s) &&
		specialRegexp.MatchString(s)
}
