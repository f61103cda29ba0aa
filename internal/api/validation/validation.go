// Package validation holds field checks shared by request payloads.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/platformplatform/account-api/internal/api/apierrors"
)

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

const maxEmailLength = 100

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func Email(v *apierrors.ValidationError, field, email string) {
	if email == "" {
		v.Add(field, "Email must not be empty.")
		return
	}
	if len(email) > maxEmailLength {
		v.Add(field, fmt.Sprintf("Email must be no longer than %d characters.", maxEmailLength))
		return
	}
	if !emailRe.MatchString(email) {
		v.Add(field, "Email must be in a valid format.")
	}
}

func Required(v *apierrors.ValidationError, field, value, name string) {
	if strings.TrimSpace(value) == "" {
		v.Add(field, name+" must not be empty.")
	}
}

func MaxLength(v *apierrors.ValidationError, field, value, name string, max int) {
	if utf8.RuneCountInString(value) > max {
		v.Add(field, fmt.Sprintf("%s must be no longer than %d characters.", name, max))
	}
}

var countryRe = regexp.MustCompile(`^[A-Z]{2}$`)

// Country checks ISO 3166-1 alpha-2 code.
func Country(v *apierrors.ValidationError, field, value string) {
	if value != "" && !countryRe.MatchString(value) {
		v.Add(field, "Country must be a two letter ISO code.")
	}
}

var codeRe = regexp.MustCompile(`^[0-9]{6}$`)

func VerificationCode(v *apierrors.ValidationError, field, code string) {
	if !codeRe.MatchString(code) {
		v.Add(field, "Code must be 6 digits.")
	}
}

func URL(v *apierrors.ValidationError, field, value, name string) {
	if !strings.HasPrefix(value, "https://") && !strings.HasPrefix(value, "http://") {
		v.Add(field, name+" must be an absolute url.")
	}
}
