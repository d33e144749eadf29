package models

import (
	"regexp"
	"strings"

	"github.com/hisaab-app/hisaab-backend/internal/apperr"
)

var (
	mobileRe = regexp.MustCompile(`^03\d{9}$`)
	nameRe   = regexp.MustCompile(`^[a-zA-Z]+(\s[a-zA-Z]+)*$`)
	monthRe  = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)
)

// ValidMobile reports whether mobile is an 11-digit number starting with 03.
func ValidMobile(mobile string) bool {
	return mobileRe.MatchString(mobile)
}

// ValidateMobile returns a validation error unless mobile is well-formed.
func ValidateMobile(field, mobile string) error {
	if !ValidMobile(mobile) {
		return apperr.Validation(field, "must be 11 digits starting with 03")
	}
	return nil
}

// NormalizeName trims and collapses inner whitespace. Validation applies to
// the normalized form.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// ValidateName checks a display name: letters only, single spaces between
// words.
func ValidateName(field, name string) error {
	if name == "" {
		return apperr.Validation(field, "is required")
	}
	if !nameRe.MatchString(name) {
		return apperr.Validation(field, "may only contain letters and single spaces")
	}
	return nil
}

// ValidMonth reports whether month is a YYYY-MM calendar month.
func ValidMonth(month string) bool {
	return monthRe.MatchString(month)
}

// ValidateAmount checks a monetary amount is positive.
func ValidateAmount(field string, amount float64) error {
	if amount <= 0 {
		return apperr.Validation(field, "must be greater than zero")
	}
	return nil
}

// MaskMobile hides the middle digits of a mobile for display in messages
// sent to third parties: 03001234567 becomes 0300*****67.
func MaskMobile(mobile string) string {
	if len(mobile) < 6 {
		return mobile
	}
	return mobile[:4] + strings.Repeat("*", len(mobile)-6) + mobile[len(mobile)-2:]
}
