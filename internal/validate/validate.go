package validate

import (
	"errors"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/nyaruka/phonenumbers"
)

// Field limits shared by registration and admin bootstrap.
const (
	NameMinLength     = 3
	NameMaxLength     = 50
	EmailMaxLength    = 255
	PasswordMinLength = 6
	PasswordMaxLength = 120

	// DefaultRegion is the region hint given to the phone number parser.
	DefaultRegion = "EG"
)

var (
	ErrEmailInvalid         = errors.New("must be a valid email address")
	ErrMobileMissingCountry = errors.New("must start with a country key (00 or +)")
	ErrMobileInvalid        = errors.New("must be a valid mobile number")
	errUnsupportedValueType = errors.New("must be a string")
)

var emailPattern = regexp.MustCompile("^[a-z0-9!#$%&'*+/=?^_`{|}~-]+(?:\\.[a-z0-9!#$%&'*+/=?^_`{|}~-]+)*" +
	"@(?:[a-z0-9](?:[a-z0-9-]*[a-z0-9])?\\.)+[a-z0-9](?:[a-z0-9-]*[a-z0-9])?$")

// IsEmail reports whether s is an acceptable account email. Only the lowercase form
// is accepted; callers normalize first.
func IsEmail(s string) bool {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" || len(trimmed) > EmailMaxLength || strings.ContainsRune(trimmed, 0) {
		return false
	}
	return emailPattern.MatchString(s)
}

// CheckMobile validates an international mobile number. Fixed-line numbers are refused.
func CheckMobile(s string) error {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "00") && !strings.HasPrefix(trimmed, "+") {
		return ErrMobileMissingCountry
	}
	num, err := phonenumbers.Parse(trimmed, DefaultRegion)
	if err != nil {
		return ErrMobileInvalid
	}
	if !phonenumbers.IsValidNumber(num) || phonenumbers.GetNumberType(num) == phonenumbers.FIXED_LINE {
		return ErrMobileInvalid
	}
	return nil
}

// Email is an ozzo rule for IsEmail applied to the trimmed, lowercased value. Empty
// values pass; combine with validation.Required.
var Email = validation.By(func(value interface{}) error {
	s, err := stringValue(value)
	if err != nil || s == "" {
		return err
	}
	if !IsEmail(strings.ToLower(strings.TrimSpace(s))) {
		return ErrEmailInvalid
	}
	return nil
})

// Mobile is an ozzo rule for CheckMobile. Blank values pass.
var Mobile = validation.By(func(value interface{}) error {
	s, err := stringValue(value)
	if err != nil || strings.TrimSpace(s) == "" {
		return err
	}
	return CheckMobile(s)
})

// Password is the length rule applied to passwords and their confirmation.
func Password() validation.Rule {
	return validation.Length(PasswordMinLength, PasswordMaxLength)
}

// Name is the length rule applied to first and last names.
func Name() validation.Rule {
	return validation.Length(NameMinLength, NameMaxLength)
}

func stringValue(value interface{}) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case *string:
		if v == nil {
			return "", nil
		}
		return *v, nil
	default:
		return "", errUnsupportedValueType
	}
}
