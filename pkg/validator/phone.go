package validator

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrEmptyPhone indicates phone number is empty
	ErrEmptyPhone = errors.New("phone number cannot be empty")

	// ErrInvalidFormat indicates phone number contains invalid characters
	ErrInvalidFormat = errors.New("phone number can only contain digits")

	// ErrInvalidLength indicates phone number length is not 10 digits
	ErrInvalidLength = errors.New("phone number must be exactly 10 digits")

	// ErrInvalidPrefix indicates phone number doesn't start with valid Sri Lankan prefix
	ErrInvalidPrefix = errors.New("phone number must start with 070, 071, 072, 074, 075, 076, 077, 078, or 079")
)

// validPrefixes contains all valid Sri Lankan mobile operator prefixes
var validPrefixes = map[string]string{
	"070": "Mobitel",
	"071": "Mobitel",
	"072": "Hutch",
	"074": "Dialog",
	"075": "Airtel",
	"076": "Dialog",
	"077": "Dialog",
	"078": "Hutch",
	"079": "Dialog",
}

var digitsOnly = regexp.MustCompile(`^\d+$`)

// separators stripped before validation
var phoneReplacer = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", "+", "", ".", "")

// NormalizePhone validates a passenger contact number and returns it in local
// 10-digit form. Accepts 0771234567, 077 123 4567, 077-123-4567 and +94771234567.
func NormalizePhone(phone string) (string, error) {
	if strings.TrimSpace(phone) == "" {
		return "", ErrEmptyPhone
	}

	sanitized := phoneReplacer.Replace(phone)

	// Country code
	if strings.HasPrefix(sanitized, "94") && len(sanitized) == 11 {
		sanitized = "0" + sanitized[2:]
	}

	if !digitsOnly.MatchString(sanitized) {
		return "", ErrInvalidFormat
	}
	if len(sanitized) != 10 {
		return "", ErrInvalidLength
	}
	if _, ok := validPrefixes[sanitized[:3]]; !ok {
		return "", ErrInvalidPrefix
	}

	return sanitized, nil
}

// Operator returns the mobile operator for a valid number
func Operator(phone string) (string, error) {
	normalized, err := NormalizePhone(phone)
	if err != nil {
		return "", err
	}
	return validPrefixes[normalized[:3]], nil
}

// IsValidPhone is a convenience wrapper around NormalizePhone
func IsValidPhone(phone string) bool {
	_, err := NormalizePhone(phone)
	return err == nil
}
