package security

import (
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	htmlPolicy     = bluemonday.StrictPolicy()
	phoneRegex     = regexp.MustCompile(`^(09|9639|9)\d{8}$`)
	giftCodeRegex  = regexp.MustCompile(`^[A-Z0-9]{5,10}$`)
	referenceRegex = regexp.MustCompile(`^[A-Za-z0-9]{5,64}$`)
)

// SanitizeString removes potentially dangerous characters
func SanitizeString(input string) string {
	// Trim whitespace
	input = strings.TrimSpace(input)

	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	// Limit length
	if len(input) > 1000 {
		input = input[:1000]
	}

	return input
}

// SanitizeHTML removes all HTML tags
func SanitizeHTML(input string) string {
	return htmlPolicy.Sanitize(input)
}

// ValidatePhoneNumber accepts Syrian mobile numbers (09xxxxxxxx, 9639xxxxxxxx).
func ValidatePhoneNumber(phone string) bool {
	// Remove common separators
	phone = strings.ReplaceAll(phone, "-", "")
	phone = strings.ReplaceAll(phone, " ", "")
	phone = strings.ReplaceAll(phone, "+", "")

	return phoneRegex.MatchString(phone)
}

// NormalizeGiftCode uppercases and trims a code typed by a user.
func NormalizeGiftCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func ValidateGiftCode(code string) bool {
	return giftCodeRegex.MatchString(NormalizeGiftCode(code))
}

// ValidateReference checks a provider operation number typed by a user.
func ValidateReference(ref string) bool {
	return referenceRegex.MatchString(strings.TrimSpace(ref))
}
