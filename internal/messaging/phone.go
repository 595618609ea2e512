package messaging

import "strings"

// DefaultCountryCode is the prefix applied to ten-digit local numbers.
const DefaultCountryCode = "+66"

// PhoneNormalizer converts between the local numbering form used in
// recipient lists and the international form used for dedup keys.
type PhoneNormalizer struct {
	CountryCode string
}

// NewPhoneNormalizer returns a normalizer for the given country prefix,
// falling back to DefaultCountryCode when empty.
func NewPhoneNormalizer(countryCode string) PhoneNormalizer {
	countryCode = strings.TrimSpace(countryCode)
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}
	if !strings.HasPrefix(countryCode, "+") {
		countryCode = "+" + countryCode
	}
	return PhoneNormalizer{CountryCode: countryCode}
}

func (n PhoneNormalizer) prefix() string {
	if n.CountryCode == "" {
		return DefaultCountryCode
	}
	return n.CountryCode
}

// International trims the value and rewrites a ten character number with a
// leading zero into prefixed form. Everything else is returned trimmed but
// otherwise untouched; digits are not validated.
func (n PhoneNormalizer) International(raw string) string {
	value := strings.TrimSpace(raw)
	if strings.HasPrefix(value, "+") {
		return value
	}
	if len(value) == 10 && strings.HasPrefix(value, "0") {
		return n.prefix() + value[1:]
	}
	return value
}

// Local returns the provider-local form: the country prefix becomes 0.
func (n PhoneNormalizer) Local(international string) string {
	value := strings.TrimSpace(international)
	if p := n.prefix(); strings.HasPrefix(value, p) {
		return "0" + strings.TrimPrefix(value, p)
	}
	return value
}

// IsLocalNumber reports whether value is a ten digit number starting with 0.
func IsLocalNumber(value string) bool {
	if len(value) != 10 || value[0] != '0' {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
