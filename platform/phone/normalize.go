// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strings"
	"unicode"

	"github.com/nyaruka/phonenumbers"
)

// Normalizer formats phone numbers using a default region for national input.
type Normalizer struct {
	region string
}

// NewNormalizer returns a normalizer for the given ISO region ("GB", "NL").
func NewNormalizer(region string) Normalizer {
	region = strings.ToUpper(strings.TrimSpace(region))
	if region == "" {
		region = "GB"
	}
	return Normalizer{region: region}
}

// E164 formats input to E.164 ("+447700900123"). Bare international digits
// as delivered by the WhatsApp webhook ("447700900123") are accepted. Valid
// numbers are preferred; a number that is only possible (right length for
// its region, unassigned range) is still formatted. Anything else is
// returned trimmed and unchanged.
func (n Normalizer) E164(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}

	for _, accept := range []func(*phonenumbers.PhoneNumber) bool{phonenumbers.IsValidNumber, phonenumbers.IsPossibleNumber} {
		if number, ok := n.parse(trimmed, accept); ok {
			return phonenumbers.Format(number, phonenumbers.E164)
		}
		if allDigits(trimmed) {
			if number, ok := n.parse("+"+trimmed, accept); ok {
				return phonenumbers.Format(number, phonenumbers.E164)
			}
		}
	}
	return trimmed
}

// WhatsAppID formats input the way the Cloud API addresses recipients:
// E.164 digits without the leading plus. Input that does not parse is
// reduced to its digits.
func (n Normalizer) WhatsAppID(input string) string {
	formatted := n.E164(input)
	if id := strings.TrimPrefix(formatted, "+"); id != "" && allDigits(id) {
		return id
	}
	return digitsOnly(formatted)
}

func (n Normalizer) parse(value string, accept func(*phonenumbers.PhoneNumber) bool) (*phonenumbers.PhoneNumber, bool) {
	number, err := phonenumbers.Parse(value, n.region)
	if err != nil || !accept(number) {
		return nil, false
	}
	return number, true
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

func allDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
