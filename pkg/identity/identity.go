// Package identity normalizes account identifiers before hashing so that
// semantically equivalent emails (Gmail dots and +aliases) or phone numbers
// map to the same hash. Registration dedupes on the hash, not the raw value.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// NormalizeEmail returns the canonical form of an email address: lowercased
// and trimmed, with Gmail-specific rules applied (+suffix stripped, dots
// removed from the local part, googlemail.com folded into gmail.com).
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(strings.ToLower(email))

	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email // malformed, return as-is
	}

	local := email[:at]
	domain := email[at+1:]

	if domain == "googlemail.com" {
		domain = "gmail.com"
	}

	if domain == "gmail.com" {
		if plus := strings.Index(local, "+"); plus >= 0 {
			local = local[:plus]
		}
		local = strings.ReplaceAll(local, ".", "")
	}

	return local + "@" + domain
}

// NormalizePhone strips a phone number to digits. A bare 10-digit US number
// gets the country code prepended so +1, 1, and unprefixed forms agree.
func NormalizePhone(phone string) string {
	var digits strings.Builder
	for _, r := range strings.TrimSpace(phone) {
		if unicode.IsDigit(r) {
			digits.WriteRune(r)
		}
	}

	result := digits.String()
	if len(result) == 10 {
		result = "1" + result
	}
	return result
}

// EmailHash normalizes the email and returns its hex-encoded SHA-256 hash.
func EmailHash(email string) string {
	h := sha256.Sum256([]byte(NormalizeEmail(email)))
	return hex.EncodeToString(h[:])
}
