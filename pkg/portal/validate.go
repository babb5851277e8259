package portal

import (
	"strings"
	"time"
	"unicode"
)

// placeholderNumbers are known test values that pass the digit and length
// checks but never identify a real shipment.
var placeholderNumbers = map[string]struct{}{
	"00000000000": {},
	"11111111111": {},
}

// chromeWords mark text fragments that belong to the portal's UI rather
// than to a recipient, in the portal's locale mix.
var chromeWords = []string{"status", "übermittelt", "zugestellt", "daten"}

// IsValidTrackingNumber reports whether text is plausibly a tracking
// number: 11-15 ASCII digits, not all identical, and not a known
// placeholder value.
func IsValidTrackingNumber(text string) bool {
	text = strings.TrimSpace(text)
	if len(text) < 11 || len(text) > 15 {
		return false
	}
	allSame := true
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c < '0' || c > '9' {
			return false
		}
		if c != text[0] {
			allSame = false
		}
	}
	if allSame {
		return false
	}
	if _, ok := placeholderNumbers[text]; ok {
		return false
	}
	return true
}

// ParseGermanShortDate parses "DD.MM.YY" or "DD.MM.YYYY". Two-digit years
// are expanded with a 2000 offset. Malformed input reports ok=false and
// never panics; callers treat it as "keep searching".
func ParseGermanShortDate(text string) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if len(text) < 6 || len(text) > 10 {
		return time.Time{}, false
	}

	parts := strings.Split(text, ".")
	if len(parts) != 3 {
		return time.Time{}, false
	}
	for _, p := range parts {
		if p == "" || !allDigits(p) {
			return time.Time{}, false
		}
	}
	if len(parts[0]) > 2 || len(parts[1]) > 2 {
		return time.Time{}, false
	}
	if len(parts[2]) != 2 && len(parts[2]) != 4 {
		return time.Time{}, false
	}

	day := atoi(parts[0])
	month := atoi(parts[1])
	year := atoi(parts[2])
	if len(parts[2]) == 2 {
		year += 2000
	}

	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.Local)
	// time.Date normalizes overflow (32.01. becomes 01.02.), so a
	// round-trip mismatch means the calendar date never existed.
	if d.Day() != day || d.Month() != time.Month(month) || d.Year() != year {
		return time.Time{}, false
	}
	return d, true
}

// LooksLikeRecipientName reports whether text is plausibly a person or
// company name: longer than two characters, contains a letter, is not a
// tracking number, not UI chrome, and not the excluded value (the tracking
// number under extraction).
func LooksLikeRecipientName(text, exclude string) bool {
	text = strings.TrimSpace(text)
	if len(text) <= 2 {
		return false
	}
	if !containsLetter(text) {
		return false
	}
	if IsValidTrackingNumber(text) {
		return false
	}
	lower := strings.ToLower(text)
	for _, w := range chromeWords {
		if strings.Contains(lower, w) {
			return false
		}
	}
	return text != exclude
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

func atoi(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		n = n*10 + int(s[i]-'0')
	}
	return n
}

func containsLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
