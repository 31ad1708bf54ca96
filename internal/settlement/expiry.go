package settlement

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	expiryPattern = regexp.MustCompile(`^(\d{1,2})([a-zA-Z]{3})(\d{4})$`)
	spaces        = regexp.MustCompile(`\s+`)
)

// ParseExpiry parses contract expiries written like 12Feb2026 or
// "12 FEB 2026". Any other layout is not an expiry.
func ParseExpiry(value string) (time.Time, bool) {
	compact := spaces.ReplaceAllString(strings.TrimSpace(value), "")
	m := expiryPattern.FindStringSubmatch(compact)
	if m == nil {
		return time.Time{}, false
	}

	day, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, false
	}
	month := strings.ToUpper(m[2][:1]) + strings.ToLower(m[2][1:])

	t, err := time.Parse("02Jan2006", fmt.Sprintf("%02d%s%s", day, month, m[3]))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// SameDay compares calendar dates, ignoring time of day and location.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func expiresOn(expiry string, billDate time.Time) bool {
	t, ok := ParseExpiry(expiry)
	return ok && SameDay(t, billDate)
}
