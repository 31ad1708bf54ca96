package batch

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var prNumber = regexp.MustCompile(`(?i)pr\s*(\d+)`)

const noPRNumber = 1_000_000_000

// ExtractPRNumber finds a standalone "PR<n>" token such as PR05, pr 7 or
// Bill_PR10_x and returns n.
func ExtractPRNumber(value string) (int, bool) {
	text := strings.TrimSpace(value)
	for _, m := range prNumber.FindAllStringSubmatchIndex(text, -1) {
		start, end := m[0], m[1]
		if start > 0 && isASCIIAlnum(text[start-1]) {
			continue
		}
		if end < len(text) && isASCIIAlnum(text[end]) {
			continue
		}
		n, err := strconv.Atoi(text[m[2]:m[3]])
		if err != nil {
			continue
		}
		return n, true
	}
	return 0, false
}

// SortKey orders admin documents first, then PR accounts by number, then
// everything else, breaking ties by lowercased name.
type SortKey struct {
	Group    int
	PRNumber int
	Name     string
}

func (k SortKey) Less(o SortKey) bool {
	if k.Group != o.Group {
		return k.Group < o.Group
	}
	if k.PRNumber != o.PRNumber {
		return k.PRNumber < o.PRNumber
	}
	return k.Name < o.Name
}

// NaturalKey builds the sort key for a file name or account.
func NaturalKey(value string) SortKey {
	text := strings.TrimSpace(value)
	lower := strings.ToLower(text)
	n, hasPR := ExtractPRNumber(text)

	key := SortKey{Group: 2, PRNumber: noPRNumber, Name: lower}
	if hasPR {
		key.PRNumber = n
	}

	switch {
	case strings.HasPrefix(lower, "summary_") || strings.HasPrefix(lower, "bill_admin_"):
		key.Group = 0
	case hasPR && (strings.HasPrefix(lower, "pr") || strings.HasPrefix(lower, "bill_")):
		key.Group = 1
	}
	return key
}

// SortNatural returns a sorted copy of values.
func SortNatural(values []string) []string {
	out := append([]string(nil), values...)
	sort.SliceStable(out, func(i, j int) bool {
		return NaturalKey(out[i]).Less(NaturalKey(out[j]))
	})
	return out
}

func isASCIIAlnum(b byte) bool {
	return b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}
