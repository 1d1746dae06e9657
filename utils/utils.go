package utils

import (
	"sort"
	"strings"
)

// Combine merges ticker lists into one, removes any entries that are in skip,
// and returns the sorted remainder.
func Combine(lists [][]string, skip []string) []string {
	m := make(map[string]int)

	for _, list := range lists {
		for _, val := range list {
			m[strings.ToUpper(strings.TrimSpace(val))] = 1
		}
	}

	for _, val := range skip {
		delete(m, val)
	}

	var result []string

	for key := range m {
		if key == "" {
			continue
		}
		result = append(result, key)
	}

	// We pulled these out of a map, so they are now unordered
	sort.Strings(result)

	return result
}

// AlphaNumeric returns true if the string consists of only letters and digits.
func AlphaNumeric(s string) bool {
	for _, c := range s {
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')) {
			return false
		}
	}
	return s != ""
}
