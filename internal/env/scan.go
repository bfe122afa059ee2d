// SPDX-License-Identifier: MPL-2.0

package env

import "strings"

// ScanIndexed returns the values of every variable named PREFIX_<integer>,
// discovered by scanning all variable names. Unlike List it does not
// require contiguous indices starting at zero.
//
// Results follow the lexicographic order of the variable names, not
// numeric index order: the suffixes are unpadded, so index 10 sorts before
// index 2. Pipelines in the wild depend on that `env | sort` ordering, so
// it is preserved rather than fixed.
func (s *Snapshot) ScanIndexed(prefix string) []string {
	p := prefix + "_"
	var values []string
	for _, name := range s.names {
		suffix, ok := strings.CutPrefix(name, p)
		if !ok || !isDigits(suffix) {
			continue
		}
		values = append(values, s.values[name])
	}
	return values
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
