// SPDX-License-Identifier: MPL-2.0

package env

import "strings"

// ReadNames extracts environment variable names from agent env-file
// content, in file order. Each non-empty line contributes the portion
// before the first '=' (or the whole line when no '=' is present).
//
// Values are deliberately not parsed: the names are forwarded by reference
// so the container runtime resolves them from its ambient environment,
// which avoids embedding raw values that the --env flag syntax cannot
// represent.
func ReadNames(content []byte) []string {
	var names []string
	for line := range strings.SplitSeq(string(content), "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}
		name, _, _ := strings.Cut(line, "=")
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	return names
}
