// SPDX-License-Identifier: MPL-2.0

package container

import "strings"

// NormalizeVolumePath rewrites a leading relative-path marker in a volume
// mount spec into an absolute path anchored at cwd. Docker performs no
// shell-style expansion on mount arguments, so "./cache:/cache" would be
// taken literally without this.
//
//	".:/app"      -> "<cwd>:/app"
//	"./sub:/app"  -> "<cwd>/sub:/app"
//	".\sub:C:\a"  -> "<cwd>\sub:C:\a"
//
// Only the marker at position 0 is rewritten; every other path segment is
// left untouched, and specs that don't start with "." pass through as-is.
func NormalizeVolumePath(spec, cwd string) string {
	switch {
	case strings.HasPrefix(spec, ".:"):
		return cwd + spec[1:]
	case strings.HasPrefix(spec, "./"), strings.HasPrefix(spec, `.\`):
		return cwd + spec[1:]
	default:
		return spec
	}
}
