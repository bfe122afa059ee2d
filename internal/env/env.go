// SPDX-License-Identifier: MPL-2.0

// Package env captures the process environment once and exposes the
// Buildkite plugin configuration conventions over it: case-sensitive
// scalar lookups, truthy/falsy boolean literals, indexed-suffix lists
// (KEY_0, KEY_1, ...) and discovery scans over sparse indexed keys.
//
// Nothing outside this package reads os.Getenv for configuration; the
// snapshot is built at process start and threaded through explicitly so
// the assembler can be tested against synthetic environments.
package env

import (
	"os"
	"sort"
	"strings"
)

// Snapshot is an immutable view of a set of environment variables.
type Snapshot struct {
	values map[string]string
	names  []string // sorted ascending
}

// Capture snapshots the current process environment.
func Capture() *Snapshot {
	return New(os.Environ())
}

// New builds a Snapshot from "KEY=VALUE" entries. Entries without an '='
// are ignored, matching what the agent can actually inject. Later
// duplicates win, mirroring os.Environ semantics.
func New(environ []string) *Snapshot {
	values := make(map[string]string, len(environ))
	for _, entry := range environ {
		key, value, found := strings.Cut(entry, "=")
		if !found || key == "" {
			continue
		}
		values[key] = value
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	return &Snapshot{values: values, names: names}
}

// Get returns the value for key and whether the variable is set.
func (s *Snapshot) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Value returns the value for key, or "" when unset.
func (s *Snapshot) Value(key string) string {
	return s.values[key]
}

// Has reports whether key is set, including set-but-empty.
func (s *Snapshot) Has(key string) bool {
	_, ok := s.values[key]
	return ok
}

// Names returns all variable names in lexicographically sorted order.
// The returned slice is shared; callers must not modify it.
func (s *Snapshot) Names() []string {
	return s.names
}

// IsTruthy reports whether v is one of the accepted "enabled" literals.
// The match is case-sensitive: "true", "on" and "1" only.
func IsTruthy(v string) bool {
	switch v {
	case "true", "on", "1":
		return true
	}
	return false
}

// IsFalsy reports whether v is one of the accepted "disabled" literals
// ("false", "off", "0"), case-sensitive.
func IsFalsy(v string) bool {
	switch v {
	case "false", "off", "0":
		return true
	}
	return false
}

// Bool resolves a boolean option: an unset variable yields def, a set
// variable yields whether its value is truthy.
func (s *Snapshot) Bool(key string, def bool) bool {
	v, ok := s.Get(key)
	if !ok {
		return def
	}
	return IsTruthy(v)
}
