// SPDX-License-Identifier: MPL-2.0

// Package platform resolves OS-sensitive defaults for the container
// invocation: TTY/init behavior, agent mounting, the in-container working
// directory and the host working directory source.
package platform

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// GOOS values the defaults table distinguishes. Anything else falls into
// the posix-like default row.
const (
	Linux   = "linux"
	Darwin  = "darwin"
	Windows = "windows"
)

// Defaults are the platform-derived starting values for the assembler.
// Every field can be overridden by explicit plugin configuration.
type Defaults struct {
	TTY         bool
	Interactive bool
	Init        bool
	MountAgent  bool
	Workdir     string
}

// DefaultsFor returns the defaults for a platform family.
//
//	default (posix) : tty on, init on, agent mount on, /workdir
//	windows         : tty off, init off, agent mount off, C:\workdir
//	darwin          : tty on, init on, agent mount off, /workdir
//
// Interactive defaults to on everywhere.
func DefaultsFor(goos string) Defaults {
	switch goos {
	case Windows:
		return Defaults{Interactive: true, Workdir: `C:\workdir`}
	case Darwin:
		return Defaults{TTY: true, Interactive: true, Init: true, Workdir: "/workdir"}
	default:
		return Defaults{TTY: true, Interactive: true, Init: true, MountAgent: true, Workdir: "/workdir"}
	}
}

// CommandOutputFunc runs an external command and returns its stdout.
// It exists so tests can fake the cmd.exe working-directory query.
type CommandOutputFunc func(name string, arg ...string) ([]byte, error)

func runCommandOutput(name string, arg ...string) ([]byte, error) {
	return exec.Command(name, arg...).Output() //nolint:noctx // one-shot startup query
}

// Cwd returns the host working directory used for the checkout mount.
// On windows-like platforms the directory is queried through cmd.exe so
// the returned path uses the drive-letter form docker expects; elsewhere
// it is the process working directory. run may be nil for the real query.
func Cwd(goos string, run CommandOutputFunc) (string, error) {
	if goos != Windows {
		return os.Getwd()
	}

	if run == nil {
		run = runCommandOutput
	}
	out, err := run("cmd.exe", "/c", "echo %CD%")
	if err != nil {
		return "", fmt.Errorf("failed to query working directory via cmd.exe: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}
