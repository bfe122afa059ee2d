// SPDX-License-Identifier: MPL-2.0

package container

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"mvdan.cc/sh/v3/syntax"

	"github.com/laurynaslubys/docker-buildkite-plugin/internal/platform"
	"github.com/laurynaslubys/docker-buildkite-plugin/pkg/types"
)

type (
	// ExecCommandFunc is the function signature for creating exec.Cmd.
	// This allows injection of mock implementations for testing.
	ExecCommandFunc func(name string, arg ...string) *exec.Cmd

	// EngineOption configures an Engine.
	EngineOption func(*Engine)

	// Engine invokes the docker CLI as a subprocess. It prints each run
	// invocation in shell-quoted form before executing it and translates
	// subprocess failures into exit codes for the caller to propagate.
	Engine struct {
		binaryPath  string
		goos        string
		execCommand ExecCommandFunc
		logger      *log.Logger
		stdin       io.Reader
		stdout      io.Writer
		stderr      io.Writer
	}
)

// WithBinaryPath overrides the docker binary path (skips PATH lookup).
func WithBinaryPath(path string) EngineOption {
	return func(e *Engine) { e.binaryPath = path }
}

// WithExecCommand sets a custom exec command function for testing.
func WithExecCommand(fn ExecCommandFunc) EngineOption {
	return func(e *Engine) { e.execCommand = fn }
}

// WithGOOS overrides the platform family (tests; windows path handling).
func WithGOOS(goos string) EngineOption {
	return func(e *Engine) { e.goos = goos }
}

// WithLogger sets the diagnostics logger.
func WithLogger(logger *log.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// WithStdio redirects the subprocess streams (tests).
func WithStdio(stdin io.Reader, stdout, stderr io.Writer) EngineOption {
	return func(e *Engine) {
		e.stdin = stdin
		e.stdout = stdout
		e.stderr = stderr
	}
}

// NewEngine creates a docker Engine, resolving the binary on PATH unless
// WithBinaryPath is given.
func NewEngine(goos string, opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		goos:        goos,
		execCommand: exec.Command,
		logger:      log.Default(),
		stdin:       os.Stdin,
		stdout:      os.Stdout,
		stderr:      os.Stderr,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.binaryPath == "" {
		path, err := exec.LookPath("docker")
		if err != nil {
			return nil, fmt.Errorf("docker binary not found on PATH: %w", err)
		}
		e.binaryPath = path
	}
	return e, nil
}

// BinaryPath returns the path to the docker binary.
func (e *Engine) BinaryPath() string { return e.binaryPath }

// Run prints the fully assembled invocation, executes it with inherited
// streams, and returns docker's exit code.
func (e *Engine) Run(args []string) types.ExitCode {
	fmt.Fprintln(e.stderr, QuoteCommand(e.binaryPath, args))

	cmd := e.createCommand(args...)
	cmd.Stdin = e.stdin
	cmd.Stdout = e.stdout
	cmd.Stderr = e.stderr

	return exitCodeOf(cmd.Run(), e.logger)
}

// Pull fetches an image, streaming docker's output, and returns the exit
// code. Retry policy is the caller's concern (RunWithRetries).
func (e *Engine) Pull(image string) types.ExitCode {
	cmd := e.createCommand("pull", image)
	cmd.Stdout = e.stdout
	cmd.Stderr = e.stderr

	return exitCodeOf(cmd.Run(), e.logger)
}

// EnsureNetwork makes sure a named docker network exists, creating it only
// when the name query comes back empty. The check-then-create is a benign
// race against concurrent jobs targeting the same name; docker resolves
// duplicates on its side. Returns 0 on success or docker's exit code.
func (e *Engine) EnsureNetwork(name string) types.ExitCode {
	ls := e.createCommand("network", "ls", "--quiet", "--filter", "name="+name)
	var out bytes.Buffer
	ls.Stdout = &out
	ls.Stderr = e.stderr

	if err := ls.Run(); err != nil {
		return exitCodeOf(err, e.logger)
	}
	if strings.TrimSpace(out.String()) != "" {
		return 0
	}

	e.logger.Infof("creating network %s", name)
	create := e.createCommand("network", "create", name)
	create.Stdout = e.stdout
	create.Stderr = e.stderr

	return exitCodeOf(create.Run(), e.logger)
}

// createCommand builds the docker subprocess. On windows-like platforms
// MSYS path conversion is disabled for this one invocation only (set on
// the child's environment, never the plugin's own) so already-resolved
// mount specs and options aren't rewritten by the shell layer.
func (e *Engine) createCommand(args ...string) *exec.Cmd {
	cmd := e.execCommand(e.binaryPath, args...)
	if e.goos == platform.Windows {
		cmd.Env = append(os.Environ(), "MSYS_NO_PATHCONV=1")
	}
	return cmd
}

// QuoteCommand renders an argument vector in shell-quoted,
// human-diagnostic form, the way the build log should show it.
func QuoteCommand(name string, args []string) string {
	tokens := make([]string, 0, len(args)+1)
	for _, tok := range append([]string{name}, args...) {
		quoted, err := syntax.Quote(tok, syntax.LangPOSIX)
		if err != nil {
			// Token contains bytes POSIX quoting can't express; fall back
			// to Go quoting so the log line stays readable.
			quoted = strconv.Quote(tok)
		}
		tokens = append(tokens, quoted)
	}
	return strings.Join(tokens, " ")
}

// exitCodeOf maps a subprocess error to an exit code: nil is success, an
// ExitError carries docker's own code, anything else (binary missing,
// signal) is reported and mapped to 1.
func exitCodeOf(err error, logger *log.Logger) types.ExitCode {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return types.ExitCode(exitErr.ExitCode())
	}
	logger.Errorf("docker invocation failed: %v", err)
	return 1
}
