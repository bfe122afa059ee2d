// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"fmt"
	"os"
	"runtime"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/laurynaslubys/docker-buildkite-plugin/internal/container"
	"github.com/laurynaslubys/docker-buildkite-plugin/internal/env"
	"github.com/laurynaslubys/docker-buildkite-plugin/internal/platform"
	"github.com/laurynaslubys/docker-buildkite-plugin/pkg/types"
)

// runHook is the single pass of the hook: snapshot, translate, execute.
func runHook(cmd *cobra.Command, _ []string) error {
	logger := newLogger()

	snapshot := env.Capture()
	goos := runtime.GOOS
	defaults := platform.DefaultsFor(goos)

	pwd, err := platform.Cwd(goos, nil)
	if err != nil {
		return &ExitError{Code: 1, Err: err}
	}

	assembler := container.NewAssembler(snapshot, defaults, goos, pwd, logger)
	inv, err := assembler.Assemble()
	if err != nil {
		// Everything the assembler rejects is a configuration error.
		return &ExitError{Code: 1, Err: err}
	}

	engine, err := container.NewEngine(goos, container.WithLogger(logger))
	if err != nil {
		return &ExitError{Code: 1, Err: err}
	}

	if inv.Network != "" {
		if code := engine.EnsureNetwork(inv.Network); !code.IsSuccess() {
			return &ExitError{Code: code, Err: fmt.Errorf("failed to ensure network %q exists", inv.Network)}
		}
	}

	if inv.AlwaysPull {
		logger.Infof("pulling %s", CmdStyle.Render(inv.Image))
		code := container.RunWithRetries(inv.PullRetries, func() types.ExitCode {
			return engine.Pull(inv.Image)
		}, nil, logger)
		if !code.IsSuccess() {
			return &ExitError{Code: code, Err: fmt.Errorf("failed to pull image %q", inv.Image)}
		}
	}

	fmt.Fprintln(cmd.ErrOrStderr(), TitleStyle.Render("Running build step in ")+CmdStyle.Render(inv.Image))
	if code := engine.Run(inv.Args); !code.IsSuccess() {
		return &ExitError{Code: code}
	}
	return nil
}

// newLogger builds the diagnostics logger. CI log lines already carry
// timestamps, so ours are disabled.
func newLogger() *log.Logger {
	return log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: false,
	})
}
