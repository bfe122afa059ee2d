// SPDX-License-Identifier: MPL-2.0

// Package cli wires the plugin hook: it snapshots the environment, runs
// the configuration-to-arguments translation, and hands the result to the
// docker engine, propagating exit codes back to the agent.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	// rootCmd is the plugin's command hook. There are no flags: the entire
	// configuration surface is the BUILDKITE_* environment injected by the
	// agent.
	rootCmd = &cobra.Command{
		Use:   "buildkite-docker",
		Short: "Run a Buildkite step inside a docker container",
		Long: TitleStyle.Render("buildkite-docker") + SubtitleStyle.Render(" - Buildkite docker plugin hook") + `

Translates the plugin configuration the Buildkite agent injects as
BUILDKITE_PLUGIN_DOCKER_* environment variables into a single docker run
invocation, optionally pulling the image (with retries) and ensuring a
named network first. Docker's exit code becomes this process's exit code.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		RunE:          runHook,
	}
)

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the hook and maps returned errors to process exit codes:
// configuration errors exit 1, docker failures propagate docker's code.
func Execute() {
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(int(exitErr.Code))
		}
		os.Exit(1)
	}
}
