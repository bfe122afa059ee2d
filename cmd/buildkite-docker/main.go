// SPDX-License-Identifier: MPL-2.0

// buildkite-docker is the Buildkite docker plugin's command hook.
package main

import "github.com/laurynaslubys/docker-buildkite-plugin/internal/cli"

func main() {
	cli.Execute()
}
