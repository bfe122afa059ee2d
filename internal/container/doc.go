// SPDX-License-Identifier: MPL-2.0

// Package container translates the plugin's environment-variable
// configuration into a docker run argument vector and executes it.
//
// Assembler performs the pure configuration-to-arguments translation;
// Engine owns the docker subprocess (run, pull, network ensure); retry
// handling for image pulls lives in RunWithRetries. Nothing in this
// package mutates process-global state.
package container
