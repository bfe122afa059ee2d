// SPDX-License-Identifier: MPL-2.0

package container

// pluginEnvPrefix is the namespace the agent uses for this plugin's
// configuration variables.
const pluginEnvPrefix = "BUILDKITE_PLUGIN_DOCKER_"

// Agent-level variables consumed directly (not plugin-scoped).
const (
	envStepCommand     = "BUILDKITE_COMMAND"
	envJobID           = "BUILDKITE_JOB_ID"
	envEnvFile         = "BUILDKITE_ENV_FILE"
	envRepoMirror      = "BUILDKITE_REPO_MIRROR"
	envAgentBinaryPath = "BUILDKITE_AGENT_BINARY_PATH"
	envSSHAuthSock     = "SSH_AUTH_SOCK"
)

// Fixed in-container paths for host resources.
const (
	containerSSHAgentSock   = "/ssh-agent"
	containerKnownHostsPath = "/root/.ssh/known_hosts"
	containerAgentPath      = "/usr/bin/buildkite-agent"
)

// agentEnvNames are the job/build identity variables forwarded by name
// when the agent binary is mounted. Name-only references let the runtime
// resolve the values at execution time instead of baking them in.
var agentEnvNames = []string{
	"BUILDKITE_JOB_ID",
	"BUILDKITE_BUILD_ID",
	"BUILDKITE_AGENT_ACCESS_TOKEN",
}

// awsEnvNames are the credential variables forwarded by name when AWS
// auth propagation is enabled.
var awsEnvNames = []string{
	"AWS_ACCESS_KEY_ID",
	"AWS_SECRET_ACCESS_KEY",
	"AWS_SESSION_TOKEN",
	"AWS_REGION",
	"AWS_DEFAULT_REGION",
}

// optKey returns the full environment variable name for a plugin option.
func optKey(name string) string { return pluginEnvPrefix + name }
