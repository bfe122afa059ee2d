// SPDX-License-Identifier: MPL-2.0

package container

import (
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/laurynaslubys/docker-buildkite-plugin/internal/env"
	"github.com/laurynaslubys/docker-buildkite-plugin/internal/platform"
)

type (
	// Assembler turns the captured plugin configuration into a docker run
	// invocation. It never executes anything itself; host queries (user
	// identity, path lookup, file stats) go through injectable functions
	// so the translation is testable against synthetic environments.
	Assembler struct {
		Env      *env.Snapshot
		Defaults platform.Defaults
		GOOS     string
		// Pwd is the resolved host working directory (platform.Cwd).
		Pwd    string
		Logger *log.Logger

		LookPath    func(file string) (string, error)
		CurrentUser func() (*user.User, error)
		Stat        func(name string) (os.FileInfo, error)
		ReadFile    func(name string) ([]byte, error)
		HomeDir     func() (string, error)
	}

	// Invocation is the assembled result: the ordered argument vector plus
	// the side-band work the caller performs before running it.
	Invocation struct {
		// Args is the full docker argument vector, starting with "run".
		// Once assembled, the relative order of entries is never altered:
		// docker distinguishes flags from values positionally.
		Args []string
		// Image is the target image reference.
		Image string
		// Network, when non-empty, must be ensured to exist before the run.
		Network string
		// AlwaysPull requests an image pull (with PullRetries attempts)
		// before the run.
		AlwaysPull  bool
		PullRetries int
	}
)

// listOptions are the indexed-list options appended as repeated
// (flag, value) pairs, in emission order. Volumes are handled separately
// because of the deprecated alias and path normalization.
var listOptions = []struct {
	key  string
	flag string
}{
	{"TMPFS", "--tmpfs"},
	{"DEVICES", "--device"},
	{"SYSCTLS", "--sysctl"},
	{"CAP_ADD", "--cap-add"},
	{"CAP_DROP", "--cap-drop"},
	{"SECURITY_OPT", "--security-opt"},
	{"PUBLISH", "--publish"},
}

// scalarOptions are the pass-through scalars. docker accepts some of these
// only in --flag=value form; which ones are joined is part of the
// contract with the runtime and must not be normalized.
var scalarOptions = []struct {
	key    string
	flag   string
	joined bool
}{
	{"PID", "--pid", false},
	{"GPUS", "--gpus", false},
	{"RUNTIME", "--runtime", false},
	{"IPC", "--ipc", false},
	{"STORAGE_OPT", "--storage-opt", false},
	{"SHM_SIZE", "--shm-size", false},
	{"CPUS", "--cpus", true},
	{"MEMORY", "--memory", true},
	{"MEMORY_SWAP", "--memory-swap", true},
	{"MEMORY_SWAPPINESS", "--memory-swappiness", true},
}

// NewAssembler creates an Assembler with production host queries.
func NewAssembler(snapshot *env.Snapshot, defaults platform.Defaults, goos, pwd string, logger *log.Logger) *Assembler {
	return &Assembler{
		Env:         snapshot,
		Defaults:    defaults,
		GOOS:        goos,
		Pwd:         pwd,
		Logger:      logger,
		LookPath:    exec.LookPath,
		CurrentUser: user.Current,
		Stat:        os.Stat,
		ReadFile:    os.ReadFile,
		HomeDir:     os.UserHomeDir,
	}
}

// Assemble resolves every recognized option in a fixed order and returns
// the invocation, or the first configuration error encountered. No partial
// vector ever escapes: any error aborts before execution.
func (a *Assembler) Assemble() (*Invocation, error) {
	image, _ := a.Env.Get(optKey("IMAGE"))
	if image == "" {
		return nil, fmt.Errorf("no image configured: set the plugin's image option (%s)", optKey("IMAGE"))
	}

	inv := &Invocation{Image: image, Args: []string{"run"}}

	if a.Env.Bool(optKey("TTY"), a.Defaults.TTY) {
		inv.Args = append(inv.Args, "-t")
	}
	if a.Env.Bool(optKey("INTERACTIVE"), a.Defaults.Interactive) {
		inv.Args = append(inv.Args, "-i")
	}
	if !a.Env.Bool(optKey("LEAVE_CONTAINER"), false) {
		inv.Args = append(inv.Args, "--rm")
	}
	if a.Env.Bool(optKey("INIT"), a.Defaults.Init) {
		inv.Args = append(inv.Args, "--init")
	}

	if err := a.appendCheckout(inv); err != nil {
		return nil, err
	}
	if err := a.appendVolumes(inv); err != nil {
		return nil, err
	}
	for _, opt := range listOptions {
		values, _, err := a.Env.List(optKey(opt.key))
		if err != nil {
			return nil, err
		}
		for _, v := range values {
			inv.Args = append(inv.Args, opt.flag, v)
		}
	}

	if err := a.appendUser(inv); err != nil {
		return nil, err
	}
	for _, g := range a.Env.ScanIndexed(optKey("ADDITIONAL_GROUPS")) {
		inv.Args = append(inv.Args, "--group-add", g)
	}

	if err := a.appendSSHAgent(inv); err != nil {
		return nil, err
	}
	a.appendAgent(inv)

	for _, e := range a.Env.ScanIndexed(optKey("ENVIRONMENT")) {
		inv.Args = append(inv.Args, "--env", e)
	}
	if err := a.appendPropagatedEnvironment(inv); err != nil {
		return nil, err
	}
	if a.Env.Bool(optKey("PROPAGATE_AWS_AUTH_TOKENS"), false) {
		for _, name := range awsEnvNames {
			if a.Env.Value(name) != "" {
				inv.Args = append(inv.Args, "--env", name)
			}
		}
	}
	for _, h := range a.Env.ScanIndexed(optKey("ADD_HOST")) {
		inv.Args = append(inv.Args, "--add-host", h)
	}

	privileged := a.Env.Bool(optKey("PRIVILEGED"), false)
	if privileged {
		inv.Args = append(inv.Args, "--privileged")
	}
	if userns := a.Env.Value(optKey("USERNS")); userns != "" {
		// Docker cannot apply a user namespace to privileged containers;
		// privileged always wins over the configured value.
		if privileged {
			userns = "host"
		}
		inv.Args = append(inv.Args, "--userns", userns)
	}

	if network := a.Env.Value(optKey("NETWORK")); network != "" {
		inv.Network = network
		inv.Args = append(inv.Args, "--network", network)
	}

	for _, opt := range scalarOptions {
		v, ok := a.Env.Get(optKey(opt.key))
		if !ok || v == "" {
			continue
		}
		if opt.joined {
			inv.Args = append(inv.Args, opt.flag+"="+v)
		} else {
			inv.Args = append(inv.Args, opt.flag, v)
		}
	}

	inv.AlwaysPull = a.Env.Bool(optKey("ALWAYS_PULL"), false)
	if v, ok := a.Env.Get(optKey("PULL_RETRIES")); ok {
		retries, err := strconv.Atoi(v)
		if err != nil || retries < 0 {
			return nil, fmt.Errorf("%s must be a non-negative integer, got %q", optKey("PULL_RETRIES"), v)
		}
		inv.PullRetries = retries
	}

	if err := a.appendCommandTail(inv); err != nil {
		return nil, err
	}

	return inv, nil
}

// appendCheckout mounts the build checkout (and a repository mirror, when
// the agent provides one) and resolves the workdir argument. The workdir
// flag is emitted only when a workdir was explicitly configured or the
// checkout is mounted; otherwise the container keeps its image default.
func (a *Assembler) appendCheckout(inv *Invocation) error {
	workdir := a.Env.Value(optKey("WORKDIR"))
	mountCheckout := a.Env.Bool(optKey("MOUNT_CHECKOUT"), true)

	resolved := workdir
	if resolved == "" {
		resolved = a.Defaults.Workdir
	}

	if mountCheckout {
		inv.Args = append(inv.Args, "--volume", a.Pwd+":"+resolved)
		// The agent advertises a mirror even when it lives on another host;
		// mount it only when the directory is actually present here.
		if mirror := a.Env.Value(envRepoMirror); mirror != "" {
			if info, err := a.Stat(mirror); err == nil && info.IsDir() {
				inv.Args = append(inv.Args, "--volume", mirror+":"+mirror+":ro")
			}
		}
	}
	if workdir != "" || mountCheckout {
		inv.Args = append(inv.Args, "--workdir", resolved)
	}
	return nil
}

// appendVolumes emits configured volume mounts, honoring the deprecated
// "mounts" alias and normalizing leading relative-path markers.
func (a *Assembler) appendVolumes(inv *Invocation) error {
	volumes, _, err := a.Env.List(optKey("VOLUMES"))
	if err != nil {
		return err
	}
	mounts, mountsFound, err := a.Env.List(optKey("MOUNTS"))
	if err != nil {
		return err
	}
	if mountsFound {
		a.Logger.Warnf("the mounts option is deprecated; use volumes instead")
	}

	for _, v := range append(volumes, mounts...) {
		inv.Args = append(inv.Args, "--volume", NormalizeVolumePath(v, a.Pwd))
	}
	return nil
}

// appendUser resolves the container user. An explicit user and uid/gid
// propagation are mutually exclusive; propagation queries the invoking
// user at assembly time.
func (a *Assembler) appendUser(inv *Invocation) error {
	userVal := a.Env.Value(optKey("USER"))
	propagate := a.Env.Bool(optKey("PROPAGATE_UID_GID"), false)

	switch {
	case userVal != "" && propagate:
		return fmt.Errorf("%s and %s cannot be used together", optKey("USER"), optKey("PROPAGATE_UID_GID"))
	case userVal != "":
		inv.Args = append(inv.Args, "-u", userVal)
	case propagate:
		u, err := a.CurrentUser()
		if err != nil {
			return fmt.Errorf("failed to resolve invoking user for uid/gid propagation: %w", err)
		}
		inv.Args = append(inv.Args, "-u", u.Uid+":"+u.Gid)
	}
	return nil
}

// appendSSHAgent mounts the host ssh-agent socket and known hosts into
// fixed container paths. Both a set SSH_AUTH_SOCK and an actual socket
// file behind it are required; each missing piece has its own diagnostic.
func (a *Assembler) appendSSHAgent(inv *Invocation) error {
	if !a.Env.Bool(optKey("MOUNT_SSH_AGENT"), false) {
		return nil
	}

	sock := a.Env.Value(envSSHAuthSock)
	if sock == "" {
		return fmt.Errorf("%s is not set; an ssh-agent must be running to mount it", envSSHAuthSock)
	}
	info, err := a.Stat(sock)
	if err != nil || info.Mode()&os.ModeSocket == 0 {
		return fmt.Errorf("%s %q does not point to a socket; is the ssh-agent still running?", envSSHAuthSock, sock)
	}

	home, err := a.HomeDir()
	if err != nil {
		return fmt.Errorf("failed to resolve home directory for known_hosts mount: %w", err)
	}

	inv.Args = append(inv.Args,
		"--env", envSSHAuthSock+"="+containerSSHAgentSock,
		"--volume", sock+":"+containerSSHAgentSock,
		"--volume", filepath.Join(home, ".ssh", "known_hosts")+":"+containerKnownHostsPath,
	)
	return nil
}

// appendAgent mounts the buildkite-agent binary read-only and forwards the
// job identity variables by name. A missing binary is a warning, not an
// error: the build can still run without agent access.
func (a *Assembler) appendAgent(inv *Invocation) {
	if !a.Env.Bool(optKey("MOUNT_BUILDKITE_AGENT"), a.Defaults.MountAgent) {
		return
	}

	binary := a.Env.Value(envAgentBinaryPath)
	if binary == "" {
		path, err := a.LookPath("buildkite-agent")
		if err != nil {
			a.Logger.Warnf("not mounting buildkite-agent: binary not found on PATH and %s is not set", envAgentBinaryPath)
			return
		}
		binary = path
	}

	inv.Args = append(inv.Args, "--volume", binary+":"+containerAgentPath+":ro")
	for _, name := range agentEnvNames {
		inv.Args = append(inv.Args, "--env", name)
	}
}

// appendPropagatedEnvironment forwards every variable named in the agent's
// env file by reference. Only names are read from the file; the runtime
// resolves the values from its own environment at execution time.
func (a *Assembler) appendPropagatedEnvironment(inv *Invocation) error {
	if !a.Env.Bool(optKey("PROPAGATE_ENVIRONMENT"), false) {
		return nil
	}

	path := a.Env.Value(envEnvFile)
	if path == "" {
		a.Logger.Warnf("environment propagation skipped: %s is not set (requires agent v3+)", envEnvFile)
		return nil
	}

	content, err := a.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", envEnvFile, err)
	}
	for _, name := range env.ReadNames(content) {
		inv.Args = append(inv.Args, "--env", name)
	}
	return nil
}

// appendCommandTail resolves the entrypoint/shell/command precedence
// ladder and emits the fixed trailing sequence: job label, image, shell
// tokens (if any), then exactly one of the step command or the plugin
// command.
//
// Resolution order, each step short-circuiting the rest:
//  1. an explicit entrypoint (including explicit empty) disables shell
//     generation;
//  2. shell set to a falsy literal disables shell generation;
//  3. shell set to any other scalar is a usage error (must be a list);
//  4. a shell list is used verbatim;
//  5. otherwise a platform default shell is synthesized at the end.
func (a *Assembler) appendCommandTail(inv *Invocation) error {
	shellNeeded := true
	var shellTokens []string

	if entrypoint, ok := a.Env.Get(optKey("ENTRYPOINT")); ok {
		inv.Args = append(inv.Args, "--entrypoint", entrypoint)
		shellNeeded = false
	} else if scalar, ok := a.Env.Get(optKey("SHELL")); ok {
		if !env.IsFalsy(scalar) {
			return fmt.Errorf("%s must be specified as an array (%s_0, %s_1, ...), got the single value %q",
				optKey("SHELL"), optKey("SHELL"), optKey("SHELL"), scalar)
		}
		shellNeeded = false
	} else {
		tokens, found, err := a.Env.List(optKey("SHELL"))
		if err != nil {
			return err
		}
		if found {
			shellTokens = tokens
		}
	}

	stepCommand := a.Env.Value(envStepCommand)
	pluginCommand, pluginFound, err := a.Env.List(optKey("COMMAND"))
	if err != nil {
		return err
	}
	if stepCommand != "" && pluginFound {
		return fmt.Errorf("a step-level command and the plugin's command option cannot be used together")
	}

	inv.Args = append(inv.Args, "--label", "com.buildkite.job-id="+a.Env.Value(envJobID))
	inv.Args = append(inv.Args, inv.Image)

	if shellNeeded {
		if shellTokens == nil {
			shellTokens = a.defaultShell()
		}
		inv.Args = append(inv.Args, shellTokens...)
	}

	switch {
	case stepCommand != "":
		if a.GOOS == platform.Windows {
			// CMD.EXE takes one statement per /c; newline-separated step
			// commands become a single multi-statement line.
			stepCommand = strings.ReplaceAll(stepCommand, "\n", " && ")
		}
		inv.Args = append(inv.Args, stepCommand)
	case pluginFound:
		inv.Args = append(inv.Args, pluginCommand...)
	}

	return nil
}

// defaultShell returns the platform-appropriate in-container shell
// invocation synthesized when nothing explicit was configured.
func (a *Assembler) defaultShell() []string {
	if a.GOOS == platform.Windows {
		return []string{"CMD.EXE", "/c"}
	}
	return []string{"/bin/sh", "-e", "-c"}
}
