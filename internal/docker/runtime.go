package docker

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"

	"github.com/nisidabay/streamlit-video-manager/internal/model"
)

// WorkspaceDir is where the project directory is mounted inside the
// runtime container. Manifest and entry-point paths from the project
// configuration stay relative and resolve against this directory via
// docker exec's working-directory flag.
const WorkspaceDir = "/workspace"

// RuntimeSpec describes the runtime container a project wants.
type RuntimeSpec struct {
	// Name is the container name, derived from the project directory.
	Name string

	// Project is the absolute host path mounted at WorkspaceDir.
	Project string

	// Image is the Python base image to create the container from.
	Image string

	// AppPort is published host:container at creation time so the app
	// server inside the container is reachable from the host browser.
	AppPort int
}

// FindRuntime looks up the project's runtime container by name among the
// svm-managed containers. Returns (nil, nil) when no such container
// exists — absence is a normal state, not an error.
func FindRuntime(ctx context.Context, cli *Client, name string) (*RuntimeInfo, error) {
	// Filter server-side on the management label; the name is matched
	// exactly in Go afterwards, since Docker's name filter is a
	// substring match.
	filterArgs := filters.NewArgs(
		filters.Arg("label", LabelManagedBy+"="+ManagedByValue),
	)

	containers, err := cli.Inner().ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filterArgs,
	})
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitDockerNotRunning,
			"failed to list Docker containers",
			err,
		)
	}

	for _, c := range containers {
		if !hasName(c.Names, name) {
			continue
		}

		info, err := ParseLabels(c.Labels)
		if err != nil {
			return nil, fmt.Errorf("container %q has malformed svm labels: %w", name, err)
		}
		info.ContainerID = c.ID
		info.ContainerName = name
		info.State = c.State
		return info, nil
	}

	return nil, nil
}

// hasName reports whether the Docker API name list contains the given
// name. The API returns names with a leading "/" prefix.
func hasName(names []string, want string) bool {
	for _, n := range names {
		if strings.TrimPrefix(n, "/") == want {
			return true
		}
	}
	return false
}

// EnsureRuntime makes sure the project's runtime container exists and is
// running, creating it from the spec's image on first use. Idempotent:
// an existing running container is reused untouched; a stopped one is
// started. The returned bool is true when the container was created by
// this call.
func EnsureRuntime(ctx context.Context, cli *Client, spec RuntimeSpec) (*RuntimeInfo, bool, error) {
	info, err := FindRuntime(ctx, cli, spec.Name)
	if err != nil {
		return nil, false, err
	}

	if info != nil {
		if info.State != "running" {
			if err := startContainer(ctx, cli, info.ContainerID); err != nil {
				return nil, false, err
			}
			info.State = "running"
		}
		return info, false, nil
	}

	if err := createRuntime(ctx, spec); err != nil {
		return nil, false, err
	}

	info, err = FindRuntime(ctx, cli, spec.Name)
	if err != nil {
		return nil, false, err
	}
	if info == nil {
		return nil, false, model.NewCLIError(
			model.ExitGeneralError,
			fmt.Sprintf("runtime container %q was created but cannot be found", spec.Name),
		)
	}
	return info, true, nil
}

// createRuntime creates and starts the runtime container via the docker
// CLI. "docker run" is used instead of the SDK's ContainerCreate/Start
// pair because a single familiar command line covers labels, the volume
// mount, the port publication, and the keep-alive entrypoint.
//
// The container's main process is a plain sleep: the container exists to
// hold an installed Python environment, and all real work arrives
// through docker exec.
func createRuntime(ctx context.Context, spec RuntimeSpec) error {
	args := []string{"run", "-d", "--name", spec.Name}

	for key, value := range BuildLabels(spec.Project, spec.Image, spec.AppPort, time.Now()) {
		args = append(args, "--label", key+"="+value)
	}

	args = append(args,
		"-v", spec.Project+":"+WorkspaceDir,
		"-w", WorkspaceDir,
		"-p", fmt.Sprintf("%d:%d", spec.AppPort, spec.AppPort),
		spec.Image,
		"sleep", "infinity",
	)

	cmd := exec.CommandContext(ctx, "docker", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		// Provisioning failure: exit 1 like the venv backend, with
		// docker's own diagnostic (image pull failure, name clash, ...).
		return model.WrapCLIError(
			model.ExitGeneralError,
			fmt.Sprintf("failed to create runtime container %q: %s",
				spec.Name, strings.TrimSpace(string(output))),
			err,
		)
	}
	return nil
}

// startContainer starts a stopped runtime container through the SDK.
func startContainer(ctx context.Context, cli *Client, containerID string) error {
	if err := cli.Inner().ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to start runtime container %q", containerID),
			err,
		)
	}
	return nil
}

// ExecCommand translates a command line to run inside the runtime
// container into a host-level docker exec invocation, for handoff to the
// launcher. The working directory is pinned to the workspace so relative
// project paths resolve.
func ExecCommand(name string, cmdline ...string) (string, []string) {
	args := append([]string{"exec", "-i", "-w", WorkspaceDir, name}, cmdline...)
	return "docker", args
}

// InstallCmdline is the dependency-install command line executed inside
// the runtime container. The base image's python3 fills the role the
// venv interpreter plays on the host backend.
func InstallCmdline(requirements string) []string {
	return []string{"python3", "-m", "pip", "install", "-r", requirements}
}

// appPidFile records the in-container pid of the app server started by
// ServeCmdline, so SignalApp can terminate it later. docker exec does
// not relay client-side signals to the exec'd process, which makes an
// explicit kill the only reliable stop path.
const appPidFile = "/tmp/svm-app.pid"

// ServeCmdline is the app server command line executed inside the
// runtime container. The server binds all interfaces — inside a
// container, loopback would be unreachable from the host browser; the
// port publication is what scopes exposure.
//
// The command runs through sh so the server's pid lands in appPidFile
// before exec replaces the shell with streamlit.
func ServeCmdline(script string, port int, headless bool) []string {
	run := fmt.Sprintf("echo $$ > %s; exec streamlit run '%s' --server.port %d --server.address 0.0.0.0 --server.headless %t",
		appPidFile, script, port, headless)
	return []string{"sh", "-c", run}
}

// StopCmdline terminates the in-container app server recorded by
// ServeCmdline's pid file. Errors are suppressed in-shell: a stale or
// missing pid file means there is nothing left to stop.
func StopCmdline() []string {
	return []string{"sh", "-c", fmt.Sprintf("kill -TERM \"$(cat %s)\" 2>/dev/null", appPidFile)}
}

// SignalApp delivers a termination to the app server running inside the
// runtime container. Used as the launcher's Interrupt override on the
// container backend: signaling the docker exec client would end svm but
// leave streamlit running in the long-lived container, holding the port
// for the next launch.
func SignalApp(ctx context.Context, name string) error {
	command, args := ExecCommand(name, StopCmdline()...)
	return exec.CommandContext(ctx, command, args...).Run()
}

// StopRuntime stops the runtime container gracefully (Docker's default
// SIGTERM-then-SIGKILL handling applies).
func StopRuntime(ctx context.Context, cli *Client, info *RuntimeInfo) error {
	if err := cli.Inner().ContainerStop(ctx, info.ContainerID, container.StopOptions{}); err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to stop runtime container %q", info.ContainerName),
			err,
		)
	}
	return nil
}

// RemoveRuntime removes the runtime container. force also kills a
// running container first, for clean --force.
func RemoveRuntime(ctx context.Context, cli *Client, info *RuntimeInfo, force bool) error {
	if err := cli.Inner().ContainerRemove(ctx, info.ContainerID, container.RemoveOptions{Force: force}); err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to remove runtime container %q", info.ContainerName),
			err,
		)
	}
	return nil
}
