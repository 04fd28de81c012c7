package docker

import (
	"context"
	"fmt"
	"net"
	"os"
	"runtime"
	"time"

	"github.com/docker/docker/client"

	"github.com/nisidabay/streamlit-video-manager/internal/model"
)

// pingTimeout bounds the daemon liveness probe. Docker Desktop on macOS
// can take a few seconds to answer the first API call after idling, so
// the timeout is generous.
const pingTimeout = 5 * time.Second

// Client wraps the Docker Engine SDK client with automatic socket
// detection and svm-specific error mapping. Close it when done:
//
//	c, err := docker.NewClient()
//	if err != nil { ... }
//	defer c.Close()
type Client struct {
	// inner is the underlying SDK client. Wrapped rather than embedded
	// to keep the exposed surface small.
	inner *client.Client
}

// NewClient creates a Docker client, resolving the daemon address in
// priority order: the DOCKER_HOST environment variable if set, then the
// platform's known socket locations. Existence of a socket file is
// checked here; actual daemon liveness is Ping's job.
//
// Failures map to ExitDockerNotRunning, since a missing socket almost
// always means Docker is not installed or not started.
func NewClient() (*Client, error) {
	host := os.Getenv("DOCKER_HOST")
	if host == "" {
		detected, err := detectHost()
		if err != nil {
			return nil, model.WrapCLIError(model.ExitDockerNotRunning, "Docker socket not found", err)
		}
		host = detected
	}

	// API version negotiation keeps the client compatible with whatever
	// daemon version is installed, without pinning an API version here.
	inner, err := client.NewClientWithOpts(
		client.WithHost(host),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to create Docker client for host %q", host),
			err,
		)
	}

	return &Client{inner: inner}, nil
}

// detectHost probes the platform's known daemon addresses and returns the
// first that exists, most-preferred first.
func detectHost() (string, error) {
	switch runtime.GOOS {
	case "linux", "darwin":
		candidates := []string{"/var/run/docker.sock"}
		if runtime.GOOS == "darwin" {
			// Newer Docker Desktop versions may only create the
			// per-user socket and skip the /var/run symlink.
			if home, err := os.UserHomeDir(); err == nil {
				candidates = append(candidates, home+"/.docker/run/docker.sock")
			}
		}
		for _, path := range candidates {
			if _, err := os.Stat(path); err == nil {
				return "unix://" + path, nil
			}
		}
		return "", fmt.Errorf("Docker socket not found at any of: %v — is Docker running?", candidates)

	case "windows":
		// Named pipes don't support os.Stat; a short dial is the probe.
		pipePath := `//./pipe/docker_engine`
		conn, err := net.DialTimeout("pipe", pipePath, time.Second)
		if err != nil {
			return "", fmt.Errorf("Docker named pipe not found at %s: %w", pipePath, err)
		}
		conn.Close()
		return "npipe://" + pipePath, nil

	default:
		return "", fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

// Ping verifies the daemon is reachable and responsive.
func (c *Client) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if _, err := c.inner.Ping(pingCtx); err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			"Docker daemon is not responding — is Docker running?",
			err,
		)
	}
	return nil
}

// Close releases the client's resources. Safe to call multiple times.
func (c *Client) Close() error {
	if c.inner != nil {
		return c.inner.Close()
	}
	return nil
}

// Inner exposes the underlying SDK client for operations not wrapped by
// this package. Prefer the wrapper methods where they exist.
func (c *Client) Inner() *client.Client {
	return c.inner
}
