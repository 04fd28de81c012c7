// Package port checks host port availability for the app server launch.
//
// Before handing control to the long-running server process, the app
// command verifies that the configured port can actually be bound. The
// check asks the OS directly via net.Listen / net.ListenPacket, which is
// more reliable than parsing /proc/net/* or shelling out to lsof/ss and
// needs no elevated permissions.
package port

import (
	"fmt"
	"net"

	"github.com/nisidabay/streamlit-video-manager/internal/model"
)

// autoPortWindow is how many ports above the configured one are probed
// when automatic fallback is enabled. A hundred ports is far more than
// any realistic number of concurrently running app instances.
const autoPortWindow = 100

// Scanner checks whether specific ports are free on the host machine.
//
// It is stateless; it exists as a struct so it can be injected and so
// future options (bind address, probe timeout) have a home without an
// API break.
type Scanner struct{}

// NewScanner creates a new Scanner.
func NewScanner() *Scanner {
	return &Scanner{}
}

// IsPortAvailable reports whether a single port is free.
//
// It binds to all interfaces (":port") rather than loopback: the server
// process will typically do the same, so probing a narrower address space
// would produce false positives. The probe listener is closed immediately;
// only bindability is being tested.
func (s *Scanner) IsPortAvailable(port int, protocol string) bool {
	addr := fmt.Sprintf(":%d", port)

	switch protocol {
	case "tcp":
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			return false
		}
		defer func() { _ = listener.Close() }()
		return true

	case "udp":
		// UDP is connectionless, so ListenPacket is the bind probe.
		conn, err := net.ListenPacket("udp", addr)
		if err != nil {
			return false
		}
		defer func() { _ = conn.Close() }()
		return true

	default:
		// Unknown protocol — treat as unavailable to fail safe.
		return false
	}
}

// FindAvailablePort scans [startPort, endPort] (inclusive) and returns
// the first free port for the given protocol. The sequential low-to-high
// order makes the selection deterministic for a given host state.
func (s *Scanner) FindAvailablePort(startPort, endPort int, protocol string) (int, error) {
	for port := startPort; port <= endPort; port++ {
		if s.IsPortAvailable(port, protocol) {
			return port, nil
		}
	}
	return 0, fmt.Errorf("no available %s port found in range %d-%d", protocol, startPort, endPort)
}

// Preflight resolves the port the app server should bind.
//
// When the configured port is free it is returned unchanged. When it is
// taken and autoPort is enabled, the next free port in a small window
// above it is chosen, so a second app instance can start alongside a
// first without manual configuration. Otherwise the launch is refused
// with ExitPortConflict and a diagnostic naming the contended port.
func (s *Scanner) Preflight(configured int, autoPort bool) (int, error) {
	if s.IsPortAvailable(configured, "tcp") {
		return configured, nil
	}

	if !autoPort {
		return 0, model.NewCLIError(
			model.ExitPortConflict,
			fmt.Sprintf("port %d is already in use — stop the process using it, or enable app.autoPort in %s",
				configured, "svm.json"),
		)
	}

	end := configured + autoPortWindow
	if end > 65535 {
		end = 65535
	}

	fallback, err := s.FindAvailablePort(configured+1, end, "tcp")
	if err != nil {
		return 0, model.WrapCLIError(
			model.ExitPortConflict,
			fmt.Sprintf("port %d is in use and no fallback port is free", configured),
			err,
		)
	}
	return fallback, nil
}
