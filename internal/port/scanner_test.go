package port

import (
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nisidabay/streamlit-video-manager/internal/model"
)

// occupyTCP binds a TCP listener on an OS-assigned port and returns the
// port number. Using ":0" avoids flakiness from hardcoded ports that may
// be in use on CI machines.
func occupyTCP(t *testing.T) int {
	t.Helper()
	listener, err := net.Listen("tcp", ":0")
	require.NoError(t, err, "failed to start test listener")
	t.Cleanup(func() { _ = listener.Close() })

	tcpAddr, ok := listener.Addr().(*net.TCPAddr)
	require.True(t, ok)
	return tcpAddr.Port
}

// TestIsPortAvailable_FreePort verifies a free port is reported available.
func TestIsPortAvailable_FreePort(t *testing.T) {
	scanner := NewScanner()

	freePort, err := scanner.FindAvailablePort(50000, 50100, "tcp")
	require.NoError(t, err, "should find at least one free port in 50000-50100")

	assert.True(t, scanner.IsPortAvailable(freePort, "tcp"))
}

// TestIsPortAvailable_UsedPort verifies a bound port is reported as in
// use — the condition the app-port preflight exists to catch.
func TestIsPortAvailable_UsedPort(t *testing.T) {
	port := occupyTCP(t)

	scanner := NewScanner()
	assert.False(t, scanner.IsPortAvailable(port, "tcp"),
		"port %d should be in use (we have a listener on it)", port)
}

// TestIsPortAvailable_UDP verifies the UDP probe path.
func TestIsPortAvailable_UDP(t *testing.T) {
	conn, err := net.ListenPacket("udp", ":0")
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	udpAddr, ok := conn.LocalAddr().(*net.UDPAddr)
	require.True(t, ok)

	scanner := NewScanner()
	assert.False(t, scanner.IsPortAvailable(udpAddr.Port, "udp"))
}

// TestIsPortAvailable_UnknownProtocol verifies fail-safe behavior for an
// unrecognized protocol string.
func TestIsPortAvailable_UnknownProtocol(t *testing.T) {
	scanner := NewScanner()
	assert.False(t, scanner.IsPortAvailable(50000, "sctp"))
}

// TestFindAvailablePort verifies range scanning returns an in-range,
// actually free port.
func TestFindAvailablePort(t *testing.T) {
	scanner := NewScanner()

	port, err := scanner.FindAvailablePort(50000, 50100, "tcp")
	require.NoError(t, err)

	assert.GreaterOrEqual(t, port, 50000)
	assert.LessOrEqual(t, port, 50100)
	assert.True(t, scanner.IsPortAvailable(port, "tcp"))
}

// TestPreflight_FreeConfiguredPort verifies the common case: the
// configured port is free and used unchanged, regardless of autoPort.
func TestPreflight_FreeConfiguredPort(t *testing.T) {
	scanner := NewScanner()
	free, err := scanner.FindAvailablePort(52000, 52100, "tcp")
	require.NoError(t, err)

	got, err := scanner.Preflight(free, false)
	require.NoError(t, err)
	assert.Equal(t, free, got)
}

// TestPreflight_ConflictWithoutAutoPort verifies the refusal path: a
// taken port without fallback enabled is a port-conflict error.
func TestPreflight_ConflictWithoutAutoPort(t *testing.T) {
	port := occupyTCP(t)

	scanner := NewScanner()
	_, err := scanner.Preflight(port, false)
	require.Error(t, err)

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitPortConflict, cliErr.Code)
	assert.Contains(t, cliErr.Message, "autoPort")
}

// TestPreflight_AutoPortFallsForward verifies that with autoPort enabled
// a taken port resolves to a nearby free one above it.
func TestPreflight_AutoPortFallsForward(t *testing.T) {
	port := occupyTCP(t)

	scanner := NewScanner()
	got, err := scanner.Preflight(port, true)
	require.NoError(t, err)

	assert.Greater(t, got, port)
	assert.LessOrEqual(t, got, port+autoPortWindow)
	assert.True(t, scanner.IsPortAvailable(got, "tcp"))
}
