package main

import (
	"bytes"
	"net"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcuoli/go-peerlink/pkg/peerlink"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, peerlink.VersionInfo()+"\n", out)
}

func TestScanCommand(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	t.Setenv("PEERLINK_SCAN_PORT", strconv.Itoa(ln.Addr().(*net.TCPAddr).Port))
	t.Setenv("PEERLINK_SCAN_TIMEOUT", "300ms")
	t.Setenv("PEERLINK_LOG_OUTPUT", "stderr")

	out, err := execute(t, "scan", "--cidr", "127.0.0.0/30")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1\n", out)

	out, err = execute(t, "scan", "--cidr", "127.0.0.0/30", "--all")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Equal(t, []string{"127.0.0.1\ttrue", "127.0.0.2\tfalse"}, lines)
}

func TestScanCommand_InvalidCIDR(t *testing.T) {
	_, err := execute(t, "scan", "--cidr", "bogus")
	assert.Error(t, err)
}

func TestInvalidConfigRejected(t *testing.T) {
	t.Setenv("PEERLINK_SERVER_PORT", "0")
	_, err := execute(t, "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
}
