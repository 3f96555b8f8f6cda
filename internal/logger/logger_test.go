package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcuoli/go-peerlink/internal/config"
	"github.com/marcuoli/go-peerlink/pkg/peerlink"
	"github.com/marcuoli/go-peerlink/pkg/peerlink/session"
)

var peer = &net.TCPAddr{IP: net.IPv4(192, 168, 1, 30), Port: 40000}

func TestNew(t *testing.T) {
	log, err := New(config.LogConfig{Level: "debug", Format: "json", Output: "stdout"})
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, log.Formatter)

	log, err = New(config.LogConfig{Level: "nonsense", Format: "text", Output: "stderr"})
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
}

func TestNew_Errors(t *testing.T) {
	_, err := New(config.LogConfig{Level: "info", Format: "xml", Output: "stdout"})
	assert.Error(t, err)
	_, err = New(config.LogConfig{Level: "info", Format: "text", Output: "syslog"})
	assert.Error(t, err)
	_, err = New(config.LogConfig{Level: "info", Format: "text", Output: "file"})
	assert.Error(t, err)
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "peerlink.log")
	log, err := New(config.LogConfig{Level: "info", Format: "json", Output: "file", FilePath: path, MaxSize: 1})
	require.NoError(t, err)

	log.WithField("component", "test").Info("hello")
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &entry))
	assert.Equal(t, "hello", entry["message"])
	assert.Equal(t, "test", entry["component"])
}

func TestDebugLevelFor(t *testing.T) {
	assert.Equal(t, peerlink.DebugVerbose, DebugLevelFor(logrus.TraceLevel))
	assert.Equal(t, peerlink.DebugBasic, DebugLevelFor(logrus.DebugLevel))
	assert.Equal(t, peerlink.DebugOff, DebugLevelFor(logrus.InfoLevel))
}

func TestDebugBridge(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	DebugBridge(log)(peerlink.ComponentScan, "scanned %d hosts", 254)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.DebugLevel, entry.Level)
	assert.Equal(t, "scanned 254 hosts", entry.Message)
	assert.Equal(t, "scan", entry.Data["component"])
}

func TestEventSink(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	sink := EventSink{Log: log}

	sink.OnModeSelected(peer, session.ModeFile)
	sink.OnFileOffer(peer, "report.csv", 2048)
	sink.OnMessage(peer, "hi")

	entries := hook.AllEntries()
	require.Len(t, entries, 3)
	assert.Equal(t, "file", entries[0].Data["mode"])
	assert.Equal(t, "file offer", entries[1].Message)
	assert.Equal(t, "report.csv", entries[1].Data["name"])
	assert.EqualValues(t, 2048, entries[1].Data["size"])
	assert.Equal(t, "message: hi", entries[2].Message)
	assert.Equal(t, peer.String(), entries[2].Data["peer"])
}

func TestEventSink_SessionError(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.InfoLevel)
	sink := EventSink{Log: log}

	sink.OnSessionError(peer, errors.New("disk full"))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "session ended with error", entry.Message)
	assert.Equal(t, peer.String(), entry.Data["peer"])
	assert.EqualError(t, entry.Data[logrus.ErrorKey].(error), "disk full")
}
