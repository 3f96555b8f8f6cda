// Package logger builds the process logger and bridges library debug output
// and session events into it.
package logger

import (
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/marcuoli/go-peerlink/internal/config"
	"github.com/marcuoli/go-peerlink/pkg/peerlink"
	"github.com/marcuoli/go-peerlink/pkg/peerlink/session"
)

const timestampFormat = "2006-01-02 15:04:05.000"

// New builds a logrus logger from cfg.
func New(cfg config.LogConfig) (*logrus.Logger, error) {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
		log.Warnf("Invalid log level '%s', using 'info' as default", cfg.Level)
	}
	log.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: timestampFormat,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime: "timestamp",
				logrus.FieldKeyMsg:  "message",
			},
		})
	case "text", "":
		log.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: timestampFormat,
			FullTimestamp:   true,
		})
	default:
		return nil, fmt.Errorf("unsupported log format: %s", cfg.Format)
	}

	out, err := output(cfg)
	if err != nil {
		return nil, err
	}
	log.SetOutput(out)
	return log, nil
}

func output(cfg config.LogConfig) (io.Writer, error) {
	switch strings.ToLower(cfg.Output) {
	case "stdout":
		return os.Stdout, nil
	case "stderr", "":
		return os.Stderr, nil
	case "file":
		if cfg.FilePath == "" {
			return nil, fmt.Errorf("file path is required when output is file")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		return &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize, // MB
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge, // days
			Compress:   cfg.Compress,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported log output: %s", cfg.Output)
	}
}

// DebugLevelFor maps a logrus level to the library debug level.
func DebugLevelFor(level logrus.Level) peerlink.DebugLevel {
	switch {
	case level >= logrus.TraceLevel:
		return peerlink.DebugVerbose
	case level >= logrus.DebugLevel:
		return peerlink.DebugBasic
	default:
		return peerlink.DebugOff
	}
}

// DebugBridge returns a library debug logger writing to log at debug level.
func DebugBridge(log logrus.FieldLogger) peerlink.DebugLogger {
	return func(component peerlink.Component, format string, args ...interface{}) {
		log.WithField("component", string(component)).Debugf(format, args...)
	}
}

// Install routes library debug output into log at a level matching log's own.
func Install(log *logrus.Logger) {
	peerlink.SetDebugLogger(DebugBridge(log))
	peerlink.SetDebugLevel(DebugLevelFor(log.GetLevel()))
}

// EventSink logs session events.
type EventSink struct {
	Log logrus.FieldLogger
}

var (
	_ session.EventSink    = EventSink{}
	_ session.ModeObserver = EventSink{}
)

// OnFileOffer logs an incoming file offer.
func (s EventSink) OnFileOffer(peer net.Addr, name string, size int64) {
	s.Log.WithFields(logrus.Fields{
		"peer": peer.String(),
		"name": name,
		"size": size,
	}).Info("file offer")
}

// OnMessage logs a relayed text message.
func (s EventSink) OnMessage(peer net.Addr, text string) {
	s.Log.WithField("peer", peer.String()).Infof("message: %s", text)
}

// OnModeSelected logs the negotiated session mode.
func (s EventSink) OnModeSelected(peer net.Addr, mode session.Mode) {
	s.Log.WithFields(logrus.Fields{
		"peer": peer.String(),
		"mode": mode.String(),
	}).Debug("session mode selected")
}

// OnSessionError logs the failure that ended a session.
func (s EventSink) OnSessionError(peer net.Addr, err error) {
	s.Log.WithField("peer", peer.String()).WithError(err).Warn("session ended with error")
}
