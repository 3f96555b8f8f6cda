// Package session implements the per-connection peer protocol: mode
// negotiation, the file offer handshake, and the heartbeat loop.
package session

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Wire literals.
const (
	// KeywordText selects text relay mode.
	KeywordText = "text"
	// KeywordFile selects file transfer mode.
	KeywordFile = "file"
	// MetaDelimiter separates the file name from the declared size.
	MetaDelimiter = "<|>"
	// HeartbeatMessage is sent to the peer every heartbeat interval.
	HeartbeatMessage = "tick"
	// AcceptReply tells the peer an offer was approved and payload may follow.
	AcceptReply = "1"
	// Placeholder replaces binary content that is not valid text.
	Placeholder = "could not convert message into text"
)

// ErrMalformedMeta is returned by ParseFileMeta for a message that is not "<name><|><size>".
var ErrMalformedMeta = errors.New("malformed file metadata")

// DebugLogger is a callback for debug logging.
// Set this to receive debug messages from session operations.
var DebugLogger func(format string, args ...interface{})

func debugLog(format string, args ...interface{}) {
	if DebugLogger != nil {
		DebugLogger(format, args...)
	}
}

// Kind is the frame type of an inbound message.
type Kind int

const (
	KindText Kind = iota
	KindBinary
)

func (k Kind) String() string {
	if k == KindBinary {
		return "binary"
	}
	return "text"
}

// Mode is the negotiated purpose of a session.
type Mode int

const (
	ModeUnset Mode = iota
	ModeText
	ModeFile
)

func (m Mode) String() string {
	switch m {
	case ModeText:
		return "text"
	case ModeFile:
		return "file"
	default:
		return "unset"
	}
}

// Phase is the protocol state of a session.
type Phase int

const (
	// PhaseAwaitingMode waits for a mode keyword.
	PhaseAwaitingMode Phase = iota
	// PhaseText relays every message to the sink.
	PhaseText
	// PhaseAwaitingFileMeta waits for "<name><|><size>".
	PhaseAwaitingFileMeta
	// PhaseAwaitingFilePayload feeds binary frames to the payload sink.
	PhaseAwaitingFilePayload
	// PhaseFileDeclined means the approver refused the offer.
	PhaseFileDeclined
	// PhaseFileComplete means the payload sink reported the transfer done.
	PhaseFileComplete
)

func (p Phase) String() string {
	switch p {
	case PhaseAwaitingMode:
		return "awaiting-mode"
	case PhaseText:
		return "text"
	case PhaseAwaitingFileMeta:
		return "awaiting-file-meta"
	case PhaseAwaitingFilePayload:
		return "awaiting-file-payload"
	case PhaseFileDeclined:
		return "file-declined"
	case PhaseFileComplete:
		return "file-complete"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Mode returns the mode a phase belongs to.
func (p Phase) Mode() Mode {
	switch p {
	case PhaseText:
		return ModeText
	case PhaseAwaitingFileMeta, PhaseAwaitingFilePayload, PhaseFileDeclined, PhaseFileComplete:
		return ModeFile
	default:
		return ModeUnset
	}
}

// PendingFile is a file the peer offered but has not started sending.
type PendingFile struct {
	Name string
	Size int64
}

// Session is the protocol state of one connection. It is not safe for
// concurrent use; a Handler owns it exclusively.
type Session struct {
	peer     net.Addr
	phase    Phase
	pending  *PendingFile
	offer    PendingFile
	payload  PayloadSink
	sink     EventSink
	approver Approver
	newSink  PayloadSinkFactory

	// deferApproval leaves the approver call to the owner, which resolves
	// it with ResolveApproval.
	deferApproval bool
	awaiting      bool
}

// New creates a session for peer in PhaseAwaitingMode.
// A nil sink discards events; a nil approver makes offers advisory.
func New(peer net.Addr, sink EventSink, approver Approver, newSink PayloadSinkFactory) *Session {
	if sink == nil {
		sink = NopSink{}
	}
	if newSink == nil {
		newSink = NewDiscardSink
	}
	return &Session{
		peer:     peer,
		phase:    PhaseAwaitingMode,
		sink:     sink,
		approver: approver,
		newSink:  newSink,
	}
}

// Peer returns the remote address.
func (s *Session) Peer() net.Addr { return s.peer }

// Phase returns the current protocol state.
func (s *Session) Phase() Phase { return s.phase }

// Mode returns the negotiated mode.
func (s *Session) Mode() Mode { return s.phase.Mode() }

// PendingFile returns the offered file while the payload has not started.
func (s *Session) PendingFile() (PendingFile, bool) {
	if s.pending == nil {
		return PendingFile{}, false
	}
	return *s.pending, true
}

// Handle processes one inbound message. It returns an optional text reply for
// the peer. A non-nil error ends the session.
func (s *Session) Handle(kind Kind, data []byte) ([]byte, error) {
	switch s.phase {
	case PhaseAwaitingMode:
		s.handleModeSelect(kind, data)
		return nil, nil
	case PhaseText:
		s.sink.OnMessage(s.peer, displayText(kind, data))
		return nil, nil
	case PhaseAwaitingFileMeta:
		return s.handleFileMeta(kind, data), nil
	case PhaseAwaitingFilePayload:
		return nil, s.handlePayload(kind, data)
	case PhaseFileDeclined, PhaseFileComplete:
		debugLog("%s: ignoring %s message in %s", s.peer, kind, s.phase)
		return nil, nil
	default:
		return nil, fmt.Errorf("session %s: unknown phase %v", s.peer, s.phase)
	}
}

func (s *Session) handleModeSelect(kind Kind, data []byte) {
	if kind != KindText {
		return
	}
	switch string(data) {
	case KeywordText:
		s.phase = PhaseText
	case KeywordFile:
		s.phase = PhaseAwaitingFileMeta
	default:
		return
	}
	debugLog("%s: mode %s", s.peer, s.Mode())
	if obs, ok := s.sink.(ModeObserver); ok {
		obs.OnModeSelected(s.peer, s.Mode())
	}
}

func (s *Session) handleFileMeta(kind Kind, data []byte) []byte {
	if kind != KindText {
		debugLog("%s: ignoring binary message while awaiting file metadata", s.peer)
		return nil
	}
	name, size, err := ParseFileMeta(string(data))
	if err != nil {
		debugLog("%s: invalid file metadata %q: %v", s.peer, data, err)
		return nil
	}

	s.pending = &PendingFile{Name: name, Size: size}
	s.offer = *s.pending
	s.phase = PhaseAwaitingFilePayload
	debugLog("%s: file offer %q (%d bytes)", s.peer, name, size)
	s.sink.OnFileOffer(s.peer, name, size)

	if s.approver == nil {
		return nil
	}
	if s.deferApproval {
		s.awaiting = true
		return nil
	}
	return s.resolveApproval(s.approver.Approve(s.peer, name, size))
}

// AwaitingApproval returns the offer whose approval is still outstanding.
func (s *Session) AwaitingApproval() (PendingFile, bool) {
	if !s.awaiting {
		return PendingFile{}, false
	}
	return s.offer, true
}

// ResolveApproval applies the decision for the outstanding offer and returns
// the reply for the peer, if any.
func (s *Session) ResolveApproval(approved bool) []byte {
	if !s.awaiting {
		return nil
	}
	s.awaiting = false
	return s.resolveApproval(approved)
}

func (s *Session) resolveApproval(approved bool) []byte {
	if !approved {
		debugLog("%s: file offer %q declined", s.peer, s.offer.Name)
		s.pending = nil
		s.phase = PhaseFileDeclined
		return nil
	}
	return []byte(AcceptReply)
}

func (s *Session) handlePayload(kind Kind, data []byte) error {
	if kind != KindBinary {
		return nil
	}
	if s.payload == nil {
		s.payload = s.newSink(s.peer, s.offer)
		s.pending = nil
	}
	progress, err := s.payload.AcceptChunk(data)
	if err != nil {
		return fmt.Errorf("payload for %q: %w", s.offer.Name, err)
	}
	if progress == Done {
		debugLog("%s: payload for %q complete", s.peer, s.offer.Name)
		s.phase = PhaseFileComplete
	}
	return nil
}

// ParseFileMeta splits "<name><|><size>" into its fields. The size is a
// base-10 signed integer; surrounding whitespace is ignored.
func ParseFileMeta(text string) (string, int64, error) {
	parts := strings.Split(text, MetaDelimiter)
	if len(parts) != 2 {
		return "", 0, fmt.Errorf("%w: expected 2 fields, got %d", ErrMalformedMeta, len(parts))
	}
	size, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("%w: size: %v", ErrMalformedMeta, err)
	}
	return parts[0], size, nil
}

// FormatFileMeta is the inverse of ParseFileMeta.
func FormatFileMeta(name string, size int64) string {
	return name + MetaDelimiter + strconv.FormatInt(size, 10)
}

func displayText(kind Kind, data []byte) string {
	if kind == KindText || utf8.Valid(data) {
		return string(data)
	}
	return Placeholder
}
