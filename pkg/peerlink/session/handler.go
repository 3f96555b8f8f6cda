package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
)

const (
	// DefaultHeartbeatInterval is the period between heartbeat messages.
	DefaultHeartbeatInterval = 1000 * time.Millisecond
	// DefaultWriteTimeout bounds a single outbound write.
	DefaultWriteTimeout = 5 * time.Second
	// inboundBuffer lets the reader run ahead of a slow write.
	inboundBuffer = 16
)

// ErrInvalidUTF8 marks a text frame whose payload is not valid UTF-8.
var ErrInvalidUTF8 = errors.New("invalid UTF-8 in text frame")

// Conn is the subset of *websocket.Conn a Handler needs.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	RemoteAddr() net.Addr
	Close() error
}

// Options configures a Handler.
type Options struct {
	Sink           EventSink
	Approver       Approver
	NewPayloadSink PayloadSinkFactory
	// HeartbeatInterval defaults to DefaultHeartbeatInterval.
	HeartbeatInterval time.Duration
	// WriteTimeout defaults to DefaultWriteTimeout.
	WriteTimeout time.Duration
}

// Handler owns one upgraded connection from handshake to close.
type Handler struct {
	conn    Conn
	session *Session
	opts    Options
}

type inbound struct {
	kind Kind
	data []byte
	err  error
}

// NewHandler creates a handler for conn with a fresh Session.
func NewHandler(conn Conn, opts Options) *Handler {
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	s := New(conn.RemoteAddr(), opts.Sink, opts.Approver, opts.NewPayloadSink)
	s.deferApproval = true
	return &Handler{conn: conn, session: s, opts: opts}
}

// Session returns the handler's session state. Only read it after Run returns.
func (h *Handler) Session() *Session { return h.session }

// Run services inbound messages and the heartbeat until the connection ends.
// A peer close, end of stream, protocol error or cancelled ctx ends the
// session with a nil error; other read/write failures are returned.
// The connection is closed before Run returns.
func (h *Handler) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancel(ctx)
	peer := h.conn.RemoteAddr()

	in := make(chan inbound, inboundBuffer)
	readerDone := make(chan struct{})
	go h.readLoop(ctx, in, readerDone)

	defer func() {
		cancel()
		h.conn.Close()
		<-readerDone
		debugLog("%s: session closed (%s)", peer, h.session.Phase())
	}()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("session %s: panic: %v", peer, r)
		}
	}()

	ticker := time.NewTicker(h.opts.HeartbeatInterval)
	defer ticker.Stop()

	if err := h.heartbeat(); err != nil {
		return h.writeFailed(ctx, peer, "heartbeat to", err, in)
	}

	// inbox is nil while an approval is outstanding.
	inbox := (<-chan inbound)(in)
	var decision <-chan bool

	for {
		select {
		case <-ctx.Done():
			h.closeFrame(websocket.CloseGoingAway, "")
			return nil

		case msg := <-inbox:
			reply, done, err := h.deliver(peer, msg)
			if done {
				return err
			}
			if file, ok := h.session.AwaitingApproval(); ok {
				decision = h.approve(peer, file)
				inbox = nil
			}
			if reply != nil {
				if err := h.write(websocket.TextMessage, reply); err != nil {
					return h.writeFailed(ctx, peer, "reply to", err, in)
				}
			}

		case approved := <-decision:
			decision = nil
			inbox = in
			if reply := h.session.ResolveApproval(approved); reply != nil {
				if err := h.write(websocket.TextMessage, reply); err != nil {
					return h.writeFailed(ctx, peer, "reply to", err, in)
				}
			}

		case <-ticker.C:
			if err := h.heartbeat(); err != nil {
				return h.writeFailed(ctx, peer, "heartbeat to", err, in)
			}
		}
	}
}

// approve runs the approver off the loop. A session that ends first
// abandons the decision.
func (h *Handler) approve(peer net.Addr, file PendingFile) <-chan bool {
	out := make(chan bool, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				debugLog("%s: approver panic: %v", peer, r)
				out <- false
			}
		}()
		out <- h.opts.Approver.Approve(peer, file.Name, file.Size)
	}()
	return out
}

// deliver hands one inbound message to the session. done reports that the
// session is over, with err set only for a failure worth reporting.
func (h *Handler) deliver(peer net.Addr, msg inbound) (reply []byte, done bool, err error) {
	if msg.err != nil {
		return nil, true, h.readError(peer, msg.err)
	}
	if msg.kind == KindText && !utf8.Valid(msg.data) {
		debugLog("%s: %v", peer, ErrInvalidUTF8)
		h.closeFrame(websocket.CloseInvalidFramePayloadData, ErrInvalidUTF8.Error())
		return nil, true, nil
	}
	reply, err = h.session.Handle(msg.kind, msg.data)
	if err != nil {
		return nil, true, fmt.Errorf("session %s: %w", peer, err)
	}
	return reply, false, nil
}

// writeFailed maps a failed write to the session outcome. gorilla answers a
// peer close from the reader goroutine, so a write can lose that race and
// see ErrCloseSent while the close itself is still queued on in. That ends
// the session cleanly once the queued messages are delivered.
func (h *Handler) writeFailed(ctx context.Context, peer net.Addr, what string, err error, in <-chan inbound) error {
	if !errors.Is(err, websocket.ErrCloseSent) && !IsConnectionClosed(err) {
		return fmt.Errorf("%s %s: %w", what, peer, err)
	}
	debugLog("%s: %s closing connection: %v", peer, what, err)
	return h.drain(ctx, peer, in)
}

// drain delivers what the reader queued before the connection closed,
// without replying. It gives up after WriteTimeout of silence.
func (h *Handler) drain(ctx context.Context, peer net.Addr, in <-chan inbound) error {
	for {
		select {
		case msg := <-in:
			// No answer can reach the peer any more.
			h.session.ResolveApproval(false)
			if _, done, err := h.deliver(peer, msg); done {
				return err
			}
		case <-ctx.Done():
			return nil
		case <-time.After(h.opts.WriteTimeout):
			debugLog("%s: no close after write failure", peer)
			return nil
		}
	}
}

func (h *Handler) readLoop(ctx context.Context, out chan<- inbound, done chan<- struct{}) {
	defer close(done)
	for {
		mt, data, err := h.conn.ReadMessage()
		msg := inbound{data: data, err: err}
		if mt == websocket.BinaryMessage {
			msg.kind = KindBinary
		}
		select {
		case out <- msg:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

func (h *Handler) heartbeat() error {
	return h.write(websocket.TextMessage, []byte(HeartbeatMessage))
}

func (h *Handler) write(messageType int, data []byte) error {
	if err := h.conn.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout)); err != nil {
		return err
	}
	return h.conn.WriteMessage(messageType, data)
}

func (h *Handler) closeFrame(code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = h.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(h.opts.WriteTimeout))
}

// readError maps a read failure to the session outcome.
func (h *Handler) readError(peer net.Addr, err error) error {
	switch {
	case IsConnectionClosed(err):
		debugLog("%s: connection closed: %v", peer, err)
		return nil
	case IsProtocolError(err):
		debugLog("%s: protocol error: %v", peer, err)
		return nil
	default:
		return fmt.Errorf("read from %s: %w", peer, err)
	}
}

// IsConnectionClosed reports whether err is a peer close or end of stream.
func IsConnectionClosed(err error) bool {
	var ce *websocket.CloseError
	return errors.As(err, &ce) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed)
}

// IsProtocolError reports whether err is a websocket framing violation.
func IsProtocolError(err error) bool {
	if errors.Is(err, websocket.ErrReadLimit) || errors.Is(err, ErrInvalidUTF8) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return false
	}
	// gorilla reports framing violations as plain errors with this prefix.
	return strings.HasPrefix(err.Error(), "websocket: ")
}
