package session

import "net"

// EventSink receives session events. Implementations must be safe for
// concurrent use when shared between sessions.
type EventSink interface {
	OnFileOffer(peer net.Addr, name string, size int64)
	OnMessage(peer net.Addr, text string)
}

// ModeObserver is implemented by sinks that want to know the negotiated mode.
type ModeObserver interface {
	OnModeSelected(peer net.Addr, mode Mode)
}

// Approver decides whether an offered file should be accepted.
// A Handler calls Approve on its own goroutine, so it may block on a user
// decision: heartbeats continue and later messages wait for the answer.
type Approver interface {
	Approve(peer net.Addr, name string, size int64) bool
}

// ApproverFunc adapts a function to Approver.
type ApproverFunc func(peer net.Addr, name string, size int64) bool

// Approve calls f.
func (f ApproverFunc) Approve(peer net.Addr, name string, size int64) bool {
	return f(peer, name, size)
}

// Progress reports whether a payload sink expects more chunks.
type Progress int

const (
	Continue Progress = iota
	Done
)

// PayloadSink consumes the binary payload of an accepted file offer.
type PayloadSink interface {
	AcceptChunk(chunk []byte) (Progress, error)
}

// PayloadSinkFactory creates the payload sink for one offer.
type PayloadSinkFactory func(peer net.Addr, file PendingFile) PayloadSink

// DiscardSink counts payload bytes and drops them.
type DiscardSink struct {
	Declared int64
	Received int64
}

// NewDiscardSink is the default PayloadSinkFactory.
func NewDiscardSink(_ net.Addr, file PendingFile) PayloadSink {
	return &DiscardSink{Declared: file.Size}
}

// AcceptChunk reports Done once the declared size has been reached.
func (d *DiscardSink) AcceptChunk(chunk []byte) (Progress, error) {
	d.Received += int64(len(chunk))
	if d.Received >= d.Declared {
		return Done, nil
	}
	return Continue, nil
}

// SinkFuncs adapts optional functions to EventSink and ModeObserver.
type SinkFuncs struct {
	FileOffer    func(peer net.Addr, name string, size int64)
	Message      func(peer net.Addr, text string)
	ModeSelected func(peer net.Addr, mode Mode)
}

func (f SinkFuncs) OnFileOffer(peer net.Addr, name string, size int64) {
	if f.FileOffer != nil {
		f.FileOffer(peer, name, size)
	}
}

func (f SinkFuncs) OnMessage(peer net.Addr, text string) {
	if f.Message != nil {
		f.Message(peer, text)
	}
}

func (f SinkFuncs) OnModeSelected(peer net.Addr, mode Mode) {
	if f.ModeSelected != nil {
		f.ModeSelected(peer, mode)
	}
}

// NopSink drops all events.
type NopSink struct{}

func (NopSink) OnFileOffer(net.Addr, string, int64) {}
func (NopSink) OnMessage(net.Addr, string)          {}
