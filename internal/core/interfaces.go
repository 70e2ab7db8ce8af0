package core

// Frame is a raw, already-encoded outbound message.
type Frame []byte

type SessionID string

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
// Pending reports frames accepted by TrySend but not yet written out.
type SignalConnection interface {
	TrySend(Frame) error
	Pending() int
	Close()
}

// PublishResult reports delivery stats/backpressure to the relay engine.
type PublishResult struct {
	SentTo  int
	Dropped []SessionID
}
