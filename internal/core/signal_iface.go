package core

// Frame is one serialized envelope.
type Frame []byte

// SignalConnection abstracts the live transport of a session.
// Owned by the adapter; the adapter must Close() it.
// TrySend must never block and must preserve call order per connection.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
