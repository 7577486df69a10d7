package domain

// Event is one opaque payload received on the ingestion socket.
// Nothing in intake interprets the bytes.
type Event []byte

// String returns the payload as text.
func (e Event) String() string {
	return string(e)
}

// Clone returns a copy that does not alias the receive buffer.
func (e Event) Clone() Event {
	out := make(Event, len(e))
	copy(out, e)
	return out
}
