package server

// ConnID identifies one live connection. IDs are assigned sequentially by the
// accept loop and never reused for the lifetime of the server.
type ConnID uint32

// Message is one complete line received from a connection, trailing CRLF
// included.
type Message struct {
	ID   ConnID
	Line string
}

// Batch is everything that happened during one tick: lines in arrival order,
// connections that finished their handshake, and connections that went away.
// An empty batch is delivered on every tick where nothing happened.
type Batch struct {
	Messages []Message
	Joined   []ConnID
	Left     []ConnID
}

func (b Batch) Empty() bool {
	return len(b.Messages) == 0 && len(b.Joined) == 0 && len(b.Left) == 0
}
