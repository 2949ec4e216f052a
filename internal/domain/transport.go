package domain

// Sender is the write half of a user's duplex connection.
type Sender interface {
	Send(msg Message) error
	Close() error
}

// Receiver is the read half of a user's duplex connection. Receive blocks until
// the next frame arrives or the connection fails.
type Receiver interface {
	Receive() (Message, error)
}

// Transport is a duplex message stream whose halves may be used concurrently:
// one goroutine may Receive while another Sends.
type Transport interface {
	Sender
	Receiver
}
