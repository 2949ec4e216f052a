package domain

// MessageKind classifies a frame read from or written to a user's transport.
type MessageKind int

const (
	KindText MessageKind = iota
	KindBinary
	KindControl
)

func (k MessageKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindBinary:
		return "binary"
	case KindControl:
		return "control"
	default:
		return "unknown"
	}
}

// Message is one frame relayed through a playlist. Payload is opaque and is
// forwarded byte-for-byte.
type Message struct {
	Kind    MessageKind
	Payload []byte
}

// TextMessage builds a text frame from s.
func TextMessage(s string) Message {
	return Message{Kind: KindText, Payload: []byte(s)}
}

// IsText reports whether m is eligible for relaying.
func (m Message) IsText() bool {
	return m.Kind == KindText
}

// PlaylistStatus is the snapshot returned by the status query.
type PlaylistStatus struct {
	Name      string `json:"name"`
	UserCount int    `json:"user_count"`
}
