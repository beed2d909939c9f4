package domain

import "time"

// Message is what a source hands over for one inbound delivery: an opaque
// payload, an already-structured field list, or a transport failure.
type Message struct {
	Source   string
	Topic    string
	Payload  []byte
	Fields   []Field
	Err      error
	Received time.Time
	// Batch marks a payload that may hold a JSON array of records.
	Batch bool
}

// FailureMessage wraps a transport error so it travels the same path as data.
func FailureMessage(source string, err error) Message {
	return Message{Source: source, Err: err, Received: time.Now()}
}

// InfoMessage carries a lifecycle notice (connected, resubscribed, ...).
func InfoMessage(source, text string) Message {
	return Message{
		Source:   source,
		Fields:   []Field{{Key: KeyInfo, Value: text}},
		Received: time.Now(),
	}
}

// Kind says how the decoder arrived at a record.
type Kind uint8

const (
	// KindStructured is a parsed key/value document.
	KindStructured Kind = iota
	// KindPayload is an unparseable payload wrapped as {"payload": text}.
	KindPayload
	// KindError is a transport failure wrapped as {"error": message}.
	KindError
	// KindInfo is a lifecycle notice.
	KindInfo
)

func (k Kind) String() string {
	switch k {
	case KindStructured:
		return "structured"
	case KindPayload:
		return "payload"
	case KindError:
		return "error"
	case KindInfo:
		return "info"
	default:
		return "unknown"
	}
}
