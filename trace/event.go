package trace

import (
	"fmt"
	"time"
)

// Kind classifies a trace event.
type Kind uint8

const (
	KindTx          Kind = iota + 1 // frame sent to the bus
	KindRx                          // response matched to a pending request
	KindOrphan                      // response with no pending request
	KindDecodeError                 // frame that could not be decoded
	KindTimeout                     // request expired without a response
	KindStateChange                 // session lifecycle transition
)

func (k Kind) String() string {
	switch k {
	case KindTx:
		return "tx"
	case KindRx:
		return "rx"
	case KindOrphan:
		return "orphan"
	case KindDecodeError:
		return "decode-error"
	case KindTimeout:
		return "timeout"
	case KindStateChange:
		return "state-change"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Event is one trace record. Fields are keyed by small integers on the wire
// to keep the stream compact.
type Event struct {
	Kind   Kind   `cbor:"1,keyasint"`
	Time   int64  `cbor:"2,keyasint"` // unix nanoseconds
	Motor  uint8  `cbor:"3,keyasint,omitempty"`
	Seq    uint8  `cbor:"4,keyasint,omitempty"`
	ID     uint32 `cbor:"5,keyasint,omitempty"` // arbitration id
	Len    uint8  `cbor:"6,keyasint,omitempty"`
	Detail string `cbor:"7,keyasint,omitempty"`
}

// New builds an event stamped with the current time.
func New(kind Kind) Event {
	return Event{Kind: kind, Time: time.Now().UnixNano()}
}
