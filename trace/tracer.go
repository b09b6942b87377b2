package trace

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// Tracer consumes trace events. Implementations must be safe for concurrent
// use.
type Tracer interface {
	Trace(Event)
}

// NoopTracer discards all events.
type NoopTracer struct{}

func (NoopTracer) Trace(Event) {}

var encMode cbor.EncMode

func init() {
	em, err := cbor.EncOptions{Sort: cbor.SortCanonical}.EncMode()
	if err != nil {
		panic(err)
	}
	encMode = em
}

// StreamTracer appends CBOR-encoded events to a writer. Encoding failures
// are counted rather than surfaced; tracing must never break the data path.
type StreamTracer struct {
	mu      sync.Mutex
	w       io.Writer
	enc     *cbor.Encoder
	closed  bool
	dropped uint64
}

// NewStreamTracer wraps an arbitrary writer.
func NewStreamTracer(w io.Writer) *StreamTracer {
	return &StreamTracer{w: w, enc: encMode.NewEncoder(w)}
}

// NewFileTracer creates (or truncates) path and streams events into it.
func NewFileTracer(path string) (*StreamTracer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("trace: create %s: %w", path, err)
	}
	return NewStreamTracer(f), nil
}

// Trace encodes one event.
func (t *StreamTracer) Trace(e Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	if err := t.enc.Encode(e); err != nil {
		t.dropped++
	}
}

// Dropped reports how many events failed to encode.
func (t *StreamTracer) Dropped() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dropped
}

// Close stops the tracer and closes the underlying writer when it is a
// Closer.
func (t *StreamTracer) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if c, ok := t.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// ReadAll decodes every event from a CBOR stream.
func ReadAll(r io.Reader) ([]Event, error) {
	dec := cbor.NewDecoder(r)
	var out []Event
	for {
		var e Event
		if err := dec.Decode(&e); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, fmt.Errorf("trace: decode: %w", err)
		}
		out = append(out, e)
	}
}
