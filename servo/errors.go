package servo

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownParameter indicates a name or register not present in the catalog.
	ErrUnknownParameter = errors.New("servo: unknown parameter")

	// ErrMotorOffline indicates a command was issued to a motor whose session
	// is not Online.
	ErrMotorOffline = errors.New("servo: motor offline")

	// ErrBusy indicates the motor already has a request in flight.
	ErrBusy = errors.New("servo: request in flight")

	// ErrTimeout indicates the motor did not respond within the request timeout.
	ErrTimeout = errors.New("servo: request timed out")

	// ErrNotWritable indicates an attempt to set a read-only parameter.
	ErrNotWritable = errors.New("servo: parameter not writable")

	// ErrClosed indicates the dispatcher (or its bus) has been closed.
	ErrClosed = errors.New("servo: closed")
)

// OutOfRangeError reports an engineering value that does not fit the
// parameter's raw integer type.
type OutOfRangeError struct {
	Parameter string
	Value     float64
	Min, Max  float64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("servo: %s value %g out of range [%g, %g]", e.Parameter, e.Value, e.Min, e.Max)
}

// DecodeError reports a frame that could not be interpreted as a protocol
// response.
type DecodeError struct {
	ID     uint32
	Len    uint8
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("servo: cannot decode frame 0x%X [%d]: %s", e.ID, e.Len, e.Reason)
}
