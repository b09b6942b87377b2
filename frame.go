package canfd

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// Frame represents a CAN FD frame.
//
// Supported features:
//   - Standard (11-bit) and Extended (29-bit) identifiers
//   - Payloads of 0-64 bytes, quantized to the discrete FD lengths
//   - Bit rate switching (BRS) flag
//
// CAN FD has no remote frames; there is no RTR flag.
type Frame struct {
	ID       uint32 // 11-bit (std) or 29-bit (ext)
	Extended bool   // true for 29-bit identifier
	BRS      bool   // bit rate switch: payload at the data bitrate
	Len      uint8  // one of the valid FD lengths, 0..64
	Data     [64]byte
}

// Validation limits.
const (
	maxStdID   = 0x7FF
	maxExtID   = 0x1FFFFFFF
	MaxDataLen = 64
)

var (
	ErrInvalidID  = errors.New("canfd: invalid identifier")
	ErrInvalidLen = errors.New("canfd: invalid data length")
)

// validLens are the payload lengths representable by an FD DLC.
var validLens = [...]uint8{0, 1, 2, 3, 4, 5, 6, 7, 8, 12, 16, 20, 24, 32, 48, 64}

// PadLen returns the smallest valid FD payload length that can hold n bytes.
func PadLen(n int) (uint8, error) {
	if n < 0 || n > MaxDataLen {
		return 0, ErrInvalidLen
	}
	for _, l := range validLens {
		if int(l) >= n {
			return l, nil
		}
	}
	return 0, ErrInvalidLen
}

func lenValid(n uint8) bool {
	for _, l := range validLens {
		if n == l {
			return true
		}
	}
	return false
}

// Validate returns an error if the frame is not valid.
func (f Frame) Validate() error {
	if !lenValid(f.Len) {
		return ErrInvalidLen
	}
	if f.Extended {
		if f.ID > maxExtID {
			return ErrInvalidID
		}
	} else {
		if f.ID > maxStdID {
			return ErrInvalidID
		}
	}
	return nil
}

// NewFrame constructs a frame, zero-padding the payload up to the next valid
// FD length. Identifiers above the standard range are marked extended.
func NewFrame(id uint32, data []byte) (Frame, error) {
	var f Frame
	f.ID = id
	if id > maxStdID {
		f.Extended = true
	}
	l, err := PadLen(len(data))
	if err != nil {
		return Frame{}, err
	}
	f.Len = l
	copy(f.Data[:], data)
	if err := f.Validate(); err != nil {
		return Frame{}, err
	}
	return f, nil
}

// MustFrame constructs a Frame and panics if invalid. Convenience for examples.
func MustFrame(id uint32, data []byte) Frame {
	f, err := NewFrame(id, data)
	if err != nil {
		panic(err)
	}
	return f
}

// String renders the frame as "ID [len] XX XX ..." with an optional BRS suffix.
func (f Frame) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%X [%d]", f.ID, f.Len)
	for _, d := range f.Data[:f.Len] {
		fmt.Fprintf(&b, " %02X", d)
	}
	if f.BRS {
		b.WriteString(" BRS")
	}
	return b.String()
}

// Flag bits of the Linux canfd_frame flags byte.
const (
	canfdBRS = 0x01
	canfdESI = 0x02
)

// MarshalBinary encodes the frame to the Linux SocketCAN "struct canfd_frame"
// layout (72 bytes). It intentionally does not include timestamping.
//
// Layout (little-endian):
//
//	0..3   can_id (with EFF flag)
//	4      len (payload length in bytes)
//	5      flags (BRS/ESI)
//	6..7   reserved (set to zero)
//	8..71  data bytes
func (f Frame) MarshalBinary() ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	var id uint32 = f.ID
	const canEffFlag = 0x80000000
	if f.Extended {
		id |= canEffFlag
	}
	buf := make([]byte, 72)
	binary.LittleEndian.PutUint32(buf[0:4], id)
	buf[4] = f.Len
	if f.BRS {
		buf[5] |= canfdBRS
	}
	copy(buf[8:72], f.Data[:])
	return buf, nil
}

// UnmarshalBinary decodes a frame from the Linux SocketCAN canfd_frame layout.
func (f *Frame) UnmarshalBinary(data []byte) error {
	if len(data) < 72 {
		return fmt.Errorf("canfd: need 72 bytes, got %d", len(data))
	}
	id := binary.LittleEndian.Uint32(data[0:4])
	const (
		canEffFlag = 0x80000000
		canEffMask = 0x1FFFFFFF
		canStdMask = 0x7FF
	)
	f.Extended = id&canEffFlag != 0
	if f.Extended {
		f.ID = id & canEffMask
	} else {
		f.ID = id & canStdMask
	}
	f.Len = data[4]
	f.BRS = data[5]&canfdBRS != 0
	copy(f.Data[:], data[8:72])
	return f.Validate()
}
