package servo

import "fmt"

// MotorID identifies a servo motor on the bus (1..255).
// Value 0 is reserved; unsolicited broadcasts carry sequence 0 instead.
type MotorID uint8

// Validate checks that the motor identifier is in the range 1..255.
func (m MotorID) Validate() error {
	if m < 1 {
		return fmt.Errorf("servo: invalid motor id %d (valid 1..255)", m)
	}
	return nil
}

// MessageClass enumerates the arbitration ID bases of the protocol.
// The full 11-bit identifier is class | motor id (motor in the low byte).
type MessageClass uint16

const (
	ClassParam       MessageClass = 0x000 // host->motor parameter read/write
	ClassParamReply  MessageClass = 0x100 // motor->host parameter response
	ClassOnline      MessageClass = 0x200 // host->motor handshake
	ClassOnlineAck   MessageClass = 0x300 // motor->host handshake ack
	ClassFirmware    MessageClass = 0x400 // host->motor firmware data
	ClassFirmwareAck MessageClass = 0x500 // motor->host firmware ack
	ClassState       MessageClass = 0x600 // host->motor joint state request
	ClassStateReply  MessageClass = 0x700 // motor->host joint state report
)

func (c MessageClass) String() string {
	switch c {
	case ClassParam:
		return "param"
	case ClassParamReply:
		return "param-reply"
	case ClassOnline:
		return "online"
	case ClassOnlineAck:
		return "online-ack"
	case ClassFirmware:
		return "firmware"
	case ClassFirmwareAck:
		return "firmware-ack"
	case ClassState:
		return "state"
	case ClassStateReply:
		return "state-reply"
	default:
		return fmt.Sprintf("class(0x%03X)", uint16(c))
	}
}

// ArbitrationID composes the 11-bit CAN identifier for a class and motor id.
func ArbitrationID(c MessageClass, m MotorID) uint32 {
	return uint32(c) | uint32(m)
}

// ParseArbitrationID splits an 11-bit identifier into class and motor id.
func ParseArbitrationID(id uint32) (MessageClass, MotorID, error) {
	if id > 0x7FF {
		return 0, 0, fmt.Errorf("servo: invalid 11-bit id 0x%X", id)
	}
	c := MessageClass(id &^ 0xFF)
	m := MotorID(id & 0xFF)
	switch c {
	case ClassParam, ClassParamReply, ClassOnline, ClassOnlineAck,
		ClassFirmware, ClassFirmwareAck, ClassState, ClassStateReply:
		return c, m, nil
	default:
		return 0, 0, fmt.Errorf("servo: id 0x%X not in protocol base ranges", id)
	}
}
