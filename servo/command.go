package servo

import "fmt"

// CommandKind enumerates the operations a host can issue to a motor.
type CommandKind uint8

const (
	CmdOnline CommandKind = iota + 1 // handshake, brings the session Online
	CmdState                         // joint state snapshot
	CmdGet                           // read a named parameter
	CmdSet                           // write a named parameter
)

func (k CommandKind) String() string {
	switch k {
	case CmdOnline:
		return "online"
	case CmdState:
		return "state"
	case CmdGet:
		return "get"
	case CmdSet:
		return "set"
	default:
		return fmt.Sprintf("command(%d)", uint8(k))
	}
}

// Command is a single host request addressed to one motor.
// Parameter and Value are only meaningful for CmdGet/CmdSet.
type Command struct {
	Motor     MotorID
	Kind      CommandKind
	Parameter string
	Value     float64 // engineering units
}

// ResponseKind enumerates decoded motor replies.
type ResponseKind uint8

const (
	RespOnline      ResponseKind = iota + 1 // handshake ack
	RespState                               // joint state report
	RespValue                               // parameter read result
	RespSetAck                              // parameter write echo
	RespFirmwareAck                         // firmware chunk ack
)

func (k ResponseKind) String() string {
	switch k {
	case RespOnline:
		return "online-ack"
	case RespState:
		return "state-report"
	case RespValue:
		return "value"
	case RespSetAck:
		return "set-ack"
	case RespFirmwareAck:
		return "firmware-ack"
	default:
		return fmt.Sprintf("response(%d)", uint8(k))
	}
}

// FirmwareVersion is reported in the handshake ack.
type FirmwareVersion struct {
	Major uint8
	Minor uint8
}

func (v FirmwareVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// JointState is the telemetry snapshot reported by a motor.
type JointState struct {
	Fault         Fault
	Voltage       float64 // V
	Temperature   float64 // °C
	Enabled       bool
	BrakeReleased bool
	Position      float64 // deg
	Current       float64 // mA
}

// Response is a decoded motor reply. Seq correlates it with the request that
// produced it; unsolicited reports carry Seq 0.
//
// Err is set when the reply is correlatable but carries a protocol-level
// problem, such as a register missing from the catalog.
type Response struct {
	Motor MotorID
	Seq   uint8
	Kind  ResponseKind

	Parameter string
	Raw       int32
	Value     float64

	Firmware FirmwareVersion
	State    JointState
	Status   uint8 // firmware ack status, 0 = accepted

	Err error
}
