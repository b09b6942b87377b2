package servo

import (
	"encoding/binary"
	"fmt"

	"github.com/whjrobotics/canfd"
)

// Parameter channel operation bytes.
const (
	opRead  = 0x01
	opWrite = 0x02
)

// Payload offsets. Every host-bound and motor-bound payload starts with a
// one-byte sequence number used for correlation.
const (
	paramReplyLen = 7  // seq, op, reg, value(4)
	onlineAckLen  = 3  // seq, fw major, fw minor
	stateReplyLen = 17 // seq + joint state(16)
	fwAckLen      = 2  // seq, status
)

// Codec translates between typed commands/responses and CAN FD frames.
// It is stateless apart from the catalog and the per-motor model map and is
// safe for concurrent use.
type Codec struct {
	registry *Registry
	models   map[MotorID]Model
}

// NewCodec builds a codec over the given catalog. models maps motor ids to
// their hardware model for current scaling; motors not in the map are
// treated as WHJ10 (1 mA per count).
func NewCodec(registry *Registry, models map[MotorID]Model) *Codec {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Codec{registry: registry, models: models}
}

// Registry returns the parameter catalog the codec encodes against.
func (c *Codec) Registry() *Registry { return c.registry }

// ModelFor returns the configured hardware model for a motor.
func (c *Codec) ModelFor(m MotorID) Model {
	if model, ok := c.models[m]; ok {
		return model
	}
	return WHJ10
}

// Encode builds the CAN FD frame for a command, stamping it with the given
// sequence number. Sequence 0 is reserved for unsolicited traffic.
func (c *Codec) Encode(cmd Command, seq uint8) (canfd.Frame, error) {
	if err := cmd.Motor.Validate(); err != nil {
		return canfd.Frame{}, err
	}
	if seq == 0 {
		return canfd.Frame{}, fmt.Errorf("servo: sequence 0 is reserved")
	}
	var (
		class   MessageClass
		payload []byte
	)
	switch cmd.Kind {
	case CmdOnline:
		class = ClassOnline
		payload = []byte{seq}
	case CmdState:
		class = ClassState
		payload = []byte{seq}
	case CmdGet:
		p, err := c.registry.Lookup(cmd.Parameter)
		if err != nil {
			return canfd.Frame{}, err
		}
		class = ClassParam
		payload = []byte{seq, opRead, p.Register}
	case CmdSet:
		p, err := c.registry.Lookup(cmd.Parameter)
		if err != nil {
			return canfd.Frame{}, err
		}
		if p.Access != ReadWrite {
			return canfd.Frame{}, fmt.Errorf("%w: %s", ErrNotWritable, p.Name)
		}
		raw, err := p.Counts(cmd.Value, c.ModelFor(cmd.Motor))
		if err != nil {
			return canfd.Frame{}, err
		}
		class = ClassParam
		payload = make([]byte, 7)
		payload[0] = seq
		payload[1] = opWrite
		payload[2] = p.Register
		binary.LittleEndian.PutUint32(payload[3:7], uint32(raw))
	default:
		return canfd.Frame{}, fmt.Errorf("servo: unsupported command kind %v", cmd.Kind)
	}
	f, err := canfd.NewFrame(ArbitrationID(class, cmd.Motor), payload)
	if err != nil {
		return canfd.Frame{}, err
	}
	f.BRS = true
	return f, nil
}

// EncodeFirmwareChunk builds a firmware data frame carrying chunk bytes at
// the given image offset.
func (c *Codec) EncodeFirmwareChunk(motor MotorID, seq uint8, offset uint32, chunk []byte) (canfd.Frame, error) {
	if err := motor.Validate(); err != nil {
		return canfd.Frame{}, err
	}
	if seq == 0 {
		return canfd.Frame{}, fmt.Errorf("servo: sequence 0 is reserved")
	}
	if len(chunk) == 0 || len(chunk) > FirmwareChunkSize {
		return canfd.Frame{}, fmt.Errorf("servo: firmware chunk must be 1..%d bytes, got %d", FirmwareChunkSize, len(chunk))
	}
	payload := make([]byte, 6+len(chunk))
	payload[0] = seq
	binary.LittleEndian.PutUint32(payload[1:5], offset)
	payload[5] = uint8(len(chunk))
	copy(payload[6:], chunk)
	f, err := canfd.NewFrame(ArbitrationID(ClassFirmware, motor), payload)
	if err != nil {
		return canfd.Frame{}, err
	}
	f.BRS = true
	return f, nil
}

// Decode interprets a motor-originated frame. Malformed frames yield a
// *DecodeError. A reply referencing a register missing from the catalog is
// still correlatable: it comes back with Response.Err set rather than a
// decode failure.
func (c *Codec) Decode(f canfd.Frame) (Response, error) {
	class, motor, err := ParseArbitrationID(f.ID)
	if err != nil {
		return Response{}, &DecodeError{ID: f.ID, Len: f.Len, Reason: err.Error()}
	}
	if motor == 0 {
		return Response{}, &DecodeError{ID: f.ID, Len: f.Len, Reason: "motor id 0"}
	}
	data := f.Data[:f.Len]
	switch class {
	case ClassParamReply:
		if len(data) < paramReplyLen {
			return Response{}, &DecodeError{ID: f.ID, Len: f.Len, Reason: "param reply too short"}
		}
		resp := Response{Motor: motor, Seq: data[0]}
		op := data[1]
		reg := data[2]
		raw := int32(binary.LittleEndian.Uint32(data[3:7]))
		switch op {
		case opRead:
			resp.Kind = RespValue
		case opWrite:
			resp.Kind = RespSetAck
		default:
			return Response{}, &DecodeError{ID: f.ID, Len: f.Len, Reason: fmt.Sprintf("unknown op 0x%02X", op)}
		}
		p, ok := c.registry.ByRegister(reg)
		if !ok {
			resp.Err = fmt.Errorf("%w: register 0x%02X", ErrUnknownParameter, reg)
			return resp, nil
		}
		resp.Parameter = p.Name
		resp.Raw = raw
		resp.Value = p.Engineering(raw, c.ModelFor(motor))
		return resp, nil

	case ClassOnlineAck:
		if len(data) < onlineAckLen {
			return Response{}, &DecodeError{ID: f.ID, Len: f.Len, Reason: "online ack too short"}
		}
		return Response{
			Motor:    motor,
			Seq:      data[0],
			Kind:     RespOnline,
			Firmware: FirmwareVersion{Major: data[1], Minor: data[2]},
		}, nil

	case ClassStateReply:
		if len(data) < stateReplyLen {
			return Response{}, &DecodeError{ID: f.ID, Len: f.Len, Reason: "state report too short"}
		}
		return Response{
			Motor: motor,
			Seq:   data[0],
			Kind:  RespState,
			State: c.decodeJointState(motor, data[1:stateReplyLen]),
		}, nil

	case ClassFirmwareAck:
		if len(data) < fwAckLen {
			return Response{}, &DecodeError{ID: f.ID, Len: f.Len, Reason: "firmware ack too short"}
		}
		return Response{
			Motor:  motor,
			Seq:    data[0],
			Kind:   RespFirmwareAck,
			Status: data[1],
		}, nil

	default:
		return Response{}, &DecodeError{ID: f.ID, Len: f.Len, Reason: fmt.Sprintf("%v is not a reply class", class)}
	}
}

// decodeJointState unpacks the 16-byte joint state block:
// fault(u16) voltage(u16) temperature(u16) enable(u8) brake(u8)
// position(i32) current(i32), little-endian.
func (c *Codec) decodeJointState(motor MotorID, b []byte) JointState {
	return JointState{
		Fault:         Fault(binary.LittleEndian.Uint16(b[0:2])),
		Voltage:       float64(binary.LittleEndian.Uint16(b[2:4])) * scaleVoltage,
		Temperature:   float64(binary.LittleEndian.Uint16(b[4:6])) * scaleTemperature,
		Enabled:       b[6] != 0,
		BrakeReleased: b[7] != 0,
		Position:      float64(int32(binary.LittleEndian.Uint32(b[8:12]))) * scalePosition,
		Current:       float64(int32(binary.LittleEndian.Uint32(b[12:16]))) * c.ModelFor(motor).CurrentScale(),
	}
}
