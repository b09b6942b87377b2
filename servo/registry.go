package servo

import (
	"fmt"
	"math"
)

// DataType is the raw integer type of a parameter register.
type DataType uint8

const (
	TypeUint16 DataType = iota + 1
	TypeInt32
)

// Width returns the register width in bytes.
func (t DataType) Width() int {
	if t == TypeInt32 {
		return 4
	}
	return 2
}

func (t DataType) String() string {
	switch t {
	case TypeUint16:
		return "u16"
	case TypeInt32:
		return "i32"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// Access is the host access mode of a parameter.
type Access uint8

const (
	ReadOnly Access = iota
	ReadWrite
)

func (a Access) String() string {
	if a == ReadWrite {
		return "rw"
	}
	return "ro"
}

// Parameter describes one named register of the servo control table.
// 32-bit quantities occupy a low/high register pair and are addressed by the
// low register.
type Parameter struct {
	Name     string
	Register uint8
	Type     DataType
	Access   Access

	// Scale converts raw counts to engineering units. Zero means unscaled.
	Scale float64
	// CurrentScaled marks parameters whose scale depends on the motor model.
	CurrentScaled bool

	Unit        string
	Description string
}

func (p Parameter) scaleFor(m Model) float64 {
	if p.CurrentScaled {
		return m.CurrentScale()
	}
	if p.Scale != 0 {
		return p.Scale
	}
	return 1
}

// Engineering converts raw counts to engineering units for the given model.
func (p Parameter) Engineering(raw int32, m Model) float64 {
	return float64(raw) * p.scaleFor(m)
}

// Counts converts an engineering value to raw counts, rejecting values that
// do not fit the register type.
func (p Parameter) Counts(value float64, m Model) (int32, error) {
	s := p.scaleFor(m)
	raw := math.Round(value / s)
	var lo, hi float64
	switch p.Type {
	case TypeInt32:
		lo, hi = math.MinInt32, math.MaxInt32
	default:
		lo, hi = 0, math.MaxUint16
	}
	if raw < lo || raw > hi {
		return 0, &OutOfRangeError{Parameter: p.Name, Value: value, Min: lo * s, Max: hi * s}
	}
	return int32(raw), nil
}

// Registry is the catalog of named parameters, indexed by name and by
// register address.
type Registry struct {
	byName map[string]Parameter
	byReg  map[uint8]Parameter
	order  []string
}

// NewRegistry builds a registry from a parameter list. Duplicate names or
// register addresses are rejected.
func NewRegistry(params []Parameter) (*Registry, error) {
	r := &Registry{
		byName: make(map[string]Parameter, len(params)),
		byReg:  make(map[uint8]Parameter, len(params)),
		order:  make([]string, 0, len(params)),
	}
	for _, p := range params {
		if _, ok := r.byName[p.Name]; ok {
			return nil, fmt.Errorf("servo: duplicate parameter name %q", p.Name)
		}
		if _, ok := r.byReg[p.Register]; ok {
			return nil, fmt.Errorf("servo: duplicate register 0x%02X (%s)", p.Register, p.Name)
		}
		r.byName[p.Name] = p
		r.byReg[p.Register] = p
		r.order = append(r.order, p.Name)
	}
	return r, nil
}

// Lookup returns the parameter with the given name.
func (r *Registry) Lookup(name string) (Parameter, error) {
	p, ok := r.byName[name]
	if !ok {
		return Parameter{}, fmt.Errorf("%w: %q", ErrUnknownParameter, name)
	}
	return p, nil
}

// ByRegister returns the parameter at the given register address.
func (r *Registry) ByRegister(reg uint8) (Parameter, bool) {
	p, ok := r.byReg[reg]
	return p, ok
}

// Parameters returns all parameters in declaration order.
func (r *Registry) Parameters() []Parameter {
	out := make([]Parameter, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Unit scale factors of the control table.
const (
	scaleVoltage     = 0.01   // V per count
	scaleTemperature = 0.1    // °C per count
	scalePosition    = 0.0001 // deg per count
	scaleTargetSpeed = 0.002  // RPM per count
	scaleActualSpeed = 0.02   // RPM per count
)

// DefaultRegistry returns the WHJ joint-servo control table.
//
// The writable subset follows the vendor's table; target position is
// commanded through the cyclic control path rather than the parameter
// channel and stays read-only here.
func DefaultRegistry() *Registry {
	r, err := NewRegistry([]Parameter{
		{Name: "SYS_ID", Register: 0x01, Type: TypeUint16, Access: ReadWrite, Description: "System ID"},
		{Name: "SYS_FW_VERSION", Register: 0x03, Type: TypeUint16, Access: ReadOnly, Description: "Firmware version"},
		{Name: "SYS_ERROR", Register: 0x04, Type: TypeUint16, Access: ReadOnly, Description: "Error code"},
		{Name: "SYS_VOLTAGE", Register: 0x05, Type: TypeUint16, Access: ReadOnly, Scale: scaleVoltage, Unit: "V", Description: "System voltage"},
		{Name: "SYS_TEMP", Register: 0x06, Type: TypeUint16, Access: ReadOnly, Scale: scaleTemperature, Unit: "°C", Description: "System temperature"},
		{Name: "SYS_REDU_RATIO", Register: 0x07, Type: TypeUint16, Access: ReadOnly, Description: "Reduction ratio"},
		{Name: "SYS_ENABLE_DRIVER", Register: 0x0A, Type: TypeUint16, Access: ReadWrite, Description: "Enable driver"},
		{Name: "SYS_ENABLE_ON_POWER", Register: 0x0B, Type: TypeUint16, Access: ReadWrite, Description: "Enable on power"},
		{Name: "SYS_SAVE_TO_FLASH", Register: 0x0C, Type: TypeUint16, Access: ReadWrite, Description: "Save to flash"},
		{Name: "SYS_ABSOLUTE_POS_AUTO_CALIB", Register: 0x0D, Type: TypeUint16, Access: ReadWrite, Description: "Absolute position auto calibration"},
		{Name: "SYS_SET_ZERO_POS", Register: 0x0E, Type: TypeUint16, Access: ReadWrite, Description: "Set zero position"},
		{Name: "SYS_CLEAR_ERROR", Register: 0x0F, Type: TypeUint16, Access: ReadWrite, Description: "Clear error"},
		{Name: "CUR_CURRENT", Register: 0x10, Type: TypeInt32, Access: ReadOnly, CurrentScaled: true, Unit: "mA", Description: "Current"},
		{Name: "CUR_SPEED", Register: 0x12, Type: TypeInt32, Access: ReadOnly, Scale: scaleActualSpeed, Unit: "RPM", Description: "Speed"},
		{Name: "CUR_POSITION", Register: 0x14, Type: TypeInt32, Access: ReadOnly, Scale: scalePosition, Unit: "deg", Description: "Position"},
		{Name: "MOT_MODEL_ID0", Register: 0x2A, Type: TypeUint16, Access: ReadOnly, Description: "Motor model ID 0"},
		{Name: "MOT_MODEL_ID1", Register: 0x2B, Type: TypeUint16, Access: ReadOnly, Description: "Motor model ID 1"},
		{Name: "MOT_MODEL_ID2", Register: 0x2C, Type: TypeUint16, Access: ReadOnly, Description: "Motor model ID 2"},
		{Name: "MOT_MODEL_ID3", Register: 0x2D, Type: TypeUint16, Access: ReadOnly, Description: "Motor model ID 3"},
		{Name: "MOT_MODEL_ID4", Register: 0x2E, Type: TypeUint16, Access: ReadOnly, Description: "Motor model ID 4"},
		{Name: "MOT_MODEL_ID5", Register: 0x2F, Type: TypeUint16, Access: ReadOnly, Description: "Motor model ID 5"},
		{Name: "TAG_WORK_MODE", Register: 0x30, Type: TypeUint16, Access: ReadWrite, Description: "Target work mode"},
		{Name: "TAG_CURRENT", Register: 0x32, Type: TypeInt32, Access: ReadWrite, CurrentScaled: true, Unit: "mA", Description: "Target current"},
		{Name: "TAG_SPEED", Register: 0x34, Type: TypeInt32, Access: ReadWrite, Scale: scaleTargetSpeed, Unit: "RPM", Description: "Target speed"},
		{Name: "TAG_POSITION", Register: 0x36, Type: TypeInt32, Access: ReadOnly, Scale: scalePosition, Unit: "deg", Description: "Target position"},
		{Name: "SPEED_FEED_FORWARD_SWITCH", Register: 0x39, Type: TypeUint16, Access: ReadOnly, Description: "Speed feed forward switch"},
		{Name: "LIT_MAX_CURRENT", Register: 0x40, Type: TypeUint16, Access: ReadOnly, Unit: "mA", Description: "Limit max current"},
		{Name: "LIT_MAX_SPEED", Register: 0x41, Type: TypeUint16, Access: ReadOnly, Unit: "RPM", Description: "Limit max speed"},
		{Name: "LIT_MAX_ACC", Register: 0x42, Type: TypeUint16, Access: ReadOnly, Unit: "RPM/s", Description: "Limit max acceleration"},
		{Name: "LIT_MAX_DEC", Register: 0x43, Type: TypeUint16, Access: ReadOnly, Unit: "RPM/s", Description: "Limit max deceleration"},
		{Name: "LIT_MIN_POSITION", Register: 0x44, Type: TypeInt32, Access: ReadOnly, Scale: scalePosition, Unit: "deg", Description: "Limit min position"},
		{Name: "LIT_MAX_POSITION", Register: 0x46, Type: TypeInt32, Access: ReadOnly, Scale: scalePosition, Unit: "deg", Description: "Limit max position"},
		{Name: "IAP_FLAG", Register: 0x49, Type: TypeUint16, Access: ReadWrite, Description: "IAP flag"},
		{Name: "SEV_CURRENT_P", Register: 0x51, Type: TypeUint16, Access: ReadOnly, Description: "Servo current P"},
		{Name: "SEV_CURRENT_I", Register: 0x52, Type: TypeUint16, Access: ReadOnly, Description: "Servo current I"},
		{Name: "SEV_CURRENT_D", Register: 0x53, Type: TypeUint16, Access: ReadOnly, Description: "Servo current D"},
		{Name: "SEV_SPEED_P", Register: 0x54, Type: TypeUint16, Access: ReadOnly, Description: "Servo speed P"},
		{Name: "SEV_SPEED_I", Register: 0x55, Type: TypeUint16, Access: ReadOnly, Description: "Servo speed I"},
		{Name: "SEV_SPEED_D", Register: 0x56, Type: TypeUint16, Access: ReadOnly, Description: "Servo speed D"},
		{Name: "SEV_SPEED_DS", Register: 0x57, Type: TypeUint16, Access: ReadOnly, Description: "Servo speed DS"},
		{Name: "SEV_POSITION_P", Register: 0x58, Type: TypeUint16, Access: ReadOnly, Description: "Servo position P"},
		{Name: "SEV_POSITION_I", Register: 0x59, Type: TypeUint16, Access: ReadOnly, Description: "Servo position I"},
		{Name: "SEV_POSITION_D", Register: 0x5A, Type: TypeUint16, Access: ReadOnly, Description: "Servo position D"},
		{Name: "SEV_POSITION_DS", Register: 0x5B, Type: TypeUint16, Access: ReadOnly, Description: "Servo position DS"},
		{Name: "ERROR", Register: 0x78, Type: TypeUint16, Access: ReadOnly, Description: "Error"},
	})
	if err != nil {
		panic(err)
	}
	return r
}
