package servo

import "strings"

// Fault is the bitmask reported by the SYS_ERROR register and the joint
// state error field.
type Fault uint16

const (
	FaultFOCRateTooHigh      Fault = 0x0001
	FaultOverVoltage         Fault = 0x0002
	FaultUnderVoltage        Fault = 0x0004
	FaultOverTemperature     Fault = 0x0008
	FaultStartupFailed       Fault = 0x0010
	FaultEncoder             Fault = 0x0020
	FaultOverCurrent         Fault = 0x0040
	FaultSoftware            Fault = 0x0080
	FaultThermalSensor       Fault = 0x0100
	FaultPositionLimit       Fault = 0x0200
	FaultJointIDInvalid      Fault = 0x0400
	FaultHomingLimitOver     Fault = 0x0800
	FaultCurrentDetection    Fault = 0x1000
	FaultBrakeFailed         Fault = 0x2000
	FaultPositionCommandStep Fault = 0x4000
	FaultMultiTurnCount      Fault = 0x8000
)

var faultNames = []struct {
	bit  Fault
	name string
}{
	{FaultFOCRateTooHigh, "foc rate too high"},
	{FaultOverVoltage, "over voltage"},
	{FaultUnderVoltage, "under voltage"},
	{FaultOverTemperature, "over temperature"},
	{FaultStartupFailed, "startup failed"},
	{FaultEncoder, "encoder error"},
	{FaultOverCurrent, "over current"},
	{FaultSoftware, "software error"},
	{FaultThermalSensor, "thermal sensor error"},
	{FaultPositionLimit, "position limit"},
	{FaultJointIDInvalid, "joint id invalid"},
	{FaultHomingLimitOver, "homing limit over"},
	{FaultCurrentDetection, "current detection error"},
	{FaultBrakeFailed, "brake failed"},
	{FaultPositionCommandStep, "position command step"},
	{FaultMultiTurnCount, "multi-turn count error"},
}

// Flags returns the names of all set fault bits.
func (f Fault) Flags() []string {
	var out []string
	for _, fn := range faultNames {
		if f&fn.bit != 0 {
			out = append(out, fn.name)
		}
	}
	return out
}

func (f Fault) String() string {
	if f == 0 {
		return "none"
	}
	return strings.Join(f.Flags(), "|")
}
