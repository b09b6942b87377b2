package servo

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whjrobotics/canfd"
)

func TestCodec_EncodeGet(t *testing.T) {
	c := NewCodec(nil, nil)

	f, err := c.Encode(Command{Motor: 2, Kind: CmdGet, Parameter: "CUR_POSITION"}, 5)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x002), f.ID)
	assert.False(t, f.Extended)
	assert.True(t, f.BRS)
	assert.Equal(t, uint8(3), f.Len)
	assert.Equal(t, []byte{5, opRead, 0x14}, f.Data[:f.Len])
}

func TestCodec_EncodeSet(t *testing.T) {
	c := NewCodec(nil, nil)

	f, err := c.Encode(Command{Motor: 1, Kind: CmdSet, Parameter: "SYS_ENABLE_DRIVER", Value: 1}, 9)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x001), f.ID)
	assert.Equal(t, uint8(7), f.Len)
	assert.Equal(t, []byte{9, opWrite, 0x0A, 1, 0, 0, 0}, f.Data[:f.Len])

	// Scaled write: 1.0 RPM at 0.002 RPM per count is 500 counts.
	f, err = c.Encode(Command{Motor: 1, Kind: CmdSet, Parameter: "TAG_SPEED", Value: 1.0}, 10)
	require.NoError(t, err)
	assert.Equal(t, []byte{10, opWrite, 0x34, 0xF4, 0x01, 0, 0}, f.Data[:f.Len])
}

func TestCodec_EncodeOnlineAndState(t *testing.T) {
	c := NewCodec(nil, nil)

	f, err := c.Encode(Command{Motor: 3, Kind: CmdOnline}, 1)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x203), f.ID)
	assert.Equal(t, uint8(1), f.Len)
	assert.Equal(t, uint8(1), f.Data[0])

	f, err = c.Encode(Command{Motor: 3, Kind: CmdState}, 2)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x603), f.ID)
	assert.Equal(t, uint8(2), f.Data[0])
}

func TestCodec_EncodeErrors(t *testing.T) {
	c := NewCodec(nil, nil)

	_, err := c.Encode(Command{Motor: 1, Kind: CmdGet, Parameter: "NOPE"}, 1)
	assert.ErrorIs(t, err, ErrUnknownParameter)

	_, err = c.Encode(Command{Motor: 1, Kind: CmdSet, Parameter: "CUR_POSITION", Value: 1}, 1)
	assert.ErrorIs(t, err, ErrNotWritable)

	var oor *OutOfRangeError
	_, err = c.Encode(Command{Motor: 1, Kind: CmdSet, Parameter: "SYS_ID", Value: 70000}, 1)
	assert.ErrorAs(t, err, &oor)

	_, err = c.Encode(Command{Motor: 1, Kind: CmdGet, Parameter: "CUR_POSITION"}, 0)
	assert.Error(t, err)

	_, err = c.Encode(Command{Motor: 0, Kind: CmdOnline}, 1)
	assert.Error(t, err)
}

func TestCodec_DecodeParamReply(t *testing.T) {
	c := NewCodec(nil, nil)

	payload := make([]byte, 7)
	payload[0] = 5
	payload[1] = opRead
	payload[2] = 0x14
	binary.LittleEndian.PutUint32(payload[3:7], uint32(314159))
	f := canfd.MustFrame(0x102, payload)

	resp, err := c.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, MotorID(2), resp.Motor)
	assert.Equal(t, uint8(5), resp.Seq)
	assert.Equal(t, RespValue, resp.Kind)
	assert.Equal(t, "CUR_POSITION", resp.Parameter)
	assert.Equal(t, int32(314159), resp.Raw)
	assert.InDelta(t, 31.4159, resp.Value, 1e-9)

	payload[1] = opWrite
	resp, err = c.Decode(canfd.MustFrame(0x102, payload))
	require.NoError(t, err)
	assert.Equal(t, RespSetAck, resp.Kind)
}

func TestCodec_DecodeNegativeValue(t *testing.T) {
	c := NewCodec(nil, nil)

	payload := make([]byte, 7)
	payload[0] = 1
	payload[1] = opRead
	payload[2] = 0x14
	raw := int32(-900000)
	binary.LittleEndian.PutUint32(payload[3:7], uint32(raw))

	resp, err := c.Decode(canfd.MustFrame(0x101, payload))
	require.NoError(t, err)
	assert.Equal(t, int32(-900000), resp.Raw)
	assert.InDelta(t, -90.0, resp.Value, 1e-9)
}

func TestCodec_DecodeUnknownRegister(t *testing.T) {
	c := NewCodec(nil, nil)

	payload := []byte{7, opRead, 0xEE, 0, 0, 0, 0}
	resp, err := c.Decode(canfd.MustFrame(0x101, payload))
	require.NoError(t, err)
	assert.Equal(t, uint8(7), resp.Seq)
	assert.ErrorIs(t, resp.Err, ErrUnknownParameter)
}

func TestCodec_DecodeOnlineAck(t *testing.T) {
	c := NewCodec(nil, nil)

	resp, err := c.Decode(canfd.MustFrame(0x302, []byte{4, 1, 13}))
	require.NoError(t, err)
	assert.Equal(t, RespOnline, resp.Kind)
	assert.Equal(t, FirmwareVersion{Major: 1, Minor: 13}, resp.Firmware)
	assert.Equal(t, "1.13", resp.Firmware.String())
}

func TestCodec_DecodeStateReply(t *testing.T) {
	c := NewCodec(nil, map[MotorID]Model{2: WHJ60})

	payload := make([]byte, 17)
	payload[0] = 8
	binary.LittleEndian.PutUint16(payload[1:3], uint16(FaultOverVoltage))
	binary.LittleEndian.PutUint16(payload[3:5], 2412) // 24.12 V
	binary.LittleEndian.PutUint16(payload[5:7], 305)  // 30.5 °C
	payload[7] = 1
	payload[8] = 0
	binary.LittleEndian.PutUint32(payload[9:13], uint32(900000))
	binary.LittleEndian.PutUint32(payload[13:17], uint32(150))

	resp, err := c.Decode(canfd.MustFrame(0x702, payload))
	require.NoError(t, err)
	assert.Equal(t, RespState, resp.Kind)
	assert.Equal(t, uint8(8), resp.Seq)
	st := resp.State
	assert.Equal(t, FaultOverVoltage, st.Fault)
	assert.InDelta(t, 24.12, st.Voltage, 1e-9)
	assert.InDelta(t, 30.5, st.Temperature, 1e-9)
	assert.True(t, st.Enabled)
	assert.False(t, st.BrakeReleased)
	assert.InDelta(t, 90.0, st.Position, 1e-9)
	assert.InDelta(t, 300.0, st.Current, 1e-9) // WHJ60 scales 2 mA per count
}

func TestCodec_DecodeFirmwareAck(t *testing.T) {
	c := NewCodec(nil, nil)

	resp, err := c.Decode(canfd.MustFrame(0x501, []byte{3, 0}))
	require.NoError(t, err)
	assert.Equal(t, RespFirmwareAck, resp.Kind)
	assert.Equal(t, uint8(0), resp.Status)
}

func TestCodec_DecodeErrors(t *testing.T) {
	c := NewCodec(nil, nil)
	var de *DecodeError

	// Host-originated class is not a reply.
	_, err := c.Decode(canfd.MustFrame(0x002, []byte{1, opRead, 0x14}))
	assert.ErrorAs(t, err, &de)

	// Motor id 0 is reserved.
	_, err = c.Decode(canfd.MustFrame(0x100, []byte{1, opRead, 0x14, 0, 0, 0, 0}))
	assert.ErrorAs(t, err, &de)

	// Truncated payloads.
	_, err = c.Decode(canfd.MustFrame(0x101, []byte{1, opRead}))
	assert.ErrorAs(t, err, &de)
	_, err = c.Decode(canfd.MustFrame(0x301, []byte{1}))
	assert.ErrorAs(t, err, &de)
	_, err = c.Decode(canfd.MustFrame(0x701, []byte{1, 2, 3}))
	assert.ErrorAs(t, err, &de)

	// Unknown parameter op.
	_, err = c.Decode(canfd.MustFrame(0x101, []byte{1, 0x7F, 0x14, 0, 0, 0, 0}))
	assert.ErrorAs(t, err, &de)
}

func TestCodec_EncodeFirmwareChunk(t *testing.T) {
	c := NewCodec(nil, nil)

	chunk := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	f, err := c.EncodeFirmwareChunk(2, 6, 0x1000, chunk)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x402), f.ID)
	assert.True(t, f.BRS)
	assert.Equal(t, uint8(6), f.Data[0])
	assert.Equal(t, uint32(0x1000), binary.LittleEndian.Uint32(f.Data[1:5]))
	assert.Equal(t, uint8(4), f.Data[5])
	assert.Equal(t, chunk, f.Data[6:10])

	// A full chunk fills the frame to the 64-byte DLC.
	full := make([]byte, FirmwareChunkSize)
	f, err = c.EncodeFirmwareChunk(2, 7, 0, full)
	require.NoError(t, err)
	assert.Equal(t, uint8(64), f.Len)

	_, err = c.EncodeFirmwareChunk(2, 8, 0, nil)
	assert.Error(t, err)
	_, err = c.EncodeFirmwareChunk(2, 8, 0, make([]byte, FirmwareChunkSize+1))
	assert.Error(t, err)
	_, err = c.EncodeFirmwareChunk(2, 0, 0, chunk)
	assert.Error(t, err)
}

func TestArbitrationID(t *testing.T) {
	assert.Equal(t, uint32(0x204), ArbitrationID(ClassOnline, 4))

	class, motor, err := ParseArbitrationID(0x67F)
	require.NoError(t, err)
	assert.Equal(t, ClassState, class)
	assert.Equal(t, MotorID(0x7F), motor)

	_, _, err = ParseArbitrationID(0x800)
	assert.Error(t, err)
}
