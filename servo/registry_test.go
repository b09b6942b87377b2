package servo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry_Lookup(t *testing.T) {
	r := DefaultRegistry()

	p, err := r.Lookup("CUR_POSITION")
	require.NoError(t, err)
	assert.Equal(t, uint8(0x14), p.Register)
	assert.Equal(t, TypeInt32, p.Type)
	assert.Equal(t, ReadOnly, p.Access)
	assert.Equal(t, 0.0001, p.Scale)
	assert.Equal(t, "deg", p.Unit)

	p, err = r.Lookup("SYS_ENABLE_DRIVER")
	require.NoError(t, err)
	assert.Equal(t, uint8(0x0A), p.Register)
	assert.Equal(t, ReadWrite, p.Access)

	_, err = r.Lookup("NO_SUCH_PARAMETER")
	assert.ErrorIs(t, err, ErrUnknownParameter)

	byReg, ok := r.ByRegister(0x14)
	require.True(t, ok)
	assert.Equal(t, "CUR_POSITION", byReg.Name)

	_, ok = r.ByRegister(0xEE)
	assert.False(t, ok)
}

func TestDefaultRegistry_Order(t *testing.T) {
	params := DefaultRegistry().Parameters()
	require.NotEmpty(t, params)
	assert.Equal(t, "SYS_ID", params[0].Name)
	assert.Equal(t, "ERROR", params[len(params)-1].Name)
}

func TestNewRegistry_RejectsDuplicates(t *testing.T) {
	_, err := NewRegistry([]Parameter{
		{Name: "A", Register: 0x01, Type: TypeUint16},
		{Name: "A", Register: 0x02, Type: TypeUint16},
	})
	assert.Error(t, err)

	_, err = NewRegistry([]Parameter{
		{Name: "A", Register: 0x01, Type: TypeUint16},
		{Name: "B", Register: 0x01, Type: TypeUint16},
	})
	assert.Error(t, err)
}

func TestParameter_EngineeringAndCounts(t *testing.T) {
	r := DefaultRegistry()

	pos, err := r.Lookup("CUR_POSITION")
	require.NoError(t, err)
	assert.InDelta(t, 31.4159, pos.Engineering(314159, WHJ10), 1e-9)

	speed, err := r.Lookup("TAG_SPEED")
	require.NoError(t, err)
	raw, err := speed.Counts(1.0, WHJ10)
	require.NoError(t, err)
	assert.Equal(t, int32(500), raw)

	// Model-dependent current scaling.
	cur, err := r.Lookup("CUR_CURRENT")
	require.NoError(t, err)
	assert.Equal(t, 100.0, cur.Engineering(100, WHJ10))
	assert.Equal(t, 200.0, cur.Engineering(100, WHJ60))
}

func TestParameter_CountsOutOfRange(t *testing.T) {
	r := DefaultRegistry()

	id, err := r.Lookup("SYS_ID")
	require.NoError(t, err)
	_, err = id.Counts(70000, WHJ10)
	var oor *OutOfRangeError
	require.ErrorAs(t, err, &oor)
	assert.Equal(t, "SYS_ID", oor.Parameter)
	assert.Equal(t, 70000.0, oor.Value)

	_, err = id.Counts(-1, WHJ10)
	assert.ErrorAs(t, err, &oor)

	speed, err := r.Lookup("TAG_SPEED")
	require.NoError(t, err)
	_, err = speed.Counts(1e8, WHJ10) // 5e10 counts, far past int32
	assert.ErrorAs(t, err, &oor)
}

func TestModel_ParseAndScale(t *testing.T) {
	m, err := ParseModel("whj60")
	require.NoError(t, err)
	assert.Equal(t, WHJ60, m)
	assert.Equal(t, 2.0, m.CurrentScale())
	assert.Equal(t, 1.0, WHJ30.CurrentScale())

	_, err = ParseModel("WHJ99")
	assert.Error(t, err)
}

func TestFault_String(t *testing.T) {
	assert.Equal(t, "none", Fault(0).String())
	assert.Equal(t, "over voltage", FaultOverVoltage.String())
	f := FaultOverVoltage | FaultEncoder
	assert.Equal(t, "over voltage|encoder error", f.String())
}
