package servo

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHex = ":0400000001020304F2\n" +
	":04001000AABBCCDDDE\n" +
	":00000001FF\n"

func TestLoadFirmware(t *testing.T) {
	fw, err := LoadFirmware(strings.NewReader(testHex))
	require.NoError(t, err)
	assert.Equal(t, 8, fw.Size())

	segs := make(map[uint32][]byte, len(fw.Segments))
	for _, s := range fw.Segments {
		segs[s.Address] = s.Data
	}
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, segs[0x0000])
	assert.Equal(t, []byte{0xAA, 0xBB, 0xCC, 0xDD}, segs[0x0010])
}

func TestLoadFirmware_Invalid(t *testing.T) {
	_, err := LoadFirmware(strings.NewReader("not intel hex"))
	assert.Error(t, err)

	_, err = LoadFirmware(strings.NewReader(":00000001FF\n"))
	assert.Error(t, err)
}

func TestUpdateFirmware(t *testing.T) {
	d, m, _ := newTestDispatcher(t, DispatcherConfig{})
	ctx := context.Background()

	_, err := d.Online(ctx, 2)
	require.NoError(t, err)

	img := make([]byte, 130)
	for i := range img {
		img[i] = byte(i)
	}
	fw := &Firmware{Segments: []FirmwareSegment{{Address: 0x08000000, Data: img}}}

	var calls [][2]int
	err = d.UpdateFirmware(ctx, 2, fw, func(sent, total int) {
		calls = append(calls, [2]int{sent, total})
	})
	require.NoError(t, err)

	// 130 bytes split into 56+56+18.
	require.Len(t, calls, 3)
	assert.Equal(t, [2]int{56, 130}, calls[0])
	assert.Equal(t, [2]int{130, 130}, calls[2])

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Equal(t, int32(iapEnter), m.registers[0x49])
	assert.Equal(t, []uint32{0x08000000, 0x08000038, 0x08000070}, m.offsets)
	assert.Equal(t, img, m.image)
}

func TestUpdateFirmware_RequiresOnline(t *testing.T) {
	d, _, _ := newTestDispatcher(t, DispatcherConfig{})

	fw := &Firmware{Segments: []FirmwareSegment{{Address: 0, Data: []byte{1}}}}
	err := d.UpdateFirmware(context.Background(), 2, fw, nil)
	assert.ErrorIs(t, err, ErrMotorOffline)
}

func TestUpdateFirmware_Rejected(t *testing.T) {
	d, m, _ := newTestDispatcher(t, DispatcherConfig{})
	ctx := context.Background()

	_, err := d.Online(ctx, 2)
	require.NoError(t, err)

	m.mu.Lock()
	m.fwStatus = 1
	m.mu.Unlock()

	fw := &Firmware{Segments: []FirmwareSegment{{Address: 0, Data: []byte{1, 2, 3}}}}
	err = d.UpdateFirmware(ctx, 2, fw, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejected")

	// The guard is released after a failed transfer.
	_, _, err = d.Get(ctx, 2, "CUR_POSITION")
	assert.NoError(t, err)
}

func TestUpdateFirmware_Timeout(t *testing.T) {
	d, m, _ := newTestDispatcher(t, DispatcherConfig{Timeout: 50 * time.Millisecond, OfflineThreshold: 1})
	ctx := context.Background()

	_, err := d.Online(ctx, 2)
	require.NoError(t, err)

	m.drop.Store(1)
	fw := &Firmware{Segments: []FirmwareSegment{{Address: 0, Data: []byte{1}}}}
	err = d.UpdateFirmware(ctx, 2, fw, nil)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, StateOffline, d.SessionState(2))
}

func TestUpdateFirmware_EmptyImage(t *testing.T) {
	d, _, _ := newTestDispatcher(t, DispatcherConfig{})

	assert.Error(t, d.UpdateFirmware(context.Background(), 2, &Firmware{}, nil))
	assert.Error(t, d.UpdateFirmware(context.Background(), 2, nil, nil))
}
