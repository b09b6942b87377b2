package servo

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/marcinbor85/gohex"
)

// FirmwareChunkSize is the number of image bytes carried per firmware frame.
// With the 6-byte chunk header the payload fits the 64-byte FD limit.
const FirmwareChunkSize = 56

// iapEnter is written to IAP_FLAG to switch the motor into its bootloader.
const iapEnter = 1

// FirmwareSegment is a contiguous block of a firmware image.
type FirmwareSegment struct {
	Address uint32
	Data    []byte
}

// Firmware is a parsed firmware image.
type Firmware struct {
	Segments []FirmwareSegment
}

// Size returns the total number of image bytes across all segments.
func (fw *Firmware) Size() int {
	n := 0
	for _, s := range fw.Segments {
		n += len(s.Data)
	}
	return n
}

// LoadFirmware parses an Intel HEX firmware image.
func LoadFirmware(r io.Reader) (*Firmware, error) {
	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(r); err != nil {
		return nil, fmt.Errorf("servo: parse firmware image: %w", err)
	}
	fw := &Firmware{}
	for _, seg := range mem.GetDataSegments() {
		fw.Segments = append(fw.Segments, FirmwareSegment{Address: seg.Address, Data: seg.Data})
	}
	if len(fw.Segments) == 0 {
		return nil, errors.New("servo: firmware image is empty")
	}
	return fw, nil
}

// UpdateFirmware streams a firmware image to an Online motor. The motor is
// first switched into its bootloader by writing IAP_FLAG, then the image is
// sent in acknowledged chunks through the firmware channel. The single-flight
// guard is held for the whole transfer. progress, when non-nil, is called
// after each acknowledged chunk with sent and total byte counts.
func (d *Dispatcher) UpdateFirmware(ctx context.Context, motor MotorID, fw *Firmware, progress func(sent, total int)) error {
	if err := motor.Validate(); err != nil {
		return err
	}
	if fw == nil || len(fw.Segments) == 0 {
		return errors.New("servo: firmware image is empty")
	}
	s := d.session(motor)
	seq, err := s.begin(CmdSet)
	if err != nil {
		return err
	}

	// Enter the bootloader through the regular parameter channel.
	enter, err := d.codec.Encode(Command{Motor: motor, Kind: CmdSet, Parameter: "IAP_FLAG", Value: iapEnter}, seq)
	if err != nil {
		s.release()
		return err
	}
	ack, err := d.exchange(ctx, pendingKey{motor, seq}, enter)
	if err != nil {
		return d.failFirmware(s, motor, err)
	}
	if ack.Err != nil {
		s.release()
		return ack.Err
	}

	total := fw.Size()
	sent := 0
	for _, seg := range fw.Segments {
		for off := 0; off < len(seg.Data); off += FirmwareChunkSize {
			end := off + FirmwareChunkSize
			if end > len(seg.Data) {
				end = len(seg.Data)
			}
			chunk := seg.Data[off:end]
			seq := s.next()
			frame, err := d.codec.EncodeFirmwareChunk(motor, seq, seg.Address+uint32(off), chunk)
			if err != nil {
				s.release()
				return err
			}
			resp, err := d.exchange(ctx, pendingKey{motor, seq}, frame)
			if err != nil {
				return d.failFirmware(s, motor, err)
			}
			if resp.Kind != RespFirmwareAck {
				s.release()
				return fmt.Errorf("servo: unexpected %v reply to firmware chunk", resp.Kind)
			}
			if resp.Status != 0 {
				s.release()
				return fmt.Errorf("servo: motor %d rejected firmware chunk at 0x%X (status %d)", motor, seg.Address+uint32(off), resp.Status)
			}
			sent += len(chunk)
			if progress != nil {
				progress(sent, total)
			}
		}
	}
	s.succeed()
	d.logger.Info("firmware update complete",
		"motor", uint8(motor),
		"bytes", total,
		"segments", len(fw.Segments),
	)
	return nil
}

// failFirmware routes a transfer error through the session failure
// accounting: timeouts count toward the offline threshold, local aborts
// just release the guard.
func (d *Dispatcher) failFirmware(s *Session, motor MotorID, err error) error {
	if errors.Is(err, ErrTimeout) {
		if s.fail() {
			d.logger.Info("motor offline", "motor", uint8(motor))
			d.noteState(motor, StateOffline)
		}
	} else {
		s.release()
	}
	return err
}
