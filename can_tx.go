package main

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"motor-service/motor"

	"github.com/brutella/can"
)

const (
	CANStatusFrameID = 0x7A0

	canFlagEnabled   = 1 << 0
	canFlagReverse   = 1 << 1
	canFlagAutomatic = 1 << 2
)

type framePublisher interface {
	Publish(frame can.Frame) error
	Disconnect() error
}

// CANTx broadcasts the status frame on the field bus
type CANTx struct {
	log *LeveledLogger
	bus framePublisher
	mu  sync.Mutex
}

func NewCANTx(logger *LeveledLogger, device string) (*CANTx, error) {
	bus, err := can.NewBusForInterfaceWithName(device)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize CAN bus %s: %w", device, err)
	}
	return &CANTx{log: logger, bus: bus}, nil
}

// packStatusFrame builds the 0x7A0 frame:
//
//	[0:2] rpm, big endian, saturated
//	[2]   speed percent
//	[3]   flags (bit0 enabled, bit1 reverse, bit2 automatic)
//	[4:6] target rpm, big endian, saturated
//	[6:8] reserved
func packStatusFrame(s MotorStatus) can.Frame {
	frame := can.Frame{
		ID:     CANStatusFrameID,
		Length: 8,
	}

	binary.BigEndian.PutUint16(frame.Data[0:2], saturateUint16(s.RPM))
	frame.Data[2] = uint8(s.Speed)

	var flags uint8
	if s.Enabled {
		flags |= canFlagEnabled
	}
	if s.Direction == motor.Reverse {
		flags |= canFlagReverse
	}
	if s.Mode == motor.ModeAutomatic {
		flags |= canFlagAutomatic
	}
	frame.Data[3] = flags

	binary.BigEndian.PutUint16(frame.Data[4:6], saturateUint16(s.TargetRPM))
	return frame
}

func saturateUint16(v float64) uint16 {
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	if v >= math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(math.Round(v))
}

func (tx *CANTx) SendStatus(s MotorStatus) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	frame := packStatusFrame(s)
	tx.log.DebugCAN("TX", frame.ID, frame.Data[:], frame.Length)

	if err := tx.bus.Publish(frame); err != nil {
		return fmt.Errorf("failed to publish status frame: %w", err)
	}
	return nil
}

func (tx *CANTx) Destroy() {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if err := tx.bus.Disconnect(); err != nil {
		tx.log.Warn("Error closing CAN bus: %v", err)
	}
}
