package motor

import (
	"errors"
	"fmt"
)

// HardwareType represents the type of hardware port
type HardwareType int

const (
	HardwareRPIO HardwareType = iota
	HardwareSim
)

func (t HardwareType) String() string {
	switch t {
	case HardwareRPIO:
		return "rpio"
	case HardwareSim:
		return "sim"
	default:
		return "unknown"
	}
}

// ParseHardwareType maps a command line name to a HardwareType
func ParseHardwareType(name string) (HardwareType, error) {
	switch name {
	case "rpio":
		return HardwareRPIO, nil
	case "sim":
		return HardwareSim, nil
	default:
		return 0, fmt.Errorf("%w: %q (must be 'rpio' or 'sim')", ErrUnknownHardware, name)
	}
}

var (
	ErrUnknownHardware = errors.New("unknown hardware type")
	ErrInvalidConfig   = errors.New("invalid config")
)

// HardwarePort defines the GPIO service the controller drives. Reads are polling and
// nothing here may block.
type HardwarePort interface {
	// DigitalRead returns the level of an input pin
	DigitalRead(pin int) bool

	// DigitalWrite drives an output pin
	DigitalWrite(pin int, high bool)

	// SetPWM starts or updates the PWM signal on a pin, duty in [0, PWM range]
	SetPWM(pin int, duty uint32)

	// StopPWM removes the PWM signal and holds the pin low
	StopPWM(pin int)

	// Tick returns a monotonic microsecond counter that wraps at 32 bits
	Tick() uint32

	// Close releases the hardware
	Close() error
}

// NewHardware opens the hardware port of the requested type
func NewHardware(hwType HardwareType, cfg Config, logger Logger) (HardwarePort, error) {
	logger = orNop(logger)

	switch hwType {
	case HardwareRPIO:
		logger.Info("Opening GPIO via go-rpio")
		return OpenRPIOHardware(cfg)
	case HardwareSim:
		logger.Info("Using simulated hardware")
		return NewSimHardware(cfg, true), nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownHardware, hwType)
	}
}
