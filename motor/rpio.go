package motor

import (
	"fmt"
	"sync"
	"time"

	"github.com/stianeikeland/go-rpio/v4"
)

// RPIOHardware drives Raspberry Pi GPIO and hardware PWM through go-rpio. The PWM and
// clock registers are only reachable through /dev/mem, so the service must run as root.
type RPIOHardware struct {
	mu        sync.Mutex
	pwmRange  uint32
	pwmFreq   int
	pwmActive map[int]bool
	start     time.Time
}

// OpenRPIOHardware maps GPIO memory and configures every pin in cfg.
func OpenRPIOHardware(cfg Config) (*RPIOHardware, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("failed to open GPIO: %w", err)
	}

	h := &RPIOHardware{
		pwmRange:  cfg.PWM.Range,
		pwmFreq:   cfg.PWM.FrequencyHz * int(cfg.PWM.Range),
		pwmActive: make(map[int]bool),
		start:     time.Now(),
	}

	for _, pin := range []int{cfg.Pins.Enable, cfg.Pins.In1, cfg.Pins.In2, cfg.Pins.LED} {
		p := rpio.Pin(pin)
		p.Output()
		p.Low()
	}

	sensor := rpio.Pin(cfg.Pins.Sensor)
	sensor.Input()
	sensor.PullOff()

	return h, nil
}

func (h *RPIOHardware) DigitalRead(pin int) bool {
	return rpio.Pin(pin).Read() == rpio.High
}

func (h *RPIOHardware) DigitalWrite(pin int, high bool) {
	if high {
		rpio.Pin(pin).High()
	} else {
		rpio.Pin(pin).Low()
	}
}

func (h *RPIOHardware) SetPWM(pin int, duty uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if duty > h.pwmRange {
		duty = h.pwmRange
	}

	p := rpio.Pin(pin)
	if !h.pwmActive[pin] {
		// Output frequency is the clock frequency divided by the cycle length
		p.Pwm()
		p.Freq(h.pwmFreq)
		h.pwmActive[pin] = true
	}
	p.DutyCycle(duty, h.pwmRange)
}

func (h *RPIOHardware) StopPWM(pin int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	p := rpio.Pin(pin)
	if h.pwmActive[pin] {
		p.DutyCycle(0, h.pwmRange)
		h.pwmActive[pin] = false
	}
	p.Output()
	p.Low()
}

// Tick returns microseconds since open, truncated to 32 bits like the GPIO service tick.
func (h *RPIOHardware) Tick() uint32 {
	return uint32(time.Since(h.start).Microseconds())
}

func (h *RPIOHardware) Close() error {
	return rpio.Close()
}
