package motor

import (
	"sync"
	"time"
)

// SimMaxRPM is the simulated rotor speed at full duty.
const SimMaxRPM = 3000.0

// SimHardware is an in-memory HardwarePort. It lets the service run on a desktop and
// gives tests full visibility into pin levels and the PWM signal.
type SimHardware struct {
	mu     sync.Mutex
	cfg    Config
	levels map[int]bool
	duty   map[int]uint32
	pwm    map[int]bool

	start      time.Time
	manualTick bool
	tick       uint32

	rotor     bool
	phase     float64
	lastRotor uint32
	closed    bool
}

// NewSimHardware creates a simulated port. With rotor enabled the sensor pin toggles at a
// rate proportional to the PWM duty whenever the H-bridge is not braked.
func NewSimHardware(cfg Config, rotor bool) *SimHardware {
	return &SimHardware{
		cfg:    cfg,
		levels: make(map[int]bool),
		duty:   make(map[int]uint32),
		pwm:    make(map[int]bool),
		start:  time.Now(),
		rotor:  rotor,
	}
}

// SetTick switches the port to a manual clock and sets it.
func (s *SimHardware) SetTick(tick uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manualTick = true
	s.tick = tick
}

// Advance moves the manual clock forward, wrapping at 32 bits.
func (s *SimHardware) Advance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manualTick = true
	s.tick += uint32(d.Microseconds())
}

// SetLevel forces an input level, used to feed sensor edges in tests.
func (s *SimHardware) SetLevel(pin int, high bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.levels[pin] = high
}

// Level returns the last written or forced level of a pin.
func (s *SimHardware) Level(pin int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.levels[pin]
}

// PWM returns the duty on a pin and whether a PWM signal is present at all.
func (s *SimHardware) PWM(pin int) (uint32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duty[pin], s.pwm[pin]
}

func (s *SimHardware) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *SimHardware) DigitalRead(pin int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rotor && pin == s.cfg.Pins.Sensor {
		s.spin()
	}
	return s.levels[pin]
}

func (s *SimHardware) DigitalWrite(pin int, high bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.levels[pin] = high
}

func (s *SimHardware) SetPWM(pin int, duty uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if duty > s.cfg.PWM.Range {
		duty = s.cfg.PWM.Range
	}
	s.duty[pin] = duty
	s.pwm[pin] = true
	s.levels[pin] = duty > 0
}

func (s *SimHardware) StopPWM(pin int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.duty[pin] = 0
	s.pwm[pin] = false
	s.levels[pin] = false
}

func (s *SimHardware) Tick() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now()
}

func (s *SimHardware) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *SimHardware) now() uint32 {
	if s.manualTick {
		return s.tick
	}
	return uint32(time.Since(s.start).Microseconds())
}

// spin advances the simulated rotor and updates the sensor level. Must hold s.mu.
func (s *SimHardware) spin() {
	now := s.now()
	elapsed := TickAge(now, s.lastRotor)
	s.lastRotor = now

	if !s.pwm[s.cfg.Pins.Enable] || s.levels[s.cfg.Pins.In1] == s.levels[s.cfg.Pins.In2] {
		return
	}

	rpm := SimMaxRPM * float64(s.duty[s.cfg.Pins.Enable]) / float64(s.cfg.PWM.Range)
	edgesPerSecond := rpm / 60.0 * float64(s.cfg.Estimator.BladesPerRevolution)
	s.phase += edgesPerSecond * float64(elapsed) / 1e6

	s.levels[s.cfg.Pins.Sensor] = int64(s.phase)%2 == 1
}
