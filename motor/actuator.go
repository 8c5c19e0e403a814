package motor

import "sync"

// MaxSpeed is the top of the speed percent range.
const MaxSpeed = 100

type Direction int

const (
	Forward Direction = iota
	Reverse
)

func (d Direction) String() string {
	if d == Reverse {
		return "reverse"
	}
	return "forward"
}

// MotorState is what the actuator believes it has applied to the hardware.
// Enabled == false means the PWM output is stopped.
type MotorState struct {
	Speed     int
	Direction Direction
	Enabled   bool
}

// Actuator drives an H-bridge: a PWM enable pin, two complementary direction pins
// and an "active" indicator LED.
//
//	IN1=HIGH IN2=LOW  forward
//	IN1=LOW  IN2=HIGH reverse
//	IN1=LOW  IN2=LOW  brake
//
// All methods are safe for concurrent use so Off can run from a shutdown path while
// another call is in flight.
type Actuator struct {
	mu       sync.Mutex
	logger   Logger
	hw       HardwarePort
	pins     Pins
	pwmRange uint32
	onSpeed  int
	state    MotorState
}

func NewActuator(logger Logger, hw HardwarePort, cfg Config) *Actuator {
	return &Actuator{
		logger:   orNop(logger),
		hw:       hw,
		pins:     cfg.Pins,
		pwmRange: cfg.PWM.Range,
		onSpeed:  cfg.OnSpeed,
	}
}

func (a *Actuator) State() MotorState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// SetDirection stores the direction and writes both direction lines.
func (a *Actuator) SetDirection(dir Direction) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.setDirection(dir)
}

// SetSpeed clamps, stores and applies the speed. A nonzero speed enables a stopped motor
// in the stored direction; speed 0 stops the PWM signal and disables the motor.
func (a *Actuator) SetSpeed(percent int) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.state.Speed = clampInt(percent, 0, MaxSpeed)
	a.logger.Info("-> Speed: %d%%", a.state.Speed)

	if a.state.Speed == 0 {
		a.state.Enabled = false
		a.hw.StopPWM(a.pins.Enable)
		a.hw.DigitalWrite(a.pins.LED, false)
		return 0
	}

	if !a.state.Enabled {
		// Off leaves the bridge braked
		a.state.Enabled = true
		a.setDirection(a.state.Direction)
		a.logger.Info("-> Motor ON")
	}
	a.applySpeed()
	return a.state.Speed
}

// On enables the motor at the stored speed, or the floor speed when none is set.
// Calling it on a running motor does nothing.
func (a *Actuator) On() bool {
	return a.Start(a.onSpeed)
}

// Start enables the motor, using floor when the stored speed is zero. It reports whether
// the motor was started by this call.
func (a *Actuator) Start(floor int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state.Enabled {
		a.logger.Info("-> Motor already ON")
		return false
	}

	if a.state.Speed == 0 {
		a.state.Speed = clampInt(floor, 0, MaxSpeed)
	}
	if a.state.Speed == 0 {
		return false
	}

	a.state.Enabled = true
	a.setDirection(a.state.Direction)
	a.applySpeed()
	a.logger.Info("-> Motor ON")
	return true
}

// Off is the unconditional hard stop: PWM removed, both direction lines low (brake),
// indicator off.
func (a *Actuator) Off() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.state.Enabled = false
	a.hw.StopPWM(a.pins.Enable)
	a.hw.DigitalWrite(a.pins.In1, false)
	a.hw.DigitalWrite(a.pins.In2, false)
	a.hw.DigitalWrite(a.pins.LED, false)
	a.logger.Info("-> Motor OFF")
}

// Must hold a.mu.
func (a *Actuator) setDirection(dir Direction) {
	a.state.Direction = dir
	a.logger.Info("-> Direction: %s", dir)

	a.hw.DigitalWrite(a.pins.In1, dir == Forward)
	a.hw.DigitalWrite(a.pins.In2, dir == Reverse)
}

// Must hold a.mu.
func (a *Actuator) applySpeed() {
	duty := uint32(a.state.Speed) * a.pwmRange / MaxSpeed
	a.hw.SetPWM(a.pins.Enable, duty)
	a.hw.DigitalWrite(a.pins.LED, true)
}
