package motor

import "fmt"

// ControlMode selects who decides the speed: the operator or the PID loop.
type ControlMode int

const (
	ModeManual ControlMode = iota
	ModeAutomatic
)

func (m ControlMode) String() string {
	if m == ModeAutomatic {
		return "AUTO"
	}
	return "MANUAL"
}

// Status is a point-in-time view of the controller.
type Status struct {
	Mode   ControlMode
	Target float64
	Motor  MotorState
}

// Controller owns the actuator, the control mode and the PID state. It is driven from
// the control loop only; the actuator underneath is safe to stop from anywhere.
type Controller struct {
	logger   Logger
	cfg      Config
	hw       HardwarePort
	actuator *Actuator
	pid      *PID

	mode   ControlMode
	target float64
}

func NewController(logger Logger, hw HardwarePort, cfg Config) *Controller {
	logger = orNop(logger)
	return &Controller{
		logger:   logger,
		cfg:      cfg,
		hw:       hw,
		actuator: NewActuator(logger, hw, cfg),
		pid:      NewPID(cfg.PID),
		mode:     ModeManual,
	}
}

func (c *Controller) Actuator() *Actuator {
	return c.actuator
}

func (c *Controller) Mode() ControlMode {
	return c.mode
}

func (c *Controller) Target() float64 {
	return c.target
}

func (c *Controller) PIDState() PIDState {
	return c.pid.State()
}

func (c *Controller) Status() Status {
	return Status{
		Mode:   c.mode,
		Target: c.target,
		Motor:  c.actuator.State(),
	}
}

// Execute applies a parsed command. Report and quit commands carry no motor effect and
// are left to the caller.
func (c *Controller) Execute(cmd Command) error {
	if cmd.ManualOnly() && c.mode == ModeAutomatic {
		return ErrManualOnly
	}

	switch cmd.Kind {
	case CommandOn:
		c.actuator.On()
	case CommandOff:
		c.actuator.Off()
	case CommandForward:
		c.actuator.SetDirection(Forward)
	case CommandReverse:
		c.actuator.SetDirection(Reverse)
	case CommandAuto:
		c.EnterAutomatic(cmd.Arg)
	case CommandManual:
		c.EnterManual()
	case CommandSpeedUp:
		c.actuator.SetSpeed(c.actuator.State().Speed + c.cfg.SpeedStep)
	case CommandSpeedDown:
		c.actuator.SetSpeed(c.actuator.State().Speed - c.cfg.SpeedStep)
	case CommandSetSpeed:
		c.actuator.SetSpeed(int(cmd.Arg))
	case CommandReportRPM, CommandQuit:
	default:
		return fmt.Errorf("%w: kind %d", ErrUnknownCommand, cmd.Kind)
	}
	return nil
}

// EnterAutomatic switches to automatic mode with a fresh PID. A positive target starts a
// stopped motor at the auto start speed; a zero target stops it.
func (c *Controller) EnterAutomatic(target float64) {
	c.target = clampFloat(target, 0, c.cfg.MaxTarget)
	c.mode = ModeAutomatic
	c.pid.Reset()

	c.logger.Info("-> AUTOMATIC MODE: Target RPM = %.2f", c.target)

	if c.target > 0 {
		c.actuator.Start(c.cfg.AutoStartSpeed)
	} else {
		c.actuator.Off()
	}
}

func (c *Controller) EnterManual() {
	c.mode = ModeManual
	c.logger.Info("-> MANUAL MODE")
}

// Evaluate runs one PID step against the measured RPM when automatic and enabled. It
// reports whether the speed changed.
func (c *Controller) Evaluate(rpm float64) bool {
	state := c.actuator.State()
	if c.mode != ModeAutomatic || !state.Enabled {
		return false
	}

	speed := c.pid.Update(rpm, c.target, state.Speed, c.hw.Tick())
	if speed == state.Speed {
		return false
	}

	c.actuator.SetSpeed(speed)
	return true
}

// SafeStop forces the motor off and returns to manual mode.
func (c *Controller) SafeStop(reason string) {
	c.logger.Warn("%s - TURNING MOTOR OFF FOR SAFETY", reason)
	c.actuator.Off()
	c.mode = ModeManual
}
