package motor

import "math"

// PIDState is the controller memory. LastSpeedChange is only meaningful when
// SpeedChangeArmed is set.
type PIDState struct {
	Integral         float64
	LastError        float64
	LastSpeedChange  uint32
	SpeedChangeArmed bool
}

// PID converts a measured/target RPM pair into a bounded, rate-limited speed command.
// Not safe for concurrent use; the control loop owns it.
type PID struct {
	cfg   PIDConfig
	state PIDState
}

func NewPID(cfg PIDConfig) *PID {
	return &PID{cfg: cfg}
}

func (p *PID) Reset() {
	p.state = PIDState{}
}

func (p *PID) State() PIDState {
	return p.state
}

// Update returns the new speed percent for the current speed, given the tick now.
func (p *PID) Update(measured, target float64, current int, now uint32) int {
	if target < 1.0 {
		p.Reset()
		return 0
	}

	// Let the RPM reading catch up with the last actuation before reacting again
	if p.state.SpeedChangeArmed &&
		TickAge(now, p.state.LastSpeedChange) < durationToTicks(p.cfg.StabilizeDelay) {
		return current
	}

	err := target - measured

	pTerm := p.cfg.Kp * err

	// Anti-windup: only integrate near the target
	if math.Abs(err) < p.cfg.IntegralGate {
		p.state.Integral = clampFloat(p.state.Integral+err, -p.cfg.MaxIntegral, p.cfg.MaxIntegral)
	}
	iTerm := p.cfg.Ki * p.state.Integral

	dTerm := p.cfg.Kd * (err - p.state.LastError)
	p.state.LastError = err

	maxChange := float64(p.cfg.MaxSpeedChange)
	adjustment := clampFloat(pTerm+iTerm+dTerm, -maxChange, maxChange)

	speed := clampInt(current+int(adjustment), 0, MaxSpeed)

	// Kickstart past static friction when starting from rest
	if current == 0 && speed > 0 && speed < p.cfg.KickstartSpeed {
		speed = p.cfg.KickstartSpeed
	}

	if speed != current {
		p.state.LastSpeedChange = now
		p.state.SpeedChangeArmed = true
	}

	return speed
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
