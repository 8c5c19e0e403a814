package main

import (
	"strings"

	"motor-service/motor"
)

// MotorStatus is the per-period snapshot mirrored to Redis, CAN and the console
type MotorStatus struct {
	RPM       float64
	TargetRPM float64
	Speed     int
	Direction motor.Direction
	Enabled   bool
	Mode      motor.ControlMode
	Linked    bool // command conduit open
}

func NewMotorStatus(rpm float64, st motor.Status, linked bool) MotorStatus {
	return MotorStatus{
		RPM:       rpm,
		TargetRPM: st.Target,
		Speed:     st.Motor.Speed,
		Direction: st.Motor.Direction,
		Enabled:   st.Motor.Enabled,
		Mode:      st.Mode,
		Linked:    linked,
	}
}

func (s MotorStatus) StateString() string {
	if s.Enabled {
		return "on"
	}
	return "off"
}

func (s MotorStatus) ModeString() string {
	return strings.ToLower(s.Mode.String())
}
