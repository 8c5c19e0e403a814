package motor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPID_TargetBelowOneResets(t *testing.T) {
	pid := NewPID(DefaultConfig().PID)

	pid.Update(900, 1000, 50, 0)
	assert.NotEqual(t, PIDState{}, pid.State())

	speed := pid.Update(900, 0, 80, 1_000_000)
	assert.Equal(t, 0, speed)
	assert.Equal(t, PIDState{}, pid.State())
}

func TestPID_RateLimited(t *testing.T) {
	tests := []struct {
		name     string
		measured float64
		target   float64
		current  int
		want     int
	}{
		{"far below target", 0, 10000, 50, 52},
		{"far above target", 10000, 1, 50, 48},
		{"near top", 0, 10000, 99, 100},
		{"near bottom", 10000, 1, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pid := NewPID(DefaultConfig().PID)
			assert.Equal(t, tt.want, pid.Update(tt.measured, tt.target, tt.current, 0))
		})
	}
}

func TestPID_OutputAlwaysInRange(t *testing.T) {
	cfg := DefaultConfig().PID
	pid := NewPID(cfg)

	now := uint32(0)
	current := 50
	for i := 0; i < 200; i++ {
		measured := float64((i * 397) % 12000)
		target := float64((i * 131) % 10000)
		now += 600_000

		next := pid.Update(measured, target, current, now)
		assert.GreaterOrEqual(t, next, 0)
		assert.LessOrEqual(t, next, MaxSpeed)
		if target >= 1 && !(current == 0 && next == cfg.KickstartSpeed) {
			assert.LessOrEqual(t, absInt(next-current), cfg.MaxSpeedChange)
		}
		current = next
	}
}

func TestPID_IntegralClamped(t *testing.T) {
	cfg := DefaultConfig().PID
	pid := NewPID(cfg)

	now := uint32(0)
	for i := 0; i < 20; i++ {
		now += 600_000
		pid.Update(600, 1000, 50, now)
	}
	assert.Equal(t, cfg.MaxIntegral, pid.State().Integral)
}

func TestPID_NoIntegrationFarFromTarget(t *testing.T) {
	pid := NewPID(DefaultConfig().PID)
	pid.Update(0, 5000, 50, 0)
	assert.Equal(t, 0.0, pid.State().Integral)
}

func TestPID_StabilizationGate(t *testing.T) {
	pid := NewPID(DefaultConfig().PID)

	speed := pid.Update(0, 10000, 50, 1_000)
	assert.Equal(t, 52, speed)
	before := pid.State()
	assert.True(t, before.SpeedChangeArmed)
	assert.Equal(t, uint32(1_000), before.LastSpeedChange)

	// 100ms later: held, and no state changes at all
	assert.Equal(t, 52, pid.Update(0, 10000, 52, 101_000))
	assert.Equal(t, before, pid.State())

	// Past the 500ms stabilize delay the controller reacts again
	assert.Equal(t, 54, pid.Update(0, 10000, 52, 502_000))
}

func TestPID_StabilizationGateAcrossWrap(t *testing.T) {
	pid := NewPID(DefaultConfig().PID)

	pid.Update(0, 10000, 50, 4294967000)
	assert.Equal(t, 52, pid.Update(0, 10000, 52, 100_000))
	assert.Equal(t, 54, pid.Update(0, 10000, 52, 600_000))
}

func TestPID_Kickstart(t *testing.T) {
	cfg := DefaultConfig().PID
	pid := NewPID(cfg)

	// Small error from rest would move to 2%; kickstart raises it
	speed := pid.Update(900, 1000, 0, 0)
	assert.Equal(t, cfg.KickstartSpeed, speed)
}

func TestPID_NoChangeDoesNotArmGate(t *testing.T) {
	pid := NewPID(DefaultConfig().PID)

	// At target: zero adjustment
	assert.Equal(t, 50, pid.Update(1000, 1000, 50, 0))
	assert.False(t, pid.State().SpeedChangeArmed)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
