package motor

import (
	"fmt"
	"time"
)

// Pins holds the BCM pin numbers wired to the H-bridge, indicator LED and blade sensor.
type Pins struct {
	Enable int `yaml:"enable"`
	In1    int `yaml:"in1"`
	In2    int `yaml:"in2"`
	LED    int `yaml:"led"`
	Sensor int `yaml:"sensor"`
}

// PWMConfig describes the enable pin PWM signal.
type PWMConfig struct {
	FrequencyHz int    `yaml:"frequency_hz"`
	Range       uint32 `yaml:"range"`
}

// EstimatorConfig tunes the RPM estimator and its sampling context.
type EstimatorConfig struct {
	BladesPerRevolution int           `yaml:"blades"`
	Window              time.Duration `yaml:"window"`
	UpdateInterval      time.Duration `yaml:"update_interval"`
	SampleInterval      time.Duration `yaml:"sample_interval"`
}

// PIDConfig tunes the automatic mode controller.
type PIDConfig struct {
	Kp             float64       `yaml:"kp"`
	Ki             float64       `yaml:"ki"`
	Kd             float64       `yaml:"kd"`
	MaxIntegral    float64       `yaml:"max_integral"`
	IntegralGate   float64       `yaml:"integral_gate"`
	MaxSpeedChange int           `yaml:"max_speed_change"`
	StabilizeDelay time.Duration `yaml:"stabilize_delay"`
	KickstartSpeed int           `yaml:"kickstart_speed"`
}

// Config is the full device configuration.
type Config struct {
	Pins      Pins            `yaml:"pins"`
	PWM       PWMConfig       `yaml:"pwm"`
	Estimator EstimatorConfig `yaml:"estimator"`
	PID       PIDConfig       `yaml:"pid"`

	// OnSpeed is applied by "on" when no speed has been set yet.
	OnSpeed int `yaml:"on_speed"`
	// AutoStartSpeed is applied when automatic mode starts a stopped motor.
	AutoStartSpeed int `yaml:"auto_start_speed"`
	// SpeedStep is the manual +/- increment.
	SpeedStep int     `yaml:"speed_step"`
	MaxTarget float64 `yaml:"max_target_rpm"`
}

func DefaultConfig() Config {
	return Config{
		Pins: Pins{
			Enable: 18,
			In1:    23,
			In2:    24,
			LED:    25,
			Sensor: 5,
		},
		PWM: PWMConfig{
			FrequencyHz: 1000,
			Range:       255,
		},
		Estimator: EstimatorConfig{
			BladesPerRevolution: 3,
			Window:              500 * time.Millisecond,
			UpdateInterval:      100 * time.Millisecond,
			SampleInterval:      100 * time.Microsecond,
		},
		PID: PIDConfig{
			Kp:             0.03,
			Ki:             0.005,
			Kd:             0.01,
			MaxIntegral:    50.0,
			IntegralGate:   500.0,
			MaxSpeedChange: 2,
			StabilizeDelay: 500 * time.Millisecond,
			KickstartSpeed: 20,
		},
		OnSpeed:        50,
		AutoStartSpeed: 30,
		SpeedStep:      10,
		MaxTarget:      10000,
	}
}

// Validate checks the configuration for values the controller cannot work with.
func (c Config) Validate() error {
	pins := map[int]string{}
	for name, pin := range map[string]int{
		"enable": c.Pins.Enable,
		"in1":    c.Pins.In1,
		"in2":    c.Pins.In2,
		"led":    c.Pins.LED,
		"sensor": c.Pins.Sensor,
	} {
		if pin < 0 {
			return fmt.Errorf("%w: pin %s is negative", ErrInvalidConfig, name)
		}
		if other, ok := pins[pin]; ok {
			return fmt.Errorf("%w: pins %s and %s share GPIO %d", ErrInvalidConfig, name, other, pin)
		}
		pins[pin] = name
	}

	if c.PWM.FrequencyHz <= 0 || c.PWM.Range == 0 {
		return fmt.Errorf("%w: pwm frequency and range must be positive", ErrInvalidConfig)
	}
	if c.Estimator.BladesPerRevolution < 1 {
		return fmt.Errorf("%w: blades must be at least 1", ErrInvalidConfig)
	}
	if c.Estimator.Window <= 0 || c.Estimator.UpdateInterval <= 0 || c.Estimator.SampleInterval <= 0 {
		return fmt.Errorf("%w: estimator intervals must be positive", ErrInvalidConfig)
	}
	if c.PID.MaxIntegral < 0 || c.PID.MaxSpeedChange < 1 || c.PID.StabilizeDelay < 0 {
		return fmt.Errorf("%w: pid limits out of range", ErrInvalidConfig)
	}

	for name, speed := range map[string]int{
		"kickstart_speed":  c.PID.KickstartSpeed,
		"on_speed":         c.OnSpeed,
		"auto_start_speed": c.AutoStartSpeed,
		"speed_step":       c.SpeedStep,
	} {
		if speed < 0 || speed > MaxSpeed {
			return fmt.Errorf("%w: %s must be within 0..%d", ErrInvalidConfig, name, MaxSpeed)
		}
	}
	if c.MaxTarget <= 0 {
		return fmt.Errorf("%w: max_target_rpm must be positive", ErrInvalidConfig)
	}

	return nil
}
