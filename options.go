package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"motor-service/motor"

	"gopkg.in/yaml.v3"
)

type LogLevel int

const (
	LogLevelNone  LogLevel = 0
	LogLevelError LogLevel = 1
	LogLevelWarn  LogLevel = 2
	LogLevelInfo  LogLevel = 3
	LogLevelDebug LogLevel = 4
)

const (
	DefaultCommandFIFO = "/tmp/motor_pipe"
	DefaultStatusFIFO  = "/tmp/rpm_pipe"

	ControlPeriod     = 100 * time.Millisecond
	ConduitRetryDelay = 1 * time.Second
)

type Options struct {
	LogLevel        LogLevel     `yaml:"log"`
	Hardware        string       `yaml:"hardware"`
	CommandFIFO     string       `yaml:"command_fifo"`
	StatusFIFO      string       `yaml:"status_fifo"`
	RedisServerAddr string       `yaml:"redis_server"`
	RedisServerPort uint16       `yaml:"redis_port"`
	CANDevice       string       `yaml:"can_device"`
	Console         bool         `yaml:"console"`
	Device          motor.Config `yaml:"device"`

	HardwareType motor.HardwareType `yaml:"-"`
	Logger       *log.Logger        `yaml:"-"`
}

// DefaultOptions returns the built-in configuration. Redis and CAN are off unless
// configured.
func DefaultOptions() Options {
	return Options{
		LogLevel:        LogLevelInfo,
		Hardware:        motor.HardwareRPIO.String(),
		CommandFIFO:     DefaultCommandFIFO,
		StatusFIFO:      DefaultStatusFIFO,
		RedisServerPort: 6379,
		Console:         true,
		Device:          motor.DefaultConfig(),
	}
}

// LoadConfigFile overlays a YAML file on opts. Keys missing from the file keep their
// current value.
func LoadConfigFile(opts *Options, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, opts); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

// Validate resolves the hardware type and checks the device configuration.
func (o *Options) Validate() error {
	if o.LogLevel < LogLevelNone || o.LogLevel > LogLevelDebug {
		return fmt.Errorf("invalid log level %d", o.LogLevel)
	}

	hwType, err := motor.ParseHardwareType(o.Hardware)
	if err != nil {
		return err
	}
	o.HardwareType = hwType

	if o.CommandFIFO == "" || o.StatusFIFO == "" {
		return fmt.Errorf("command and status fifo paths are required")
	}
	if o.CommandFIFO == o.StatusFIFO {
		return fmt.Errorf("command and status fifo must differ (both %s)", o.CommandFIFO)
	}

	return o.Device.Validate()
}
