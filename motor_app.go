package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"motor-service/motor"

	"github.com/go-redis/redis/v8"
)

type MotorApp struct {
	log  *LeveledLogger
	opts *Options

	hw         motor.HardwarePort
	controller *motor.Controller
	sampler    *motor.Sampler
	rpm        *motor.RPMCell

	commands *CommandConduit
	status   *StatusConduit
	console  *Console

	redis *redis.Client
	ipcTx *IPCTx
	diag  *Diag
	canTx *CANTx

	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	destroyed bool
}

// NewMotorApp opens the hardware and wires every component. Hardware failure is fatal;
// Redis and CAN failures only disable the affected telemetry.
func NewMotorApp(opts *Options, logger *LeveledLogger) (*MotorApp, error) {
	hw, err := motor.NewHardware(opts.HardwareType, opts.Device, logger)
	if err != nil {
		cfg, _ := motor.GetFaultConfig(motor.FaultHardwareInit)
		logger.Error("%s: %v", cfg.Description, err)
		return nil, fmt.Errorf("failed to initialize hardware: %w", err)
	}

	var console *Console
	if opts.Console {
		console = NewConsole(os.Stdin, os.Stdout)
	}

	return newMotorApp(opts, logger, hw, console), nil
}

func newAppLogger(opts *Options) *LeveledLogger {
	base := opts.Logger
	if base == nil {
		base = log.New(os.Stderr, fmt.Sprintf("%s: ", ProjectName), log.LstdFlags)
	}
	return NewLeveledLogger(base, opts.LogLevel)
}

func newMotorApp(opts *Options, logger *LeveledLogger, hw motor.HardwarePort, console *Console) *MotorApp {
	app := &MotorApp{
		log:     logger,
		opts:    opts,
		hw:      hw,
		rpm:     &motor.RPMCell{},
		console: console,
	}

	app.controller = motor.NewController(logger, hw, opts.Device)
	app.controller.Actuator().Off()
	app.log.Info("Motor controller initialized (hardware=%v)", opts.HardwareType)

	app.sampler = motor.NewSampler(logger, hw, opts.Device, app.rpm)

	if opts.RedisServerAddr != "" {
		app.redis = connectRedis(logger, opts)
	}
	app.ipcTx = NewIPCTx(logger, app.redis)
	app.diag = NewDiag(logger, app.redis)

	if opts.CANDevice != "" {
		canTx, err := NewCANTx(logger, opts.CANDevice)
		if err != nil {
			app.log.Warn("CAN status disabled: %v", err)
		} else {
			app.canTx = canTx
			app.log.Info("CAN status frames on %s", opts.CANDevice)
		}
	}

	for _, path := range []string{opts.CommandFIFO, opts.StatusFIFO} {
		if err := EnsureFIFO(logger, path); err != nil {
			app.log.Warn("%v", err)
		}
	}
	app.commands = NewCommandConduit(logger, opts.CommandFIFO, ConduitRetryDelay)
	app.status = NewStatusConduit(logger, opts.StatusFIFO, ConduitRetryDelay)

	return app
}

func connectRedis(logger *LeveledLogger, opts *Options) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", opts.RedisServerAddr, opts.RedisServerPort),
		Password:     "",
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.Info("Connecting to Redis at %s:%d...", opts.RedisServerAddr, opts.RedisServerPort)
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis not reachable yet, telemetry will retry: %v", err)
	} else {
		logger.Info("Successfully connected to Redis")
	}
	return client
}

// Run is the control loop. It returns when ctx is cancelled or a quit command arrives.
func (app *MotorApp) Run(ctx context.Context) error {
	app.mu.Lock()
	app.ctx, app.cancel = context.WithCancel(ctx)
	ctx = app.ctx
	app.mu.Unlock()

	app.sampler.Start(ctx)

	if app.console != nil {
		app.console.PrintHelp(app.opts.CommandFIFO)
		app.console.Start()
	}
	app.reconnect(time.Now())

	var consoleLines <-chan string
	if app.console != nil {
		consoleLines = app.console.Lines()
	}

	ticker := time.NewTicker(ControlPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			app.log.Info("Control loop stopped")
			return nil

		case line, ok := <-consoleLines:
			if !ok {
				app.log.Info("Console input closed")
				consoleLines = nil
				continue
			}
			app.dispatch("console", line)

		case ev := <-app.commands.Events():
			app.handleConduitEvent(time.Now(), ev)

		case now := <-ticker.C:
			app.periodic(now)
		}
	}
}

func (app *MotorApp) handleConduitEvent(now time.Time, ev ConduitEvent) {
	if ev.Err == nil {
		app.dispatch("bridge", ev.Line)
		return
	}
	if errors.Is(ev.Err, ErrCommandTooLong) {
		app.diag.ReportEvent(motor.FaultMalformedCommand, "bridge: "+ev.Err.Error())
		return
	}

	// Losing the remote operator must never leave the motor running
	app.controller.SafeStop("Bridge disconnected")
	app.diag.SetFaultPresence(motor.FaultCommandLinkLost, true)
	app.commands.Disconnect(now, ev.Err)
	app.printf("\n   Waiting for reconnect...\n")
}

// periodic runs once per control period regardless of input
func (app *MotorApp) periodic(now time.Time) {
	rpm := app.rpm.Load()

	if app.controller.Evaluate(rpm) {
		app.log.Debug("PID: rpm=%.2f target=%.2f speed=%d%%",
			rpm, app.controller.Target(), app.controller.Status().Motor.Speed)
	}

	if err := app.status.Send(now, rpm); err != nil {
		app.diag.SetFaultPresence(motor.FaultStatusLinkLost, true)
	}

	status := app.snapshot(rpm)
	app.publish(status)
	if app.console != nil {
		app.console.RenderStatus(status)
	}

	app.reconnect(now)
}

func (app *MotorApp) reconnect(now time.Time) {
	if app.commands.TryOpen(now) {
		app.diag.SetFaultPresence(motor.FaultCommandLinkLost, false)
	}
	if app.status.TryOpen(now) {
		app.diag.SetFaultPresence(motor.FaultStatusLinkLost, false)
	}
}

func (app *MotorApp) snapshot(rpm float64) MotorStatus {
	return NewMotorStatus(rpm, app.controller.Status(), app.commands.IsOpen())
}

func (app *MotorApp) publish(status MotorStatus) {
	if err := app.ipcTx.SendStatus(status); err != nil {
		app.log.Debug("%v", err)
	}
	if app.canTx != nil {
		if err := app.canTx.SendStatus(status); err != nil {
			app.log.Debug("%v", err)
		}
	}
}

func (app *MotorApp) requestQuit() {
	app.mu.Lock()
	defer app.mu.Unlock()
	if app.cancel != nil {
		app.cancel()
	}
}

// Destroy stops the motor first, then tears down links, the sampler, telemetry and
// finally the hardware. Safe to call more than once.
func (app *MotorApp) Destroy() {
	app.mu.Lock()
	defer app.mu.Unlock()

	if app.destroyed {
		return
	}
	app.destroyed = true

	app.log.Info("Shutting down motor application...")

	if app.cancel != nil {
		app.cancel()
	}

	app.controller.SafeStop("Shutdown")

	app.commands.Close()
	app.status.Close()
	app.log.Info("Conduits closed")

	app.sampler.Stop()
	app.log.Info("RPM sampling joined")

	app.publish(app.snapshot(app.rpm.Load()))

	app.ipcTx.Destroy()
	app.diag.Destroy()

	if app.canTx != nil {
		app.canTx.Destroy()
		app.log.Info("CAN shutdown complete")
	}

	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.log.Warn("Error closing Redis connection: %v", err)
		} else {
			app.log.Info("Redis connection closed")
		}
	}

	if err := app.hw.Close(); err != nil {
		app.log.Warn("Error closing hardware: %v", err)
	}

	if app.console != nil {
		app.console.Printf("\n")
	}
	app.log.Info("Motor application shutdown complete")
}
