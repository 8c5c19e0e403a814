package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

var (
	version     = flag.Bool("version", false, "Print version info")
	help        = flag.Bool("help", false, "Print help")
	logLevel    = flag.Int("log", int(LogLevelInfo), "Log level (0=NONE, 1=ERROR, 2=WARN, 3=INFO, 4=DEBUG)")
	configFile  = flag.String("config", "", "YAML config file (pins, PWM, estimator and PID tuning)")
	hardware    = flag.String("hardware", "rpio", "Hardware port (rpio or sim)")
	commandFIFO = flag.String("command_fifo", DefaultCommandFIFO, "Command pipe written by the radio bridge")
	statusFIFO  = flag.String("status_fifo", DefaultStatusFIFO, "Status pipe read by the radio bridge")
	redisServer = flag.String("redis_server", "", "Redis server address (empty disables Redis telemetry)")
	redisPort   = flag.Int("redis_port", 6379, "Redis server port")
	canDevice   = flag.String("can_device", "", "CAN device name (empty disables CAN status frames)")
	console     = flag.Bool("console", true, "Read commands from stdin and show the status line")
)

const (
	ProjectName    = "motor-service"
	ProjectVersion = "1.0.0"
)

func printVersion() {
	fmt.Printf("%s v%s\n", ProjectName, ProjectVersion)
}

func printHelp() {
	printVersion()
	flag.PrintDefaults()
}

// applyFlags copies explicitly set flags over opts so they win over the config file
func applyFlags(opts *Options) error {
	var err error
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "log":
			opts.LogLevel = LogLevel(*logLevel)
		case "hardware":
			opts.Hardware = *hardware
		case "command_fifo":
			opts.CommandFIFO = *commandFIFO
		case "status_fifo":
			opts.StatusFIFO = *statusFIFO
		case "redis_server":
			opts.RedisServerAddr = *redisServer
		case "redis_port":
			if *redisPort < 1 || *redisPort > 65535 {
				err = fmt.Errorf("invalid redis port %d", *redisPort)
				return
			}
			opts.RedisServerPort = uint16(*redisPort)
		case "can_device":
			opts.CANDevice = *canDevice
		case "console":
			opts.Console = *console
		}
	})
	return err
}

func main() {
	flag.Parse()

	if *version {
		printVersion()
		os.Exit(0)
	}

	if *help {
		printHelp()
		os.Exit(0)
	}

	opts := DefaultOptions()
	logger := newAppLogger(&opts)

	if *configFile != "" {
		if err := LoadConfigFile(&opts, *configFile); err != nil {
			logger.Fatalf("%v", err)
		}
	}
	if err := applyFlags(&opts); err != nil {
		logger.Fatalf("%v", err)
	}
	if err := opts.Validate(); err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}
	logger.SetLevel(opts.LogLevel)
	logger.Info("Starting %s v%s (log level %d)", ProjectName, ProjectVersion, logger.GetLevel())

	app, err := NewMotorApp(&opts, logger)
	if err != nil {
		logger.Fatalf("failed to create motor app: %v", err)
	}
	defer app.Destroy()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle SIGINT and SIGTERM
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			app.log.Info("Received %v", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := app.Run(ctx); err != nil {
		app.log.Error("Control loop failed: %v", err)
	}
}
