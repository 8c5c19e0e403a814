package main

import (
	"errors"
	"strings"

	"motor-service/motor"
)

// dispatch parses and executes one command line from the console or the command
// conduit. Bad input is logged and ignored.
func (app *MotorApp) dispatch(source, line string) {
	cmd, err := motor.ParseCommand(line)
	if errors.Is(err, motor.ErrEmptyCommand) {
		return
	}
	if err != nil {
		app.diag.ReportEvent(motor.FaultMalformedCommand, source+": "+err.Error())
		return
	}

	app.log.Info("Command (%s): [%s]", source, strings.TrimRight(line, " \t\r\n"))

	switch cmd.Kind {
	case motor.CommandReportRPM:
		app.printf("\n-> RPM: %.2f\n", app.rpm.Load())
		return
	case motor.CommandQuit:
		app.log.Info("Quit requested from %s", source)
		app.requestQuit()
		return
	}

	if err := app.controller.Execute(cmd); err != nil {
		if errors.Is(err, motor.ErrManualOnly) {
			app.log.Warn("Manual speed control disabled in AUTO mode. Use 'manual' first.")
			return
		}
		app.log.Warn("Command %q failed: %v", line, err)
	}
}

// printf writes to the console when one is attached, otherwise to the log
func (app *MotorApp) printf(format string, v ...interface{}) {
	if app.console != nil {
		app.console.Printf(format, v...)
		return
	}
	app.log.Info(strings.TrimSpace(format), v...)
}
