package main

import (
	"bufio"
	"fmt"
	"io"
	"sync"

	"motor-service/motor"
)

// Console is the local operator terminal: a line reader plus a one-line status display.
type Console struct {
	in  io.Reader
	out io.Writer
	mu  sync.Mutex

	lines chan string
}

func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{
		in:    in,
		out:   out,
		lines: make(chan string),
	}
}

// Start reads lines in the background. The channel is closed at end of input. The
// goroutine is blocked in Read for most of its life and is not joined on shutdown.
func (c *Console) Start() {
	go func() {
		defer close(c.lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			c.lines <- scanner.Text()
		}
	}()
}

func (c *Console) Lines() <-chan string {
	return c.lines
}

func (c *Console) Printf(format string, v ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, v...)
}

func (c *Console) PrintHelp(commandPath string) {
	c.Printf("\nWaiting for the bridge to connect on %s...\n\n", commandPath)
	for _, line := range motor.Help() {
		c.Printf("   %s\n", line)
	}
	c.Printf("\n")
}

// RenderStatus redraws the status line in place
func (c *Console) RenderStatus(s MotorStatus) {
	c.Printf("%s", FormatStatusLine(s))
}

func FormatStatusLine(s MotorStatus) string {
	link := "WAIT"
	if s.Linked {
		link = "BLE"
	}
	motorState := "OFF"
	if s.Enabled {
		motorState = "ON"
	}

	if s.Mode == motor.ModeAutomatic {
		return fmt.Sprintf("\r[%s:%s] RPM: %7.2f/%7.2f | Motor: %s | Speed: %d%% | > ",
			link, s.Mode, s.RPM, s.TargetRPM, motorState, s.Speed)
	}
	return fmt.Sprintf("\r[%s:%s] RPM: %7.2f | Motor: %s | Speed: %d%% | > ",
		link, s.Mode, s.RPM, motorState, s.Speed)
}
