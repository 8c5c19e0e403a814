package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// ConduitState tracks one named-pipe link to the radio bridge process.
//
//	Closed  -> Open     successful open
//	Open    -> Faulted  read/write failure or end of stream
//	Faulted -> Closed   fd released, reopen scheduled
type ConduitState int

const (
	ConduitClosed ConduitState = iota
	ConduitOpen
	ConduitFaulted
)

func (s ConduitState) String() string {
	switch s {
	case ConduitClosed:
		return "closed"
	case ConduitOpen:
		return "open"
	case ConduitFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// conduitLink is the state machine shared by both directions. Owned by the control loop.
type conduitLink struct {
	log        *LeveledLogger
	name       string
	path       string
	retryDelay time.Duration

	state   ConduitState
	retryAt time.Time
}

func newConduitLink(logger *LeveledLogger, name, path string, retryDelay time.Duration) conduitLink {
	return conduitLink{
		log:        logger,
		name:       name,
		path:       path,
		retryDelay: retryDelay,
		state:      ConduitClosed,
	}
}

func (c *conduitLink) State() ConduitState {
	return c.state
}

func (c *conduitLink) IsOpen() bool {
	return c.state == ConduitOpen
}

// beginReopen reports whether an open attempt should be made at now. A faulted link
// becomes closed once its retry delay has passed.
func (c *conduitLink) beginReopen(now time.Time) bool {
	if c.state == ConduitOpen || now.Before(c.retryAt) {
		return false
	}
	c.state = ConduitClosed
	return true
}

func (c *conduitLink) opened() {
	c.state = ConduitOpen
	c.log.Info("%s conduit connected: %s", c.name, c.path)
}

func (c *conduitLink) scheduleRetry(now time.Time) {
	c.retryAt = now.Add(c.retryDelay)
}

func (c *conduitLink) faulted(now time.Time, reason string) {
	c.state = ConduitFaulted
	c.log.Warn("%s conduit lost (%s), retrying in %v", c.name, reason, c.retryDelay)
	c.scheduleRetry(now)
}

// EnsureFIFO creates a named pipe at path if nothing exists there yet.
func EnsureFIFO(logger *LeveledLogger, path string) error {
	info, err := os.Stat(path)
	if err == nil {
		if info.Mode()&os.ModeNamedPipe == 0 {
			return fmt.Errorf("%s exists and is not a fifo", path)
		}
		return nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if err := unix.Mkfifo(path, 0666); err != nil {
		return fmt.Errorf("failed to create fifo %s (try: mkfifo %s): %w", path, path, err)
	}
	logger.Info("Created fifo: %s", path)
	return nil
}
