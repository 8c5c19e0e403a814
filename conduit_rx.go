package main

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

const (
	commandReadSize   = 256
	commandMaxLine    = 256
	commandPollMillis = 100
	commandQueueSize  = 16
)

// ErrCommandTooLong is delivered once per line that exceeds commandMaxLine. The rest of
// that line is discarded up to the next newline and the reader keeps going.
var ErrCommandTooLong = errors.New("command line too long")

// ConduitEvent is one line read from the command conduit, an oversized line
// (ErrCommandTooLong), or the terminal event of a reader: Err is io.EOF when the writer
// went away.
type ConduitEvent struct {
	Line string
	Err  error
}

// CommandConduit is the inbound command pipe. The fd is opened non-blocking and drained
// by a reader goroutine that hands complete lines to the control loop.
type CommandConduit struct {
	conduitLink

	events chan ConduitEvent
	stop   chan struct{}
	wg     sync.WaitGroup
}

func NewCommandConduit(logger *LeveledLogger, path string, retryDelay time.Duration) *CommandConduit {
	return &CommandConduit{
		conduitLink: newConduitLink(logger, "Command", path, retryDelay),
		events:      make(chan ConduitEvent, commandQueueSize),
	}
}

// Events delivers lines and end-of-stream notifications.
func (c *CommandConduit) Events() <-chan ConduitEvent {
	return c.events
}

// TryOpen attempts to open the pipe when a retry is due. Opening for read never waits
// for a writer.
func (c *CommandConduit) TryOpen(now time.Time) bool {
	if !c.beginReopen(now) {
		return false
	}

	fd, err := unix.Open(c.path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		c.log.Debug("Command conduit %s not available: %v", c.path, err)
		c.scheduleRetry(now)
		return false
	}

	c.stop = make(chan struct{})
	c.wg.Add(1)
	go c.readLoop(fd, c.stop)

	c.opened()
	return true
}

// Disconnect releases the reader after end of stream or a read error and schedules a
// reopen.
func (c *CommandConduit) Disconnect(now time.Time, cause error) {
	c.Close()
	reason := "writer closed"
	if cause != nil && !errors.Is(cause, io.EOF) {
		reason = cause.Error()
	}
	c.faulted(now, reason)
}

// Close stops the reader goroutine and waits for it to release the fd.
func (c *CommandConduit) Close() {
	if c.stop != nil {
		close(c.stop)
		c.wg.Wait()
		c.stop = nil
	}
	c.state = ConduitClosed
}

func (c *CommandConduit) readLoop(fd int, stop <-chan struct{}) {
	defer c.wg.Done()
	defer unix.Close(fd)

	var pending bytes.Buffer
	discarding := false
	buf := make([]byte, commandReadSize)
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}

	for {
		select {
		case <-stop:
			return
		default:
		}

		n, err := unix.Poll(fds, commandPollMillis)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			c.emit(stop, ConduitEvent{Err: err})
			return
		}
		// No POLLHUP is raised until a writer has connected at least once
		if n == 0 || fds[0].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) == 0 {
			continue
		}

		r, err := unix.Read(fd, buf)
		switch {
		case err == unix.EAGAIN || err == unix.EINTR:
			continue
		case err != nil:
			c.emit(stop, ConduitEvent{Err: err})
			return
		case r == 0:
			if pending.Len() > 0 && !discarding {
				c.emit(stop, ConduitEvent{Line: pending.String()})
			}
			c.emit(stop, ConduitEvent{Err: io.EOF})
			return
		}

		pending.Write(buf[:r])
		for {
			i := bytes.IndexByte(pending.Bytes(), '\n')
			if i < 0 {
				break
			}
			line := string(pending.Next(i + 1))
			if discarding {
				discarding = false
				continue
			}
			if !c.emit(stop, ConduitEvent{Line: line}) {
				return
			}
		}

		if pending.Len() > commandMaxLine {
			pending.Reset()
			if !discarding {
				discarding = true
				if !c.emit(stop, ConduitEvent{Err: ErrCommandTooLong}) {
					return
				}
			}
		}
	}
}

func (c *CommandConduit) emit(stop <-chan struct{}, ev ConduitEvent) bool {
	select {
	case c.events <- ev:
		return true
	case <-stop:
		return false
	}
}
