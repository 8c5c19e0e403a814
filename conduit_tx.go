package main

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// StatusConduit is the outbound RPM pipe. A missing reader is normal and only retried.
type StatusConduit struct {
	conduitLink

	fd      int
	dropped uint64
}

func NewStatusConduit(logger *LeveledLogger, path string, retryDelay time.Duration) *StatusConduit {
	return &StatusConduit{
		conduitLink: newConduitLink(logger, "Status", path, retryDelay),
		fd:          -1,
	}
}

// FormatStatus renders one status line.
func FormatStatus(rpm float64) string {
	return fmt.Sprintf("rpm:%.2f\n", rpm)
}

// TryOpen attempts to open the pipe for writing when a retry is due. ENXIO means no
// reader is attached yet.
func (c *StatusConduit) TryOpen(now time.Time) bool {
	if !c.beginReopen(now) {
		return false
	}

	fd, err := unix.Open(c.path, unix.O_WRONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		if err == unix.ENXIO {
			c.log.Debug("Status conduit %s has no reader yet", c.path)
		} else {
			c.log.Debug("Status conduit %s not available: %v", c.path, err)
		}
		c.scheduleRetry(now)
		return false
	}

	c.fd = fd
	c.opened()
	return true
}

// Send writes one status line. It is a no-op while closed. A full pipe drops the line;
// any other failure closes the conduit and schedules a reopen.
func (c *StatusConduit) Send(now time.Time, rpm float64) error {
	if !c.IsOpen() {
		return nil
	}

	msg := []byte(FormatStatus(rpm))
	n, err := unix.Write(c.fd, msg)
	if err == unix.EAGAIN {
		c.dropped++
		c.log.Debug("Status conduit full, dropped %d messages", c.dropped)
		return nil
	}
	if err == nil && n != len(msg) {
		err = fmt.Errorf("short write %d/%d", n, len(msg))
	}
	if err != nil {
		// Only the command link carries the safety stop. A lost status reader takes no
		// control away from the operator, so the motor keeps its state.
		c.release()
		c.faulted(now, err.Error())
		return fmt.Errorf("failed to send status: %w", err)
	}
	return nil
}

// Dropped returns the number of lines discarded because the reader fell behind.
func (c *StatusConduit) Dropped() uint64 {
	return c.dropped
}

func (c *StatusConduit) Close() {
	c.release()
	c.state = ConduitClosed
}

func (c *StatusConduit) release() {
	if c.fd >= 0 {
		unix.Close(c.fd)
		c.fd = -1
	}
}
