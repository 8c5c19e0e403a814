package main

import (
	"bytes"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func newTestLogger() *LeveledLogger {
	return NewLeveledLogger(log.New(io.Discard, "", 0), LogLevelDebug)
}

func makeFIFO(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, EnsureFIFO(newTestLogger(), path))
	return path
}

func nextEvent(t *testing.T, c *CommandConduit) ConduitEvent {
	t.Helper()
	select {
	case ev := <-c.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for conduit event")
	}
	return ConduitEvent{}
}

func TestEnsureFIFO(t *testing.T) {
	path := makeFIFO(t, "pipe")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&os.ModeNamedPipe)

	// Existing fifo is accepted as is
	assert.NoError(t, EnsureFIFO(newTestLogger(), path))

	regular := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(regular, []byte("x"), 0644))
	assert.Error(t, EnsureFIFO(newTestLogger(), regular))
}

func TestCommandConduit_ReadsLinesThenEOF(t *testing.T) {
	path := makeFIFO(t, "cmd")
	c := NewCommandConduit(newTestLogger(), path, time.Second)
	defer c.Close()

	now := time.Now()
	require.True(t, c.TryOpen(now))
	assert.Equal(t, ConduitOpen, c.State())

	w, err := os.OpenFile(path, os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = w.WriteString("on\nauto 15")
	require.NoError(t, err)
	_, err = w.WriteString("00\n")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Equal(t, ConduitEvent{Line: "on\n"}, nextEvent(t, c))
	assert.Equal(t, ConduitEvent{Line: "auto 1500\n"}, nextEvent(t, c))

	ev := nextEvent(t, c)
	assert.ErrorIs(t, ev.Err, io.EOF)

	c.Disconnect(now, ev.Err)
	assert.Equal(t, ConduitFaulted, c.State())

	// Reopen waits for the retry delay
	assert.False(t, c.TryOpen(now.Add(500*time.Millisecond)))
	assert.True(t, c.TryOpen(now.Add(time.Second)))
	assert.Equal(t, ConduitOpen, c.State())
}

func TestCommandConduit_FlushesPartialLineAtEOF(t *testing.T) {
	path := makeFIFO(t, "cmd")
	c := NewCommandConduit(newTestLogger(), path, time.Second)
	defer c.Close()

	require.True(t, c.TryOpen(time.Now()))

	w, err := os.OpenFile(path, os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = w.WriteString("off")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Equal(t, ConduitEvent{Line: "off"}, nextEvent(t, c))
	assert.ErrorIs(t, nextEvent(t, c).Err, io.EOF)
}

func TestCommandConduit_DiscardsOversizedLine(t *testing.T) {
	path := makeFIFO(t, "cmd")
	c := NewCommandConduit(newTestLogger(), path, time.Second)
	defer c.Close()

	require.True(t, c.TryOpen(time.Now()))

	w, err := os.OpenFile(path, os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = w.Write(bytes.Repeat([]byte("x"), 1<<20))
	require.NoError(t, err)
	_, err = w.WriteString("\non\n")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.ErrorIs(t, nextEvent(t, c).Err, ErrCommandTooLong)
	// The tail of the long line is dropped, the next line survives
	assert.Equal(t, ConduitEvent{Line: "on\n"}, nextEvent(t, c))
	assert.ErrorIs(t, nextEvent(t, c).Err, io.EOF)
}

func TestCommandConduit_NoEventsWithoutWriter(t *testing.T) {
	path := makeFIFO(t, "cmd")
	c := NewCommandConduit(newTestLogger(), path, time.Second)

	require.True(t, c.TryOpen(time.Now()))

	select {
	case ev := <-c.Events():
		t.Fatalf("unexpected event before any writer connected: %+v", ev)
	case <-time.After(300 * time.Millisecond):
	}

	c.Close()
	assert.Equal(t, ConduitClosed, c.State())
	// Close is idempotent
	c.Close()
}

func TestCommandConduit_MissingPathRetries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing")
	c := NewCommandConduit(newTestLogger(), path, time.Second)

	now := time.Now()
	assert.False(t, c.TryOpen(now))
	assert.Equal(t, ConduitClosed, c.State())
	assert.False(t, c.TryOpen(now.Add(100*time.Millisecond)))
}

func TestStatusConduit_Lifecycle(t *testing.T) {
	path := makeFIFO(t, "rpm")
	s := NewStatusConduit(newTestLogger(), path, time.Second)
	defer s.Close()

	now := time.Now()

	// No reader yet
	assert.False(t, s.TryOpen(now))
	assert.Equal(t, ConduitClosed, s.State())
	assert.NoError(t, s.Send(now, 1), "sending while closed is a no-op")

	r, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK, 0)
	require.NoError(t, err)

	assert.False(t, s.TryOpen(now.Add(500*time.Millisecond)), "retry not due yet")
	require.True(t, s.TryOpen(now.Add(time.Second)))

	require.NoError(t, s.Send(now, 12.5))

	buf := make([]byte, 64)
	n, err := unix.Read(r, buf)
	require.NoError(t, err)
	assert.Equal(t, "rpm:12.50\n", string(buf[:n]))

	// Reader goes away: the write fails and the conduit schedules a reopen
	require.NoError(t, unix.Close(r))
	later := now.Add(2 * time.Second)
	assert.Error(t, s.Send(later, 13))
	assert.Equal(t, ConduitFaulted, s.State())

	assert.False(t, s.TryOpen(later))
	assert.False(t, s.TryOpen(later.Add(time.Second)), "still no reader")
	assert.Equal(t, ConduitClosed, s.State())
}

func TestStatusConduit_DropsWhenFull(t *testing.T) {
	path := makeFIFO(t, "rpm")
	s := NewStatusConduit(newTestLogger(), path, time.Second)
	defer s.Close()

	r, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK, 0)
	require.NoError(t, err)
	defer unix.Close(r)

	now := time.Now()
	require.True(t, s.TryOpen(now))

	for i := 0; i < 20000 && s.Dropped() == 0; i++ {
		require.NoError(t, s.Send(now, 1234.56))
	}

	assert.NotZero(t, s.Dropped())
	assert.True(t, s.IsOpen())
}

func TestFormatStatus(t *testing.T) {
	assert.Equal(t, "rpm:0.00\n", FormatStatus(0))
	assert.Equal(t, "rpm:1500.25\n", FormatStatus(1500.25))
}
