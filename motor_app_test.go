package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"motor-service/motor"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func newTestApp(t *testing.T) (*MotorApp, *motor.SimHardware) {
	t.Helper()

	dir := t.TempDir()
	opts := DefaultOptions()
	opts.Hardware = "sim"
	opts.Console = false
	opts.CommandFIFO = filepath.Join(dir, "motor_pipe")
	opts.StatusFIFO = filepath.Join(dir, "rpm_pipe")
	require.NoError(t, opts.Validate())

	hw := motor.NewSimHardware(opts.Device, false)
	app := newMotorApp(&opts, newTestLogger(), hw, nil)
	t.Cleanup(app.Destroy)
	return app, hw
}

// openWriter connects to the command fifo once the app has opened its read end
func openWriter(t *testing.T, path string) *os.File {
	t.Helper()
	var w *os.File
	require.Eventually(t, func() bool {
		f, err := os.OpenFile(path, os.O_WRONLY|syscall.O_NONBLOCK, 0)
		if err != nil {
			return false
		}
		w = f
		return true
	}, 3*time.Second, 10*time.Millisecond)
	return w
}

func runApp(app *MotorApp) (context.CancelFunc, <-chan error) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()
	return cancel, done
}

func waitDone(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("control loop did not stop")
	}
}

func TestMotorApp_CreatesFIFOs(t *testing.T) {
	app, _ := newTestApp(t)

	for _, path := range []string{app.opts.CommandFIFO, app.opts.StatusFIFO} {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.NotZero(t, info.Mode()&os.ModeNamedPipe, path)
	}
}

func TestMotorApp_BridgeEOFForcesSafeStop(t *testing.T) {
	app, hw := newTestApp(t)

	app.dispatch("bridge", "auto 1500")
	require.True(t, app.controller.Status().Motor.Enabled)
	require.Equal(t, motor.ModeAutomatic, app.controller.Mode())

	app.handleConduitEvent(time.Now(), ConduitEvent{Err: io.EOF})

	assert.False(t, app.controller.Status().Motor.Enabled)
	assert.Equal(t, motor.ModeManual, app.controller.Mode())
	_, active := hw.PWM(app.opts.Device.Pins.Enable)
	assert.False(t, active)
	assert.True(t, app.diag.IsPresent(motor.FaultCommandLinkLost))
	assert.Equal(t, ConduitFaulted, app.commands.State())
}

func TestMotorApp_OversizedCommandKeepsLink(t *testing.T) {
	app, _ := newTestApp(t)
	app.dispatch("bridge", "on")

	app.handleConduitEvent(time.Now(), ConduitEvent{Err: ErrCommandTooLong})

	assert.True(t, app.controller.Status().Motor.Enabled)
	assert.False(t, app.diag.IsPresent(motor.FaultCommandLinkLost))
}

func TestMotorApp_RunStopsMotorWhenBridgeCloses(t *testing.T) {
	app, _ := newTestApp(t)
	cancel, done := runApp(app)
	defer cancel()

	w := openWriter(t, app.opts.CommandFIFO)
	_, err := w.WriteString("auto 1500\n")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	require.Eventually(t, func() bool {
		return app.diag.IsPresent(motor.FaultCommandLinkLost)
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	waitDone(t, done)

	// The command ran before the link dropped
	assert.Equal(t, 1500.0, app.controller.Target())
	assert.False(t, app.controller.Status().Motor.Enabled)
	assert.Equal(t, motor.ModeManual, app.controller.Mode())
}

func TestMotorApp_QuitCommandStopsLoop(t *testing.T) {
	app, _ := newTestApp(t)
	cancel, done := runApp(app)
	defer cancel()

	w := openWriter(t, app.opts.CommandFIFO)
	defer w.Close()
	_, err := w.WriteString("q\n")
	require.NoError(t, err)

	waitDone(t, done)
}

func TestMotorApp_DispatchRules(t *testing.T) {
	app, _ := newTestApp(t)

	app.dispatch("console", "s 40")
	app.dispatch("console", "on")
	assert.Equal(t, 40, app.controller.Status().Motor.Speed)

	app.dispatch("console", "auto 1000")
	speed := app.controller.Status().Motor.Speed

	// Rejected in automatic mode
	app.dispatch("console", "s 90")
	app.dispatch("console", "+")
	assert.Equal(t, speed, app.controller.Status().Motor.Speed)

	// Malformed and empty lines change nothing
	before := app.controller.Status()
	app.dispatch("bridge", "bogus")
	app.dispatch("bridge", "auto fast")
	app.dispatch("bridge", "\r\n")
	assert.Equal(t, before, app.controller.Status())

	app.dispatch("console", "manual")
	app.dispatch("console", "s 90")
	assert.Equal(t, 90, app.controller.Status().Motor.Speed)
}

func TestMotorApp_PeriodicPublishesStatus(t *testing.T) {
	app, _ := newTestApp(t)

	db, mock := redismock.NewClientMock()
	app.ipcTx = NewIPCTx(newTestLogger(), db)

	r, err := unix.Open(app.opts.StatusFIFO, unix.O_RDONLY|unix.O_NONBLOCK, 0)
	require.NoError(t, err)
	defer unix.Close(r)

	now := time.Now()
	app.reconnect(now)
	require.True(t, app.status.IsOpen())

	mock.ExpectHSet("motor",
		"rpm", "321.50",
		"target-rpm", "0.00",
		"speed", "0",
		"direction", "forward",
		"state", "off",
		"mode", "manual",
	).SetVal(6)
	mock.ExpectPublish("motor", "state").SetVal(0)
	mock.ExpectPublish("motor", "mode").SetVal(0)

	app.rpm.Store(321.5)
	app.periodic(now)

	buf := make([]byte, 64)
	n, err := unix.Read(r, buf)
	require.NoError(t, err)
	assert.Equal(t, "rpm:321.50\n", string(buf[:n]))
	assert.NoError(t, mock.ExpectationsWereMet())

	app.ipcTx = NewIPCTx(newTestLogger(), nil)
}

func TestMotorApp_StatusReaderLossKeepsMotorRunning(t *testing.T) {
	app, _ := newTestApp(t)
	app.dispatch("console", "on")

	r, err := unix.Open(app.opts.StatusFIFO, unix.O_RDONLY|unix.O_NONBLOCK, 0)
	require.NoError(t, err)
	now := time.Now()
	app.reconnect(now)
	require.True(t, app.status.IsOpen())
	require.NoError(t, unix.Close(r))

	app.periodic(now)

	assert.Equal(t, ConduitFaulted, app.status.State())
	assert.True(t, app.diag.IsPresent(motor.FaultStatusLinkLost))
	assert.True(t, app.controller.Status().Motor.Enabled)
	assert.Equal(t, motor.ModeManual, app.controller.Mode())
}

func TestMotorApp_PeriodicRunsPID(t *testing.T) {
	app, _ := newTestApp(t)

	app.dispatch("bridge", "auto 1500")
	require.Equal(t, 30, app.controller.Status().Motor.Speed)

	app.rpm.Store(0)
	app.periodic(time.Now())

	assert.Equal(t, 32, app.controller.Status().Motor.Speed)
}

func TestMotorApp_DestroyStopsEverything(t *testing.T) {
	app, hw := newTestApp(t)
	app.dispatch("console", "on")
	require.True(t, app.controller.Status().Motor.Enabled)

	app.Destroy()

	assert.False(t, app.controller.Status().Motor.Enabled)
	_, active := hw.PWM(app.opts.Device.Pins.Enable)
	assert.False(t, active)
	assert.False(t, hw.Level(app.opts.Device.Pins.LED))
	assert.True(t, hw.Closed())

	// Second call is a no-op
	app.Destroy()
}
