package motor

import (
	"context"
	"sync"
	"time"
)

// RPMCell is the shared speed estimate. Every read and write takes the same lock and
// holds it only for the copy.
type RPMCell struct {
	mu  sync.Mutex
	rpm float64
}

func (c *RPMCell) Load() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rpm
}

func (c *RPMCell) Store(rpm float64) {
	c.mu.Lock()
	c.rpm = rpm
	c.mu.Unlock()
}

// Sampler is the sampling context: it polls the blade sensor, logs edges and
// periodically recomputes the RPM estimate.
type Sampler struct {
	logger Logger
	hw     HardwarePort
	cfg    EstimatorConfig
	pin    int
	rpm    *RPMCell

	pulses     PulseLog
	lastState  bool
	primed     bool
	lastUpdate uint32
	updated    bool

	wg      sync.WaitGroup
	cancel  context.CancelFunc
	started bool
}

func NewSampler(logger Logger, hw HardwarePort, cfg Config, rpm *RPMCell) *Sampler {
	return &Sampler{
		logger: orNop(logger),
		hw:     hw,
		cfg:    cfg.Estimator,
		pin:    cfg.Pins.Sensor,
		rpm:    rpm,
	}
}

// RecordEdge logs the current tick as a blade pass.
func (s *Sampler) RecordEdge() {
	s.pulses.Record(s.hw.Tick())
}

// RecomputeEstimate publishes the windowed estimate at now.
func (s *Sampler) RecomputeEstimate(now uint32) float64 {
	rpm := s.pulses.Estimate(now, s.cfg.Window, s.cfg.BladesPerRevolution)
	s.rpm.Store(rpm)
	return rpm
}

// Step runs one sampling iteration: edge detection, then the estimate when due.
func (s *Sampler) Step() {
	level := s.hw.DigitalRead(s.pin)
	if !s.primed {
		s.lastState = level
		s.primed = true
	} else if level != s.lastState {
		s.RecordEdge()
		s.lastState = level
	}

	now := s.hw.Tick()
	if !s.updated {
		s.lastUpdate = now
		s.updated = true
	}

	if TickAge(now, s.lastUpdate) >= durationToTicks(s.cfg.UpdateInterval) {
		s.RecomputeEstimate(now)
		s.lastUpdate = now
	}
}

// Start launches the sampling goroutine.
func (s *Sampler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.started = true
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		s.logger.Info("RPM sampling started (window=%v, blades=%d)", s.cfg.Window, s.cfg.BladesPerRevolution)

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("RPM sampling stopped")
				return
			default:
			}

			s.Step()
			time.Sleep(s.cfg.SampleInterval)
		}
	}()
}

// Stop cancels the sampling goroutine and waits for it to exit, so no write to the
// RPM cell can happen afterwards.
func (s *Sampler) Stop() {
	if !s.started {
		return
	}
	s.cancel()
	s.wg.Wait()
	s.started = false
}
