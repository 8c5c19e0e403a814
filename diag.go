package main

import (
	"context"
	"strconv"
	"sync"

	"motor-service/motor"

	"github.com/go-redis/redis/v8"
)

const (
	diagGroupName           = "motor"
	diagFaultSetKey         = "motor:fault"
	diagEventStream         = "events:faults"
	diagEventStreamMaxLen   = 1000
	diagNotificationChannel = "motor"
)

// Diag tracks fault presence and reports transitions. Without Redis it only logs.
type Diag struct {
	log         *LeveledLogger
	redis       *redis.Client
	mu          sync.RWMutex
	faultStates map[motor.MotorFault]bool
	ctx         context.Context
}

func NewDiag(logger *LeveledLogger, redis *redis.Client) *Diag {
	return &Diag{
		log:         logger,
		redis:       redis,
		faultStates: make(map[motor.MotorFault]bool),
		ctx:         context.Background(),
	}
}

func (d *Diag) Destroy() {}

func (d *Diag) IsPresent(fault motor.MotorFault) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.faultStates[fault]
}

// SetFaultPresence records a fault and reports it only when its presence changes.
func (d *Diag) SetFaultPresence(fault motor.MotorFault, present bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if fault == motor.FaultNone {
		return
	}

	if d.faultStates[fault] == present {
		return
	}

	config, ok := motor.GetFaultConfig(fault)
	if !ok {
		d.log.Warn("Unknown fault code: %d", fault)
		return
	}

	d.faultStates[fault] = present

	if present {
		if config.Severity == motor.SeverityCritical {
			d.log.Error("Fault set: code=%d, description=%s", fault, config.Description)
		} else {
			d.log.Warn("Fault set: code=%d, description=%s", fault, config.Description)
		}
		d.reportFaultPresent(fault, config)
	} else {
		d.log.Info("Fault cleared: code=%d, description=%s", fault, config.Description)
		d.reportFaultAbsent(fault)
	}
}

// ReportEvent logs a one-shot fault event to the stream without tracking presence.
func (d *Diag) ReportEvent(fault motor.MotorFault, detail string) {
	config, ok := motor.GetFaultConfig(fault)
	if !ok {
		return
	}
	d.log.Warn("%s: %s", config.Description, detail)

	if d.redis == nil {
		return
	}

	err := d.redis.XAdd(d.ctx, &redis.XAddArgs{
		Stream: diagEventStream,
		MaxLen: diagEventStreamMaxLen,
		Values: []interface{}{
			"group", diagGroupName,
			"code", strconv.Itoa(int(fault)),
			"description", config.Description,
			"detail", detail,
		},
	}).Err()
	if err != nil {
		d.log.Warn("Failed to report fault event: %v", err)
	}
}

func (d *Diag) reportFaultPresent(fault motor.MotorFault, config motor.FaultConfig) {
	if d.redis == nil {
		return
	}

	code := strconv.Itoa(int(fault))
	pipe := d.redis.Pipeline()

	pipe.SAdd(d.ctx, diagFaultSetKey, code)

	pipe.XAdd(d.ctx, &redis.XAddArgs{
		Stream: diagEventStream,
		MaxLen: diagEventStreamMaxLen,
		Values: []interface{}{
			"group", diagGroupName,
			"code", code,
			"description", config.Description,
		},
	})

	pipe.Publish(d.ctx, diagNotificationChannel, "fault")

	if _, err := pipe.Exec(d.ctx); err != nil {
		d.log.Warn("Failed to report fault present: %v", err)
	}
}

func (d *Diag) reportFaultAbsent(fault motor.MotorFault) {
	if d.redis == nil {
		return
	}

	pipe := d.redis.Pipeline()

	pipe.SRem(d.ctx, diagFaultSetKey, strconv.Itoa(int(fault)))

	pipe.XAdd(d.ctx, &redis.XAddArgs{
		Stream: diagEventStream,
		MaxLen: diagEventStreamMaxLen,
		Values: []interface{}{
			"group", diagGroupName,
			"code", strconv.Itoa(-int(fault)),
		},
	})

	pipe.Publish(d.ctx, diagNotificationChannel, "fault")

	if _, err := pipe.Exec(d.ctx); err != nil {
		d.log.Warn("Failed to report fault absent: %v", err)
	}
}
