package main

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/go-redis/redis/v8"
)

const (
	ipcStatusKey     = "motor"
	ipcStatusChannel = "motor"
)

// IPCTx mirrors the motor status into the "motor" hash. A nil client disables it.
type IPCTx struct {
	log   *LeveledLogger
	redis *redis.Client
	mu    sync.Mutex
	ctx   context.Context

	published bool
	lastState string
	lastMode  string
}

func NewIPCTx(logger *LeveledLogger, redis *redis.Client) *IPCTx {
	return &IPCTx{
		log:   logger,
		redis: redis,
		ctx:   context.Background(),
	}
}

func (tx *IPCTx) Destroy() {}

// SendStatus writes every field and publishes only the fields that changed.
func (tx *IPCTx) SendStatus(data MotorStatus) error {
	if tx.redis == nil {
		return nil
	}

	tx.mu.Lock()
	defer tx.mu.Unlock()

	state := data.StateString()
	mode := data.ModeString()

	pipe := tx.redis.Pipeline()

	pipe.HSet(tx.ctx, ipcStatusKey,
		"rpm", strconv.FormatFloat(data.RPM, 'f', 2, 64),
		"target-rpm", strconv.FormatFloat(data.TargetRPM, 'f', 2, 64),
		"speed", strconv.Itoa(data.Speed),
		"direction", data.Direction.String(),
		"state", state,
		"mode", mode,
	)

	if !tx.published || state != tx.lastState {
		pipe.Publish(tx.ctx, ipcStatusChannel, "state")
	}
	if !tx.published || mode != tx.lastMode {
		pipe.Publish(tx.ctx, ipcStatusChannel, "mode")
	}

	if _, err := pipe.Exec(tx.ctx); err != nil {
		return fmt.Errorf("failed to send motor status: %w", err)
	}

	tx.published = true
	tx.lastState = state
	tx.lastMode = mode
	return nil
}
