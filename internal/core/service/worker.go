package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/dafproject/daf/internal/core/domain"
	"github.com/dafproject/daf/internal/core/port"
	"github.com/dafproject/daf/internal/module"
)

// WorkerConfig carries the worker runtime knobs.
type WorkerConfig struct {
	ID                string
	Host              string
	Port              int
	Capabilities      []string
	Slots             int64
	MemoryLimitMB     int
	HeartbeatInterval time.Duration
	PullIdleSleep     time.Duration
	RegisterAttempts  int
}

func (c *WorkerConfig) withDefaults() {
	if c.Slots <= 0 {
		c.Slots = 1
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 5 * time.Second
	}
	if c.PullIdleSleep <= 0 {
		c.PullIdleSleep = time.Second
	}
	if c.RegisterAttempts <= 0 {
		c.RegisterAttempts = 10
	}
}

// Worker pulls tasks from the coordinator and executes them through the
// module registry. One Worker runs one registration identity; Slots
// bounds concurrent task execution.
type Worker struct {
	cfg     WorkerConfig
	client  port.CoordinatorClient
	modules *module.Registry
	slots   *semaphore.Weighted
	log     *zap.Logger
}

func NewWorker(cfg WorkerConfig, client port.CoordinatorClient, modules *module.Registry, log *zap.Logger) *Worker {
	cfg.withDefaults()
	return &Worker{
		cfg:     cfg,
		client:  client,
		modules: modules,
		slots:   semaphore.NewWeighted(cfg.Slots),
		log:     log,
	}
}

// Run registers with the coordinator and drives the heartbeat and pull
// loops until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.register(ctx); err != nil {
		return err
	}

	go w.heartbeatLoop(ctx)
	return w.pullLoop(ctx)
}

// register retries with linearly growing backoff so workers started
// before the coordinator still come up.
func (w *Worker) register(ctx context.Context) error {
	worker := &domain.Worker{
		ID:           w.cfg.ID,
		Host:         w.cfg.Host,
		Port:         w.cfg.Port,
		Capabilities: w.cfg.Capabilities,
	}

	var err error
	for i := 1; i <= w.cfg.RegisterAttempts; i++ {
		if err = w.client.Register(ctx, worker); err == nil {
			w.log.Info("worker registered",
				zap.String("worker_id", w.cfg.ID),
				zap.Strings("capabilities", w.cfg.Capabilities))
			return nil
		}
		w.log.Warn("registration failed, retrying",
			zap.Int("attempt", i),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(i) * 2 * time.Second):
		}
	}
	return fmt.Errorf("register worker %s: %w", w.cfg.ID, err)
}

func (w *Worker) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.client.Heartbeat(ctx, w.cfg.ID); err != nil {
				w.log.Error("heartbeat failed", zap.Error(err))
			} else {
				w.log.Debug("heartbeat sent")
			}
		}
	}
}

// pullLoop asks for work whenever a slot is free and sleeps briefly when
// the coordinator has nothing.
func (w *Worker) pullLoop(ctx context.Context) error {
	for {
		if err := w.slots.Acquire(ctx, 1); err != nil {
			return err
		}

		assignment, err := w.client.Pull(ctx, w.cfg.ID)
		if err != nil {
			w.slots.Release(1)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			if !errors.Is(err, port.ErrNotFound) {
				w.log.Error("pull failed", zap.Error(err))
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.cfg.PullIdleSleep):
			}
			continue
		}

		go func() {
			defer w.slots.Release(1)
			w.execute(ctx, assignment)
		}()
	}
}

// execute runs one task attempt through its module and reports the
// outcome. A module panic fails the attempt instead of killing the
// worker.
func (w *Worker) execute(ctx context.Context, a *port.TaskAssignment) {
	task := a.Task
	w.log.Info("executing task",
		zap.String("task_id", task.ID),
		zap.String("kind", string(task.Kind)),
		zap.Int("attempt", task.Attempts))

	outputRef, err := w.runModule(ctx, a)
	if err != nil {
		w.log.Warn("task failed",
			zap.String("task_id", task.ID),
			zap.Error(err))
		if rerr := w.client.Fail(ctx, task.ID, err.Error()); rerr != nil {
			w.log.Error("failure report failed", zap.String("task_id", task.ID), zap.Error(rerr))
		}
		return
	}

	if err := w.client.Complete(ctx, task.ID, outputRef); err != nil {
		w.log.Error("completion report failed", zap.String("task_id", task.ID), zap.Error(err))
		return
	}
	w.log.Info("task completed",
		zap.String("task_id", task.ID),
		zap.String("output_ref", outputRef))
}

func (w *Worker) runModule(ctx context.Context, a *port.TaskAssignment) (ref string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("module panic: %v", r)
		}
	}()

	mod, err := w.modules.Resolve(a.ModuleName)
	if err != nil {
		return "", err
	}

	task := a.Task
	in := module.NewInput(task.ID, task.JobID, task.InputRefs, configParams(a.Config), w.cfg.MemoryLimitMB)
	out := module.NewOutput(task.ID + ":output")

	switch task.Kind {
	case domain.TaskKindMap:
		err = mod.Map(ctx, in, out)
	case domain.TaskKindReduce:
		err = mod.Reduce(ctx, task.JobID, in, out)
	default:
		err = fmt.Errorf("unknown task kind %q", task.Kind)
	}
	if err != nil {
		return "", err
	}
	return out.Result(), nil
}

// configParams flattens the job's raw config blob into string params.
// Non-object blobs yield an empty map, scalar values are rendered with
// their JSON encoding stripped of quotes.
func configParams(raw string) map[string]string {
	params := make(map[string]string)
	if raw == "" {
		return params
	}
	var blob map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &blob); err != nil {
		return params
	}
	for k, v := range blob {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			params[k] = s
			continue
		}
		params[k] = string(v)
	}
	return params
}
