package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dafproject/daf/internal/core/domain"
	"github.com/dafproject/daf/internal/core/port"
)

// ErrUnknownWorker is returned for heartbeats from workers that never
// registered or whose record has expired.
var ErrUnknownWorker = errors.New("unknown worker")

// workerAuditTTL keeps evicted worker hashes around for a day.
const workerAuditTTL = 24 * time.Hour

// RegistryConfig tunes liveness tracking.
type RegistryConfig struct {
	WorkerTimeout          time.Duration // default 300s
	HeartbeatCheckInterval time.Duration // default 30s
}

// Registry tracks the live worker fleet in the store. The active_workers
// set is advisory cache over worker:<id> heartbeats; membership implies an
// active status and a fresh heartbeat, and the sweep restores that
// invariant whenever it is violated.
type Registry struct {
	store   port.Store
	cfg     RegistryConfig
	log     *zap.Logger
	now     func() time.Time
	onEvict func(ctx context.Context, workerID string)
}

var _ port.WorkerRegistry = (*Registry)(nil)

func NewRegistry(store port.Store, cfg RegistryConfig, log *zap.Logger) *Registry {
	if cfg.WorkerTimeout <= 0 {
		cfg.WorkerTimeout = 300 * time.Second
	}
	if cfg.HeartbeatCheckInterval <= 0 {
		cfg.HeartbeatCheckInterval = 30 * time.Second
	}
	return &Registry{
		store: store,
		cfg:   cfg,
		log:   log,
		now:   time.Now,
	}
}

// OnEvict installs the scheduler callback that requeues an evicted
// worker's in-flight tasks. Must be set before Run.
func (r *Registry) OnEvict(fn func(ctx context.Context, workerID string)) {
	r.onEvict = fn
}

// Register creates or overwrites the worker record and admits it to the
// active set. Idempotent; a re-registration after eviction recreates the
// record.
func (r *Registry) Register(ctx context.Context, w *domain.Worker) error {
	w.Status = domain.WorkerStatusActive
	w.LastHeartbeat = r.now().Unix()
	if err := r.store.HSetAll(ctx, domain.WorkerKey(w.ID), w.Fields()); err != nil {
		return fmt.Errorf("register worker %s: %w", w.ID, err)
	}
	if err := r.store.SAdd(ctx, domain.ActiveWorkersKey, w.ID); err != nil {
		return fmt.Errorf("register worker %s: %w", w.ID, err)
	}
	r.log.Info("worker registered",
		zap.String("worker_id", w.ID),
		zap.String("host", w.Host),
		zap.Int("port", w.Port),
		zap.Strings("capabilities", w.Capabilities))
	return nil
}

// Heartbeat refreshes last_heartbeat and re-admits an evicted worker to
// the active set. Draining workers keep their status.
func (r *Registry) Heartbeat(ctx context.Context, workerID string) error {
	key := domain.WorkerKey(workerID)
	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return err
	}
	if !exists {
		return ErrUnknownWorker
	}
	if err := r.store.HSet(ctx, key, "last_heartbeat", formatUnix(r.now())); err != nil {
		return err
	}
	status, err := r.store.HGet(ctx, key, "status")
	if err != nil && !errors.Is(err, port.ErrNotFound) {
		return err
	}
	if domain.WorkerStatus(status) == domain.WorkerStatusDraining {
		return nil
	}
	if domain.WorkerStatus(status) == domain.WorkerStatusInactive {
		if err := r.store.HSet(ctx, key, "status", string(domain.WorkerStatusActive)); err != nil {
			return err
		}
	}
	return r.store.SAdd(ctx, domain.ActiveWorkersKey, workerID)
}

// Active returns workers with fresh heartbeats. Members failing the
// freshness check are evicted inside the same sweep.
func (r *Registry) Active(ctx context.Context) ([]*domain.Worker, error) {
	ids, err := r.store.SMembers(ctx, domain.ActiveWorkersKey)
	if err != nil {
		return nil, err
	}
	cutoff := r.now().Unix() - int64(r.cfg.WorkerTimeout/time.Second)
	var active []*domain.Worker
	for _, id := range ids {
		fields, err := r.store.HGetAll(ctx, domain.WorkerKey(id))
		if err != nil {
			return nil, err
		}
		if len(fields) == 0 {
			// Hash expired out from under the set.
			if err := r.evict(ctx, id); err != nil {
				return nil, err
			}
			continue
		}
		w := domain.WorkerFromFields(id, fields)
		if w.LastHeartbeat <= cutoff {
			if err := r.evict(ctx, id); err != nil {
				return nil, err
			}
			continue
		}
		active = append(active, w)
	}
	return active, nil
}

// Drain marks a worker as draining: no new dispatch, in-flight tasks
// continue.
func (r *Registry) Drain(ctx context.Context, workerID string) error {
	key := domain.WorkerKey(workerID)
	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return err
	}
	if !exists {
		return ErrUnknownWorker
	}
	if err := r.store.HSet(ctx, key, "status", string(domain.WorkerStatusDraining)); err != nil {
		return err
	}
	if err := r.store.SRem(ctx, domain.ActiveWorkersKey, workerID); err != nil {
		return err
	}
	r.log.Info("worker draining", zap.String("worker_id", workerID))
	return nil
}

// GetWorker reads a single worker record.
func (r *Registry) GetWorker(ctx context.Context, workerID string) (*domain.Worker, error) {
	fields, err := r.store.HGetAll(ctx, domain.WorkerKey(workerID))
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, ErrUnknownWorker
	}
	return domain.WorkerFromFields(workerID, fields), nil
}

func (r *Registry) evict(ctx context.Context, workerID string) error {
	if err := r.store.SRem(ctx, domain.ActiveWorkersKey, workerID); err != nil {
		return err
	}
	key := domain.WorkerKey(workerID)
	if err := r.store.HSet(ctx, key, "status", string(domain.WorkerStatusInactive)); err != nil {
		return err
	}
	// Keep the hash for audit, expired by the store.
	if err := r.store.Expire(ctx, key, workerAuditTTL); err != nil && !errors.Is(err, port.ErrNotFound) {
		return err
	}
	r.log.Info("worker evicted", zap.String("worker_id", workerID))
	if r.onEvict != nil {
		r.onEvict(ctx, workerID)
	}
	return nil
}

// Run drives the eviction loop until ctx is cancelled.
func (r *Registry) Run(ctx context.Context) error {
	r.log.Info("worker eviction loop started",
		zap.Duration("interval", r.cfg.HeartbeatCheckInterval),
		zap.Duration("worker_timeout", r.cfg.WorkerTimeout))
	ticker := time.NewTicker(r.cfg.HeartbeatCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("worker eviction loop stopped")
			return nil
		case <-ticker.C:
			if _, err := r.Active(ctx); err != nil {
				r.log.Error("worker sweep failed", zap.Error(err))
			}
		}
	}
}

func formatUnix(t time.Time) string {
	return fmt.Sprintf("%d", t.Unix())
}
