// Package service holds the coordinator- and worker-side control-plane
// services. Every durable mutation goes through the store; in-process
// state is advisory cache only.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dafproject/daf/internal/adapter/monitoring/prometheus"
	"github.com/dafproject/daf/internal/core/domain"
	"github.com/dafproject/daf/internal/core/port"
)

// ErrTerminalJob is returned for state transitions on a job that already
// reached completed, failed or cancelled.
var ErrTerminalJob = errors.New("job is terminal")

// SchedulerConfig tunes admission, retry and retention behavior.
type SchedulerConfig struct {
	JobProcessingInterval time.Duration // default 2s
	MaxTaskAttempts       int           // default 3
	ResultTTL             time.Duration // default 1h
	RetentionInterval     time.Duration // default 1h
	DefaultFanout         int           // default 5
}

// jobConfig is the subset of the opaque job config blob the scheduler
// understands. Everything else passes through to the module untouched.
type jobConfig struct {
	Fanout         int      `json:"fanout"`
	NumMapTasks    int      `json:"num_map_tasks"`
	NumReduceTasks int      `json:"num_reduce_tasks"`
	Capability     string   `json:"capability"`
	InputPaths     []string `json:"input_paths"`
}

// Scheduler owns every Job and Task status transition. It is the only
// writer of job aggregates, serialized by mu; workers only touch the
// store through the pull/report handlers that land here.
type Scheduler struct {
	store    port.Store
	registry port.WorkerRegistry
	archive  port.JobArchive // optional
	metrics  *prometheus.Metrics
	cfg      SchedulerConfig
	log      *zap.Logger

	mu  sync.Mutex
	now func() time.Time
}

var _ port.Scheduler = (*Scheduler)(nil)

func NewScheduler(
	store port.Store,
	registry port.WorkerRegistry,
	archive port.JobArchive,
	metrics *prometheus.Metrics,
	cfg SchedulerConfig,
	log *zap.Logger,
) *Scheduler {
	if cfg.JobProcessingInterval <= 0 {
		cfg.JobProcessingInterval = 2 * time.Second
	}
	if cfg.MaxTaskAttempts <= 0 {
		cfg.MaxTaskAttempts = 3
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = time.Hour
	}
	if cfg.RetentionInterval <= 0 {
		cfg.RetentionInterval = time.Hour
	}
	if cfg.DefaultFanout <= 0 {
		cfg.DefaultFanout = 5
	}
	return &Scheduler{
		store:    store,
		registry: registry,
		archive:  archive,
		metrics:  metrics,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// SubmitJob admits a job: persists the record, queues it for
// materialization and bumps the submission counter.
func (s *Scheduler) SubmitJob(ctx context.Context, moduleName, config string) (*domain.Job, error) {
	if moduleName == "" {
		return nil, fmt.Errorf("module_name is required")
	}
	job := &domain.Job{
		ID:         newJobID(s.now()),
		ModuleName: moduleName,
		Config:     config,
		Status:     domain.JobStatusPending,
		CreatedAt:  s.now().Unix(),
	}
	if err := s.store.HSetAll(ctx, domain.JobKey(job.ID), job.Fields()); err != nil {
		return nil, fmt.Errorf("submit job: %w", err)
	}
	if err := s.store.RPush(ctx, domain.JobQueueKey, job.ID); err != nil {
		return nil, fmt.Errorf("submit job: %w", err)
	}
	if _, err := s.store.Incr(ctx, domain.StatsTotalJobsKey); err != nil {
		s.log.Warn("stats counter increment failed", zap.Error(err))
	}
	s.metrics.JobSubmitted()
	s.log.Info("job submitted",
		zap.String("job_id", job.ID),
		zap.String("module", moduleName))
	return job, nil
}

// GetJob reads a job record. Returns port.ErrNotFound when absent.
func (s *Scheduler) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	fields, err := s.store.HGetAll(ctx, domain.JobKey(jobID))
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, port.ErrNotFound
	}
	return domain.JobFromFields(jobID, fields), nil
}

// CancelJob marks a job cancelled. Pending tasks are discarded lazily by
// the pull handler; in-flight tasks run to completion without advancing
// the job.
func (s *Scheduler) CancelJob(ctx context.Context, jobID string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Terminal() {
		return nil, ErrTerminalJob
	}
	job.Status = domain.JobStatusCancelled
	job.CancelledAt = s.now().Unix()
	key := domain.JobKey(jobID)
	if err := s.store.HSet(ctx, key, "status", string(job.Status)); err != nil {
		return nil, err
	}
	if err := s.store.HSet(ctx, key, "cancelled_at", strconv.FormatInt(job.CancelledAt, 10)); err != nil {
		return nil, err
	}
	s.metrics.JobCancelled()
	s.log.Info("job cancelled", zap.String("job_id", jobID))
	return job, nil
}

// PullTask dequeues one task for a worker, claiming it atomically via the
// queue pop. The parent job rides along with the claim so callers never
// re-read it afterwards. Returns port.ErrNotFound when no task is
// available.
func (s *Scheduler) PullTask(ctx context.Context, workerID string) (*domain.Task, *domain.Job, error) {
	worker, err := s.registry.GetWorker(ctx, workerID)
	if err != nil {
		return nil, nil, err
	}
	if worker.Status != domain.WorkerStatusActive {
		return nil, nil, port.ErrNotFound
	}

	caps := worker.Capabilities
	if len(caps) == 0 {
		caps = []string{domain.DefaultCapability}
	}
	for _, cap := range caps {
		task, job, err := s.pullFromQueue(ctx, domain.TaskQueueKey(cap), workerID)
		if err != nil {
			if errors.Is(err, port.ErrNotFound) {
				continue
			}
			return nil, nil, err
		}
		return task, job, nil
	}
	return nil, nil, port.ErrNotFound
}

// pullFromQueue pops until it claims a dispatchable task. Tasks of
// cancelled jobs are discarded here, which is the lazy half of
// cancellation.
func (s *Scheduler) pullFromQueue(ctx context.Context, queue, workerID string) (*domain.Task, *domain.Job, error) {
	for {
		taskID, err := s.store.LPop(ctx, queue)
		if err != nil {
			return nil, nil, err
		}
		task, job, err := s.claimTask(ctx, taskID, workerID)
		if err != nil {
			return nil, nil, err
		}
		if task == nil {
			continue
		}
		return task, job, nil
	}
}

// claimTask transitions one popped task to assigned under the state
// mutex, so the claim cannot interleave with a report or an eviction
// requeue. A nil task means the queue entry was stale and the caller
// keeps popping.
func (s *Scheduler) claimTask(ctx context.Context, taskID, workerID string) (*domain.Task, *domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fields, err := s.store.HGetAll(ctx, domain.TaskKey(taskID))
	if err != nil {
		return nil, nil, err
	}
	if len(fields) == 0 {
		return nil, nil, nil // record swept while queued
	}
	task := domain.TaskFromFields(taskID, fields)
	if task.Status != domain.TaskStatusPending {
		// A report beat the queue entry to the record. Dispatching it
		// again would double-count its outcome.
		s.log.Debug("skipping stale queue entry", zap.String("task_id", taskID))
		return nil, nil, nil
	}

	job, err := s.GetJob(ctx, task.JobID)
	if err != nil && !errors.Is(err, port.ErrNotFound) {
		return nil, nil, err
	}
	if job == nil || job.Status == domain.JobStatusCancelled {
		if err := s.store.Delete(ctx, domain.TaskKey(taskID)); err != nil {
			return nil, nil, err
		}
		s.log.Debug("discarded task of cancelled job", zap.String("task_id", taskID))
		return nil, nil, nil
	}

	task.Status = domain.TaskStatusAssigned
	task.AssignedWorker = workerID
	task.AssignedAt = s.now().Unix()
	task.Attempts++
	if err := s.store.HSetAll(ctx, domain.TaskKey(taskID), task.Fields()); err != nil {
		return nil, nil, err
	}
	s.bumpWorkerTasks(ctx, workerID, 1)
	s.log.Info("task assigned",
		zap.String("task_id", taskID),
		zap.String("worker_id", workerID),
		zap.Int("attempt", task.Attempts))
	return task, job, nil
}

// ReportTask records a worker's outcome for a task attempt and advances
// the parent job. Reports for already-terminal tasks are ignored.
func (s *Scheduler) ReportTask(ctx context.Context, taskID string, outcome port.TaskOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fields, err := s.store.HGetAll(ctx, domain.TaskKey(taskID))
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		return port.ErrNotFound
	}
	task := domain.TaskFromFields(taskID, fields)
	if task.Terminal() {
		return nil
	}
	if task.AssignedWorker != "" {
		s.bumpWorkerTasks(ctx, task.AssignedWorker, -1)
	}

	if outcome.Failed {
		return s.reportFailed(ctx, task, outcome.Error)
	}
	return s.reportCompleted(ctx, task, outcome.OutputRef)
}

func (s *Scheduler) reportCompleted(ctx context.Context, task *domain.Task, outputRef string) error {
	task.Status = domain.TaskStatusCompleted
	task.OutputRef = outputRef
	task.Error = ""
	task.CompletedAt = s.now().Unix()
	if err := s.store.HSetAll(ctx, domain.TaskKey(task.ID), task.Fields()); err != nil {
		return err
	}
	s.metrics.TaskCompleted()
	s.log.Info("task completed",
		zap.String("task_id", task.ID),
		zap.Int("attempts", task.Attempts))
	return s.advanceJob(ctx, task.JobID, false)
}

func (s *Scheduler) reportFailed(ctx context.Context, task *domain.Task, errMsg string) error {
	if task.Attempts < s.cfg.MaxTaskAttempts {
		queue, err := s.taskQueueForJob(ctx, task.JobID)
		if err != nil {
			return err
		}
		task.Status = domain.TaskStatusPending
		task.AssignedWorker = ""
		task.AssignedAt = 0
		task.Error = errMsg
		if err := s.store.HSetAll(ctx, domain.TaskKey(task.ID), task.Fields()); err != nil {
			return err
		}
		if err := s.store.RPush(ctx, queue, task.ID); err != nil {
			return err
		}
		s.metrics.TaskRetried()
		s.log.Warn("task failed, retrying",
			zap.String("task_id", task.ID),
			zap.Int("attempts", task.Attempts),
			zap.String("error", errMsg))
		return nil
	}

	task.Status = domain.TaskStatusFailed
	task.Error = errMsg
	task.CompletedAt = s.now().Unix()
	if err := s.store.HSetAll(ctx, domain.TaskKey(task.ID), task.Fields()); err != nil {
		return err
	}
	s.metrics.TaskFailed()
	s.log.Error("task failed permanently",
		zap.String("task_id", task.ID),
		zap.Int("attempts", task.Attempts),
		zap.String("error", errMsg))
	return s.advanceJob(ctx, task.JobID, true)
}

// advanceJob folds one terminal task outcome into the parent job's
// aggregates. Terminal jobs absorb late results without state change.
func (s *Scheduler) advanceJob(ctx context.Context, jobID string, failed bool) error {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, port.ErrNotFound) {
			return nil // parent swept, nothing to advance
		}
		return err
	}
	if job.Terminal() {
		return nil
	}

	if failed {
		job.FailedTasks++
	} else {
		job.CompletedTasks++
	}
	if job.TotalTasks > 0 {
		job.ProgressPercent = int(float64(job.CompletedTasks)/float64(job.TotalTasks)*100 + 0.5)
	}

	done := job.CompletedTasks+job.FailedTasks >= job.TotalTasks && job.TotalTasks > 0
	if done {
		job.CompletedAt = s.now().Unix()
		if job.FailedTasks == 0 {
			job.Status = domain.JobStatusCompleted
		} else {
			job.Status = domain.JobStatusFailed
			job.Error = fmt.Sprintf("%d of %d tasks failed", job.FailedTasks, job.TotalTasks)
		}
	}
	if err := s.store.HSetAll(ctx, domain.JobKey(jobID), job.Fields()); err != nil {
		return err
	}
	if done {
		statsKey := domain.StatsCompletedJobsKey
		if job.Status == domain.JobStatusFailed {
			statsKey = domain.StatsFailedJobsKey
			s.metrics.JobFailed()
		} else {
			s.metrics.JobCompleted()
		}
		if _, err := s.store.Incr(ctx, statsKey); err != nil {
			s.log.Warn("stats counter increment failed", zap.Error(err))
		}
		s.log.Info("job finished",
			zap.String("job_id", jobID),
			zap.String("status", string(job.Status)),
			zap.Int("completed_tasks", job.CompletedTasks),
			zap.Int("failed_tasks", job.FailedTasks))
	}
	return nil
}

// RequeueWorkerTasks resets the in-flight tasks of an evicted worker back
// to pending. The interrupted attempt produced no outcome, so it does not
// count against the retry budget.
func (s *Scheduler) RequeueWorkerTasks(ctx context.Context, workerID string) {
	keys, err := s.store.Keys(ctx, domain.TaskKeyPrefix+"*")
	if err != nil {
		s.log.Error("requeue scan failed", zap.String("worker_id", workerID), zap.Error(err))
		return
	}
	for _, key := range keys {
		taskID := strings.TrimPrefix(key, domain.TaskKeyPrefix)
		if err := s.requeueTask(ctx, taskID, workerID); err != nil {
			s.log.Error("requeue failed", zap.String("task_id", taskID), zap.Error(err))
		}
	}
}

// requeueTask resets one in-flight task under the state mutex. Without
// the lock a late report could land between the read and the write back,
// resurrecting an already-counted task.
func (s *Scheduler) requeueTask(ctx context.Context, taskID, workerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fields, err := s.store.HGetAll(ctx, domain.TaskKey(taskID))
	if err != nil || len(fields) == 0 {
		return err
	}
	task := domain.TaskFromFields(taskID, fields)
	if task.AssignedWorker != workerID {
		return nil
	}
	if task.Status != domain.TaskStatusAssigned && task.Status != domain.TaskStatusRunning {
		return nil
	}
	queue, err := s.taskQueueForJob(ctx, task.JobID)
	if err != nil {
		return err
	}
	task.Status = domain.TaskStatusPending
	task.AssignedWorker = ""
	task.AssignedAt = 0
	if task.Attempts > 0 {
		task.Attempts--
	}
	if err := s.store.HSetAll(ctx, domain.TaskKey(taskID), task.Fields()); err != nil {
		return err
	}
	if err := s.store.RPush(ctx, queue, taskID); err != nil {
		return err
	}
	s.log.Info("task requeued after worker eviction",
		zap.String("task_id", taskID),
		zap.String("worker_id", workerID))
	return nil
}

// Stats assembles the aggregate snapshot for the status endpoint.
func (s *Scheduler) Stats(ctx context.Context) (port.Stats, error) {
	stats := port.Stats{StoreHealthy: s.store.Ping(ctx) == nil}
	stats.TotalJobs = s.readCounter(ctx, domain.StatsTotalJobsKey)
	stats.CompletedJobs = s.readCounter(ctx, domain.StatsCompletedJobsKey)
	stats.FailedJobs = s.readCounter(ctx, domain.StatsFailedJobsKey)
	if n, err := s.store.LLen(ctx, domain.JobQueueKey); err == nil {
		stats.QueuedJobs = n
	}
	workers, err := s.registry.Active(ctx)
	if err != nil {
		return stats, err
	}
	stats.ActiveWorkers = len(workers)
	s.metrics.SetActiveWorkers(len(workers))
	return stats, nil
}

func (s *Scheduler) readCounter(ctx context.Context, key string) int64 {
	v, err := s.store.Get(ctx, key)
	if err != nil {
		return 0
	}
	n, _ := strconv.ParseInt(v, 10, 64)
	return n
}

// Run drives the materialization loop until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("job processing loop started",
		zap.Duration("interval", s.cfg.JobProcessingInterval))
	ticker := time.NewTicker(s.cfg.JobProcessingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("job processing loop stopped")
			return nil
		case <-ticker.C:
			if err := s.processPendingJobs(ctx); err != nil {
				s.log.Error("job processing failed", zap.Error(err))
			}
		}
	}
}

// ProcessPendingJobs runs one materialization pass outside the loop.
// Exposed for embedding and tests.
func (s *Scheduler) ProcessPendingJobs(ctx context.Context) error {
	return s.processPendingJobs(ctx)
}

// processPendingJobs drains the job queue while workers are available.
// With no active workers the popped job goes back to the queue head so
// submission order is preserved.
func (s *Scheduler) processPendingJobs(ctx context.Context) error {
	for {
		jobID, err := s.store.LPop(ctx, domain.JobQueueKey)
		if err != nil {
			if errors.Is(err, port.ErrNotFound) {
				return nil
			}
			return err
		}
		job, err := s.GetJob(ctx, jobID)
		if err != nil {
			if errors.Is(err, port.ErrNotFound) {
				continue
			}
			return err
		}
		if job.Status != domain.JobStatusPending {
			continue // cancelled while queued
		}

		workers, err := s.registry.Active(ctx)
		if err != nil {
			return err
		}
		if len(workers) == 0 {
			s.log.Warn("no active workers, deferring job", zap.String("job_id", jobID))
			return s.store.LPush(ctx, domain.JobQueueKey, jobID)
		}
		if err := s.materializeJob(ctx, job); err != nil {
			s.log.Error("job materialization failed",
				zap.String("job_id", jobID), zap.Error(err))
		}
	}
}

// materializeJob fans a pending job out into task records and queues
// them. Fan-out comes from the config blob, falling back to the default.
func (s *Scheduler) materializeJob(ctx context.Context, job *domain.Job) error {
	var cfg jobConfig
	if job.Config != "" {
		// Tolerate blobs the scheduler does not understand.
		_ = json.Unmarshal([]byte(job.Config), &cfg)
	}

	shards := expandInputPaths(cfg.InputPaths)
	mapCount := cfg.Fanout
	if mapCount <= 0 {
		mapCount = cfg.NumMapTasks
	}
	if mapCount <= 0 {
		mapCount = len(shards)
	}
	if mapCount <= 0 {
		mapCount = s.cfg.DefaultFanout
	}
	reduceCount := cfg.NumReduceTasks
	queue := domain.TaskQueueKey(cfg.Capability)
	now := s.now().Unix()

	job.Status = domain.JobStatusProcessing
	job.StartedAt = now
	job.TotalTasks = mapCount + reduceCount
	if err := s.store.HSetAll(ctx, domain.JobKey(job.ID), job.Fields()); err != nil {
		return err
	}

	mapOutputs := make([]string, 0, mapCount)
	for i := 0; i < mapCount; i++ {
		task := &domain.Task{
			ID:        domain.TaskID(job.ID, domain.TaskKindMap, i),
			JobID:     job.ID,
			Kind:      domain.TaskKindMap,
			Status:    domain.TaskStatusPending,
			InputRefs: shardInputs(job.ID, shards, i, mapCount),
			CreatedAt: now,
		}
		mapOutputs = append(mapOutputs, task.ID+":output")
		if err := s.enqueueTask(ctx, queue, task); err != nil {
			return err
		}
	}
	for i := 0; i < reduceCount; i++ {
		task := &domain.Task{
			ID:        domain.TaskID(job.ID, domain.TaskKindReduce, i),
			JobID:     job.ID,
			Kind:      domain.TaskKindReduce,
			Status:    domain.TaskStatusPending,
			InputRefs: mapOutputs,
			CreatedAt: now,
		}
		if err := s.enqueueTask(ctx, queue, task); err != nil {
			return err
		}
	}

	if depth, err := s.store.LLen(ctx, queue); err == nil {
		s.metrics.SetQueueDepth(strings.TrimPrefix(queue, "task_queue:"), depth)
	}
	s.log.Info("job materialized",
		zap.String("job_id", job.ID),
		zap.Int("map_tasks", mapCount),
		zap.Int("reduce_tasks", reduceCount))
	return nil
}

func (s *Scheduler) enqueueTask(ctx context.Context, queue string, task *domain.Task) error {
	if err := s.store.HSetAll(ctx, domain.TaskKey(task.ID), task.Fields()); err != nil {
		return err
	}
	return s.store.RPush(ctx, queue, task.ID)
}

// RunRetention drives the retention sweep until ctx is cancelled.
func (s *Scheduler) RunRetention(ctx context.Context) error {
	s.log.Info("retention sweep started",
		zap.Duration("interval", s.cfg.RetentionInterval),
		zap.Duration("result_ttl", s.cfg.ResultTTL))
	ticker := time.NewTicker(s.cfg.RetentionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("retention sweep stopped")
			return nil
		case <-ticker.C:
			if err := s.sweepExpired(ctx); err != nil {
				s.log.Error("retention sweep failed", zap.Error(err))
			}
		}
	}
}

// sweepExpired deletes terminal job and task records past result_ttl,
// archiving jobs first when an archive is configured. An archive failure
// leaves the record for the next sweep.
func (s *Scheduler) sweepExpired(ctx context.Context) error {
	cutoff := s.now().Unix() - int64(s.cfg.ResultTTL/time.Second)

	jobKeys, err := s.store.Keys(ctx, domain.JobKeyPrefix+"*")
	if err != nil {
		return err
	}
	for _, key := range jobKeys {
		fields, err := s.store.HGetAll(ctx, key)
		if err != nil || len(fields) == 0 {
			continue
		}
		job := domain.JobFromFields(strings.TrimPrefix(key, domain.JobKeyPrefix), fields)
		if !job.Terminal() || job.TerminalAt() == 0 || job.TerminalAt() > cutoff {
			continue
		}
		if s.archive != nil {
			if err := s.archive.ArchiveJob(ctx, job); err != nil {
				s.log.Warn("job archive failed, retaining record",
					zap.String("job_id", job.ID), zap.Error(err))
				continue
			}
		}
		if err := s.store.Delete(ctx, key); err != nil {
			return err
		}
		s.log.Debug("expired job swept", zap.String("job_id", job.ID))
	}

	taskKeys, err := s.store.Keys(ctx, domain.TaskKeyPrefix+"*")
	if err != nil {
		return err
	}
	for _, key := range taskKeys {
		fields, err := s.store.HGetAll(ctx, key)
		if err != nil || len(fields) == 0 {
			continue
		}
		task := domain.TaskFromFields(strings.TrimPrefix(key, domain.TaskKeyPrefix), fields)
		if !task.Terminal() || task.CompletedAt == 0 || task.CompletedAt > cutoff {
			continue
		}
		if err := s.store.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// taskQueueForJob resolves the capability queue a job's tasks travel on.
func (s *Scheduler) taskQueueForJob(ctx context.Context, jobID string) (string, error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return "", err
	}
	var cfg jobConfig
	if job.Config != "" {
		_ = json.Unmarshal([]byte(job.Config), &cfg)
	}
	return domain.TaskQueueKey(cfg.Capability), nil
}

// bumpWorkerTasks adjusts the advisory active_tasks field. Best effort;
// the record may have been evicted.
func (s *Scheduler) bumpWorkerTasks(ctx context.Context, workerID string, delta int) {
	key := domain.WorkerKey(workerID)
	raw, err := s.store.HGet(ctx, key, "active_tasks")
	if err != nil {
		return
	}
	n, _ := strconv.Atoi(raw)
	n += delta
	if n < 0 {
		n = 0
	}
	_ = s.store.HSet(ctx, key, "active_tasks", strconv.Itoa(n))
}

// newJobID follows the job_<unix_seconds>_<random> format.
func newJobID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("job_%d_%s", now.Unix(), suffix)
}

// expandInputPaths resolves glob patterns into concrete shard locators.
// Non-glob locators (store keys, URLs) pass through untouched.
func expandInputPaths(patterns []string) []string {
	var refs []string
	for _, p := range patterns {
		if !strings.ContainsAny(p, "*?[{") {
			refs = append(refs, p)
			continue
		}
		matches, err := doublestar.FilepathGlob(p)
		if err != nil || len(matches) == 0 {
			refs = append(refs, p)
			continue
		}
		refs = append(refs, matches...)
	}
	return refs
}

// shardInputs distributes resolved shards round-robin over map tasks.
// With no declared inputs each task gets a synthetic shard locator.
func shardInputs(jobID string, shards []string, index, total int) []string {
	if len(shards) == 0 {
		return []string{fmt.Sprintf("shard://%s/%d", jobID, index)}
	}
	var refs []string
	for i := index; i < len(shards); i += total {
		refs = append(refs, shards[i])
	}
	return refs
}
