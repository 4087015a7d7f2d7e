// Package port provides the behavior interfaces connecting services,
// storage and handlers.
package port

import (
	"context"
	"errors"
	"time"

	"github.com/dafproject/daf/internal/core/domain"
)

// ErrNotFound is returned when a key, hash field or queue entry is absent.
var ErrNotFound = errors.New("not found")

// ErrWrongType is returned when a key holds a value of another type.
var ErrWrongType = errors.New("wrong type")

// Store is the typed facade over the external key-value/queue service.
// Implementations are not intrinsically thread-safe; callers either
// serialize or instantiate per goroutine.
type Store interface {
	// Strings
	Set(ctx context.Context, key, value string) error
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Hashes
	HSet(ctx context.Context, key, field, value string) error
	HSetAll(ctx context.Context, key string, fields map[string]string) error
	HGet(ctx context.Context, key, field string) (string, error)
	HDel(ctx context.Context, key, field string) error
	HExists(ctx context.Context, key, field string) (bool, error)
	HKeys(ctx context.Context, key string) ([]string, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	// Lists
	LPush(ctx context.Context, key, value string) error
	RPush(ctx context.Context, key, value string) error
	LPop(ctx context.Context, key string) (string, error)
	RPop(ctx context.Context, key string) (string, error)
	LLen(ctx context.Context, key string) (int64, error)
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	LRem(ctx context.Context, key string, count int64, value string) error

	// Sets
	SAdd(ctx context.Context, key, member string) error
	SRem(ctx context.Context, key, member string) error
	SIsMember(ctx context.Context, key, member string) (bool, error)
	SMembers(ctx context.Context, key string) ([]string, error)
	SCard(ctx context.Context, key string) (int64, error)

	// Counters
	Incr(ctx context.Context, key string) (int64, error)
	Decr(ctx context.Context, key string) (int64, error)
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)

	// Control
	Ping(ctx context.Context) error
	Keys(ctx context.Context, pattern string) ([]string, error)
	FlushAll(ctx context.Context) error // test-only
	Close() error
}

// WorkerRegistry tracks the live worker fleet.
type WorkerRegistry interface {
	Register(ctx context.Context, worker *domain.Worker) error
	Heartbeat(ctx context.Context, workerID string) error
	Active(ctx context.Context) ([]*domain.Worker, error)
	Drain(ctx context.Context, workerID string) error
	GetWorker(ctx context.Context, workerID string) (*domain.Worker, error)
}

// TaskOutcome is a worker's report for a finished attempt.
type TaskOutcome struct {
	OutputRef string
	Error     string
	Failed    bool
}

// Scheduler admits jobs, materializes tasks and advances their state.
// PullTask returns the claimed task together with its parent job, so a
// caller building an assignment never re-reads state the claim already
// loaded.
type Scheduler interface {
	SubmitJob(ctx context.Context, moduleName, config string) (*domain.Job, error)
	GetJob(ctx context.Context, jobID string) (*domain.Job, error)
	CancelJob(ctx context.Context, jobID string) (*domain.Job, error)
	PullTask(ctx context.Context, workerID string) (*domain.Task, *domain.Job, error)
	ReportTask(ctx context.Context, taskID string, outcome TaskOutcome) error
	Stats(ctx context.Context) (Stats, error)
}

// Stats is the aggregate counter snapshot served by the status endpoint.
type Stats struct {
	TotalJobs     int64
	CompletedJobs int64
	FailedJobs    int64
	ActiveWorkers int
	QueuedJobs    int64
	StoreHealthy  bool
}

// JobArchive persists terminal job records beyond their store retention
// and serves them back once the live record is gone. GetArchivedJob
// returns ErrNotFound when the id was never archived.
type JobArchive interface {
	ArchiveJob(ctx context.Context, job *domain.Job) error
	GetArchivedJob(ctx context.Context, id string) (*domain.Job, error)
}

// TaskAssignment pairs a pulled task with the module identity and raw
// config of its parent job, so the worker can execute it without a
// second round trip.
type TaskAssignment struct {
	Task       *domain.Task
	ModuleName string
	Config     string
}

// CoordinatorClient is the worker-side view of the coordinator's
// control surface.
type CoordinatorClient interface {
	Register(ctx context.Context, worker *domain.Worker) error
	Heartbeat(ctx context.Context, workerID string) error
	Pull(ctx context.Context, workerID string) (*TaskAssignment, error)
	Complete(ctx context.Context, taskID, outputRef string) error
	Fail(ctx context.Context, taskID, reason string) error
}
