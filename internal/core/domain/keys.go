package domain

// Keyspace discipline. Every durable record lives under one of these
// patterns; a fresh database is valid initial state.
const (
	JobQueueKey      = "job_queue"
	ActiveWorkersKey = "active_workers"

	DefaultCapability = "default"

	StatsTotalJobsKey     = "stats:total_jobs"
	StatsCompletedJobsKey = "stats:completed_jobs"
	StatsFailedJobsKey    = "stats:failed_jobs"

	JobKeyPrefix    = "job:"
	TaskKeyPrefix   = "task:"
	WorkerKeyPrefix = "worker:"
)

func JobKey(jobID string) string { return JobKeyPrefix + jobID }

func TaskKey(taskID string) string { return TaskKeyPrefix + taskID }

func WorkerKey(workerID string) string { return WorkerKeyPrefix + workerID }

// TaskQueueKey returns the pending list for a capability. An empty
// capability maps to the default queue.
func TaskQueueKey(capability string) string {
	if capability == "" {
		capability = DefaultCapability
	}
	return "task_queue:" + capability
}
