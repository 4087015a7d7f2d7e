package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJobFieldsRoundTrip(t *testing.T) {
	job := &Job{
		ID:              "job_1700000000_abc123",
		ModuleName:      "wordcount",
		Config:          `{"fanout":3}`,
		Status:          JobStatusProcessing,
		ProgressPercent: 40,
		CreatedAt:       1700000000,
		StartedAt:       1700000002,
		TotalTasks:      5,
		CompletedTasks:  2,
	}

	decoded := JobFromFields(job.ID, job.Fields())
	require.Equal(t, job, decoded)
}

func TestJobFieldsOmitsUnsetTimestamps(t *testing.T) {
	job := &Job{
		ID:         "job_1700000000_abc123",
		ModuleName: "echo",
		Status:     JobStatusPending,
		CreatedAt:  1700000000,
	}

	f := job.Fields()
	require.NotContains(t, f, "started_at")
	require.NotContains(t, f, "completed_at")
	require.NotContains(t, f, "cancelled_at")
	require.NotContains(t, f, "error")
}

func TestJobTerminal(t *testing.T) {
	for status, terminal := range map[JobStatus]bool{
		JobStatusPending:    false,
		JobStatusProcessing: false,
		JobStatusCompleted:  true,
		JobStatusFailed:     true,
		JobStatusCancelled:  true,
	} {
		job := &Job{Status: status}
		require.Equal(t, terminal, job.Terminal(), "status %s", status)
	}
}

func TestJobTerminalAtPrefersCancellation(t *testing.T) {
	job := &Job{Status: JobStatusCancelled, CancelledAt: 100, CompletedAt: 0}
	require.Equal(t, int64(100), job.TerminalAt())

	job = &Job{Status: JobStatusCompleted, CompletedAt: 200}
	require.Equal(t, int64(200), job.TerminalAt())
}

func TestTaskFieldsRoundTrip(t *testing.T) {
	task := &Task{
		ID:             "job_1:map:0",
		JobID:          "job_1",
		Kind:           TaskKindMap,
		Status:         TaskStatusAssigned,
		AssignedWorker: "worker_host_9001",
		Attempts:       2,
		InputRefs:      []string{"/data/a.txt", "/data/b.txt"},
		CreatedAt:      1700000000,
		AssignedAt:     1700000005,
	}

	decoded := TaskFromFields(task.ID, task.Fields())
	require.Equal(t, task, decoded)
}

func TestTaskFieldsAlwaysWritesClearableFields(t *testing.T) {
	task := &Task{
		ID:     "job_1:map:0",
		JobID:  "job_1",
		Kind:   TaskKindMap,
		Status: TaskStatusPending,
	}

	// A retry reset must overwrite stale assignment data in the hash.
	f := task.Fields()
	require.Contains(t, f, "assigned_worker")
	require.Contains(t, f, "output_ref")
	require.Contains(t, f, "error")
	require.Equal(t, "", f["assigned_worker"])
}

func TestTaskID(t *testing.T) {
	require.Equal(t, "job_5:reduce:2", TaskID("job_5", TaskKindReduce, 2))
}

func TestParseTaskID(t *testing.T) {
	jobID, kind, index, err := ParseTaskID("job_1700000000_abc123:map:7")
	require.NoError(t, err)
	require.Equal(t, "job_1700000000_abc123", jobID)
	require.Equal(t, TaskKindMap, kind)
	require.Equal(t, 7, index)
}

func TestParseTaskIDRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"job_1",
		"job_1:map",
		"job_1:shuffle:0",
		"job_1:map:x",
		"job_1:map:0:extra",
	}
	for _, id := range cases {
		_, _, _, err := ParseTaskID(id)
		require.Error(t, err, "id %q", id)
	}
}

func TestWorkerFieldsRoundTrip(t *testing.T) {
	worker := &Worker{
		ID:            "worker_host_9001",
		Host:          "host",
		Port:          9001,
		Status:        WorkerStatusActive,
		LastHeartbeat: 1700000000,
		Capabilities:  []string{"default", "gpu"},
		ActiveTasks:   3,
	}

	decoded := WorkerFromFields(worker.ID, worker.Fields())
	require.Equal(t, worker, decoded)
}

func TestWorkerFieldsEmptyCapabilities(t *testing.T) {
	worker := &Worker{ID: "w1", Host: "h", Port: 1, Status: WorkerStatusActive}
	decoded := WorkerFromFields(worker.ID, worker.Fields())
	require.Nil(t, decoded.Capabilities)
}

func TestTaskQueueKeyDefaultsCapability(t *testing.T) {
	require.Equal(t, "task_queue:default", TaskQueueKey(""))
	require.Equal(t, "task_queue:gpu", TaskQueueKey("gpu"))
}
