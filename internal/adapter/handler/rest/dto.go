package rest

import (
	"encoding/json"

	"github.com/dafproject/daf/internal/core/domain"
)

// Envelope is the uniform response wrapper: {success, data|error,
// timestamp}.
type Envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

type SubmitJobRequest struct {
	ModuleName string          `json:"module_name"`
	Config     json.RawMessage `json:"config"`
}

type SubmitJobResponse struct {
	JobID     string `json:"job_id"`
	Status    string `json:"status"`
	CreatedAt int64  `json:"created_at"`
}

type JobStatusResponse struct {
	JobID           string `json:"job_id"`
	ModuleName      string `json:"module_name"`
	Status          string `json:"status"`
	ProgressPercent int    `json:"progress_percent"`
	TotalTasks      int    `json:"total_tasks"`
	CompletedTasks  int    `json:"completed_tasks"`
	FailedTasks     int    `json:"failed_tasks"`
	CreatedAt       int64  `json:"created_at"`
	StartedAt       int64  `json:"started_at,omitempty"`
	CompletedAt     int64  `json:"completed_at,omitempty"`
	CancelledAt     int64  `json:"cancelled_at,omitempty"`
	Error           string `json:"error,omitempty"`
}

type StatusResponse struct {
	Status         string `json:"status"`
	Version        string `json:"version"`
	UptimeSeconds  int64  `json:"uptime_seconds"`
	TotalJobs      int64  `json:"total_jobs"`
	CompletedJobs  int64  `json:"completed_jobs"`
	FailedJobs     int64  `json:"failed_jobs"`
	QueuedJobs     int64  `json:"queued_jobs"`
	ActiveWorkers  int    `json:"active_workers"`
	StoreConnected bool   `json:"store_connected"`
}

type RegisterWorkerRequest struct {
	WorkerID     string   `json:"worker_id"`
	Host         string   `json:"host"`
	Port         int      `json:"port"`
	Capabilities []string `json:"capabilities"`
}

type HeartbeatRequest struct {
	WorkerID string `json:"worker_id"`
}

type WorkerInfo struct {
	WorkerID      string   `json:"worker_id"`
	Host          string   `json:"host"`
	Port          int      `json:"port"`
	Status        string   `json:"status"`
	LastHeartbeat int64    `json:"last_heartbeat"`
	ActiveTasks   int      `json:"active_tasks"`
	Capabilities  []string `json:"capabilities"`
}

type WorkersResponse struct {
	Workers []WorkerInfo `json:"workers"`
	Count   int          `json:"count"`
}

// TaskAssignment is what a successful pull returns: the task plus the
// module and config needed to execute it.
type TaskAssignment struct {
	TaskID     string          `json:"task_id"`
	JobID      string          `json:"job_id"`
	Kind       string          `json:"kind"`
	Attempt    int             `json:"attempt"`
	InputRefs  []string        `json:"input_refs"`
	ModuleName string          `json:"module_name"`
	Config     json.RawMessage `json:"config,omitempty"`
}

type CompleteTaskRequest struct {
	OutputRef string `json:"output_ref"`
}

type FailTaskRequest struct {
	Error string `json:"error"`
}

func workerInfo(w *domain.Worker) WorkerInfo {
	return WorkerInfo{
		WorkerID:      w.ID,
		Host:          w.Host,
		Port:          w.Port,
		Status:        string(w.Status),
		LastHeartbeat: w.LastHeartbeat,
		ActiveTasks:   w.ActiveTasks,
		Capabilities:  w.Capabilities,
	}
}

func jobStatus(j *domain.Job) JobStatusResponse {
	return JobStatusResponse{
		JobID:           j.ID,
		ModuleName:      j.ModuleName,
		Status:          string(j.Status),
		ProgressPercent: j.ProgressPercent,
		TotalTasks:      j.TotalTasks,
		CompletedTasks:  j.CompletedTasks,
		FailedTasks:     j.FailedTasks,
		CreatedAt:       j.CreatedAt,
		StartedAt:       j.StartedAt,
		CompletedAt:     j.CompletedAt,
		CancelledAt:     j.CancelledAt,
		Error:           j.Error,
	}
}
