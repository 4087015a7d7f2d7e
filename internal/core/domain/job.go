// Package domain holds the entities of the fabric and their canonical
// encoding as store hash fields. All persisted values are textual;
// timestamps are decimal seconds since the Unix epoch.
package domain

import (
	"strconv"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// Job is a client-submitted unit of work, decomposed into tasks.
type Job struct {
	ID              string
	ModuleName      string
	Config          string // opaque blob, UTF-8 JSON by convention
	Status          JobStatus
	ProgressPercent int
	CreatedAt       int64
	StartedAt       int64
	CompletedAt     int64
	CancelledAt     int64
	TotalTasks      int
	CompletedTasks  int
	FailedTasks     int
	Error           string
}

// Terminal reports whether the job record may no longer change status.
func (j *Job) Terminal() bool {
	switch j.Status {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// TerminalAt returns the timestamp at which the job reached its terminal
// status, or zero for a live job.
func (j *Job) TerminalAt() int64 {
	if j.CancelledAt != 0 {
		return j.CancelledAt
	}
	return j.CompletedAt
}

// Fields encodes the job for HSET.
func (j *Job) Fields() map[string]string {
	f := map[string]string{
		"module_name":      j.ModuleName,
		"config":           j.Config,
		"status":           string(j.Status),
		"progress_percent": strconv.Itoa(j.ProgressPercent),
		"created_at":       strconv.FormatInt(j.CreatedAt, 10),
		"total_tasks":      strconv.Itoa(j.TotalTasks),
		"completed_tasks":  strconv.Itoa(j.CompletedTasks),
		"failed_tasks":     strconv.Itoa(j.FailedTasks),
	}
	if j.StartedAt != 0 {
		f["started_at"] = strconv.FormatInt(j.StartedAt, 10)
	}
	if j.CompletedAt != 0 {
		f["completed_at"] = strconv.FormatInt(j.CompletedAt, 10)
	}
	if j.CancelledAt != 0 {
		f["cancelled_at"] = strconv.FormatInt(j.CancelledAt, 10)
	}
	if j.Error != "" {
		f["error"] = j.Error
	}
	return f
}

// JobFromFields decodes a job hash read with HGETALL.
func JobFromFields(id string, f map[string]string) *Job {
	return &Job{
		ID:              id,
		ModuleName:      f["module_name"],
		Config:          f["config"],
		Status:          JobStatus(f["status"]),
		ProgressPercent: atoi(f["progress_percent"]),
		CreatedAt:       atoi64(f["created_at"]),
		StartedAt:       atoi64(f["started_at"]),
		CompletedAt:     atoi64(f["completed_at"]),
		CancelledAt:     atoi64(f["cancelled_at"]),
		TotalTasks:      atoi(f["total_tasks"]),
		CompletedTasks:  atoi(f["completed_tasks"]),
		FailedTasks:     atoi(f["failed_tasks"]),
		Error:           f["error"],
	}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func atoi64(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
