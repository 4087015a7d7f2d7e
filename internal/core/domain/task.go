package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type TaskKind string

const (
	TaskKindMap    TaskKind = "map"
	TaskKindReduce TaskKind = "reduce"
)

type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusAssigned  TaskStatus = "assigned"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// Task is a single unit of module execution against a shard of input.
// Its ID is <job_id>:<kind>:<index>.
type Task struct {
	ID             string
	JobID          string
	Kind           TaskKind
	Status         TaskStatus
	AssignedWorker string
	Attempts       int
	InputRefs      []string // opaque locators: file paths or store keys
	OutputRef      string
	Error          string
	CreatedAt      int64
	AssignedAt     int64
	CompletedAt    int64
}

// TaskID composes the canonical task identifier.
func TaskID(jobID string, kind TaskKind, index int) string {
	return fmt.Sprintf("%s:%s:%d", jobID, kind, index)
}

// ParseTaskID splits a task identifier into its parts. The job id itself
// never contains ':' (format job_<secs>_<random>), so the separators are
// unambiguous.
func ParseTaskID(id string) (jobID string, kind TaskKind, index int, err error) {
	parts := strings.Split(id, ":")
	if len(parts) != 3 {
		return "", "", 0, fmt.Errorf("malformed task id %q", id)
	}
	kind = TaskKind(parts[1])
	if kind != TaskKindMap && kind != TaskKindReduce {
		return "", "", 0, fmt.Errorf("task id %q: unknown kind %q", id, parts[1])
	}
	index, err = strconv.Atoi(parts[2])
	if err != nil {
		return "", "", 0, fmt.Errorf("task id %q: bad index: %w", id, err)
	}
	return parts[0], kind, index, nil
}

// Terminal reports whether the task has reached a final status.
func (t *Task) Terminal() bool {
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusFailed
}

// Fields encodes the task for HSET. Clearable fields are written even
// when empty so a retry reset overwrites stale values.
func (t *Task) Fields() map[string]string {
	refs, _ := json.Marshal(t.InputRefs)
	return map[string]string{
		"job_id":          t.JobID,
		"kind":            string(t.Kind),
		"status":          string(t.Status),
		"assigned_worker": t.AssignedWorker,
		"attempts":        strconv.Itoa(t.Attempts),
		"input_refs":      string(refs),
		"output_ref":      t.OutputRef,
		"error":           t.Error,
		"created_at":      strconv.FormatInt(t.CreatedAt, 10),
		"assigned_at":     strconv.FormatInt(t.AssignedAt, 10),
		"completed_at":    strconv.FormatInt(t.CompletedAt, 10),
	}
}

// TaskFromFields decodes a task hash read with HGETALL.
func TaskFromFields(id string, f map[string]string) *Task {
	var refs []string
	if raw := f["input_refs"]; raw != "" {
		_ = json.Unmarshal([]byte(raw), &refs)
	}
	return &Task{
		ID:             id,
		JobID:          f["job_id"],
		Kind:           TaskKind(f["kind"]),
		Status:         TaskStatus(f["status"]),
		AssignedWorker: f["assigned_worker"],
		Attempts:       atoi(f["attempts"]),
		InputRefs:      refs,
		OutputRef:      f["output_ref"],
		Error:          f["error"],
		CreatedAt:      atoi64(f["created_at"]),
		AssignedAt:     atoi64(f["assigned_at"]),
		CompletedAt:    atoi64(f["completed_at"]),
	}
}
