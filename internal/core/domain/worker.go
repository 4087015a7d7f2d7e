package domain

import (
	"strconv"
	"strings"
)

type WorkerStatus string

const (
	WorkerStatusActive   WorkerStatus = "active"
	WorkerStatusDraining WorkerStatus = "draining"
	WorkerStatusInactive WorkerStatus = "inactive"
)

// Worker is a registered task consumer. The worker chooses its own ID and
// is responsible for its global uniqueness.
type Worker struct {
	ID            string
	Host          string
	Port          int
	Status        WorkerStatus
	LastHeartbeat int64
	Capabilities  []string
	ActiveTasks   int
}

// Fields encodes the worker for HSET.
func (w *Worker) Fields() map[string]string {
	return map[string]string{
		"host":           w.Host,
		"port":           strconv.Itoa(w.Port),
		"status":         string(w.Status),
		"last_heartbeat": strconv.FormatInt(w.LastHeartbeat, 10),
		"capabilities":   strings.Join(w.Capabilities, ","),
		"active_tasks":   strconv.Itoa(w.ActiveTasks),
	}
}

// WorkerFromFields decodes a worker hash read with HGETALL.
func WorkerFromFields(id string, f map[string]string) *Worker {
	var caps []string
	if raw := f["capabilities"]; raw != "" {
		caps = strings.Split(raw, ",")
	}
	return &Worker{
		ID:            id,
		Host:          f["host"],
		Port:          atoi(f["port"]),
		Status:        WorkerStatus(f["status"]),
		LastHeartbeat: atoi64(f["last_heartbeat"]),
		Capabilities:  caps,
		ActiveTasks:   atoi(f["active_tasks"]),
	}
}
