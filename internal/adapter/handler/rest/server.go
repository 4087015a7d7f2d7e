// Package rest exposes the coordinator's control surface over HTTP.
package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/dafproject/daf/internal/core/domain"
	"github.com/dafproject/daf/internal/core/port"
	"github.com/dafproject/daf/internal/core/service"
)

const Version = "1.0.0"

const (
	readTimeout  = 15 * time.Second
	writeTimeout = 15 * time.Second
	idleTimeout  = 60 * time.Second
)

// API wires the scheduler and worker registry into HTTP handlers. The
// archive is optional; when present, job status reads fall through to it
// after the live record is swept.
type API struct {
	sched    port.Scheduler
	registry port.WorkerRegistry
	archive  port.JobArchive
	metrics  http.Handler
	log      *zap.Logger
	now      func() time.Time
	started  time.Time
}

func NewAPI(sched port.Scheduler, registry port.WorkerRegistry, archive port.JobArchive, metrics http.Handler, log *zap.Logger) *API {
	return &API{
		sched:    sched,
		registry: registry,
		archive:  archive,
		metrics:  metrics,
		log:      log,
		now:      time.Now,
		started:  time.Now(),
	}
}

func (a *API) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", a.health)
	mux.HandleFunc("GET /api/status", a.status)

	mux.HandleFunc("POST /api/jobs", a.submitJob)
	mux.HandleFunc("GET /api/jobs/{id}/status", a.jobStatus)
	mux.HandleFunc("DELETE /api/jobs/{id}", a.cancelJob)

	mux.HandleFunc("GET /api/workers", a.listWorkers)
	mux.HandleFunc("POST /api/workers/register", a.registerWorker)
	mux.HandleFunc("POST /api/workers/heartbeat", a.heartbeat)
	mux.HandleFunc("POST /api/workers/{id}/pull", a.pullTask)
	mux.HandleFunc("POST /api/workers/{id}/drain", a.drainWorker)

	mux.HandleFunc("POST /api/tasks/{id}/complete", a.completeTask)
	mux.HandleFunc("POST /api/tasks/{id}/fail", a.failTask)

	if a.metrics != nil {
		mux.Handle("GET /metrics", a.metrics)
	}
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	a.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) status(w http.ResponseWriter, r *http.Request) {
	stats, err := a.sched.Stats(r.Context())
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	status := "healthy"
	if !stats.StoreHealthy {
		status = "degraded"
	}
	a.respondJSON(w, http.StatusOK, StatusResponse{
		Status:         status,
		Version:        Version,
		UptimeSeconds:  int64(a.now().Sub(a.started).Seconds()),
		TotalJobs:      stats.TotalJobs,
		CompletedJobs:  stats.CompletedJobs,
		FailedJobs:     stats.FailedJobs,
		QueuedJobs:     stats.QueuedJobs,
		ActiveWorkers:  stats.ActiveWorkers,
		StoreConnected: stats.StoreHealthy,
	})
}

func (a *API) submitJob(w http.ResponseWriter, r *http.Request) {
	var req SubmitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.ModuleName == "" {
		a.respondError(w, http.StatusBadRequest, "module_name is required")
		return
	}
	if len(req.Config) == 0 {
		a.respondError(w, http.StatusBadRequest, "config is required")
		return
	}

	job, err := a.sched.SubmitJob(r.Context(), req.ModuleName, string(req.Config))
	if err != nil {
		a.respondServiceError(w, err)
		return
	}
	a.respondJSON(w, http.StatusCreated, SubmitJobResponse{
		JobID:     job.ID,
		Status:    "submitted",
		CreatedAt: job.CreatedAt,
	})
}

func (a *API) jobStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	job, err := a.sched.GetJob(r.Context(), id)
	if errors.Is(err, port.ErrNotFound) && a.archive != nil {
		job, err = a.archive.GetArchivedJob(r.Context(), id)
	}
	if err != nil {
		a.respondServiceError(w, err)
		return
	}
	a.respondJSON(w, http.StatusOK, jobStatus(job))
}

func (a *API) cancelJob(w http.ResponseWriter, r *http.Request) {
	job, err := a.sched.CancelJob(r.Context(), r.PathValue("id"))
	if err != nil {
		a.respondServiceError(w, err)
		return
	}
	a.respondJSON(w, http.StatusOK, jobStatus(job))
}

func (a *API) listWorkers(w http.ResponseWriter, r *http.Request) {
	workers, err := a.registry.Active(r.Context())
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	infos := make([]WorkerInfo, 0, len(workers))
	for _, worker := range workers {
		infos = append(infos, workerInfo(worker))
	}
	a.respondJSON(w, http.StatusOK, WorkersResponse{Workers: infos, Count: len(infos)})
}

func (a *API) registerWorker(w http.ResponseWriter, r *http.Request) {
	var req RegisterWorkerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.WorkerID == "" || req.Host == "" || req.Port <= 0 {
		a.respondError(w, http.StatusBadRequest, "worker_id, host and port are required")
		return
	}

	worker := &domain.Worker{
		ID:           req.WorkerID,
		Host:         req.Host,
		Port:         req.Port,
		Capabilities: req.Capabilities,
	}
	if err := a.registry.Register(r.Context(), worker); err != nil {
		a.respondServiceError(w, err)
		return
	}
	a.respondJSON(w, http.StatusCreated, map[string]string{"worker_id": req.WorkerID, "status": "registered"})
}

func (a *API) heartbeat(w http.ResponseWriter, r *http.Request) {
	var req HeartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.WorkerID == "" {
		a.respondError(w, http.StatusBadRequest, "worker_id is required")
		return
	}
	if err := a.registry.Heartbeat(r.Context(), req.WorkerID); err != nil {
		a.respondServiceError(w, err)
		return
	}
	a.respondJSON(w, http.StatusOK, map[string]string{"worker_id": req.WorkerID, "status": "ok"})
}

func (a *API) pullTask(w http.ResponseWriter, r *http.Request) {
	workerID := r.PathValue("id")
	task, job, err := a.sched.PullTask(r.Context(), workerID)
	if err != nil {
		if errors.Is(err, port.ErrNotFound) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		a.respondServiceError(w, err)
		return
	}
	a.respondJSON(w, http.StatusOK, TaskAssignment{
		TaskID:     task.ID,
		JobID:      task.JobID,
		Kind:       string(task.Kind),
		Attempt:    task.Attempts,
		InputRefs:  task.InputRefs,
		ModuleName: job.ModuleName,
		Config:     json.RawMessage(job.Config),
	})
}

func (a *API) drainWorker(w http.ResponseWriter, r *http.Request) {
	workerID := r.PathValue("id")
	if err := a.registry.Drain(r.Context(), workerID); err != nil {
		a.respondServiceError(w, err)
		return
	}
	a.respondJSON(w, http.StatusOK, map[string]string{"worker_id": workerID, "status": "draining"})
}

func (a *API) completeTask(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("id")
	var req CompleteTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	err := a.sched.ReportTask(r.Context(), taskID, port.TaskOutcome{OutputRef: req.OutputRef})
	if err != nil {
		a.respondServiceError(w, err)
		return
	}
	a.respondJSON(w, http.StatusOK, map[string]string{"task_id": taskID, "status": "completed"})
}

func (a *API) failTask(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("id")
	var req FailTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Error == "" {
		a.respondError(w, http.StatusBadRequest, "error is required")
		return
	}
	err := a.sched.ReportTask(r.Context(), taskID, port.TaskOutcome{Error: req.Error, Failed: true})
	if err != nil {
		a.respondServiceError(w, err)
		return
	}
	a.respondJSON(w, http.StatusOK, map[string]string{"task_id": taskID, "status": "failed"})
}

func (a *API) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		a.log.Error("response encoding failed", zap.Error(err))
		raw = nil
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(Envelope{
		Success:   statusCode < http.StatusBadRequest,
		Data:      raw,
		Timestamp: a.now().Unix(),
	})
}

func (a *API) respondError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(Envelope{
		Success:   false,
		Error:     message,
		Timestamp: a.now().Unix(),
	})
}

// respondServiceError maps service and store errors onto HTTP statuses.
func (a *API) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, port.ErrNotFound), errors.Is(err, service.ErrUnknownWorker):
		a.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrTerminalJob):
		a.respondError(w, http.StatusConflict, err.Error())
	default:
		a.log.Error("request failed", zap.Error(err))
		a.respondError(w, http.StatusInternalServerError, fmt.Sprintf("internal error: %v", err))
	}
}

// NewServer builds the http.Server with recovery, logging and CORS
// around the API routes.
func NewServer(addr string, api *API, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	api.RegisterRoutes(mux)

	handler := ChainMiddleware(
		mux,
		RecoveryMiddleware(log),
		LoggingMiddleware(log),
	)
	handler = cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(handler)

	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
}
