package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dafproject/daf/internal/adapter/storage/memory"
	"github.com/dafproject/daf/internal/core/domain"
	"github.com/dafproject/daf/internal/core/port"
	"github.com/dafproject/daf/internal/core/service"
)

func newTestServer(t *testing.T) (*httptest.Server, *service.Scheduler) {
	return newTestServerWithArchive(t, nil)
}

func newTestServerWithArchive(t *testing.T, archive port.JobArchive) (*httptest.Server, *service.Scheduler) {
	t.Helper()
	store := memory.NewStore()
	registry := service.NewRegistry(store, service.RegistryConfig{}, zap.NewNop())
	sched := service.NewScheduler(store, registry, archive, nil, service.SchedulerConfig{}, zap.NewNop())

	api := NewAPI(sched, registry, archive, nil, zap.NewNop())
	mux := http.NewServeMux()
	api.RegisterRoutes(mux)

	srv := httptest.NewServer(ChainMiddleware(
		mux,
		RecoveryMiddleware(zap.NewNop()),
		LoggingMiddleware(zap.NewNop()),
	))
	t.Cleanup(srv.Close)
	return srv, sched
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, Envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var env Envelope
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	}
	return resp, env
}

func decodeData(t *testing.T, env Envelope, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, out))
}

func submitTestJob(t *testing.T, srv *httptest.Server, config string) SubmitJobResponse {
	t.Helper()
	if config == "" {
		config = "{}"
	}
	resp, env := doJSON(t, http.MethodPost, srv.URL+"/api/jobs", SubmitJobRequest{
		ModuleName: "echo",
		Config:     json.RawMessage(config),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.True(t, env.Success)

	var out SubmitJobResponse
	decodeData(t, env, &out)
	return out
}

func registerTestWorker(t *testing.T, srv *httptest.Server, id string) {
	t.Helper()
	resp, env := doJSON(t, http.MethodPost, srv.URL+"/api/workers/register", RegisterWorkerRequest{
		WorkerID: id,
		Host:     "host",
		Port:     9001,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.True(t, env.Success)
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, env := doJSON(t, http.MethodGet, srv.URL+"/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, env.Success)
	require.NotZero(t, env.Timestamp)
}

func TestSubmitJob(t *testing.T) {
	srv, _ := newTestServer(t)
	out := submitTestJob(t, srv, `{"fanout":2}`)
	require.NotEmpty(t, out.JobID)
	require.Equal(t, "submitted", out.Status)
	require.NotZero(t, out.CreatedAt)
}

func TestSubmitJobValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, env := doJSON(t, http.MethodPost, srv.URL+"/api/jobs", SubmitJobRequest{})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.False(t, env.Success)
	require.Contains(t, env.Error, "module_name")
}

func TestSubmitJobRequiresConfig(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, env := doJSON(t, http.MethodPost, srv.URL+"/api/jobs", SubmitJobRequest{
		ModuleName: "echo",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.False(t, env.Success)
	require.Contains(t, env.Error, "config")

	// An empty object satisfies the shape requirement.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/jobs", SubmitJobRequest{
		ModuleName: "echo",
		Config:     json.RawMessage("{}"),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestSubmitJobMalformedBody(t *testing.T) {
	srv, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/jobs", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestJobStatus(t *testing.T) {
	srv, _ := newTestServer(t)
	out := submitTestJob(t, srv, "")

	resp, env := doJSON(t, http.MethodGet, srv.URL+"/api/jobs/"+out.JobID+"/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status JobStatusResponse
	decodeData(t, env, &status)
	require.Equal(t, out.JobID, status.JobID)
	require.Equal(t, "echo", status.ModuleName)
	require.Equal(t, "pending", status.Status)
}

func TestJobStatusNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, env := doJSON(t, http.MethodGet, srv.URL+"/api/jobs/job_missing/status", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.False(t, env.Success)
}

type stubArchive struct {
	jobs map[string]*domain.Job
}

func (a *stubArchive) ArchiveJob(_ context.Context, job *domain.Job) error {
	a.jobs[job.ID] = job
	return nil
}

func (a *stubArchive) GetArchivedJob(_ context.Context, id string) (*domain.Job, error) {
	job, ok := a.jobs[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	return job, nil
}

func TestJobStatusServedFromArchive(t *testing.T) {
	archive := &stubArchive{jobs: map[string]*domain.Job{
		"job_1_swept": {
			ID:              "job_1_swept",
			ModuleName:      "echo",
			Status:          domain.JobStatusCompleted,
			ProgressPercent: 100,
			TotalTasks:      2,
			CompletedTasks:  2,
		},
	}}
	srv, _ := newTestServerWithArchive(t, archive)

	resp, env := doJSON(t, http.MethodGet, srv.URL+"/api/jobs/job_1_swept/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status JobStatusResponse
	decodeData(t, env, &status)
	require.Equal(t, "completed", status.Status)
	require.Equal(t, "echo", status.ModuleName)
	require.Equal(t, 100, status.ProgressPercent)

	// A job the archive never saw is still a 404.
	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/jobs/job_unknown/status", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCancelJob(t *testing.T) {
	srv, _ := newTestServer(t)
	out := submitTestJob(t, srv, "")

	resp, env := doJSON(t, http.MethodDelete, srv.URL+"/api/jobs/"+out.JobID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status JobStatusResponse
	decodeData(t, env, &status)
	require.Equal(t, "cancelled", status.Status)
	require.NotZero(t, status.CancelledAt)

	// Cancelling a terminal job conflicts.
	resp, env = doJSON(t, http.MethodDelete, srv.URL+"/api/jobs/"+out.JobID, nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.False(t, env.Success)
}

func TestRegisterAndListWorkers(t *testing.T) {
	srv, _ := newTestServer(t)
	registerTestWorker(t, srv, "w1")

	resp, env := doJSON(t, http.MethodGet, srv.URL+"/api/workers", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var workers WorkersResponse
	decodeData(t, env, &workers)
	require.Equal(t, 1, workers.Count)
	require.Equal(t, "w1", workers.Workers[0].WorkerID)
	require.Equal(t, "active", workers.Workers[0].Status)
}

func TestRegisterWorkerValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/workers/register", RegisterWorkerRequest{
		WorkerID: "w1",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHeartbeat(t *testing.T) {
	srv, _ := newTestServer(t)
	registerTestWorker(t, srv, "w1")

	resp, env := doJSON(t, http.MethodPost, srv.URL+"/api/workers/heartbeat", HeartbeatRequest{WorkerID: "w1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, env.Success)
}

func TestHeartbeatUnknownWorker(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, env := doJSON(t, http.MethodPost, srv.URL+"/api/workers/heartbeat", HeartbeatRequest{WorkerID: "ghost"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.False(t, env.Success)
}

func TestPullEmptyQueue(t *testing.T) {
	srv, _ := newTestServer(t)
	registerTestWorker(t, srv, "w1")

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/workers/w1/pull", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestPullCompleteRoundTrip(t *testing.T) {
	srv, sched := newTestServer(t)
	registerTestWorker(t, srv, "w1")

	out := submitTestJob(t, srv, `{"fanout":1}`)
	require.NoError(t, sched.ProcessPendingJobs(t.Context()))

	resp, env := doJSON(t, http.MethodPost, srv.URL+"/api/workers/w1/pull", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var task TaskAssignment
	decodeData(t, env, &task)
	require.Equal(t, out.JobID, task.JobID)
	require.Equal(t, "map", task.Kind)
	require.Equal(t, "echo", task.ModuleName)
	require.Equal(t, 1, task.Attempt)

	resp, env = doJSON(t, http.MethodPost, srv.URL+"/api/tasks/"+task.TaskID+"/complete",
		CompleteTaskRequest{OutputRef: task.TaskID + ":output"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, env.Success)

	resp, env = doJSON(t, http.MethodGet, srv.URL+"/api/jobs/"+out.JobID+"/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var status JobStatusResponse
	decodeData(t, env, &status)
	require.Equal(t, "completed", status.Status)
	require.Equal(t, 100, status.ProgressPercent)
}

func TestFailTask(t *testing.T) {
	srv, sched := newTestServer(t)
	registerTestWorker(t, srv, "w1")

	submitTestJob(t, srv, `{"fanout":1}`)
	require.NoError(t, sched.ProcessPendingJobs(t.Context()))

	resp, env := doJSON(t, http.MethodPost, srv.URL+"/api/workers/w1/pull", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var task TaskAssignment
	decodeData(t, env, &task)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/tasks/"+task.TaskID+"/fail",
		FailTaskRequest{Error: "module crashed"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The failure request must carry a reason.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/tasks/"+task.TaskID+"/fail", FailTaskRequest{})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCompleteUnknownTask(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/tasks/job_x:map:0/complete",
		CompleteTaskRequest{OutputRef: "out"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDrainWorker(t *testing.T) {
	srv, _ := newTestServer(t)
	registerTestWorker(t, srv, "w1")

	resp, env := doJSON(t, http.MethodPost, srv.URL+"/api/workers/w1/drain", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, env.Success)

	resp, env = doJSON(t, http.MethodGet, srv.URL+"/api/workers", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var workers WorkersResponse
	decodeData(t, env, &workers)
	require.Zero(t, workers.Count)
}

func TestStatusEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	submitTestJob(t, srv, "")

	resp, env := doJSON(t, http.MethodGet, srv.URL+"/api/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status StatusResponse
	decodeData(t, env, &status)
	require.Equal(t, "healthy", status.Status)
	require.Equal(t, Version, status.Version)
	require.Equal(t, int64(1), status.TotalJobs)
	require.True(t, status.StoreConnected)
}
