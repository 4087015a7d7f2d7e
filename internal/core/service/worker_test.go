package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dafproject/daf/internal/core/domain"
	"github.com/dafproject/daf/internal/core/port"
	"github.com/dafproject/daf/internal/module"
)

type fakeClient struct {
	mu         sync.Mutex
	registered []*domain.Worker
	heartbeats int
	completed  map[string]string
	failed     map[string]string
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		completed: make(map[string]string),
		failed:    make(map[string]string),
	}
}

func (c *fakeClient) Register(_ context.Context, w *domain.Worker) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.registered = append(c.registered, w)
	return nil
}

func (c *fakeClient) Heartbeat(context.Context, string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.heartbeats++
	return nil
}

func (c *fakeClient) Pull(context.Context, string) (*port.TaskAssignment, error) {
	return nil, port.ErrNotFound
}

func (c *fakeClient) Complete(_ context.Context, taskID, outputRef string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.completed[taskID] = outputRef
	return nil
}

func (c *fakeClient) Fail(_ context.Context, taskID, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failed[taskID] = reason
	return nil
}

type failingModule struct{ err error }

func (m failingModule) Name() string { return "failing" }
func (m failingModule) Map(context.Context, *module.Input, *module.Output) error {
	return m.err
}
func (m failingModule) Reduce(context.Context, string, *module.Input, *module.Output) error {
	return m.err
}

type panickyModule struct{}

func (panickyModule) Name() string { return "panicky" }
func (panickyModule) Map(context.Context, *module.Input, *module.Output) error {
	panic("map exploded")
}
func (panickyModule) Reduce(context.Context, string, *module.Input, *module.Output) error {
	panic("reduce exploded")
}

func newTestWorker(t *testing.T, client port.CoordinatorClient) *Worker {
	t.Helper()
	modules := module.NewRegistry()
	module.RegisterBuiltins(modules)
	modules.Register(failingModule{err: errors.New("no such input")})
	modules.Register(panickyModule{})

	return NewWorker(WorkerConfig{
		ID:   "worker_host_9001",
		Host: "host",
		Port: 9001,
	}, client, modules, zap.NewNop())
}

func assignment(moduleName string, kind domain.TaskKind) *port.TaskAssignment {
	return &port.TaskAssignment{
		Task: &domain.Task{
			ID:        "job_1:" + string(kind) + ":0",
			JobID:     "job_1",
			Kind:      kind,
			Attempts:  1,
			InputRefs: []string{"/data/a"},
		},
		ModuleName: moduleName,
		Config:     `{"separator":";","fanout":2}`,
	}
}

func TestExecuteReportsCompletion(t *testing.T) {
	client := newFakeClient()
	w := newTestWorker(t, client)

	w.execute(context.Background(), assignment("echo", domain.TaskKindMap))

	require.Equal(t, map[string]string{"job_1:map:0": "job_1:map:0:output"}, client.completed)
	require.Empty(t, client.failed)
}

func TestExecuteReduceTask(t *testing.T) {
	client := newFakeClient()
	w := newTestWorker(t, client)

	w.execute(context.Background(), assignment("echo", domain.TaskKindReduce))

	require.Contains(t, client.completed, "job_1:reduce:0")
}

func TestExecuteReportsModuleError(t *testing.T) {
	client := newFakeClient()
	w := newTestWorker(t, client)

	w.execute(context.Background(), assignment("failing", domain.TaskKindMap))

	require.Empty(t, client.completed)
	require.Equal(t, "no such input", client.failed["job_1:map:0"])
}

func TestExecuteUnknownModuleFails(t *testing.T) {
	client := newFakeClient()
	w := newTestWorker(t, client)

	w.execute(context.Background(), assignment("nope", domain.TaskKindMap))

	require.Empty(t, client.completed)
	require.Contains(t, client.failed["job_1:map:0"], "not registered")
}

func TestExecuteSurvivesModulePanic(t *testing.T) {
	client := newFakeClient()
	w := newTestWorker(t, client)

	w.execute(context.Background(), assignment("panicky", domain.TaskKindMap))

	require.Empty(t, client.completed)
	require.Contains(t, client.failed["job_1:map:0"], "module panic")
}

func TestExecuteUnknownTaskKindFails(t *testing.T) {
	client := newFakeClient()
	w := newTestWorker(t, client)

	a := assignment("echo", domain.TaskKindMap)
	a.Task.Kind = "shuffle"
	w.execute(context.Background(), a)

	require.Contains(t, client.failed[a.Task.ID], "unknown task kind")
}

func TestConfigParams(t *testing.T) {
	params := configParams(`{"separator":";","fanout":2,"nested":{"a":1}}`)
	require.Equal(t, ";", params["separator"])
	require.Equal(t, "2", params["fanout"])
	require.Equal(t, `{"a":1}`, params["nested"])

	require.Empty(t, configParams(""))
	require.Empty(t, configParams("not json"))
	require.Empty(t, configParams(`[1,2,3]`))
}

func TestRegisterSendsIdentity(t *testing.T) {
	client := newFakeClient()
	w := newTestWorker(t, client)

	require.NoError(t, w.register(context.Background()))
	require.Len(t, client.registered, 1)
	require.Equal(t, "worker_host_9001", client.registered[0].ID)
	require.Equal(t, 9001, client.registered[0].Port)
}

func TestRegisterRetriesBeforeGivingUp(t *testing.T) {
	client := &erroringClient{fakeClient: newFakeClient(), failures: 2}
	modules := module.NewRegistry()
	w := NewWorker(WorkerConfig{
		ID:               "w1",
		Host:             "host",
		Port:             9001,
		RegisterAttempts: 3,
	}, client, modules, zap.NewNop())

	// The canceled context aborts the backoff sleep after the first
	// failed attempt.
	err := w.register(canceledContext())
	require.ErrorIs(t, err, context.Canceled)
}

type erroringClient struct {
	*fakeClient
	failures int
}

func (c *erroringClient) Register(ctx context.Context, w *domain.Worker) error {
	if c.failures > 0 {
		c.failures--
		return errors.New("connection refused")
	}
	return c.fakeClient.Register(ctx, w)
}

func canceledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}
