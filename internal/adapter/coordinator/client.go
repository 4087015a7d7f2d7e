// Package coordinator implements the worker-side HTTP client for the
// coordinator's control surface.
package coordinator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dafproject/daf/internal/core/domain"
	"github.com/dafproject/daf/internal/core/port"
)

const requestTimeout = 10 * time.Second

// Client talks to the coordinator REST API and decodes its response
// envelope.
type Client struct {
	baseURL string
	http    *http.Client
}

var _ port.CoordinatorClient = (*Client)(nil)

func NewClient(host string, httpPort int) *Client {
	return &Client{
		baseURL: fmt.Sprintf("http://%s:%d", host, httpPort),
		http:    &http.Client{Timeout: requestTimeout},
	}
}

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     string          `json:"error"`
	Timestamp int64           `json:"timestamp"`
}

type registerRequest struct {
	WorkerID     string   `json:"worker_id"`
	Host         string   `json:"host"`
	Port         int      `json:"port"`
	Capabilities []string `json:"capabilities"`
}

type heartbeatRequest struct {
	WorkerID string `json:"worker_id"`
}

type assignment struct {
	TaskID     string          `json:"task_id"`
	JobID      string          `json:"job_id"`
	Kind       string          `json:"kind"`
	Attempt    int             `json:"attempt"`
	InputRefs  []string        `json:"input_refs"`
	ModuleName string          `json:"module_name"`
	Config     json.RawMessage `json:"config"`
}

type completeRequest struct {
	OutputRef string `json:"output_ref"`
}

type failRequest struct {
	Error string `json:"error"`
}

func (c *Client) Register(ctx context.Context, worker *domain.Worker) error {
	req := registerRequest{
		WorkerID:     worker.ID,
		Host:         worker.Host,
		Port:         worker.Port,
		Capabilities: worker.Capabilities,
	}
	return c.post(ctx, "/api/workers/register", req, nil)
}

func (c *Client) Heartbeat(ctx context.Context, workerID string) error {
	return c.post(ctx, "/api/workers/heartbeat", heartbeatRequest{WorkerID: workerID}, nil)
}

// Pull asks for one task. Returns port.ErrNotFound when the coordinator
// has nothing to hand out.
func (c *Client) Pull(ctx context.Context, workerID string) (*port.TaskAssignment, error) {
	var out assignment
	status, err := c.do(ctx, http.MethodPost, "/api/workers/"+workerID+"/pull", nil, &out)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNoContent {
		return nil, port.ErrNotFound
	}

	jobID, kind, _, err := domain.ParseTaskID(out.TaskID)
	if err != nil {
		return nil, fmt.Errorf("coordinator returned malformed task id %q: %w", out.TaskID, err)
	}
	if out.JobID != "" {
		jobID = out.JobID
	}
	task := &domain.Task{
		ID:        out.TaskID,
		JobID:     jobID,
		Kind:      kind,
		Attempts:  out.Attempt,
		InputRefs: out.InputRefs,
		Status:    domain.TaskStatusAssigned,
	}
	return &port.TaskAssignment{
		Task:       task,
		ModuleName: out.ModuleName,
		Config:     string(out.Config),
	}, nil
}

func (c *Client) Complete(ctx context.Context, taskID, outputRef string) error {
	return c.post(ctx, "/api/tasks/"+taskID+"/complete", completeRequest{OutputRef: outputRef}, nil)
}

func (c *Client) Fail(ctx context.Context, taskID, reason string) error {
	return c.post(ctx, "/api/tasks/"+taskID+"/fail", failRequest{Error: reason}, nil)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	_, err := c.do(ctx, http.MethodPost, path, body, out)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return resp.StatusCode, nil
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response from %s: %w", path, err)
	}
	if !env.Success {
		if resp.StatusCode == http.StatusNotFound {
			return resp.StatusCode, fmt.Errorf("%s: %s: %w", path, env.Error, port.ErrNotFound)
		}
		return resp.StatusCode, fmt.Errorf("%s: coordinator error (%d): %s", path, resp.StatusCode, env.Error)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode payload from %s: %w", path, err)
		}
	}
	return resp.StatusCode, nil
}
