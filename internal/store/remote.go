package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/marcus/foreman/internal/tasks"
)

// RemoteStore persists tasks to a remote HTTP service with JSON bodies
// and bearer-token auth. Any non-2xx response is an error.
type RemoteStore struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewRemoteStore creates a remote store for the given base URL.
func NewRemoteStore(baseURL, token string) *RemoteStore {
	return &RemoteStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *RemoteStore) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// CreateTask posts the task to the remote service.
func (s *RemoteStore) CreateTask(ctx context.Context, t *tasks.Task) error {
	return s.do(ctx, http.MethodPost, "/tasks", t, nil)
}

// UpdateStatus patches the task's status.
func (s *RemoteStore) UpdateStatus(ctx context.Context, taskID string, status tasks.Status) error {
	body := map[string]any{"status": status}
	return s.do(ctx, http.MethodPatch, "/tasks/"+url.PathEscape(taskID)+"/status", body, nil)
}

// RecordResult posts the task's result.
func (s *RemoteStore) RecordResult(ctx context.Context, taskID string, r *tasks.Result) error {
	return s.do(ctx, http.MethodPost, "/tasks/"+url.PathEscape(taskID)+"/result", r, nil)
}

// RecordEvent posts a task event.
func (s *RemoteStore) RecordEvent(ctx context.Context, e Event) error {
	return s.do(ctx, http.MethodPost, "/tasks/"+url.PathEscape(e.TaskID)+"/events", e, nil)
}

// GetTask fetches a task; a 404 maps to ErrNotFound.
func (s *RemoteStore) GetTask(ctx context.Context, taskID string) (*tasks.Task, error) {
	var t tasks.Task
	err := s.do(ctx, http.MethodGet, "/tasks/"+url.PathEscape(taskID), nil, &t)
	if err != nil {
		if strings.Contains(err.Error(), "status 404") {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// GetTaskEvents fetches the events recorded for a task.
func (s *RemoteStore) GetTaskEvents(ctx context.Context, taskID string) ([]Event, error) {
	var events []Event
	if err := s.do(ctx, http.MethodGet, "/tasks/"+url.PathEscape(taskID)+"/events", nil, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// GetRecentTasks fetches up to limit tasks, newest first.
func (s *RemoteStore) GetRecentTasks(ctx context.Context, limit int) ([]*tasks.Task, error) {
	var out []*tasks.Task
	path := "/tasks?limit=" + strconv.Itoa(limit)
	if err := s.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
