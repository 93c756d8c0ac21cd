// Package search wraps the Meilisearch-go SDK with the index bootstrap,
// document upsert/delete, and bounded task-poll operations the worker
// needs, matching the source Rust worker's push_user_to_meili /
// delete_user_from_meili / poll_task_until_complete functions.
package search

import (
	"context"
	"time"

	"github.com/pkg/errors"
	meilisearch "github.com/meilisearch/meilisearch-go"

	"github.com/ahmad-khatib0-org/chaty-backend/search-worker/internal/classify"
)

// engine is the subset of the meilisearch-go SDK this package drives. It
// exists so tests can substitute a fake without standing up a real engine.
type engine interface {
	CreateIndex(cfg *meilisearch.IndexConfig) (*meilisearch.TaskInfo, error)
	AddDocuments(indexUID string, documents interface{}, primaryKey string) (*meilisearch.TaskInfo, error)
	DeleteDocument(indexUID string, identifier string) (*meilisearch.TaskInfo, error)
	GetTask(taskUID int64) (*meilisearch.Task, error)
}

// Client is the worker's indexer client for a single engine endpoint. Per
// DESIGN.md's Open Question decision, only endpoints[0] is ever dialed --
// the source Rust worker never load-balanced across the configured endpoint
// list either.
type Client struct {
	eng          engine
	pollInterval time.Duration
	pollTimeout  time.Duration
}

// New builds a Client against host using apiKey for bearer auth.
func New(host, apiKey string, pollInterval, pollTimeout time.Duration) *Client {
	sdk := meilisearch.NewClient(meilisearch.ClientConfig{
		Host:   host,
		APIKey: apiKey,
	})
	return &Client{
		eng:          sdkAdapter{sdk},
		pollInterval: pollInterval,
		pollTimeout:  pollTimeout,
	}
}

// newWithEngine is used by tests to inject a fake engine.
func newWithEngine(eng engine, pollInterval, pollTimeout time.Duration) *Client {
	return &Client{eng: eng, pollInterval: pollInterval, pollTimeout: pollTimeout}
}

// EnsureIndexes idempotently creates the primary and DLQ-mirror indexes,
// treating "index already exists" as success.
func (c *Client) EnsureIndexes(ctx context.Context, primaryUID, dlqUID, primaryKey string) error {
	for _, uid := range []string{primaryUID, dlqUID} {
		task, err := c.eng.CreateIndex(&meilisearch.IndexConfig{Uid: uid, PrimaryKey: primaryKey})
		if err != nil {
			if isIndexAlreadyExists(err) {
				continue
			}
			return classify.Wrap(classify.TransientHTTP, errors.Wrapf(err, "creating index %q", uid))
		}
		if _, err := c.PollTask(ctx, task.TaskUID, uid); err != nil {
			return err
		}
	}
	return nil
}

// Upsert indexes doc into indexUID and waits for the resulting task to
// reach a terminal state.
func (c *Client) Upsert(ctx context.Context, indexUID string, doc interface{}) error {
	task, err := c.eng.AddDocuments(indexUID, []interface{}{doc}, "id")
	if err != nil {
		return classify.Wrap(classify.TransientHTTP, errors.Wrap(err, "adding document"))
	}
	_, err = c.PollTask(ctx, task.TaskUID, indexUID)
	return err
}

// Delete removes the document identified by id from indexUID and waits for
// the resulting task to reach a terminal state.
func (c *Client) Delete(ctx context.Context, indexUID, id string) error {
	task, err := c.eng.DeleteDocument(indexUID, id)
	if err != nil {
		return classify.Wrap(classify.TransientHTTP, errors.Wrap(err, "deleting document"))
	}
	_, err = c.PollTask(ctx, task.TaskUID, indexUID)
	return err
}

// PollTask polls GET /tasks/{taskUID} every pollInterval until the task
// reaches a terminal state or pollTimeout elapses, matching the source
// Rust worker's 200ms/15s contract exactly.
func (c *Client) PollTask(ctx context.Context, taskUID int64, indexUID string) (Task, error) {
	deadline := time.Now().Add(c.pollTimeout)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		if time.Now().After(deadline) {
			return Task{}, classify.Wrap(classify.PollTimeout,
				errors.Errorf("timed out after %s waiting on task %d for index %q", c.pollTimeout, taskUID, indexUID))
		}

		sdkTask, err := c.eng.GetTask(taskUID)
		if err != nil {
			select {
			case <-ctx.Done():
				return Task{}, ctx.Err()
			case <-ticker.C:
				continue
			}
		}

		task := fromSDKTask(sdkTask)
		switch task.Status {
		case StatusSucceeded:
			return task, nil
		case StatusFailed:
			return task, classify.Wrap(classify.TaskFailed, errors.New(task.ErrorMessage()))
		case StatusCanceled:
			return task, classify.Wrap(classify.TaskCanceled, errors.New(task.ErrorMessage()))
		default: // Enqueued, Processing
			select {
			case <-ctx.Done():
				return Task{}, ctx.Err()
			case <-ticker.C:
			}
		}
	}
}

func fromSDKTask(t *meilisearch.Task) Task {
	return Task{
		UID:      t.UID,
		IndexUID: t.IndexUID,
		Status:   Status(t.Status),
		Type:     Type(t.Type),
		Error: func() *TaskError {
			if t.Error.Message == "" && t.Error.Code == "" {
				return nil
			}
			return &TaskError{
				Message:   t.Error.Message,
				Code:      t.Error.Code,
				ErrorType: t.Error.Type,
				Link:      t.Error.Link,
			}
		}(),
	}
}

func isIndexAlreadyExists(err error) bool {
	var apiErr *meilisearch.Error
	if errors.As(err, &apiErr) {
		return apiErr.MeilisearchApiError.Code == "index_already_exists"
	}
	return false
}

type sdkAdapter struct {
	cl *meilisearch.Client
}

func (a sdkAdapter) CreateIndex(cfg *meilisearch.IndexConfig) (*meilisearch.TaskInfo, error) {
	return a.cl.CreateIndex(cfg)
}

func (a sdkAdapter) AddDocuments(indexUID string, documents interface{}, primaryKey string) (*meilisearch.TaskInfo, error) {
	return a.cl.Index(indexUID).AddDocuments(documents, primaryKey)
}

func (a sdkAdapter) DeleteDocument(indexUID string, identifier string) (*meilisearch.TaskInfo, error) {
	return a.cl.Index(indexUID).DeleteDocument(identifier)
}

func (a sdkAdapter) GetTask(taskUID int64) (*meilisearch.Task, error) {
	return a.cl.GetTask(taskUID)
}
