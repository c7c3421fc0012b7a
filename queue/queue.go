// Package queue provides the durable FIFO of build requests. The queue lives
// in a single JSON file which is re-read and atomically replaced under a
// file lock on every operation, so producer processes and the worker always
// agree on its content.
package queue

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/hwci/hwci/model"
	"github.com/hwci/hwci/persist"
	"github.com/rs/zerolog"
)

// FileName is the name of the queue file inside the home directory.
const FileName = "queue.json"

const (
	schemaVersion = 1
	lockTimeout   = 10 * time.Second
	lockRetry     = 50 * time.Millisecond
)

var (
	// ErrEmptyQueue is returned by Peek and Dequeue on an empty queue.
	ErrEmptyQueue = errors.New("build queue is empty")
	// ErrDuplicateRequest is returned when a request ID is already queued.
	ErrDuplicateRequest = errors.New("build request is already queued")
	// ErrLockTimeout is returned when the queue file stays locked too long.
	ErrLockTimeout = errors.New("timed out waiting for the queue lock")
)

// PersistenceError is a fault reading or writing the queue file. The queue
// state cannot be trusted after one.
type PersistenceError = persist.Error

type document struct {
	SchemaVersion int                  `json:"schema_version"`
	Requests      []model.BuildRequest `json:"requests"`
}

// Queue is the durable FIFO of build requests.
type Queue struct {
	logger zerolog.Logger
	path   string
	guard  *flock.Flock
}

// New opens the queue stored in dir. The file is created on first write.
func New(logger zerolog.Logger, dir string) *Queue {
	path := filepath.Join(dir, FileName)
	return &Queue{
		logger: logger,
		path:   path,
		guard:  flock.New(path + ".lock"),
	}
}

// Path returns the queue file path.
func (q *Queue) Path() string {
	return q.path
}

// Enqueue appends req and persists the queue before returning.
func (q *Queue) Enqueue(ctx context.Context, req model.BuildRequest) error {
	err := q.update(ctx, func(doc *document) (bool, error) {
		for _, queued := range doc.Requests {
			if queued.ID == req.ID {
				return false, fmt.Errorf("%w: %s", ErrDuplicateRequest, req.ID)
			}
		}
		doc.Requests = append(doc.Requests, req)
		return true, nil
	})
	if err != nil {
		return err
	}
	q.logger.Info().
		Str("id", req.ID.String()).
		Str("repository", req.RepositoryURL).
		Str("branch", req.Branch).
		Msg("Enqueued build request")
	return nil
}

// Peek returns the front request without removing it.
func (q *Queue) Peek(ctx context.Context) (model.BuildRequest, error) {
	var front model.BuildRequest
	err := q.update(ctx, func(doc *document) (bool, error) {
		if len(doc.Requests) == 0 {
			return false, ErrEmptyQueue
		}
		front = doc.Requests[0]
		return false, nil
	})
	return front, err
}

// Dequeue removes the front request and persists the queue before
// returning it.
func (q *Queue) Dequeue(ctx context.Context) (model.BuildRequest, error) {
	var front model.BuildRequest
	err := q.update(ctx, func(doc *document) (bool, error) {
		if len(doc.Requests) == 0 {
			return false, ErrEmptyQueue
		}
		front = doc.Requests[0]
		doc.Requests = doc.Requests[1:]
		return true, nil
	})
	if err != nil {
		return model.BuildRequest{}, err
	}
	q.logger.Debug().Str("id", front.ID.String()).Msg("Dequeued build request")
	return front, nil
}

// List returns every queued request, front first.
func (q *Queue) List(ctx context.Context) ([]model.BuildRequest, error) {
	var requests []model.BuildRequest
	err := q.update(ctx, func(doc *document) (bool, error) {
		requests = append(requests, doc.Requests...)
		return false, nil
	})
	return requests, err
}

// Len returns the number of queued requests.
func (q *Queue) Len(ctx context.Context) (int, error) {
	requests, err := q.List(ctx)
	return len(requests), err
}

// update runs fn on the current queue content under the file lock and
// persists the document if fn reports a change.
func (q *Queue) update(ctx context.Context, fn func(doc *document) (bool, error)) error {
	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	locked, err := q.guard.TryLockContext(lockCtx, lockRetry)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrLockTimeout
		}
		return &PersistenceError{Op: "lock", Path: q.path, Err: err}
	}
	if !locked {
		return ErrLockTimeout
	}
	defer func() {
		if err := q.guard.Unlock(); err != nil {
			q.logger.Warn().Err(err).Str("path", q.path).Msg("Failed to unlock queue")
		}
	}()

	doc, err := q.read()
	if err != nil {
		return err
	}
	changed, err := fn(doc)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	doc.SchemaVersion = schemaVersion
	return persist.WriteJSON(q.path, doc)
}

func (q *Queue) read() (*document, error) {
	doc := &document{SchemaVersion: schemaVersion}
	found, err := persist.ReadJSON(q.path, doc)
	if err != nil {
		return nil, err
	}
	if found && doc.SchemaVersion != schemaVersion {
		return nil, &PersistenceError{
			Op:   "read",
			Path: q.path,
			Err:  fmt.Errorf("unsupported schema version %d", doc.SchemaVersion),
		}
	}
	return doc, nil
}
