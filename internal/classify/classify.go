// Package classify maps errors coming out of the indexer client onto the
// closed set of outcomes the retry and DLQ logic branch on.
package classify

import (
	"errors"
)

// Kind is a terminal or retriable classification of an indexing attempt.
type Kind int

const (
	// Unknown covers any error that was never annotated by Wrap.
	Unknown Kind = iota
	// TransientHTTP is a network/5xx failure worth retrying.
	TransientHTTP
	// PermanentHTTP is a 4xx (excluding 429) failure; retrying won't help.
	PermanentHTTP
	// TaskPending means the poll loop gave up while the task was still
	// enqueued or processing.
	TaskPending
	// TaskFailed is a terminal Meilisearch task failure.
	TaskFailed
	// TaskCanceled is a terminal Meilisearch task cancellation.
	TaskCanceled
	// PollTimeout means the bounded poll loop hit its deadline.
	PollTimeout
)

func (k Kind) String() string {
	switch k {
	case TransientHTTP:
		return "transient_http"
	case PermanentHTTP:
		return "permanent_http"
	case TaskPending:
		return "task_pending"
	case TaskFailed:
		return "task_failed"
	case TaskCanceled:
		return "task_canceled"
	case PollTimeout:
		return "poll_timeout"
	default:
		return "unknown"
	}
}

// Retriable reports whether a message processor should retry on this kind.
func (k Kind) Retriable() bool {
	switch k {
	case TransientHTTP, TaskPending, PollTimeout:
		return true
	default:
		return false
	}
}

type classifiedError struct {
	kind Kind
	err  error
}

func (c *classifiedError) Error() string { return c.err.Error() }
func (c *classifiedError) Unwrap() error { return c.err }

// Wrap annotates err with a Kind so Classify can recover it later.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{kind: kind, err: err}
}

// Classify recovers the Kind attached by Wrap, or Unknown if err was never
// wrapped by this package.
func Classify(err error) Kind {
	var ce *classifiedError
	if errors.As(err, &ce) {
		return ce.kind
	}
	return Unknown
}
