package search

import "time"

// Status is the closed set of lifecycle states a Meilisearch task passes
// through, matching the source Rust worker's TaskStatus enum.
type Status string

const (
	StatusEnqueued  Status = "enqueued"
	StatusProcessing Status = "processing"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

// Terminal reports whether a task in this status will not change further.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

// Type enumerates the kinds of asynchronous operation Meilisearch can run,
// supplemented from the source Rust worker's fuller TaskType model beyond
// what the document upsert/delete path alone exercises.
type Type string

const (
	TypeIndexCreation    Type = "indexCreation"
	TypeIndexUpdate      Type = "indexUpdate"
	TypeIndexDeletion    Type = "indexDeletion"
	TypeIndexSwap        Type = "indexSwap"
	TypeDocumentAddition Type = "documentAdditionOrUpdate"
	TypeDocumentDeletion Type = "documentDeletion"
	TypeSettingsUpdate   Type = "settingsUpdate"
	TypeDumpCreation     Type = "dumpCreation"
	TypeTaskCancelation  Type = "taskCancelation"
	TypeTaskDeletion     Type = "taskDeletion"
	TypeSnapshotCreation Type = "snapshotCreation"
)

// TaskError carries the engine's description of why a task failed.
type TaskError struct {
	Message   string  `json:"message"`
	Code      string  `json:"code"`
	ErrorType string  `json:"type"`
	Link      string  `json:"link"`
}

// Task is the resource returned by GET /tasks/{taskUid}, without the
// type-specific details object.
type Task struct {
	UID         int64      `json:"uid"`
	IndexUID    string     `json:"indexUid"`
	Status      Status     `json:"status"`
	Type        Type       `json:"type"`
	Error       *TaskError `json:"error"`
	CanceledBy  *int64     `json:"canceledBy,omitempty"`
	EnqueuedAt  time.Time  `json:"enqueuedAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	FinishedAt  *time.Time `json:"finishedAt,omitempty"`
	Duration    string     `json:"duration,omitempty"`
}

// ErrorMessage returns the task's error message, or a fallback when the
// engine didn't provide one -- terminal Failed/Canceled tasks don't always
// carry a populated Error field.
func (t Task) ErrorMessage() string {
	if t.Error != nil && t.Error.Message != "" {
		return t.Error.Message
	}
	return "unknown error"
}
