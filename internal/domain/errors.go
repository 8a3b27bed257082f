package domain

import "fmt"

// ValidationError rejects malformed or out-of-range input. Never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NotFoundError reports a missing task or sub-record.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// StateError rejects an operation that violates a precondition; the task is
// left unchanged.
type StateError struct {
	Message string
}

func (e *StateError) Error() string { return e.Message }

// ConflictError signals an optimistic-concurrency failure: the task was
// modified since the caller read it. Retry responsibility is the caller's.
type ConflictError struct {
	TaskID  string
	Version int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("task %s: stale write at version %d", e.TaskID, e.Version)
}
