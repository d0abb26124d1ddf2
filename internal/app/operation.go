package app

import "time"

// Operation records one CLI invocation. Its ID stamps every log line the
// invocation writes, and its outcome is logged when the app is closed.
type Operation struct {
	ID        string // "20060102T150405Z" of the start time
	Name      string
	Args      []string
	StartedAt time.Time
	Status    string // "success" or "error"
}

// NewOperation creates an operation named name that started at now.
func NewOperation(name string, args []string, now time.Time) *Operation {
	now = now.UTC()
	return &Operation{
		ID:        now.Format("20060102T150405Z"),
		Name:      name,
		Args:      args,
		StartedAt: now,
		Status:    "success",
	}
}

// Fail marks the operation as failed.
func (op *Operation) Fail() {
	op.Status = "error"
}

// Failed reports whether Fail was called.
func (op *Operation) Failed() bool {
	return op.Status == "error"
}
