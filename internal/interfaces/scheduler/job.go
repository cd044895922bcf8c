package scheduler

import "context"

// Job is a unit of work run by the worker pool.
type Job interface {
	// Execute runs the job. Implementations must honor ctx cancellation.
	Execute(ctx context.Context) error

	// UserID identifies whose data the job touches, for logs and spans.
	// Jobs that are not per-user return "".
	UserID() string

	Description() string
}

// JobFunc adapts a function to Job for maintenance work that is not per-user.
type JobFunc struct {
	Name string
	Fn   func(ctx context.Context) error
}

func (j JobFunc) Execute(ctx context.Context) error { return j.Fn(ctx) }
func (j JobFunc) UserID() string                    { return "" }
func (j JobFunc) Description() string               { return j.Name }
