package triage

import "context"

// Store is the retention interface for triage results. Results only need
// to survive the current session; persistence beyond that is out of scope.
type Store interface {
	Get(ctx context.Context, id string) (*Result, bool, error)
	Put(ctx context.Context, result *Result) error
}

// Notifier delivers a finished triage result to an external channel.
type Notifier interface {
	Send(ctx context.Context, result *Result) error
}
