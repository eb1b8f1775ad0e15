// Package worker runs the gateway's background tasks: fetch log batching,
// fetch log retention and DNS cache refresh.
package worker

import "context"

// Worker is a long-running background task.
type Worker interface {
	// Name identifies the worker in logs.
	Name() string
	// Run blocks until ctx is cancelled or an unrecoverable error occurs.
	// A cancelled ctx is a clean stop and returns nil.
	Run(ctx context.Context) error
}
